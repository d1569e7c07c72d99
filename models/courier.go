// ABOUTME: Courier API request/response models
// ABOUTME: OTP sign-in, courier profile, applications (orders) and wallet income

package models

import (
	"encoding/json"
	"fmt"
)

// SignInType selects the channel the OTP is delivered over
type SignInType string

const (
	SignInWhatsApp SignInType = "wa"
	SignInTelegram SignInType = "tg"
	SignInEmail    SignInType = "email"
	SignInSMS      SignInType = "sms"
)

// SignInTypes lists the supported OTP channels in display order
var SignInTypes = []SignInType{SignInWhatsApp, SignInTelegram, SignInSMS, SignInEmail}

// ParseSignInType validates a channel name
func ParseSignInType(s string) (SignInType, error) {
	for _, t := range SignInTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown sign-in type %q (want wa, tg, sms or email)", s)
}

// SendOTPRequest is the body of POST /send-otp
type SendOTPRequest struct {
	PhoneNumber string     `json:"phoneNumber"`
	SignInType  SignInType `json:"signInType"`
}

// AuthenticateRequest is the body of POST /company/authenticate
type AuthenticateRequest struct {
	PhoneNumber    string `json:"phoneNumber"`
	Code           string `json:"code"`
	PolicyAccepted bool   `json:"policyAccepted"`
}

// Profile is the courier profile returned by GET /company/courier/profile
type Profile struct {
	CompanyUUID        string `json:"companyUuid"`
	FirstName          string `json:"firstName,omitempty"`
	LastName           string `json:"lastName,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
	ApplicationsAmount int    `json:"applicationsAmount"`
	ApplicationsDone   int    `json:"applicationsDone"`
	CreatedAt          string `json:"createdAt,omitempty"`
}

// Location is a delivery point
type Location struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// Application is a delivery order assigned to or offered to the courier
type Application struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Number            string   `json:"number"`
	OrderNumber       string   `json:"orderNumber"`
	OrderSum          string   `json:"orderSumm"`
	Address           string   `json:"address"`
	Description       string   `json:"description"`
	RestaurantAddress string   `json:"restourantAddress"`
	DeliveryTime      string   `json:"deliveryTime"`
	Location          Location `json:"location"`
}

// Transaction is a single wallet movement
type Transaction struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"` // income, expense
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Status      string  `json:"status"` // completed, pending, cancelled
}

// WalletKind selects the wallet figure fetched from the income endpoint
type WalletKind string

const (
	WalletBalance  WalletKind = "balance"
	WalletTopUp    WalletKind = "topUp"
	WalletWithdraw WalletKind = "withdraw"
	WalletDeposit  WalletKind = "deposit"
)

// WalletKinds lists the figures the wallet screen loads
var WalletKinds = []WalletKind{WalletBalance, WalletTopUp, WalletWithdraw, WalletDeposit}

// ParseWalletKind validates a wallet kind name
func ParseWalletKind(s string) (WalletKind, error) {
	for _, k := range WalletKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown wallet kind %q (want balance, topUp, withdraw or deposit)", s)
}

// ApplicationList is the object form of GET /company/courier/applications
type ApplicationList struct {
	Amount int           `json:"amount"`
	Data   []Application `json:"data"`
}

// WalletIncome is returned by GET /companies/{uuid}/income/{type}
type WalletIncome struct {
	Kind         WalletKind      `json:"kind"`
	Balance      float64         `json:"balance"`
	Transactions []Transaction   `json:"transactions"`
	Raw          json.RawMessage `json:"-"`
}

// Home combines the data the courier home screen loads
type Home struct {
	Profile      *Profile         `json:"profile"`
	Applications *ApplicationList `json:"applications"`
}

// ErrorResponse represents an API error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
