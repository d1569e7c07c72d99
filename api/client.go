// ABOUTME: HTTP client for the courier REST API
// ABOUTME: Sends every call through the authenticated gateway with user-friendly error handling

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/syntlex/courier/gateway"
	"github.com/syntlex/courier/models"
	"github.com/syntlex/courier/telemetry"
)

// Client is the courier API client
type Client struct {
	gw     *gateway.Gateway
	tracer trace.Tracer
}

// New creates a client that authenticates through gw
func New(gw *gateway.Gateway) *Client {
	return &Client{
		gw:     gw,
		tracer: telemetry.Tracer("github.com/syntlex/courier/api"),
	}
}

// Gateway exposes the underlying gateway for session management
func (c *Client) Gateway() *gateway.Gateway {
	return c.gw
}

// SendOTP calls POST /send-otp
func (c *Client) SendOTP(ctx context.Context, phone string, signInType models.SignInType) error {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/send-otp", models.SendOTPRequest{
		PhoneNumber: phone,
		SignInType:  signInType,
	}, nil)
}

// Authenticate calls POST /company/authenticate and seeds the session with the returned tokens
func (c *Client) Authenticate(ctx context.Context, phone, code string) error {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("verification code is required")
	}

	var pair models.TokenPair
	if err := c.do(ctx, http.MethodPost, "/company/authenticate", models.AuthenticateRequest{
		PhoneNumber:    phone,
		Code:           code,
		PolicyAccepted: true,
	}, &pair); err != nil {
		return err
	}

	return c.gw.InitializeSession(ctx, pair.Token, pair.RefreshToken)
}

// Profile calls GET /company/courier/profile
func (c *Client) Profile(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, "/company/courier/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Applications calls GET /company/courier/applications
func (c *Client) Applications(ctx context.Context) (*models.ApplicationList, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/company/courier/applications", nil, &raw); err != nil {
		return nil, err
	}
	return decodeApplications(raw)
}

// WalletIncome calls GET /companies/{uuid}/income/{kind}
func (c *Client) WalletIncome(ctx context.Context, companyUUID string, kind models.WalletKind) (*models.WalletIncome, error) {
	if companyUUID == "" {
		return nil, errors.New("company UUID is required")
	}

	var raw json.RawMessage
	path := "/companies/" + url.PathEscape(companyUUID) + "/income/" + url.PathEscape(string(kind))
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	income := models.WalletIncome{Kind: kind, Raw: raw}
	switch {
	case bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")):
		if err := json.Unmarshal(raw, &income); err != nil {
			slog.Debug("Wallet response not in the expected shape", "kind", kind, "error", err)
		}
	default:
		// A bare number is the figure itself
		var amount float64
		if err := json.Unmarshal(raw, &amount); err == nil {
			income.Balance = amount
		}
	}
	income.Kind = kind
	return &income, nil
}

// Home loads the profile and applications concurrently, as the home screen does
func (c *Client) Home(ctx context.Context) (*models.Home, error) {
	ctx, span := c.tracer.Start(ctx, "courier.Home")
	defer span.End()

	var home models.Home
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := c.Profile(gctx)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		home.Profile = profile
		return nil
	})
	g.Go(func() error {
		apps, err := c.Applications(gctx)
		if err != nil {
			return fmt.Errorf("applications: %w", err)
		}
		home.Applications = apps
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &home, nil
}

// Logout destroys the local session
func (c *Client) Logout(ctx context.Context) error {
	return c.gw.Logout(ctx)
}

// do sends a JSON request through the gateway and decodes a 2xx body into out (when non-nil)
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.gw.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.gw.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(resp, requestID)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from backend: %w", err)
	}
	return nil
}

// handleRequestError converts context and transport errors to user-friendly messages
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if errors.Is(err, gateway.ErrRefreshFailed) {
		return fmt.Errorf("session expired, please log in again: %w", err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("request canceled: %w", ctx.Err())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", ctx.Err())
	}
	return fmt.Errorf("cannot connect to backend at %s: %w", c.gw.BaseURL(), err)
}

// handleErrorResponse parses API error responses
func (c *Client) handleErrorResponse(resp *http.Response, requestID string) error {
	apiErr := &Error{StatusCode: resp.StatusCode, RequestID: requestID}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp models.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil {
		apiErr.Message = errResp.Message
		if apiErr.Message == "" {
			apiErr.Message = errResp.Error
		}
	}

	slog.Debug("API request failed", "status", resp.StatusCode, "request_id", requestID, "path", resp.Request.URL.Path)
	return apiErr
}

// decodeApplications accepts either a bare list or the {amount, data} object form
func decodeApplications(raw json.RawMessage) (*models.ApplicationList, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &models.ApplicationList{}, nil
	}

	if trimmed[0] == '[' {
		var apps []models.Application
		if err := json.Unmarshal(trimmed, &apps); err != nil {
			return nil, fmt.Errorf("invalid response from backend: %w", err)
		}
		return &models.ApplicationList{Amount: len(apps), Data: apps}, nil
	}

	var list models.ApplicationList
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("invalid response from backend: %w", err)
	}
	if list.Amount == 0 {
		list.Amount = len(list.Data)
	}
	return &list, nil
}

// NormalizePhone reduces a phone number to "+" followed by its digits
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 9 || len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number %q", phone)
	}
	return "+" + digits, nil
}
