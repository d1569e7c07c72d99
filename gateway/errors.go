// ABOUTME: Error taxonomy for the authenticated gateway
// ABOUTME: Refresh failures unwrap to ErrRefreshFailed plus the underlying cause

package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrRefreshFailed matches every failed token refresh, whatever the cause.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrNoRefreshToken means no session (or no refresh token) was available to exchange.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// RefreshError is returned to every caller coalesced on a failed refresh.
type RefreshError struct {
	Trigger string
	Err     error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed (%s): %v", e.Trigger, e.Err)
}

func (e *RefreshError) Unwrap() []error {
	return []error{ErrRefreshFailed, e.Err}
}

// ExchangeError is a non-2xx answer from the token exchange endpoint.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("refresh endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("refresh endpoint returned status %d: %s", e.StatusCode, e.Body)
}
