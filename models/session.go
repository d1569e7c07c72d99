// ABOUTME: Persisted authentication record and token exchange contracts
// ABOUTME: Defines staleness rules for proactive token refresh

package models

import "time"

const (
	// SafetyMargin is how long before expiry an access token is treated as stale.
	SafetyMargin = 5 * time.Minute
	// TokenValidity is the lifetime assigned to a freshly issued access token.
	TokenValidity = 2 * time.Hour
)

// Session is the single authentication record kept per device.
// A new Session always replaces the previous one as a whole.
type Session struct {
	AccessToken  string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    *time.Time `json:"tokenExpiry,omitempty"`
}

// NewSession builds a session whose access token expires TokenValidity after now.
func NewSession(accessToken, refreshToken string, now time.Time) *Session {
	expiresAt := now.Add(TokenValidity)
	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    &expiresAt,
	}
}

// IsStale reports whether the access token is within SafetyMargin of expiry or past it.
// Sessions without an expiry are never proactively stale.
func (s *Session) IsStale(now time.Time) bool {
	if s == nil || s.ExpiresAt == nil {
		return false
	}
	return !now.Before(s.ExpiresAt.Add(-SafetyMargin))
}

// ExpiresIn returns the time left until expiry, or zero when no expiry is recorded.
func (s *Session) ExpiresIn(now time.Time) time.Duration {
	if s == nil || s.ExpiresAt == nil {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// RefreshRequest is the body of POST /refresh/token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is returned by both the login and the refresh endpoints
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
