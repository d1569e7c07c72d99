// ABOUTME: Tests for the session command
// ABOUTME: Covers JWT claim extraction, token masking and exit codes

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/syntlex/courier/internal/tui/styles"
	"github.com/syntlex/courier/models"
)

func TestBuildSessionView_LoggedOut(t *testing.T) {
	view := buildSessionView(nil, time.Now())
	if view.LoggedIn {
		t.Error("expected logged out view")
	}
	if view.State != styles.StateLoggedOut {
		t.Errorf("expected state %q, got %q", styles.StateLoggedOut, view.State)
	}
}

func TestBuildSessionView_Claims(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "courier-42",
		"iat": now.Unix(),
		"exp": now.Add(2 * time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	view := buildSessionView(models.NewSession(token, "refA", now), now.Add(time.Hour))

	if view.Subject != "courier-42" {
		t.Errorf("expected subject courier-42, got %q", view.Subject)
	}
	if view.TokenExpiresAt == nil || !view.TokenExpiresAt.Equal(now.Add(2*time.Hour)) {
		t.Errorf("expected JWT exp %v, got %v", now.Add(2*time.Hour), view.TokenExpiresAt)
	}
	if view.ExpiresInSeconds != 3600 {
		t.Errorf("expected 3600 seconds left, got %d", view.ExpiresInSeconds)
	}
	if view.Stale {
		t.Error("expected session not stale an hour before expiry")
	}
	if strings.Contains(view.Token, token[10:]) {
		t.Error("expected token to be masked")
	}
}

func TestBuildSessionView_OpaqueTokenAndStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	view := buildSessionView(models.NewSession("opaque-token-value", "", now), now.Add(models.TokenValidity-time.Minute))

	if view.Subject != "" || view.TokenExpiresAt != nil {
		t.Error("expected no claims from an opaque token")
	}
	if !view.Stale {
		t.Error("expected stale inside the safety margin")
	}
	if view.HasRefreshToken {
		t.Error("expected no refresh token")
	}
	if view.State != styles.StateRefresh {
		t.Errorf("expected state %q, got %q", styles.StateRefresh, view.State)
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", "*****"},
		{"abcdefghijklmnop", "abcdef…"},
	}
	for _, tt := range tests {
		if got := maskToken(tt.in); got != tt.want {
			t.Errorf("maskToken(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestSessionCommand_LoggedOut(t *testing.T) {
	setupCLI(t, courierBackend(t))

	var buf bytes.Buffer
	if code := runSession(context.Background(), &buf); code != 2 {
		t.Errorf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(buf.String(), "courier login") {
		t.Errorf("expected login hint, got %q", buf.String())
	}
}

func TestSessionCommand_JSON(t *testing.T) {
	setupCLI(t, courierBackend(t))
	seedSession(t, freshSession())
	jsonOutput = true

	var buf bytes.Buffer
	if code := runSession(context.Background(), &buf); code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, buf.String())
	}

	var view sessionView
	if err := json.Unmarshal(buf.Bytes(), &view); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if !view.LoggedIn || !view.HasRefreshToken {
		t.Errorf("expected logged in with refresh token, got %+v", view)
	}
	if view.Token == "tokA" {
		t.Error("expected token to be masked in JSON")
	}
}
