// ABOUTME: Session command for the courier CLI
// ABOUTME: Shows the stored session's expiry, staleness and unverified JWT claims

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/syntlex/courier/internal/tui/styles"
	"github.com/syntlex/courier/models"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the stored session",
	Long: `Show whether a session is stored, when its access token expires and whether
the next request will refresh it first. Exits 2 when logged out.`,
	Run: func(cmd *cobra.Command, args []string) {
		exitCode := runSession(context.Background(), os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

// sessionView is the printable summary of a session. Tokens are never printed in full.
type sessionView struct {
	LoggedIn         bool       `json:"logged_in"`
	State            string     `json:"state"`
	Token            string     `json:"token,omitempty"`
	HasRefreshToken  bool       `json:"has_refresh_token"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	ExpiresInSeconds int64      `json:"expires_in_seconds,omitempty"`
	Stale            bool       `json:"stale"`
	Subject          string     `json:"subject,omitempty"`
	IssuedAt         *time.Time `json:"issued_at,omitempty"`
	TokenExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
}

// runSession prints the session summary and returns exit code
func runSession(ctx context.Context, w io.Writer) int {
	a, code := openApp(ctx, w)
	if a == nil {
		return code
	}
	defer a.Close()

	view := buildSessionView(a.gw.Session(ctx), time.Now())
	if IsJSONOutput() {
		fmt.Fprintln(w, formatSessionJSON(view))
	} else {
		fmt.Fprintln(w, formatSessionHuman(view))
	}

	if !view.LoggedIn {
		return 2
	}
	return 0
}

func buildSessionView(sess *models.Session, now time.Time) sessionView {
	if sess == nil {
		return sessionView{State: styles.StateLoggedOut}
	}

	view := sessionView{
		LoggedIn:        true,
		Token:           maskToken(sess.AccessToken),
		HasRefreshToken: sess.RefreshToken != "",
		ExpiresAt:       sess.ExpiresAt,
		Stale:           sess.IsStale(now),
		State:           styles.SessionState(sess.ExpiresIn(now), models.SafetyMargin, sess.ExpiresAt != nil),
	}
	if sess.ExpiresAt != nil {
		view.ExpiresInSeconds = int64(sess.ExpiresIn(now).Seconds())
	}

	// Claims are informational; the server is the authority on validity
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(sess.AccessToken, claims); err == nil {
		view.Subject, _ = claims.GetSubject()
		if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
			view.IssuedAt = &iat.Time
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			view.TokenExpiresAt = &exp.Time
		}
	}
	return view
}

// maskToken keeps only a short prefix of a token
func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:6] + "…"
}

func formatSessionHuman(view sessionView) string {
	if !view.LoggedIn {
		return fmt.Sprintf("Status:        %s\nRun 'courier login' to sign in.", styles.RenderState(view.State))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Status:        %s\n", styles.RenderState(view.State))
	fmt.Fprintf(&b, "Token:         %s\n", view.Token)
	fmt.Fprintf(&b, "Refresh token: %s\n", yesNo(view.HasRefreshToken))
	if view.ExpiresAt != nil {
		fmt.Fprintf(&b, "Expires at:    %s\n", view.ExpiresAt.Local().Format(time.RFC1123))
		fmt.Fprintf(&b, "Expires in:    %s\n", (time.Duration(view.ExpiresInSeconds) * time.Second).String())
	}
	fmt.Fprintf(&b, "Refresh next:  %s", yesNo(view.Stale))
	if view.Subject != "" {
		fmt.Fprintf(&b, "\nSubject:       %s", view.Subject)
	}
	if view.TokenExpiresAt != nil {
		fmt.Fprintf(&b, "\nJWT exp:       %s", view.TokenExpiresAt.Local().Format(time.RFC1123))
	}
	return b.String()
}

func formatSessionJSON(view sessionView) string {
	data, _ := json.MarshalIndent(view, "", "  ")
	return string(data)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
