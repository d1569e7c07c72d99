// ABOUTME: Login and logout commands for the courier CLI
// ABOUTME: OTP sign-in via flags or an interactive form; logout destroys the stored session

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntlex/courier/internal/tui/loginform"
	"github.com/syntlex/courier/models"
)

var (
	loginPhone  string
	loginMethod string
	loginCode   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a one-time code",
	Long: `Sign in with a one-time code sent to the courier's phone.

Without --code the command requests a code and, in a terminal, prompts for it.
With --code it verifies the code directly.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runLogin(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Destroy the stored session",
	Run: func(cmd *cobra.Command, args []string) {
		exitCode := runLogout(context.Background(), os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	loginCmd.Flags().StringVar(&loginPhone, "phone", "", "Phone number, e.g. +996700123456")
	loginCmd.Flags().StringVar(&loginMethod, "method", string(models.SignInWhatsApp), "Code delivery channel: wa, tg, sms or email")
	loginCmd.Flags().StringVar(&loginCode, "code", "", "Verification code already received")
}

// loginPrompt is the interactive part of login
type loginPrompt interface {
	AskPhone() error
	AskCode() error
}

var newLoginPrompt = func(f *loginform.Form) loginPrompt { return f }

// runLogin executes the sign-in flow and returns exit code
func runLogin(ctx context.Context, w io.Writer) int {
	method, err := models.ParseSignInType(loginMethod)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}

	form := loginform.New(loginPhone, method)
	form.Code = loginCode
	prompt := newLoginPrompt(form)

	if form.Phone == "" {
		if !interactive() {
			fmt.Fprintln(w, "Error: --phone is required when not running in a terminal")
			return 1
		}
		if err := prompt.AskPhone(); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 1
		}
	}

	a, code := openApp(ctx, w)
	if a == nil {
		return code
	}
	defer a.Close()

	if form.Code == "" {
		if err := a.client.SendOTP(ctx, form.Phone, form.Method); err != nil {
			return fail(w, err)
		}
		if !IsJSONOutput() {
			fmt.Fprintf(w, "Code sent via %s to %s\n", form.Method, form.Phone)
		}

		if !interactive() {
			if IsJSONOutput() {
				fmt.Fprintln(w, `{"code_sent": true}`)
			} else {
				fmt.Fprintln(w, "Re-run with --code <code> to finish signing in.")
			}
			return 0
		}
		if err := prompt.AskCode(); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 1
		}
	}

	if err := a.client.Authenticate(ctx, form.Phone, form.Code); err != nil {
		return fail(w, err)
	}

	sess := a.gw.Session(ctx)
	if IsJSONOutput() {
		fmt.Fprintln(w, formatLoginJSON(sess))
	} else {
		fmt.Fprintln(w, formatLoginHuman(sess))
	}
	return 0
}

func formatLoginHuman(sess *models.Session) string {
	if sess == nil || sess.ExpiresAt == nil {
		return "Logged in."
	}
	return fmt.Sprintf("Logged in. Token valid until %s", sess.ExpiresAt.Local().Format(time.Kitchen))
}

func formatLoginJSON(sess *models.Session) string {
	output := map[string]interface{}{
		"logged_in": sess != nil,
	}
	if sess != nil && sess.ExpiresAt != nil {
		output["expires_at"] = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data)
}

// runLogout removes the session and returns exit code
func runLogout(ctx context.Context, w io.Writer) int {
	a, code := openApp(ctx, w)
	if a == nil {
		return code
	}
	defer a.Close()

	if err := a.client.Logout(ctx); err != nil {
		return fail(w, err)
	}
	fmt.Fprintln(w, "Logged out.")
	return 0
}
