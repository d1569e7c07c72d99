// ABOUTME: Interactive OTP login prompts
// ABOUTME: huh forms for the phone number, delivery channel and verification code

package loginform

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/syntlex/courier/internal/tui/styles"
	"github.com/syntlex/courier/models"
)

// Form collects login details. Fields already set are used as defaults.
type Form struct {
	Phone  string
	Method models.SignInType
	Code   string
}

// New creates a form prefilled with the given phone and channel
func New(phone string, method models.SignInType) *Form {
	if method == "" {
		method = models.SignInWhatsApp
	}
	return &Form{Phone: phone, Method: method}
}

// AskPhone prompts for the phone number and the OTP delivery channel
func (f *Form) AskPhone() error {
	return f.phoneForm().Run()
}

// AskCode prompts for the code delivered to the phone
func (f *Form) AskCode() error {
	return f.codeForm().Run()
}

func (f *Form) phoneForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Phone number").
				Description("International format, e.g. +996 700 123 456").
				Placeholder("+996").
				CharLimit(20).
				Value(&f.Phone).
				Validate(ValidatePhone),
			huh.NewSelect[models.SignInType]().
				Title("Send code via").
				Options(methodOptions()...).
				Value(&f.Method),
		).Title("Courier sign-in"),
	).WithTheme(theme())
}

func (f *Form) codeForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Verification code").
				Description("Sent to " + f.Phone).
				CharLimit(8).
				Value(&f.Code).
				Validate(ValidateCode),
		),
	).WithTheme(theme())
}

func methodOptions() []huh.Option[models.SignInType] {
	labels := map[models.SignInType]string{
		models.SignInWhatsApp: "WhatsApp",
		models.SignInTelegram: "Telegram",
		models.SignInSMS:      "SMS",
		models.SignInEmail:    "Email",
	}
	opts := make([]huh.Option[models.SignInType], 0, len(models.SignInTypes))
	for _, t := range models.SignInTypes {
		opts = append(opts, huh.NewOption(labels[t], t))
	}
	return opts
}

// ValidatePhone requires at least nine digits
func ValidatePhone(s string) error {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 9 {
		return errors.New("enter a full phone number")
	}
	return nil
}

// ValidateCode requires a short numeric code
func ValidateCode(s string) error {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return errors.New("code is at least 4 digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return errors.New("code is digits only")
		}
	}
	return nil
}

func theme() *huh.Theme {
	t := huh.ThemeBase()

	t.Group.Title = lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		MarginBottom(1)
	t.Focused.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(styles.Primary)
	t.Focused.Title = lipgloss.NewStyle().
		Foreground(styles.Accent).
		Bold(true)
	t.Focused.Description = lipgloss.NewStyle().
		Foreground(styles.Muted)
	t.Focused.ErrorMessage = lipgloss.NewStyle().
		Foreground(styles.Danger)
	t.Focused.SelectSelector = lipgloss.NewStyle().
		Foreground(styles.Primary).
		SetString("> ")
	t.Focused.SelectedOption = lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true)

	t.Blurred = t.Focused
	t.Blurred.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.HiddenBorder()).
		BorderLeft(true)
	t.Blurred.Title = lipgloss.NewStyle().
		Foreground(styles.Muted)

	return t
}
