// ABOUTME: Profile and orders commands for the courier CLI
// ABOUTME: Read the courier profile and the applications list through the gateway

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syntlex/courier/models"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the courier profile",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runProfile(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var ordersCmd = &cobra.Command{
	Use:     "orders",
	Aliases: []string{"applications"},
	Short:   "List delivery applications",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runOrders(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(ordersCmd)
}

// runProfile fetches the profile and returns exit code
func runProfile(ctx context.Context, w io.Writer) int {
	a, code := openApp(ctx, w)
	if a == nil {
		return code
	}
	defer a.Close()

	if code := a.requireSession(ctx, w); code != 0 {
		return code
	}

	profile, err := a.client.Profile(ctx)
	if err != nil {
		return fail(w, err)
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatJSON(profile))
	} else {
		fmt.Fprintln(w, formatProfileHuman(profile))
	}
	return 0
}

// formatProfileHuman formats the profile for human readability
func formatProfileHuman(p *models.Profile) string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf(`Courier:      %s
Phone:        %s
Company:      %s
Applications: %d
Delivered:    %d`, name, orDash(p.PhoneNumber), orDash(p.CompanyUUID), p.ApplicationsAmount, p.ApplicationsDone)
}

// runOrders lists applications and returns exit code
func runOrders(ctx context.Context, w io.Writer) int {
	a, code := openApp(ctx, w)
	if a == nil {
		return code
	}
	defer a.Close()

	if code := a.requireSession(ctx, w); code != 0 {
		return code
	}

	list, err := a.client.Applications(ctx)
	if err != nil {
		return fail(w, err)
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatJSON(list))
	} else {
		fmt.Fprintln(w, formatOrdersHuman(list))
	}
	return 0
}

// formatOrdersHuman renders one line per application
func formatOrdersHuman(list *models.ApplicationList) string {
	if list == nil || len(list.Data) == 0 {
		if list != nil && list.Amount > 0 {
			return fmt.Sprintf("Applications: %d", list.Amount)
		}
		return "No applications."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Applications: %d\n", list.Amount)
	for _, app := range list.Data {
		number := app.OrderNumber
		if number == "" {
			number = app.Number
		}
		fmt.Fprintf(&b, "\n#%-8s %-24s %10s\n", orDash(number), orDash(app.Name), orDash(app.OrderSum))
		if app.RestaurantAddress != "" {
			fmt.Fprintf(&b, "  from: %s\n", app.RestaurantAddress)
		}
		if app.Address != "" {
			fmt.Fprintf(&b, "  to:   %s\n", app.Address)
		}
		if app.DeliveryTime != "" {
			fmt.Fprintf(&b, "  by:   %s\n", app.DeliveryTime)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatJSON formats any response as indented JSON
func formatJSON(v any) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return string(data)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
