// ABOUTME: Wallet and home commands for the courier CLI
// ABOUTME: Wallet figures are fetched concurrently; home combines profile and applications

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/syntlex/courier/models"
)

var (
	walletKinds   []string
	walletCompany string
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show wallet balance and movements",
	Long: `Show the courier's wallet figures. By default every kind is fetched:
balance, topUp, withdraw and deposit. The company UUID is taken from the
profile unless --company is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runWallet(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Show profile and applications together",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runHome(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(homeCmd)
	walletCmd.Flags().StringSliceVar(&walletKinds, "kind", nil, "Wallet kinds to fetch (balance, topUp, withdraw, deposit)")
	walletCmd.Flags().StringVar(&walletCompany, "company", "", "Company UUID (default: from profile)")
}

// parseWalletKinds validates the --kind values, defaulting to every kind
func parseWalletKinds(values []string) ([]models.WalletKind, error) {
	if len(values) == 0 {
		return models.WalletKinds, nil
	}
	kinds := make([]models.WalletKind, 0, len(values))
	for _, v := range values {
		kind, err := models.ParseWalletKind(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// runWallet fetches the requested wallet figures and returns exit code
func runWallet(ctx context.Context, w io.Writer) int {
	kinds, err := parseWalletKinds(walletKinds)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}

	a, code := openApp(ctx, w)
	if a == nil {
		return code
	}
	defer a.Close()

	if code := a.requireSession(ctx, w); code != 0 {
		return code
	}

	company := walletCompany
	if company == "" {
		profile, err := a.client.Profile(ctx)
		if err != nil {
			return fail(w, err)
		}
		company = profile.CompanyUUID
	}
	if company == "" {
		fmt.Fprintln(w, "Error: profile has no company; pass --company")
		return 1
	}

	incomes := make([]*models.WalletIncome, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			income, err := a.client.WalletIncome(gctx, company, kind)
			if err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			incomes[i] = income
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(w, err)
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatJSON(incomes))
	} else {
		fmt.Fprintln(w, formatWalletHuman(incomes))
	}
	return 0
}

// formatWalletHuman shows one figure per kind followed by its movements
func formatWalletHuman(incomes []*models.WalletIncome) string {
	var b strings.Builder
	for _, income := range incomes {
		fmt.Fprintf(&b, "%-10s %12.2f\n", string(income.Kind)+":", income.Balance)
		for _, tx := range income.Transactions {
			fmt.Fprintf(&b, "  %-10s %10.2f  %-9s %s\n", orDash(tx.Date), tx.Amount, orDash(tx.Status), tx.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// runHome fetches the combined home view and returns exit code
func runHome(ctx context.Context, w io.Writer) int {
	a, code := openApp(ctx, w)
	if a == nil {
		return code
	}
	defer a.Close()

	if code := a.requireSession(ctx, w); code != 0 {
		return code
	}

	home, err := a.client.Home(ctx)
	if err != nil {
		return fail(w, err)
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatJSON(home))
	} else {
		fmt.Fprintln(w, formatHomeHuman(home))
	}
	return 0
}

func formatHomeHuman(home *models.Home) string {
	var parts []string
	if home.Profile != nil {
		parts = append(parts, formatProfileHuman(home.Profile))
	}
	parts = append(parts, formatOrdersHuman(home.Applications))
	return strings.Join(parts, "\n\n")
}
