// ABOUTME: Tests for the profile, orders, wallet and home commands
// ABOUTME: Verifies output formatting, auth requirements and refresh-on-401 end to end

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/syntlex/courier/models"
)

func TestProfile_RequiresSession(t *testing.T) {
	setupCLI(t, courierBackend(t))

	var buf bytes.Buffer
	if code := runProfile(context.Background(), &buf); code != 2 {
		t.Errorf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(buf.String(), "not logged in") {
		t.Errorf("expected not logged in error, got %q", buf.String())
	}
}

func TestProfile_Human(t *testing.T) {
	setupCLI(t, courierBackend(t))
	seedSession(t, freshSession())

	var buf bytes.Buffer
	if code := runProfile(context.Background(), &buf); code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, buf.String())
	}
	if !strings.Contains(buf.String(), "Aibek Usenov") {
		t.Errorf("expected courier name, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "c-1") {
		t.Errorf("expected company UUID, got %q", buf.String())
	}
}

func TestProfile_RefreshesStaleSession(t *testing.T) {
	var mu sync.Mutex
	var auths []string
	mux := courierBackend(t)
	setupCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/company/courier/profile" {
			mu.Lock()
			auths = append(auths, r.Header.Get("Authorization"))
			mu.Unlock()
		}
		mux.ServeHTTP(w, r)
	}))
	seedSession(t, models.NewSession("tokA", "refA", time.Now().Add(-2*time.Hour)))

	var buf bytes.Buffer
	if code := runProfile(context.Background(), &buf); code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, buf.String())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(auths) != 1 || auths[0] != "Bearer tokB" {
		t.Errorf("expected one request with the refreshed token, got %v", auths)
	}
	if sess := storedSession(t); sess == nil || sess.AccessToken != "tokB" || sess.RefreshToken != "refB" {
		t.Errorf("expected rotated session persisted, got %+v", sess)
	}
}

func TestProfile_RefreshRejectedEndsSession(t *testing.T) {
	mux := courierBackend(t)
	setupCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/refresh/token" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	seedSession(t, models.NewSession("tokA", "refA", time.Now().Add(-2*time.Hour)))

	var buf bytes.Buffer
	if code := runProfile(context.Background(), &buf); code != 2 {
		t.Errorf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(buf.String(), "courier login") {
		t.Errorf("expected login hint, got %q", buf.String())
	}
	if storedSession(t) != nil {
		t.Error("expected session cleared after rejected refresh")
	}
}

func TestOrders_Human(t *testing.T) {
	setupCLI(t, courierBackend(t))
	seedSession(t, freshSession())

	var buf bytes.Buffer
	if code := runOrders(context.Background(), &buf); code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, buf.String())
	}
	for _, want := range []string{"Applications: 1", "#1042", "Plov Center", "from: Manas 8", "to:   Chui 120"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in output, got:\n%s", want, buf.String())
		}
	}
}

func TestFormatOrdersHuman_Empty(t *testing.T) {
	if got := formatOrdersHuman(nil); got != "No applications." {
		t.Errorf("expected empty message, got %q", got)
	}
	if got := formatOrdersHuman(&models.ApplicationList{Amount: 4}); got != "Applications: 4" {
		t.Errorf("expected count only, got %q", got)
	}
}

func TestParseWalletKinds(t *testing.T) {
	kinds, err := parseWalletKinds(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kinds) != len(models.WalletKinds) {
		t.Errorf("expected all %d kinds by default, got %d", len(models.WalletKinds), len(kinds))
	}

	kinds, err = parseWalletKinds([]string{"topUp", " deposit"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != models.WalletTopUp || kinds[1] != models.WalletDeposit {
		t.Errorf("expected [topUp deposit], got %v", kinds)
	}

	if _, err := parseWalletKinds([]string{"savings"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestWallet_CompanyFromProfile(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	mux := courierBackend(t)
	setupCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/companies/") {
			mu.Lock()
			seen[r.URL.Path] = true
			mu.Unlock()
		}
		mux.ServeHTTP(w, r)
	}))
	seedSession(t, freshSession())
	jsonOutput = true

	var buf bytes.Buffer
	if code := runWallet(context.Background(), &buf); code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, buf.String())
	}

	for _, kind := range models.WalletKinds {
		path := "/companies/c-1/income/" + string(kind)
		if !seen[path] {
			t.Errorf("expected request to %s", path)
		}
	}

	var incomes []models.WalletIncome
	if err := json.Unmarshal(buf.Bytes(), &incomes); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(incomes) != 4 || incomes[0].Kind != models.WalletBalance || incomes[0].Balance != 100.5 {
		t.Errorf("expected four incomes starting with balance 100.5, got %+v", incomes)
	}
}

func TestWallet_UnknownCompany(t *testing.T) {
	setupCLI(t, courierBackend(t))
	seedSession(t, freshSession())
	walletCompany = "other"
	walletKinds = []string{"balance"}

	var buf bytes.Buffer
	if code := runWallet(context.Background(), &buf); code != 2 {
		t.Errorf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(buf.String(), "unknown company") {
		t.Errorf("expected backend message, got %q", buf.String())
	}
}

func TestWallet_InvalidKind(t *testing.T) {
	setupCLI(t, courierBackend(t))
	walletKinds = []string{"savings"}

	var buf bytes.Buffer
	if code := runWallet(context.Background(), &buf); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func TestFormatWalletHuman(t *testing.T) {
	output := formatWalletHuman([]*models.WalletIncome{
		{Kind: models.WalletBalance, Balance: 1250},
		{Kind: models.WalletTopUp, Balance: 300, Transactions: []models.Transaction{
			{Date: "2026-03-01", Amount: 300, Status: "completed", Description: "Top up"},
		}},
	})

	if !strings.Contains(output, "balance:") || !strings.Contains(output, "1250.00") {
		t.Errorf("expected balance line, got:\n%s", output)
	}
	if !strings.Contains(output, "Top up") {
		t.Errorf("expected transaction line, got:\n%s", output)
	}
}

func TestHome_Human(t *testing.T) {
	setupCLI(t, courierBackend(t))
	seedSession(t, freshSession())

	var buf bytes.Buffer
	if code := runHome(context.Background(), &buf); code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, buf.String())
	}
	if !strings.Contains(buf.String(), "Aibek Usenov") || !strings.Contains(buf.String(), "Plov Center") {
		t.Errorf("expected profile and applications, got:\n%s", buf.String())
	}
}
