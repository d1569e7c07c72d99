// ABOUTME: Shared setup for command tests
// ABOUTME: Points the CLI at an httptest backend and a temporary session file

package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/syntlex/courier/config"
	"github.com/syntlex/courier/models"
	"github.com/syntlex/courier/session"
)

// setupCLI isolates a command run: backend URL, session file and global flags
func setupCLI(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("COURIER_CONFIG", "")
	t.Setenv("COURIER_API_URL", server.URL)
	t.Setenv("COURIER_SESSION_BACKEND", config.BackendFile)
	t.Setenv("COURIER_SESSION_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("COURIER_SESSION_CACHE_TTL", "1m")
	t.Setenv("COURIER_KEEPALIVE_INTERVAL", "115m")
	t.Setenv("COURIER_ACCEPT_LANGUAGE", "")
	t.Setenv("COURIER_ALL_PROXY", "")
	t.Setenv("COURIER_METRICS_ADDR", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("LOG_LEVEL", "error")

	apiURL, jsonOutput, configPath = "", false, ""
	loginPhone, loginMethod, loginCode = "", string(models.SignInWhatsApp), ""
	walletKinds, walletCompany = nil, ""
	keepAliveMetricsAddr, keepAliveNoTUI = "", false

	origInteractive, origPrompt := interactive, newLoginPrompt
	interactive = func() bool { return false }
	t.Cleanup(func() {
		interactive, newLoginPrompt = origInteractive, origPrompt
		jsonOutput = false
	})
	return server
}

// seedSession stores sess in the session file the CLI will read
func seedSession(t *testing.T, sess *models.Session) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	store, closeStore, err := session.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	defer closeStore()
	if err := store.Set(context.Background(), sess); err != nil {
		t.Fatalf("store.Set: %v", err)
	}
}

// storedSession reads back what the CLI persisted
func storedSession(t *testing.T) *models.Session {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	store, closeStore, err := session.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	defer closeStore()
	sess, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	return sess
}

func freshSession() *models.Session {
	return models.NewSession("tokA", "refA", time.Now())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// courierBackend serves the routes the commands call
func courierBackend(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send-otp", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /company/authenticate", func(w http.ResponseWriter, r *http.Request) {
		var req models.AuthenticateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "1234" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid code"})
			return
		}
		writeJSON(w, http.StatusOK, models.TokenPair{Token: "tokA", RefreshToken: "refA"})
	})
	mux.HandleFunc("GET /company/courier/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Profile{
			CompanyUUID:        "c-1",
			FirstName:          "Aibek",
			LastName:           "Usenov",
			PhoneNumber:        "+996700123456",
			ApplicationsAmount: 3,
			ApplicationsDone:   1,
		})
	})
	mux.HandleFunc("GET /company/courier/applications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.ApplicationList{
			Amount: 1,
			Data: []models.Application{{
				ID:                "a-1",
				Name:              "Plov Center",
				OrderNumber:       "1042",
				OrderSum:          "650",
				Address:           "Chui 120",
				RestaurantAddress: "Manas 8",
			}},
		})
	})
	mux.HandleFunc("GET /companies/{uuid}/income/{kind}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("uuid") != "c-1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown company"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"balance": 100.5})
	})
	mux.HandleFunc("POST /refresh/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.TokenPair{Token: "tokB", RefreshToken: "refB"})
	})
	return mux
}
