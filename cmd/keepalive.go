// ABOUTME: Keepalive command for the courier CLI
// ABOUTME: Refreshes the session in the background and shows its status until interrupted

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntlex/courier/internal/tui/monitor"
	"github.com/syntlex/courier/metrics"
	"github.com/syntlex/courier/models"
)

var (
	keepAliveMetricsAddr string
	keepAliveNoTUI       bool
)

var keepAliveCmd = &cobra.Command{
	Use:   "keepalive",
	Short: "Keep the session alive in the background",
	Long: `Refresh the access token on a fixed interval so the session survives without
request traffic. Shows a live status view in a terminal; use --no-tui for plain logs.

Exits 0 when interrupted and 2 when the session ends (refresh rejected or logout).`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runKeepAlive(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(keepAliveCmd)
	keepAliveCmd.Flags().StringVar(&keepAliveMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides COURIER_METRICS_ADDR)")
	keepAliveCmd.Flags().BoolVar(&keepAliveNoTUI, "no-tui", false, "Log status lines instead of the interactive view")
}

// newMetricsServer exposes /metrics and /healthz for a long-running keepalive
func newMetricsServer(addr string, m *metrics.Gateway) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           logScrapes(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// logScrapes logs each metrics request at debug level with its latency
func logScrapes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		slog.Debug("Metrics request",
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"remote", r.RemoteAddr,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	})
}

// runKeepAlive runs the refresh loop until ctx ends or the session is gone
func runKeepAlive(ctx context.Context, w io.Writer) int {
	a, code := openApp(ctx, w)
	if a == nil {
		return code
	}
	defer a.Close()

	if code := a.requireSession(ctx, w); code != 0 {
		return code
	}

	addr := keepAliveMetricsAddr
	if addr == "" {
		addr = a.cfg.MetricsAddr
	}
	if addr != "" {
		srv := newMetricsServer(addr, a.metrics)
		go func() {
			slog.Info("Serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	a.gw.StartKeepAlive(ctx)
	defer a.gw.StopKeepAlive()

	if keepAliveNoTUI || !interactive() {
		return waitForTeardown(ctx, w, a.store)
	}

	if err := monitor.Run(ctx, a.store, a.gw.Session(ctx), a.cfg.KeepAliveInterval); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	if a.gw.Session(ctx) == nil {
		return 2
	}
	return 0
}

// sessionWatcher is the part of the session store the plain keepalive mode needs
type sessionWatcher interface {
	monitor.Subscriber
	Get(ctx context.Context) (*models.Session, error)
}

// waitForTeardown blocks until ctx ends (exit 0) or the session is removed (exit 2)
func waitForTeardown(ctx context.Context, w io.Writer, sub sessionWatcher) int {
	gone := make(chan struct{})
	var once sync.Once
	unsubscribe := sub.Subscribe(func(s *models.Session) {
		if s == nil {
			once.Do(func() { close(gone) })
			return
		}
		if s.ExpiresAt != nil {
			slog.Info("Session refreshed", "expires_at", s.ExpiresAt.Format(time.RFC3339))
		}
	})
	defer unsubscribe()

	// Session may already be gone before Subscribe returned
	if sess, err := sub.Get(ctx); err == nil && sess == nil {
		once.Do(func() { close(gone) })
	}

	fmt.Fprintln(w, "Keep-alive running. Press Ctrl+C to stop.")
	select {
	case <-ctx.Done():
		fmt.Fprintln(w, "Keep-alive stopped.")
		return 0
	case <-gone:
		fmt.Fprintln(w, "Session ended. Run 'courier login' to sign in again.")
		return 2
	}
}
