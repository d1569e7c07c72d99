// ABOUTME: Wires configuration, transport, session store and gateway for a command run
// ABOUTME: Every command builds one app and closes it on exit

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/syntlex/courier/api"
	"github.com/syntlex/courier/config"
	"github.com/syntlex/courier/gateway"
	"github.com/syntlex/courier/metrics"
	"github.com/syntlex/courier/session"
	"github.com/syntlex/courier/telemetry"
	"github.com/syntlex/courier/transport"
)

var errNotLoggedIn = errors.New("not logged in. Run 'courier login' first")

type app struct {
	cfg     *config.Config
	store   *session.Store
	gw      *gateway.Gateway
	client  *api.Client
	metrics *metrics.Gateway

	closeStore      func() error
	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTLPEndpoint, Version)
	if err != nil {
		return nil, err
	}

	httpClient, err := transport.New(cfg)
	if err != nil {
		shutdownTracing(ctx)
		return nil, err
	}

	store, closeStore, err := session.Open(ctx, cfg)
	if err != nil {
		shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	m := metrics.New()
	gw := gateway.New(store, gateway.Options{
		BaseURL:           cfg.APIURL,
		AcceptLanguage:    cfg.AcceptLanguage,
		HTTPClient:        httpClient,
		RefreshTimeout:    cfg.RefreshTimeout,
		KeepAliveInterval: cfg.KeepAliveInterval,
		Metrics:           m,
	})

	return &app{
		cfg:             cfg,
		store:           store,
		gw:              gw,
		client:          api.New(gw),
		metrics:         m,
		closeStore:      closeStore,
		shutdownTracing: shutdownTracing,
	}, nil
}

func (a *app) Close() {
	a.gw.Close()
	if err := a.closeStore(); err != nil {
		slog.Warn("Failed to close session store", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		slog.Warn("Failed to flush traces", "error", err)
	}
}

// openApp builds the app, printing config errors with exit code 1
func openApp(ctx context.Context, w io.Writer) (*app, int) {
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return nil, 1
	}
	return a, 0
}

// requireSession fails with exit code 2 when nobody is logged in
func (a *app) requireSession(ctx context.Context, w io.Writer) int {
	if a.gw.Session(ctx) == nil {
		fmt.Fprintf(w, "Error: %v\n", errNotLoggedIn)
		return 2
	}
	return 0
}
