// ABOUTME: Periodic background token refresh independent of request traffic
// ABOUTME: Shares the gateway's single-flight refresher with request-triggered refreshes

package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/syntlex/courier/metrics"
)

// StartKeepAlive refreshes the session every keep-alive interval while one exists.
// It returns false when the loop is already running. The loop ends on StopKeepAlive,
// Close, or when ctx is done.
func (g *Gateway) StartKeepAlive(ctx context.Context) bool {
	g.kaMu.Lock()
	defer g.kaMu.Unlock()

	if g.kaCancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g.kaCancel = cancel
	g.kaDone = done

	go g.keepAlive(ctx, done)
	slog.Info("Keep-alive started", "interval", g.keepAliveInterval)
	return true
}

// StopKeepAlive stops the loop and waits for it to exit. Safe to call when not running.
func (g *Gateway) StopKeepAlive() {
	g.kaMu.Lock()
	cancel, done := g.kaCancel, g.kaDone
	g.kaCancel, g.kaDone = nil, nil
	g.kaMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("Keep-alive stopped")
}

// KeepAliveRunning reports whether the loop is active.
func (g *Gateway) KeepAliveRunning() bool {
	g.kaMu.Lock()
	defer g.kaMu.Unlock()
	return g.kaCancel != nil
}

func (g *Gateway) keepAlive(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		// Parent context ended without StopKeepAlive: allow a later restart
		g.kaMu.Lock()
		if g.kaDone == done {
			g.kaCancel()
			g.kaCancel, g.kaDone = nil, nil
		}
		g.kaMu.Unlock()
	}()

	ticker := time.NewTicker(g.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.keepAliveTick(ctx)
		}
	}
}

func (g *Gateway) keepAliveTick(ctx context.Context) {
	if g.currentSession(ctx) == nil {
		slog.Debug("Keep-alive skipped, no session")
		return
	}
	if _, err := g.flight.refresh(ctx, metrics.TriggerKeepAlive, ""); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("Keep-alive refresh failed", "error", err)
	}
}
