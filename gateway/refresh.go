// ABOUTME: Single-flight token refresh shared by proactive, reactive and keep-alive triggers
// ABOUTME: Exchanges the refresh token, persists the rotated session or tears it down on failure

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/syntlex/courier/metrics"
	"github.com/syntlex/courier/models"
)

// flight is one in-flight refresh. token and err are written once, before done closes.
type flight struct {
	trigger string
	seen    string // access token the starting caller held
	done    chan struct{}
	waiters int
	token   string
	err     error
}

// refresher is Idle when current is nil and Refreshing(current) otherwise.
// Idle --need--> Refreshing(f); Refreshing(f) --need--> Refreshing(f, waiters+1);
// Refreshing(f) --resolved--> Idle, then every waiter on f is released with the same outcome.
type refresher struct {
	mu      sync.Mutex
	current *flight

	run     func(ctx context.Context, trigger, seen string) (token string, exchanged bool, err error)
	timeout time.Duration
	metrics *metrics.Gateway
}

// refresh joins the in-flight refresh or starts one, then waits for its outcome.
// seen is the access token the caller judged stale or had rejected.
// The exchange itself is detached from ctx so one caller giving up does not fail
// (and tear down the session for) everyone else; ctx only bounds this caller's wait.
func (r *refresher) refresh(ctx context.Context, trigger, seen string) (string, error) {
	r.mu.Lock()
	f := r.current
	if f != nil {
		f.waiters++
		r.mu.Unlock()
		r.metrics.WaiterJoined(trigger)
		slog.Debug("Joined in-flight token refresh", "trigger", trigger, "started_by", f.trigger)
	} else {
		f = &flight{trigger: trigger, seen: seen, done: make(chan struct{})}
		r.current = f
		r.mu.Unlock()
		go r.execute(context.WithoutCancel(ctx), f)
	}

	select {
	case <-f.done:
		return f.token, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *refresher) execute(ctx context.Context, f *flight) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.metrics.RefreshStarted()
	var exchanged bool
	f.token, exchanged, f.err = r.run(ctx, f.trigger, f.seen)

	outcome := metrics.OutcomeSuccess
	switch {
	case f.err != nil:
		outcome = metrics.OutcomeFailure
	case !exchanged:
		outcome = metrics.OutcomeReused
	}
	r.metrics.RefreshFinished(f.trigger, outcome)

	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
	close(f.done)
}

// inFlight reports the current state: whether a refresh is running and how many joined it.
func (r *refresher) inFlight() (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return false, 0
	}
	return true, r.current.waiters
}

// refreshSession is the shared refresh routine run by exactly one flight at a time.
// The session is read again here, under the flight, because a caller may have
// judged it stale just before an earlier flight replaced it.
func (g *Gateway) refreshSession(ctx context.Context, trigger, seen string) (string, bool, error) {
	sess := g.currentSession(ctx)
	if sess == nil || sess.RefreshToken == "" {
		g.teardown(ctx, "no_refresh_token")
		return "", false, &RefreshError{Trigger: trigger, Err: ErrNoRefreshToken}
	}

	if g.alreadyRefreshed(sess, trigger, seen) {
		slog.Debug("Session already refreshed, skipping exchange", "trigger", trigger)
		return sess.AccessToken, false, nil
	}

	pair, err := g.exchange(ctx, sess.RefreshToken)
	if err != nil {
		slog.Warn("Token refresh failed", "trigger", trigger, "error", err)
		g.teardown(ctx, "refresh_failed")
		return "", false, &RefreshError{Trigger: trigger, Err: err}
	}

	// Servers that do not rotate refresh tokens omit them from the response
	refreshToken := pair.RefreshToken
	if refreshToken == "" {
		refreshToken = sess.RefreshToken
	}

	next := models.NewSession(pair.Token, refreshToken, g.now())
	if err := g.store.Set(ctx, next); err != nil {
		slog.Warn("Failed to persist refreshed session", "error", err)
	}

	slog.Info("Token refreshed", "trigger", trigger, "expires_at", next.ExpiresAt)
	return pair.Token, true, nil
}

// alreadyRefreshed reports whether sess makes the exchange unnecessary for trigger.
// Keep-alive always exchanges.
func (g *Gateway) alreadyRefreshed(sess *models.Session, trigger, seen string) bool {
	if sess.IsStale(g.now()) {
		return false
	}
	switch trigger {
	case metrics.TriggerProactive:
		return true
	case metrics.TriggerReactive:
		return sess.AccessToken != seen
	default:
		return false
	}
}

// exchange calls POST /refresh/token. It goes straight to the base client, never
// through the authenticated pipeline.
func (g *Gateway) exchange(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	body, err := json.Marshal(models.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/refresh/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", g.acceptLanguage)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	var pair models.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if pair.Token == "" {
		return nil, errors.New("refresh response carried no token")
	}
	return &pair, nil
}

// teardown destroys the persisted session after an irrecoverable refresh failure.
func (g *Gateway) teardown(ctx context.Context, reason string) {
	if err := g.store.Remove(ctx); err != nil {
		slog.Warn("Failed to remove session", "reason", reason, "error", err)
	}
	g.metrics.SessionCleared(reason)
	slog.Info("Session cleared", "reason", reason)
}
