// ABOUTME: Authenticated request gateway for the courier API
// ABOUTME: Attaches bearer tokens, refreshes stale or rejected tokens once, and owns the session lifecycle

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
	"strings"
	"sync"
	"time"

	"github.com/syntlex/courier/metrics"
	"github.com/syntlex/courier/models"
)

// SessionStore persists the device's single session record.
// Get returns nil (and no error) when no session exists.
type SessionStore interface {
	Get(ctx context.Context) (*models.Session, error)
	Set(ctx context.Context, s *models.Session) error
	Remove(ctx context.Context) error
}

// Options configures a Gateway. Zero values fall back to defaults.
type Options struct {
	BaseURL           string
	AcceptLanguage    string        // default: kg-KY
	HTTPClient        *http.Client  // default: 30s timeout
	RefreshTimeout    time.Duration // default: 30s
	KeepAliveInterval time.Duration // default: 115m
	Clock             func() time.Time
	Metrics           *metrics.Gateway
}

// Gateway issues API requests on behalf of the logged-in courier.
type Gateway struct {
	baseURL        string
	acceptLanguage string
	client         *http.Client
	store          SessionStore
	now            func() time.Time
	metrics        *metrics.Gateway
	flight         *refresher

	keepAliveInterval time.Duration
	kaMu              sync.Mutex
	kaCancel          context.CancelFunc
	kaDone            chan struct{}
}

func New(store SessionStore, opts Options) *Gateway {
	g := &Gateway{
		baseURL:           strings.TrimSuffix(opts.BaseURL, "/"),
		acceptLanguage:    opts.AcceptLanguage,
		client:            opts.HTTPClient,
		store:             store,
		now:               opts.Clock,
		metrics:           opts.Metrics,
		keepAliveInterval: opts.KeepAliveInterval,
	}
	if g.acceptLanguage == "" {
		g.acceptLanguage = "kg-KY"
	}
	if g.client == nil {
		g.client = &http.Client{Timeout: 30 * time.Second}
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.keepAliveInterval <= 0 {
		g.keepAliveInterval = 115 * time.Minute
	}

	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = 30 * time.Second
	}
	g.flight = &refresher{
		run:     g.refreshSession,
		timeout: refreshTimeout,
		metrics: g.metrics,
	}
	return g
}

// BaseURL returns the API root requests are resolved against
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// outbound is a request moving through the pipeline.
type outbound struct {
	req     *http.Request
	token   string // access token attached, empty when sent unauthenticated
	retried bool
}

// Do sends req like http.Client.Do, authenticated with the current session:
// attachAuth -> send -> handleAuthError. Non-2xx responses, including a 401
// that survives the single retry, are returned as responses, not errors.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	out, err := newOutbound(req)
	if err != nil {
		return nil, err
	}
	if err := g.attachAuth(out); err != nil {
		return nil, err
	}
	resp, err := g.send(out)
	return g.handleAuthError(out, resp, err)
}

// NewRequest builds a JSON request for path relative to the API root.
func (g *Gateway) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", g.acceptLanguage)
	return req, nil
}

// InitializeSession seeds the session after a successful OTP login.
func (g *Gateway) InitializeSession(ctx context.Context, token, refreshToken string) error {
	if token == "" {
		return errors.New("cannot initialize session without an access token")
	}
	if err := g.store.Set(ctx, models.NewSession(token, refreshToken, g.now())); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	slog.Info("Session initialized")
	return nil
}

// Session returns the stored session, or nil when logged out.
func (g *Gateway) Session(ctx context.Context) *models.Session {
	return g.currentSession(ctx)
}

// Logout destroys the session. In-flight requests are left to finish on their own.
func (g *Gateway) Logout(ctx context.Context) error {
	if err := g.store.Remove(ctx); err != nil {
		return err
	}
	g.metrics.SessionCleared("logout")
	slog.Info("Logged out")
	return nil
}

// Close stops the keep-alive loop.
func (g *Gateway) Close() {
	g.StopKeepAlive()
}

// attachAuth sets the bearer token, refreshing first when the session is stale.
// Without a session the request goes out unauthenticated.
func (g *Gateway) attachAuth(out *outbound) error {
	ctx := out.req.Context()

	sess := g.currentSession(ctx)
	if sess == nil {
		return nil
	}

	token := sess.AccessToken
	if sess.IsStale(g.now()) {
		refreshed, err := g.flight.refresh(ctx, metrics.TriggerProactive, sess.AccessToken)
		if err != nil {
			return err
		}
		token = refreshed
	}

	out.setToken(token)
	return nil
}

func (g *Gateway) send(out *outbound) (*http.Response, error) {
	return g.client.Do(out.req)
}

// handleAuthError gives a 401 exactly one refresh-and-resend. Everything else,
// including the resent request's own outcome, passes through untouched.
func (g *Gateway) handleAuthError(out *outbound, resp *http.Response, err error) (*http.Response, error) {
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || out.retried || out.token == "" {
		return resp, nil
	}
	out.retried = true
	drain(resp)

	ctx := out.req.Context()
	token, err := g.retryToken(ctx, out.token)
	if err != nil {
		return nil, err
	}

	if err := out.rewind(token); err != nil {
		return nil, err
	}
	g.metrics.Retried()
	slog.Debug("Resending request after 401", "method", out.req.Method, "path", out.req.URL.Path)
	return g.send(out)
}

// retryToken picks the token for the resend: a token another caller already
// rotated in, or the result of a reactive refresh.
func (g *Gateway) retryToken(ctx context.Context, rejected string) (string, error) {
	if sess := g.currentSession(ctx); sess != nil && sess.AccessToken != rejected && !sess.IsStale(g.now()) {
		return sess.AccessToken, nil
	}
	return g.flight.refresh(ctx, metrics.TriggerReactive, rejected)
}

// currentSession treats store failures as "no session".
func (g *Gateway) currentSession(ctx context.Context) *models.Session {
	sess, err := g.store.Get(ctx)
	if err != nil {
		slog.Warn("Failed to read session, continuing unauthenticated", "error", err)
		return nil
	}
	if sess == nil || sess.AccessToken == "" {
		return nil
	}
	return sess
}

// newOutbound clones req and makes its body replayable for the reactive resend.
func newOutbound(req *http.Request) (*outbound, error) {
	clone := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to buffer request body: %w", err)
		}
		clone.Body = io.NopCloser(bytes.NewReader(data))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}
	return &outbound{req: clone}, nil
}

func (o *outbound) setToken(token string) {
	o.token = token
	o.req.Header.Set("Authorization", "Bearer "+token)
}

// rewind prepares the request for a second send with a new token.
func (o *outbound) rewind(token string) error {
	next := o.req.Clone(o.req.Context())
	if o.req.GetBody != nil {
		body, err := o.req.GetBody()
		if err != nil {
			return fmt.Errorf("failed to rewind request body: %w", err)
		}
		next.Body = body
	}
	o.req = next
	o.setToken(token)
	return nil
}

// drain discards the rest of a response so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
