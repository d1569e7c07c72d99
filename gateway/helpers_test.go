// ABOUTME: Test helpers for gateway tests
// ABOUTME: Fake courier backend with a controllable token exchange, and a settable clock

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/syntlex/courier/models"
	"github.com/syntlex/courier/session"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeBackend serves /refresh/token and a protected API under /api/.
type fakeBackend struct {
	server *httptest.Server

	exchanges atomic.Int32
	apiCalls  atomic.Int32

	mu             sync.Mutex
	exchangeBodies []string
	exchangeLangs  []string
	authHeaders    []string
	apiBodies      []string
	accepted       map[string]bool // access tokens the API accepts
	exchangeStatus int
	nextPair       models.TokenPair
	release        chan struct{} // when set, exchanges block until closed
	onAPI          func(r *http.Request)
	apiStatus      int // overrides the auth check when non-zero
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		accepted:       map[string]bool{},
		exchangeStatus: http.StatusOK,
		nextPair:       models.TokenPair{Token: "tokB", RefreshToken: "refB"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/refresh/token", b.handleExchange)
	mux.HandleFunc("/api/", b.handleAPI)
	mux.HandleFunc("/send-otp", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.authHeaders = append(b.authHeaders, r.Header.Get("Authorization"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) handleExchange(w http.ResponseWriter, r *http.Request) {
	b.exchanges.Add(1)
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.exchangeBodies = append(b.exchangeBodies, string(body))
	b.exchangeLangs = append(b.exchangeLangs, r.Header.Get("Accept-Language"))
	release := b.release
	status := b.exchangeStatus
	pair := b.nextPair
	b.mu.Unlock()

	if release != nil {
		<-release
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":"invalid refresh token"}`))
		return
	}

	b.mu.Lock()
	b.accepted[pair.Token] = true
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pair)
}

func (b *fakeBackend) handleAPI(w http.ResponseWriter, r *http.Request) {
	b.apiCalls.Add(1)
	auth := r.Header.Get("Authorization")
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.authHeaders = append(b.authHeaders, auth)
	b.apiBodies = append(b.apiBodies, string(body))
	ok := b.accepted[strings.TrimPrefix(auth, "Bearer ")]
	onAPI := b.onAPI
	status := b.apiStatus
	b.mu.Unlock()

	if onAPI != nil {
		onAPI(r)
	}

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}

func (b *fakeBackend) accept(tokens ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tok := range tokens {
		b.accepted[tok] = true
	}
}

func (b *fakeBackend) blockExchanges() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.release = make(chan struct{})
	return b.release
}

// configure mutates handler settings under the backend lock.
func (b *fakeBackend) configure(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) exchangeRequest(i int) (body, lang string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exchangeBodies[i], b.exchangeLangs[i]
}

func (b *fakeBackend) failExchanges(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exchangeStatus = status
}

func (b *fakeBackend) lastAuth() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.authHeaders) == 0 {
		return ""
	}
	return b.authHeaders[len(b.authHeaders)-1]
}

func (b *fakeBackend) allAuth() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authHeaders...)
}

// holdingStore pauses the first Get after arming, handing the session it read to held,
// until resume is closed.
type holdingStore struct {
	SessionStore
	armed  atomic.Bool
	held   chan *models.Session
	resume chan struct{}
}

func newHoldingStore(inner SessionStore) *holdingStore {
	return &holdingStore{
		SessionStore: inner,
		held:         make(chan *models.Session, 1),
		resume:       make(chan struct{}),
	}
}

func (s *holdingStore) Get(ctx context.Context) (*models.Session, error) {
	sess, err := s.SessionStore.Get(ctx)
	if s.armed.CompareAndSwap(true, false) {
		s.held <- sess
		<-s.resume
	}
	return sess, err
}

type testEnv struct {
	backend *fakeBackend
	store   *session.Store
	clock   *fakeClock
	gw      *Gateway
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	b := newFakeBackend(t)
	store := session.NewStore(session.NewMemoryKV(), "user", 0)
	t.Cleanup(store.Close)
	clock := newFakeClock()

	opts.BaseURL = b.server.URL
	opts.Clock = clock.Now
	gw := New(store, opts)
	t.Cleanup(gw.Close)

	return &testEnv{backend: b, store: store, clock: clock, gw: gw}
}

// get issues GET /api/orders through the gateway and returns the status code.
func (e *testEnv) get(t *testing.T) (int, error) {
	t.Helper()
	req, err := e.gw.NewRequest(t.Context(), http.MethodGet, "/api/orders", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := e.gw.Do(req)
	if err != nil {
		return 0, err
	}
	drain(resp)
	return resp.StatusCode, nil
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
