// ABOUTME: Session store: cached, subscribable access to the persisted session record
// ABOUTME: Wraps a KV backend with an in-memory layer and change notifications

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/syntlex/courier/cache"
	"github.com/syntlex/courier/models"
)

// absent is cached when the backend has no session, so repeated reads skip I/O.
type absent struct{}

// Store reads and writes the device's single session record under one key.
type Store struct {
	kv    KV
	key   string
	cache *cache.Cache

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(*models.Session)
}

// NewStore creates a store over kv. cacheTTL bounds how long a read is served from
// memory before the backend is consulted again (zero keeps it until the next write).
func NewStore(kv KV, key string, cacheTTL time.Duration) *Store {
	return &Store{
		kv:          kv,
		key:         key,
		cache:       cache.New(cacheTTL),
		subscribers: make(map[int]func(*models.Session)),
	}
}

// Get returns the current session, or nil when none is stored.
// A corrupt record reads as no session.
func (s *Store) Get(ctx context.Context) (*models.Session, error) {
	if val, ok := s.cache.Get(s.key); ok {
		if sess, ok := val.(*models.Session); ok {
			return clone(sess), nil
		}
		return nil, nil
	}

	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		s.cache.Set(s.key, absent{})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil || sess.AccessToken == "" {
		slog.Warn("Ignoring unreadable session record", "key", s.key, "error", err)
		s.cache.Set(s.key, absent{})
		return nil, nil
	}

	s.cache.Set(s.key, &sess)
	return clone(&sess), nil
}

// Set replaces the stored session. The memory layer and subscribers see the new
// value even when the backend write fails; the backend error is still returned.
func (s *Store) Set(ctx context.Context, sess *models.Session) error {
	if sess == nil {
		return s.Remove(ctx)
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	writeErr := s.kv.Set(ctx, s.key, raw)
	s.cache.Set(s.key, clone(sess))
	s.notify(sess)

	if writeErr != nil {
		return fmt.Errorf("failed to persist session: %w", writeErr)
	}
	return nil
}

// Remove deletes the stored session.
func (s *Store) Remove(ctx context.Context) error {
	deleteErr := s.kv.Delete(ctx, s.key)
	s.cache.Set(s.key, absent{})
	s.notify(nil)

	if deleteErr != nil {
		return fmt.Errorf("failed to remove session: %w", deleteErr)
	}
	return nil
}

// Subscribe registers fn to be called after every Set (with the new session) and
// Remove (with nil). The returned function unsubscribes.
func (s *Store) Subscribe(fn func(*models.Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Close releases the memory layer.
func (s *Store) Close() {
	s.cache.Close()
}

func (s *Store) notify(sess *models.Session) {
	s.mu.Lock()
	fns := make([]func(*models.Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(clone(sess))
	}
}

func clone(sess *models.Session) *models.Session {
	if sess == nil {
		return nil
	}
	out := *sess
	if sess.ExpiresAt != nil {
		t := *sess.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}
