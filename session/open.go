// ABOUTME: Builds the session store for the configured backend
// ABOUTME: Selects memory, file or Redis persistence from config

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntlex/courier/config"
)

// Open creates the store selected by cfg. The returned close function releases
// the store and any backend connection.
func Open(ctx context.Context, cfg *config.Config) (*Store, func() error, error) {
	var (
		kv      KV
		closeKV = func() error { return nil }
	)

	switch cfg.SessionBackend {
	case config.BackendMemory:
		kv = NewMemoryKV()
	case config.BackendFile:
		kv = NewFileKV(cfg.SessionFile)
	case config.BackendRedis:
		r, err := NewRedisKV(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		kv = r
		closeKV = r.Close
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}

	slog.Debug("Session store opened", "backend", cfg.SessionBackend, "key", cfg.SessionKey)

	store := NewStore(kv, cfg.SessionKey, cfg.SessionCacheTTL)
	return store, func() error {
		store.Close()
		return closeKV()
	}, nil
}
