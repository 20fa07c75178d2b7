package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"news-radar/internal/config"
	"news-radar/internal/redisclient"
)

// Record is one persisted key/value pair inside a namespace. A zero
// ExpiresAt means the record does not expire.
type Record struct {
	Key       string
	Data      []byte
	ExpiresAt time.Time
}

// Store is the durable key/value backend behind caches and scheduler state.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, namespace, key string) (Record, bool, error)
	Load(ctx context.Context, namespace string) ([]Record, error)
	Put(ctx context.Context, namespace string, rec Record) error
	Delete(ctx context.Context, namespace, key string) error
	Close() error
}

// ErrUnknownBackend is returned by Open for an unsupported storage type.
var ErrUnknownBackend = errors.New("storage: unknown backend")

// Open builds the backend selected in cfg.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Type)) {
	case "", "redis":
		rdb, err := redisclient.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		return NewRedisStore(rdb, cfg.Storage.KeyPrefix), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.Storage.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Storage.Type)
	}
}

func expired(rec Record, now time.Time) bool {
	return !rec.ExpiresAt.IsZero() && !now.Before(rec.ExpiresAt)
}
