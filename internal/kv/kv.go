// Package kv provides the small key-value persistence layer used for the
// leaderboard. Values are opaque bytes written wholesale under a fixed key.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalobadob/motsrares/internal/config"
)

// ErrNotFound indicates the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store reads and overwrites whole values by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case config.StoreSQLite:
		s, err = OpenSQLite(ctx, cfg.SQLitePath)
	case config.StoreRedis:
		s, err = OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case config.StorePostgres:
		s, err = OpenPostgres(ctx, cfg.PostgresDSN)
	case config.StoreMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		// s holds a typed nil on failure.
		return nil, err
	}
	return s, nil
}
