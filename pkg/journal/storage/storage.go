package storage

import (
	"context"
	"fmt"

	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/journal"
)

// New opens the backend named by cfg.Backend.
func New(ctx context.Context, cfg config.JournalConfig) (journal.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite", "":
		return NewSQLiteStorage(ctx, cfg.SQLite)
	case "postgres":
		return NewPostgresStorage(ctx, cfg.Postgres)
	case "redis":
		return NewRedisStorage(ctx, cfg.Redis)
	default:
		return nil, journal.NewStorageError(cfg.Backend, "open", fmt.Errorf("unknown backend %q", cfg.Backend))
	}
}

var (
	_ journal.Storage = (*MemoryStorage)(nil)
	_ journal.Storage = (*SQLiteStorage)(nil)
	_ journal.Storage = (*PostgresStorage)(nil)
	_ journal.Storage = (*RedisStorage)(nil)
)
