package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/journal"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    remote_addr TEXT NOT NULL,
    query TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL,
    upstream_status INTEGER NOT NULL DEFAULT 0,
    bytes_relayed BIGINT NOT NULL DEFAULT 0,
    chunks BIGINT NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_sessions_outcome ON sessions(outcome);
CREATE INDEX IF NOT EXISTS idx_sessions_request_id ON sessions(request_id);
`

// PostgresStorage stores records in PostgreSQL through a pgx pool.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStorage connects, pings and applies the schema.
func NewPostgresStorage(ctx context.Context, cfg config.PostgresConfig) (*PostgresStorage, error) {
	if cfg.DSN == "" {
		return nil, journal.NewStorageError("postgres", "open", errors.New("dsn is required"))
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, journal.NewStorageError("postgres", "open", fmt.Errorf("parse dsn: %w", err))
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, journal.NewStorageError("postgres", "open", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, journal.NewStorageError("postgres", "ping", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, journal.NewStorageError("postgres", "create_schema", err)
	}

	logger := slog.Default().With("component", "journal.storage.postgres")
	logger.Info("PostgreSQL journal initialized",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns,
	)

	return &PostgresStorage{pool: pool, logger: logger}, nil
}

// Store inserts record.
func (s *PostgresStorage) Store(ctx context.Context, record *journal.SessionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (`+columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID, record.RequestID, record.RemoteAddr, record.Query,
		record.StartedAt.UTC(), record.EndedAt.UTC(),
		record.UpstreamStatus, record.BytesRelayed, record.Chunks,
		string(record.Outcome), nullString(record.Error),
	)
	if err != nil {
		return journal.NewStorageError("postgres", "store", err)
	}
	return nil
}

// Query returns matching records.
func (s *PostgresStorage) Query(ctx context.Context, query *journal.Query) ([]*journal.SessionRecord, error) {
	if err := validate("postgres", query); err != nil {
		return nil, err
	}

	where, args := whereClause(query, postgresPlaceholder, identity)
	sqlQuery := "SELECT " + columns + " FROM sessions"
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	sqlQuery += orderAndPage(query)

	rows, err := s.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, journal.NewStorageError("postgres", "query", err)
	}
	defer rows.Close()

	records := []*journal.SessionRecord{}
	for rows.Next() {
		var (
			record  journal.SessionRecord
			outcome string
			errText *string
		)
		if err := rows.Scan(
			&record.ID, &record.RequestID, &record.RemoteAddr, &record.Query,
			&record.StartedAt, &record.EndedAt,
			&record.UpstreamStatus, &record.BytesRelayed, &record.Chunks,
			&outcome, &errText,
		); err != nil {
			return nil, journal.NewStorageError("postgres", "scan", err)
		}
		record.Outcome = journal.Outcome(outcome)
		if errText != nil {
			record.Error = *errText
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, journal.NewStorageError("postgres", "query", err)
	}

	return records, nil
}

// Count returns the number of matching records.
func (s *PostgresStorage) Count(ctx context.Context, query *journal.Query) (int64, error) {
	where, args := whereClause(query, postgresPlaceholder, identity)
	sqlQuery := "SELECT COUNT(*) FROM sessions"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.pool.QueryRow(ctx, sqlQuery, args...).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, journal.NewStorageError("postgres", "count", err)
	}
	return count, nil
}

// Delete removes matching records.
func (s *PostgresStorage) Delete(ctx context.Context, query *journal.Query) (int64, error) {
	where, args := whereClause(query, postgresPlaceholder, identity)
	sqlQuery := "DELETE FROM sessions"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	tag, err := s.pool.Exec(ctx, sqlQuery, args...)
	if err != nil {
		return 0, journal.NewStorageError("postgres", "delete", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOldest keeps the newest keep records.
func (s *PostgresStorage) DeleteOldest(ctx context.Context, keep int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM sessions WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY started_at DESC, id DESC LIMIT $1
		)`, keep)
	if err != nil {
		return 0, journal.NewStorageError("postgres", "delete_oldest", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks a pooled connection.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return journal.NewStorageError("postgres", "ping", err)
	}
	return nil
}

// Backend returns "postgres".
func (s *PostgresStorage) Backend() string { return "postgres" }

// Close closes the pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	s.logger.Info("PostgreSQL journal closed")
	return nil
}

func postgresPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func identity(v any) any { return v }
