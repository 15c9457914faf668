package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/journal"
)

const (
	// DriverModernc is the pure Go driver registered by modernc.org/sqlite.
	DriverModernc = "sqlite"

	// DriverMattn is the cgo driver registered by github.com/mattn/go-sqlite3.
	DriverMattn = "sqlite3"
)

// SQLiteStorage stores records in a SQLite database file.
type SQLiteStorage struct {
	db     *sql.DB
	config config.SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens or creates the database and applies the schema.
func NewSQLiteStorage(ctx context.Context, cfg config.SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverMattn {
		return nil, journal.NewStorageError("sqlite", "open", fmt.Errorf("unknown driver %q", cfg.Driver))
	}

	logger := slog.Default().With("component", "journal.storage.sqlite")

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" && !strings.HasPrefix(cfg.Path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, journal.NewStorageError("sqlite", "open", err)
		}
	}

	db, err := sql.Open(cfg.Driver, sqliteDSN(cfg))
	if err != nil {
		return nil, journal.NewStorageError("sqlite", "open", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &SQLiteStorage{db: db, config: cfg, logger: logger}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite journal initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

// sqliteDSN sets busy_timeout and journal_mode on every pooled connection,
// in each driver's own DSN syntax.
func sqliteDSN(cfg config.SQLiteConfig) string {
	busy := cfg.BusyTimeout.Milliseconds()

	var params []string
	switch cfg.Driver {
	case DriverMattn:
		params = append(params, fmt.Sprintf("_busy_timeout=%d", busy))
		if cfg.WALMode {
			params = append(params, "_journal_mode=WAL")
		}
	default:
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", busy))
		if cfg.WALMode {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
	}

	return cfg.Path + "?" + strings.Join(params, "&")
}

func (s *SQLiteStorage) initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return journal.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.ExecContext(ctx, sqliteInsertSchemaVersion, SchemaVersion); err != nil {
		return journal.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, sqliteGetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return journal.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return journal.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store inserts record. Storing the same ID twice fails.
func (s *SQLiteStorage) Store(ctx context.Context, record *journal.SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.RequestID, record.RemoteAddr, record.Query,
		record.StartedAt.UnixNano(), record.EndedAt.UnixNano(),
		record.UpstreamStatus, record.BytesRelayed, record.Chunks,
		string(record.Outcome), nullString(record.Error),
	)
	if err != nil {
		return journal.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns matching records.
func (s *SQLiteStorage) Query(ctx context.Context, query *journal.Query) ([]*journal.SessionRecord, error) {
	if err := validate("sqlite", query); err != nil {
		return nil, err
	}

	where, args := whereClause(query, sqlitePlaceholder, sqliteTime)
	sqlQuery := "SELECT " + columns + " FROM sessions"
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	sqlQuery += orderAndPage(query)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, journal.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*journal.SessionRecord{}
	for rows.Next() {
		var (
			record         journal.SessionRecord
			started, ended int64
			outcome        string
			errText        sql.NullString
		)
		if err := rows.Scan(
			&record.ID, &record.RequestID, &record.RemoteAddr, &record.Query,
			&started, &ended,
			&record.UpstreamStatus, &record.BytesRelayed, &record.Chunks,
			&outcome, &errText,
		); err != nil {
			return nil, journal.NewStorageError("sqlite", "scan", err)
		}
		record.StartedAt = time.Unix(0, started)
		record.EndedAt = time.Unix(0, ended)
		record.Outcome = journal.Outcome(outcome)
		record.Error = errText.String
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, journal.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, query *journal.Query) (int64, error) {
	where, args := whereClause(query, sqlitePlaceholder, sqliteTime)
	sqlQuery := "SELECT COUNT(*) FROM sessions"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, journal.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes matching records.
func (s *SQLiteStorage) Delete(ctx context.Context, query *journal.Query) (int64, error) {
	where, args := whereClause(query, sqlitePlaceholder, sqliteTime)
	sqlQuery := "DELETE FROM sessions"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, journal.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, journal.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// DeleteOldest keeps the newest keep records.
func (s *SQLiteStorage) DeleteOldest(ctx context.Context, keep int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, journal.NewStorageError("sqlite", "delete_oldest", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, journal.NewStorageError("sqlite", "delete_oldest", err)
	}
	return count, nil
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return journal.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Backend returns "sqlite".
func (s *SQLiteStorage) Backend() string { return "sqlite" }

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return journal.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite journal closed")
	return nil
}

func sqlitePlaceholder(int) string { return "?" }

func sqliteTime(t any) any {
	if tt, ok := t.(time.Time); ok {
		return tt.UnixNano()
	}
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
