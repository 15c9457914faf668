// Package storage provides backends for relay session records.
//
//   - memory: in-process map, for tests and for runs without persistence
//   - sqlite: embedded database file; driver "sqlite" (pure Go) or
//     "sqlite3" (cgo)
//   - postgres: pgx connection pool, for relays sharing one journal
//   - redis: Redis Stream, one entry per record
//
// New selects a backend from configuration:
//
//	store, err := storage.New(ctx, cfg.Journal)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
// All backends sort by StartedAt and filter with journal.Query. The memory and
// redis backends evaluate queries in process.
package storage
