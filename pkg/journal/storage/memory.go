package storage

import (
	"context"
	"sync"

	"mercator-hq/pricerelay/pkg/journal"
)

// MemoryStorage keeps records in a map. Records do not survive a restart.
type MemoryStorage struct {
	records map[string]*journal.SessionRecord
	closed  bool
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*journal.SessionRecord),
	}
}

// Store saves a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *journal.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return journal.NewStorageError("memory", "store", journal.ErrClosed)
	}
	recordCopy := *record
	s.records[record.ID] = &recordCopy
	return nil
}

// Query returns copies of matching records.
func (s *MemoryStorage) Query(ctx context.Context, query *journal.Query) ([]*journal.SessionRecord, error) {
	if err := validate("memory", query); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return query.Apply(s.snapshot()), nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *journal.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if query.Matches(record) {
			count++
		}
	}
	return count, nil
}

// Delete removes matching records.
func (s *MemoryStorage) Delete(ctx context.Context, query *journal.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if query.Matches(record) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteOldest keeps the newest keep records.
func (s *MemoryStorage) DeleteOldest(ctx context.Context, keep int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := int64(len(s.records)) - keep
	if excess <= 0 {
		return 0, nil
	}

	all := s.snapshot()
	journal.SortOldestFirst(all)
	for _, record := range all[:excess] {
		delete(s.records, record.ID)
	}
	return excess, nil
}

// Ping fails after Close.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return journal.NewStorageError("memory", "ping", journal.ErrClosed)
	}
	return nil
}

// Backend returns "memory".
func (s *MemoryStorage) Backend() string { return "memory" }

// Close drops all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*journal.SessionRecord)
	s.closed = true
	return nil
}

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// snapshot copies every record. Callers hold the lock.
func (s *MemoryStorage) snapshot() []*journal.SessionRecord {
	out := make([]*journal.SessionRecord, 0, len(s.records))
	for _, record := range s.records {
		recordCopy := *record
		out = append(out, &recordCopy)
	}
	return out
}
