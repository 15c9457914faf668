package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/journal"
	"mercator-hq/pricerelay/pkg/telemetry/metrics"
)

// Recorder writes session records to storage from a background worker.
// Record never blocks: when the buffer is full the record is dropped and
// counted.
type Recorder struct {
	storage journal.Storage
	config  config.RecorderConfig
	metrics *metrics.Collector
	logger  *slog.Logger

	records chan *journal.SessionRecord
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts a recorder. m may be nil.
func New(storage journal.Storage, cfg config.RecorderConfig, m *metrics.Collector) *Recorder {
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = config.DefaultJournalRecorderAsyncBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultJournalRecorderWriteTimeout
	}

	r := &Recorder{
		storage: storage,
		config:  cfg,
		metrics: m,
		logger:  slog.Default().With("component", "journal.recorder"),
		records: make(chan *journal.SessionRecord, cfg.AsyncBuffer),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("session recorder initialized",
		"backend", storage.Backend(),
		"async_buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
	)

	return r
}

// Record enqueues a record. Records without an ID get one.
func (r *Recorder) Record(record *journal.SessionRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(record, "recorder closed")
		return
	}

	select {
	case r.records <- record:
	default:
		r.drop(record, "buffer full")
	}
}

// Close stops accepting records and waits until the buffer is written.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.records)
	r.mu.Unlock()

	r.logger.Info("draining session recorder", "pending_count", len(r.records))
	r.wg.Wait()
	r.logger.Info("session recorder shut down")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for record := range r.records {
		r.write(record)
	}
}

func (r *Recorder) write(record *journal.SessionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := r.storage.Store(ctx, record)
	duration := time.Since(start)

	if err != nil {
		r.metrics.RecordJournalWrite(r.storage.Backend(), "error", duration)
		r.logger.Error("failed to store session record",
			"session_id", record.ID,
			"request_id", record.RequestID,
			"error", err,
		)
		return
	}

	r.metrics.RecordJournalWrite(r.storage.Backend(), "success", duration)
	r.logger.Debug("session recorded",
		"session_id", record.ID,
		"outcome", record.Outcome,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow session write",
			"session_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}

func (r *Recorder) drop(record *journal.SessionRecord, reason string) {
	r.metrics.RecordJournalDrop()
	r.logger.Warn("dropping session record",
		"session_id", record.ID,
		"request_id", record.RequestID,
		"reason", reason,
		"channel_capacity", r.config.AsyncBuffer,
	)
}
