package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/journal"
	"mercator-hq/pricerelay/pkg/telemetry/metrics"
)

// Pruner enforces the retention policy on session records.
type Pruner struct {
	storage   journal.Storage
	config    config.RetentionConfig
	metrics   *metrics.Collector
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a pruner. m may be nil.
func NewPruner(storage journal.Storage, cfg config.RetentionConfig, m *metrics.Collector) *Pruner {
	p := &Pruner{
		storage: storage,
		config:  cfg,
		metrics: m,
		logger:  slog.Default().With("component", "journal.retention"),
		now:     time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes records that started more than Days ago, then the oldest
// records beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.Days > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.Days)
		deleted, err := p.storage.Delete(ctx, &journal.Query{EndTime: &cutoff})
		if err != nil {
			return total, journal.NewRetentionError(p.config.Days, fmt.Errorf("prune by age: %w", err))
		}
		total += deleted
		p.logger.Debug("pruned records by age",
			"deleted_count", deleted,
			"cutoff_time", cutoff,
		)
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.storage.DeleteOldest(ctx, p.config.MaxRecords)
		if err != nil {
			return total, journal.NewRetentionError(p.config.Days, fmt.Errorf("prune by count: %w", err))
		}
		total += deleted
		p.logger.Debug("pruned records by count",
			"deleted_count", deleted,
			"max_records", p.config.MaxRecords,
		)
	}

	p.metrics.RecordJournalPruned(total)
	if total > 0 {
		p.logger.Info("session pruning completed",
			"total_deleted", total,
			"retention_days", p.config.Days,
			"max_records", p.config.MaxRecords,
		)
	}

	return total, nil
}

// Start schedules Prune on PruneSchedule until ctx is done or Stop is called.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the schedule and waits for a running prune.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the next scheduled run, or nil when not scheduled.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
