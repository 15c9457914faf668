package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/journal"
)

// DefaultRedisStream is the stream key used when none is configured.
const DefaultRedisStream = "pricerelay:sessions"

const redisPayloadField = "payload"

// RedisStorage appends records to a Redis Stream as JSON payloads. Stream
// order is write order, so queries load the stream and sort in process.
type RedisStorage struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	logger *slog.Logger
}

// NewRedisStorage connects and pings the server.
func NewRedisStorage(ctx context.Context, cfg config.RedisConfig) (*RedisStorage, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      []string{cfg.Addr},
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 2,
	})
	return newRedisStorage(ctx, client, cfg)
}

// NewRedisStorageWithClient uses an existing client.
func NewRedisStorageWithClient(ctx context.Context, client redis.UniversalClient, cfg config.RedisConfig) (*RedisStorage, error) {
	return newRedisStorage(ctx, client, cfg)
}

func newRedisStorage(ctx context.Context, client redis.UniversalClient, cfg config.RedisConfig) (*RedisStorage, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, journal.NewStorageError("redis", "ping", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = DefaultRedisStream
	}

	logger := slog.Default().With("component", "journal.storage.redis")
	logger.Info("Redis journal initialized", "stream", stream, "max_len", cfg.MaxLen)

	return &RedisStorage{
		client: client,
		stream: stream,
		maxLen: cfg.MaxLen,
		logger: logger,
	}, nil
}

// Store appends record. With MaxLen set the stream is trimmed approximately.
func (s *RedisStorage) Store(ctx context.Context, record *journal.SessionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return journal.NewStorageError("redis", "store", fmt.Errorf("marshal record: %w", err))
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{redisPayloadField: string(payload)},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return journal.NewStorageError("redis", "store", err)
	}
	return nil
}

// Query returns matching records.
func (s *RedisStorage) Query(ctx context.Context, query *journal.Query) ([]*journal.SessionRecord, error) {
	if err := validate("redis", query); err != nil {
		return nil, err
	}

	entries, err := s.load(ctx)
	if err != nil {
		return nil, journal.NewStorageError("redis", "query", err)
	}

	records := make([]*journal.SessionRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.record)
	}
	return query.Apply(records), nil
}

// Count returns the number of matching records.
func (s *RedisStorage) Count(ctx context.Context, query *journal.Query) (int64, error) {
	if unfiltered(query) {
		n, err := s.client.XLen(ctx, s.stream).Result()
		if err != nil {
			return 0, journal.NewStorageError("redis", "count", err)
		}
		return n, nil
	}

	entries, err := s.load(ctx)
	if err != nil {
		return 0, journal.NewStorageError("redis", "count", err)
	}

	var count int64
	for _, e := range entries {
		if query.Matches(e.record) {
			count++
		}
	}
	return count, nil
}

// Delete removes matching entries.
func (s *RedisStorage) Delete(ctx context.Context, query *journal.Query) (int64, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return 0, journal.NewStorageError("redis", "delete", err)
	}

	var ids []string
	for _, e := range entries {
		if query.Matches(e.record) {
			ids = append(ids, e.id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.client.XDel(ctx, s.stream, ids...).Result()
	if err != nil {
		return 0, journal.NewStorageError("redis", "delete", err)
	}
	return n, nil
}

// DeleteOldest trims the stream to exactly keep entries. Entries are
// removed in write order.
func (s *RedisStorage) DeleteOldest(ctx context.Context, keep int64) (int64, error) {
	n, err := s.client.XTrimMaxLen(ctx, s.stream, keep).Result()
	if err != nil {
		return 0, journal.NewStorageError("redis", "delete_oldest", err)
	}
	return n, nil
}

// Ping checks the connection.
func (s *RedisStorage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return journal.NewStorageError("redis", "ping", err)
	}
	return nil
}

// Backend returns "redis".
func (s *RedisStorage) Backend() string { return "redis" }

// Close closes the client.
func (s *RedisStorage) Close() error {
	if err := s.client.Close(); err != nil {
		return journal.NewStorageError("redis", "close", err)
	}
	s.logger.Info("Redis journal closed")
	return nil
}

type streamEntry struct {
	id     string
	record *journal.SessionRecord
}

// load reads the whole stream. Entries without a decodable payload are
// skipped with a warning.
func (s *RedisStorage) load(ctx context.Context) ([]streamEntry, error) {
	msgs, err := s.client.XRange(ctx, s.stream, "-", "+").Result()
	if err != nil {
		return nil, err
	}

	entries := make([]streamEntry, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values[redisPayloadField].(string)
		if !ok {
			s.logger.Warn("stream entry without payload", "entry_id", msg.ID)
			continue
		}
		var record journal.SessionRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.logger.Warn("undecodable stream entry", "entry_id", msg.ID, "error", err)
			continue
		}
		entries = append(entries, streamEntry{id: msg.ID, record: &record})
	}
	return entries, nil
}

func unfiltered(q *journal.Query) bool {
	return q == nil || (q.StartTime == nil && q.EndTime == nil && q.Outcome == "" && q.RequestID == "")
}
