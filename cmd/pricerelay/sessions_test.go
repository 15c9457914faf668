package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/journal"
	"mercator-hq/pricerelay/pkg/journal/storage"
)

func TestParseTimeFlag(t *testing.T) {
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-01-01T00:00:00Z", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{in: "1h", want: now.Add(-time.Hour)},
		{in: "90m", want: now.Add(-90 * time.Minute)},
		{in: "-1h", wantErr: true},
		{in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimeFlag(tt.in, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildSessionQuery(t *testing.T) {
	defer resetSessionFlags()
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	sessionsListFlags.since = "2h"
	sessionsListFlags.until = "1h"
	sessionsListFlags.outcome = "completed"
	sessionsListFlags.limit = 5
	sessionsListFlags.oldestFirst = true

	q, err := buildSessionQuery(now)
	if err != nil {
		t.Fatal(err)
	}
	if !q.StartTime.Equal(now.Add(-2*time.Hour)) || !q.EndTime.Equal(now.Add(-time.Hour)) {
		t.Errorf("range = %v .. %v", q.StartTime, q.EndTime)
	}
	if q.SortOrder != "asc" || q.Limit != 5 || q.Outcome != journal.OutcomeCompleted {
		t.Errorf("query = %+v", q)
	}

	sessionsListFlags.outcome = "exploded"
	if _, err := buildSessionQuery(now); err == nil {
		t.Error("expected error for unknown outcome")
	}

	sessionsListFlags.outcome = ""
	sessionsListFlags.since, sessionsListFlags.until = "1h", "2h"
	if _, err := buildSessionQuery(now); err == nil {
		t.Error("expected error for inverted range")
	}
}

func resetSessionFlags() {
	sessionsFlags.backend = ""
	sessionsListFlags.since = ""
	sessionsListFlags.until = ""
	sessionsListFlags.outcome = ""
	sessionsListFlags.requestID = ""
	sessionsListFlags.limit = journal.DefaultLimit
	sessionsListFlags.offset = 0
	sessionsListFlags.oldestFirst = false
	sessionsListFlags.format = "text"
	sessionsPruneFlags.olderThan = -1
	sessionsPruneFlags.maxRecords = -1
	sessionsPruneFlags.dryRun = false
}

// useJournal points the global configuration at a fresh SQLite journal
// holding n sessions, one per day going back from now.
func useJournal(t *testing.T, n int) config.JournalConfig {
	t.Helper()

	if err := config.Initialize(""); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Journal.Backend = "sqlite"
	cfg.Journal.SQLite.Driver = storage.DriverModernc
	cfg.Journal.SQLite.Path = filepath.Join(t.TempDir(), "sessions.db")
	cfg.Journal.Retention.Days = 0
	cfg.Journal.Retention.MaxRecords = 0
	config.SetConfig(cfg)

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.Journal)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	now := time.Now()
	for i := 0; i < n; i++ {
		started := now.Add(-time.Duration(i) * 24 * time.Hour).Add(-time.Minute)
		err := store.Store(ctx, &journal.SessionRecord{
			ID:             fmt.Sprintf("s%02d", i),
			RequestID:      fmt.Sprintf("req-%d", i),
			StartedAt:      started,
			EndedAt:        started.Add(time.Second),
			UpstreamStatus: 200,
			BytesRelayed:   int64(100 * i),
			Chunks:         int64(i),
			Outcome:        journal.OutcomeCompleted,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return cfg.Journal
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetOut(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSessionsList(t *testing.T) {
	defer resetSessionFlags()
	useJournal(t, 3)

	out, err := execute(t, "sessions", "list", "--format", "csv", "--oldest-first")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v\n%s", err, out)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3:\n%s", len(rows), out)
	}
	if rows[0][0] != "ID" || rows[1][0] != "s02" || rows[3][0] != "s00" {
		t.Errorf("rows = %v", rows)
	}
	if rows[1][3] != "1s" || rows[1][4] != "200" {
		t.Errorf("row = %v", rows[1])
	}
}

func TestSessionsPrune(t *testing.T) {
	defer resetSessionFlags()
	jcfg := useJournal(t, 5)

	out, err := execute(t, "sessions", "prune", "--older-than", "2", "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if out != "3 sessions older than 2 days would be deleted\n" {
		t.Errorf("dry run output = %q", out)
	}

	resetSessionFlags()
	out, err = execute(t, "sessions", "prune", "--older-than", "2", "--max-records", "1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if out != "✓ Deleted 4 sessions from sqlite journal\n" {
		t.Errorf("prune output = %q", out)
	}

	store, err := storage.New(context.Background(), jcfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	remaining, err := store.Query(context.Background(), &journal.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].ID != "s00" {
		t.Errorf("remaining = %v", remaining)
	}
}

func TestSessionsPrune_NoPolicy(t *testing.T) {
	defer resetSessionFlags()
	useJournal(t, 0)

	if _, err := execute(t, "sessions", "prune"); err == nil {
		t.Error("expected error without a retention policy")
	}
}
