package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/pricerelay/pkg/cli"
	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/journal"
	"mercator-hq/pricerelay/pkg/journal/retention"
	"mercator-hq/pricerelay/pkg/journal/storage"
)

var sessionsFlags struct {
	backend string
}

var sessionsListFlags struct {
	since       string
	until       string
	outcome     string
	requestID   string
	limit       int
	offset      int
	oldestFirst bool
	format      string
}

var sessionsPruneFlags struct {
	olderThan  int
	maxRecords int64
	dryRun     bool
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and prune the session journal",
	Long: `Inspect and prune the journal of relayed streams.

Every stream the relay serves is recorded with its request ID, timing, bytes
relayed and outcome. These commands read the configured journal backend.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	Long: `List recorded sessions, newest first.

--since and --until take an RFC3339 time or a duration before now.

Examples:
  # Sessions from the last hour
  pricerelay sessions list --since 1h

  # Failed upstream connections as CSV
  pricerelay sessions list --outcome upstream_unavailable --format csv

  # Everything for one request
  pricerelay sessions list --request-id 3f2a9c --format json`,
	RunE: listSessions,
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old sessions",
	Long: `Delete sessions older than --older-than days, then the oldest sessions
beyond --max-records. Unset flags fall back to journal.retention.

Examples:
  # Apply the configured retention policy now
  pricerelay sessions prune

  # Keep one week and at most 10000 sessions
  pricerelay sessions prune --older-than 7 --max-records 10000

  # Show how many sessions would be removed by age
  pricerelay sessions prune --older-than 30 --dry-run`,
	RunE: pruneSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsPruneCmd)

	sessionsCmd.PersistentFlags().StringVar(&sessionsFlags.backend, "backend", "", "journal backend: memory, sqlite, postgres, redis (uses config if not specified)")

	f := sessionsListCmd.Flags()
	f.StringVar(&sessionsListFlags.since, "since", "", "only sessions started at or after this time")
	f.StringVar(&sessionsListFlags.until, "until", "", "only sessions started at or before this time")
	f.StringVar(&sessionsListFlags.outcome, "outcome", "", "filter by outcome")
	f.StringVar(&sessionsListFlags.requestID, "request-id", "", "filter by request ID")
	f.IntVar(&sessionsListFlags.limit, "limit", journal.DefaultLimit, "maximum sessions to list")
	f.IntVar(&sessionsListFlags.offset, "offset", 0, "sessions to skip")
	f.BoolVar(&sessionsListFlags.oldestFirst, "oldest-first", false, "sort oldest first")
	f.StringVar(&sessionsListFlags.format, "format", "text", "output format: text, json, csv")

	p := sessionsPruneCmd.Flags()
	p.IntVar(&sessionsPruneFlags.olderThan, "older-than", -1, "delete sessions older than this many days")
	p.Int64Var(&sessionsPruneFlags.maxRecords, "max-records", -1, "keep at most this many sessions")
	p.BoolVar(&sessionsPruneFlags.dryRun, "dry-run", false, "count sessions that would be deleted by age")
}

// openJournal opens the configured journal, or the backend named by
// --backend.
func openJournal(ctx context.Context, cfg *config.Config) (journal.Storage, error) {
	jcfg := cfg.Journal
	if sessionsFlags.backend != "" {
		jcfg.Backend = sessionsFlags.backend
	}
	store, err := storage.New(ctx, jcfg)
	if err != nil {
		return nil, cli.NewCommandError("sessions", fmt.Errorf("failed to open journal: %w", err))
	}
	return store, nil
}

func listSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := setupLogging(cfg); err != nil {
		return err
	}

	format, err := cli.ParseOutputFormat(sessionsListFlags.format)
	if err != nil {
		return cli.NewConfigError("--format", err.Error())
	}

	query, err := buildSessionQuery(time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(ctx, query)
	if err != nil {
		return cli.NewCommandError("sessions list", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(out, records)
	}
	return cli.NewFormatter(format).FormatTo(out, sessionTable(records))
}

func buildSessionQuery(now time.Time) (*journal.Query, error) {
	q := &journal.Query{
		Outcome:   journal.Outcome(sessionsListFlags.outcome),
		RequestID: sessionsListFlags.requestID,
		Limit:     sessionsListFlags.limit,
		Offset:    sessionsListFlags.offset,
	}
	if sessionsListFlags.oldestFirst {
		q.SortOrder = "asc"
	}
	if q.Outcome != "" && !q.Outcome.Valid() {
		return nil, cli.NewConfigError("--outcome", fmt.Sprintf("unknown outcome %q", q.Outcome))
	}

	if sessionsListFlags.since != "" {
		t, err := parseTimeFlag(sessionsListFlags.since, now)
		if err != nil {
			return nil, cli.NewConfigError("--since", err.Error())
		}
		q.StartTime = &t
	}
	if sessionsListFlags.until != "" {
		t, err := parseTimeFlag(sessionsListFlags.until, now)
		if err != nil {
			return nil, cli.NewConfigError("--until", err.Error())
		}
		q.EndTime = &t
	}

	if err := q.Validate(); err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return q, nil
}

// parseTimeFlag accepts an RFC3339 time or a duration counted back from now.
func parseTimeFlag(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want an RFC3339 time or a duration, got %q", s)
	}
	if d < 0 {
		return time.Time{}, fmt.Errorf("duration must not be negative, got %q", s)
	}
	return now.Add(-d), nil
}

func sessionTable(records []*journal.SessionRecord) cli.Table {
	t := cli.Table{
		Columns: []string{"ID", "REQUEST ID", "STARTED", "DURATION", "STATUS", "BYTES", "CHUNKS", "OUTCOME"},
	}
	for _, r := range records {
		t.Data = append(t.Data, []string{
			r.ID,
			r.RequestID,
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Duration().Round(time.Millisecond).String(),
			strconv.Itoa(r.UpstreamStatus),
			strconv.FormatInt(r.BytesRelayed, 10),
			strconv.FormatInt(r.Chunks, 10),
			string(r.Outcome),
		})
	}
	return t
}

func pruneSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := setupLogging(cfg); err != nil {
		return err
	}

	policy := cfg.Journal.Retention
	if sessionsPruneFlags.olderThan >= 0 {
		policy.Days = sessionsPruneFlags.olderThan
	}
	if sessionsPruneFlags.maxRecords >= 0 {
		policy.MaxRecords = sessionsPruneFlags.maxRecords
	}
	if policy.Days <= 0 && policy.MaxRecords <= 0 {
		return cli.NewConfigError("--older-than", "no retention policy: set --older-than or --max-records")
	}

	ctx := cmd.Context()
	store, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if sessionsPruneFlags.dryRun {
		if policy.Days <= 0 {
			return cli.NewConfigError("--older-than", "--dry-run needs an age")
		}
		cutoff := time.Now().AddDate(0, 0, -policy.Days)
		n, err := store.Count(ctx, &journal.Query{EndTime: &cutoff})
		if err != nil {
			return cli.NewCommandError("sessions prune", err)
		}
		fmt.Fprintf(out, "%d sessions older than %d days would be deleted\n", n, policy.Days)
		return nil
	}

	deleted, err := retention.NewPruner(store, policy, nil).Prune(ctx)
	if err != nil {
		return cli.NewCommandError("sessions prune", err)
	}
	fmt.Fprintf(out, "✓ Deleted %d sessions from %s journal\n", deleted, store.Backend())
	return nil
}
