package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"tablediff"
)

// SQLSink materializes run results into five relations (diff_runs,
// diff_details, diff_column_stats, diff_timeline, diff_metrics) in a
// *sqlx.DB. diff_runs and diff_metrics rows are upserted by run_id, so
// writing a run again replaces them; diff_details, diff_timeline and
// diff_column_stats rows are plain inserts, so writing the same run again
// duplicates them. Grounded on internal/dumper's statement-batching style
// (internal/tengo) adapted from
// "dump schema DDL to files" to "dump diff results to relational storage".
type SQLSink struct {
	db      *sqlx.DB
	backend tablediff.Backend

	mu    sync.Mutex
	runID string
	left  tablediff.TableRef
	right tablediff.TableRef
}

// NewSQLSink wraps db, rendering upserts for the given backend. The
// backend must match db's actual driver; SQLSink does not open
// connections itself.
func NewSQLSink(db *sqlx.DB, backend tablediff.Backend) *SQLSink {
	return &SQLSink{db: db, backend: backend}
}

// EnsureSchema creates the five relations if they do not already exist.
// Callers typically invoke this once at startup; DiffOrchestrator never
// calls it implicitly, matching spec.md's exclusion of connection
// bring-up/migration concerns from the core engine.
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.createStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &tablediff.QueryError{SQL: stmt, Err: err}
		}
	}
	return nil
}

func (s *SQLSink) createStatements() []string {
	const pk = "VARCHAR(64) PRIMARY KEY"
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS diff_runs (
			run_id %s,
			left_schema VARCHAR(255), left_table VARCHAR(255),
			right_schema VARCHAR(255), right_table VARCHAR(255),
			algorithm VARCHAR(32), started_at VARCHAR(32)
		)`, pk),
		`CREATE TABLE IF NOT EXISTS diff_details (
			run_id VARCHAR(64), key_repr VARCHAR(1024), kind VARCHAR(32), changed_columns TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS diff_column_stats (
			run_id VARCHAR(64), column_name VARCHAR(255),
			left_nulls BIGINT, right_nulls BIGINT, match_count BIGINT, compared_count BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS diff_timeline (
			run_id VARCHAR(64), event VARCHAR(64), at_seconds DOUBLE PRECISION
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS diff_metrics (
			run_id %s,
			rows_compared BIGINT, segments_visited BIGINT, bisection_rounds BIGINT,
			missing_on_right BIGINT, missing_on_left BIGINT, changed BIGINT, elapsed_seconds DOUBLE PRECISION
		)`, pk),
	}
}

// Open implements tablediff.Sink.
func (s *SQLSink) Open(ctx context.Context, runID string, left, right tablediff.TableRef, opts tablediff.Options) error {
	s.mu.Lock()
	s.runID, s.left, s.right = runID, left, right
	s.mu.Unlock()

	query := s.upsert("diff_runs", []string{"run_id", "left_schema", "left_table", "right_schema", "right_table", "algorithm", "started_at"}, "run_id")
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		runID, left.Schema, left.Table, right.Schema, right.Table, algorithmName(opts.Algorithm), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return &tablediff.QueryError{SQL: query, Err: err}
	}
	return nil
}

// Write implements tablediff.Sink.
func (s *SQLSink) Write(ctx context.Context, records []tablediff.DiffRecord) error {
	s.mu.Lock()
	runID := s.runID
	s.mu.Unlock()

	query := fmt.Sprintf("INSERT INTO diff_details (run_id, key_repr, kind, changed_columns) VALUES (%s, %s, %s, %s)",
		s.bind(1), s.bind(2), s.bind(3), s.bind(4))
	query = s.db.Rebind(query)
	for _, r := range records {
		changed, _ := json.Marshal(r.ChangedCols)
		if _, err := s.db.ExecContext(ctx, query, runID, r.Key.String(), r.Kind.String(), string(changed)); err != nil {
			return &tablediff.QueryError{SQL: query, Err: err}
		}
	}
	return nil
}

// Close implements tablediff.Sink.
func (s *SQLSink) Close(ctx context.Context, stats tablediff.Snapshot) error {
	s.mu.Lock()
	runID := s.runID
	s.mu.Unlock()

	query := s.upsert("diff_metrics",
		[]string{"run_id", "rows_compared", "segments_visited", "bisection_rounds", "missing_on_right", "missing_on_left", "changed", "elapsed_seconds"},
		"run_id")
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		runID, stats.RowsCompared, stats.SegmentsVisited, stats.BisectionRounds,
		stats.TotalMissingOnRight, stats.TotalMissingOnLeft, stats.TotalChanged, stats.Elapsed.Seconds())
	if err != nil {
		return &tablediff.QueryError{SQL: query, Err: err}
	}
	for _, w := range stats.Warnings {
		tquery := s.db.Rebind("INSERT INTO diff_timeline (run_id, event, at_seconds) VALUES (?, ?, ?)")
		if _, err := s.db.ExecContext(ctx, tquery, runID, "warning: "+w, stats.Elapsed.Seconds()); err != nil {
			return &tablediff.QueryError{SQL: tquery, Err: err}
		}
	}
	return nil
}

// WriteColumnStats persists the column-level statistics supplement (see
// tablediff.ColumnStats) produced as a by-product of HashDiffer's leaf
// comparisons, when the caller chose to collect them.
func (s *SQLSink) WriteColumnStats(ctx context.Context, runID string, stats map[string]*tablediff.ColumnStats) error {
	query := s.db.Rebind("INSERT INTO diff_column_stats (run_id, column_name, left_nulls, right_nulls, match_count, compared_count) VALUES (?, ?, ?, ?, ?, ?)")
	for col, cs := range stats {
		if _, err := s.db.ExecContext(ctx, query, runID, col, cs.LeftNulls, cs.RightNulls, cs.MatchCount, cs.ComparedCount); err != nil {
			return &tablediff.QueryError{SQL: query, Err: err}
		}
	}
	return nil
}

// upsert renders an INSERT ... ON CONFLICT/ON DUPLICATE KEY UPDATE
// statement for the given table/columns, keyed by conflictCol, per the
// target dialect -- spec.md section 4.8's idempotent-write requirement.
func (s *SQLSink) upsert(table string, columns []string, conflictCol string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = s.bind(i + 1)
	}
	base := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	var updates []string
	for _, c := range columns {
		if c == conflictCol {
			continue
		}
		switch s.backend {
		case tablediff.BackendMySQL:
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
		default:
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	switch s.backend {
	case tablediff.BackendMySQL:
		return base + " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
	default:
		return base + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET ", conflictCol) + strings.Join(updates, ", ")
	}
}

// bind renders a positional or '?' placeholder; sqlx.Rebind normalizes it
// to the actual driver's syntax ($1 for postgres, ? for mysql/sqlite) at
// call time, so this always emits '?' and lets Rebind translate it.
func (s *SQLSink) bind(int) string { return "?" }

func algorithmName(a tablediff.Algorithm) string {
	switch a {
	case tablediff.AlgorithmHashDiff:
		return "hashdiff"
	case tablediff.AlgorithmJoinDiff:
		return "joindiff"
	default:
		return "auto"
	}
}
