package tablediff

import (
	"sync"
	"sync/atomic"
	"time"
)

// RunStats accumulates counters and warnings across a single DiffTables
// run. Safe for concurrent use by every worker in the bounded pool.
// Modeled on applier.Result (internal/applier), generalized from
// DDL-statement outcomes to diff-record outcomes.
type RunStats struct {
	started time.Time

	rowsCompared     int64
	segmentsVisited  int64
	bisectionRounds  int64
	recordsMissingL  int64
	recordsMissingR  int64
	recordsChanged   int64

	mu       sync.Mutex
	warnings []string

	columnMu    sync.Mutex
	columnStats map[string]*columnStatsEntry
}

// NewRunStats returns a RunStats with its clock started.
func NewRunStats() *RunStats {
	return &RunStats{started: time.Now(), columnStats: make(map[string]*columnStatsEntry)}
}

func (s *RunStats) AddRowsCompared(n int64)    { atomic.AddInt64(&s.rowsCompared, n) }
func (s *RunStats) IncSegmentsVisited()        { atomic.AddInt64(&s.segmentsVisited, 1) }
func (s *RunStats) IncBisectionRounds()        { atomic.AddInt64(&s.bisectionRounds, 1) }

// RecordDiff tallies one DiffRecord by its kind.
func (s *RunStats) RecordDiff(kind DiffKind) {
	switch kind {
	case DiffMissingOnRight:
		atomic.AddInt64(&s.recordsMissingL, 1)
	case DiffMissingOnLeft:
		atomic.AddInt64(&s.recordsMissingR, 1)
	case DiffChanged:
		atomic.AddInt64(&s.recordsChanged, 1)
	}
}

// Warn appends a non-fatal diagnostic (e.g. a column excluded for an
// unsupported type) to the run's warning log.
func (s *RunStats) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

// Warnings returns a snapshot of every warning recorded so far.
func (s *RunStats) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// Snapshot is an immutable point-in-time copy of RunStats, the shape
// returned to callers and written to a Sink on completion.
type Snapshot struct {
	Elapsed         time.Duration
	RowsCompared    int64
	SegmentsVisited int64
	BisectionRounds int64
	TotalMissingOnRight int64
	TotalMissingOnLeft  int64
	TotalChanged        int64
	Warnings        []string
}

// Snapshot returns an immutable copy of the current counters.
func (s *RunStats) Snapshot() Snapshot {
	return Snapshot{
		Elapsed:             time.Since(s.started),
		RowsCompared:        atomic.LoadInt64(&s.rowsCompared),
		SegmentsVisited:     atomic.LoadInt64(&s.segmentsVisited),
		BisectionRounds:     atomic.LoadInt64(&s.bisectionRounds),
		TotalMissingOnRight: atomic.LoadInt64(&s.recordsMissingL),
		TotalMissingOnLeft:  atomic.LoadInt64(&s.recordsMissingR),
		TotalChanged:        atomic.LoadInt64(&s.recordsChanged),
		Warnings:            s.Warnings(),
	}
}
