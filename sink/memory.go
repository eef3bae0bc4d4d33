// Package sink provides optional, durable (or in-process) materialization
// of DiffTables results, kept outside the core tablediff package so the
// comparison engine itself never imports a specific storage backend.
package sink

import (
	"context"
	"errors"
	"sync"

	"tablediff"
)

// errNoOpenRun is returned by Write/Close when called before Open, a
// programmer error on the caller's side (DiffOrchestrator always calls
// Open first).
var errNoOpenRun = errors.New("sink: Write/Close called with no open run")

// RunRecord is one completed run as retained by MemorySink.
type RunRecord struct {
	RunID   string
	Left    tablediff.TableRef
	Right   tablediff.TableRef
	Opts    tablediff.Options
	Records []tablediff.DiffRecord
	Stats   tablediff.Snapshot
}

// MemorySink retains every run in process memory, for tests and
// short-lived CLI invocations that want to inspect results without
// standing up a database.
type MemorySink struct {
	mu      sync.Mutex
	runs    map[string]*RunRecord
	ordered []string
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{runs: make(map[string]*RunRecord)}
}

// Open implements tablediff.Sink.
func (m *MemorySink) Open(_ context.Context, runID string, left, right tablediff.TableRef, opts tablediff.Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = &RunRecord{RunID: runID, Left: left, Right: right, Opts: opts}
	m.ordered = append(m.ordered, runID)
	return nil
}

// Write implements tablediff.Sink.
func (m *MemorySink) Write(_ context.Context, records []tablediff.DiffRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ordered) == 0 {
		return errNoOpenRun
	}
	run := m.runs[m.ordered[len(m.ordered)-1]]
	run.Records = append(run.Records, records...)
	return nil
}

// Close implements tablediff.Sink.
func (m *MemorySink) Close(_ context.Context, stats tablediff.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ordered) == 0 {
		return errNoOpenRun
	}
	run := m.runs[m.ordered[len(m.ordered)-1]]
	run.Stats = stats
	return nil
}

// Runs returns every run recorded so far, oldest first.
func (m *MemorySink) Runs() []RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunRecord, 0, len(m.ordered))
	for _, id := range m.ordered {
		out = append(out, *m.runs[id])
	}
	return out
}

// Run returns the run recorded under runID, if any.
func (m *MemorySink) Run(runID string) (RunRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return RunRecord{}, false
	}
	return *r, true
}
