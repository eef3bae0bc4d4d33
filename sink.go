package tablediff

import "context"

// Sink is the optional durable-materialization capability a DiffTables
// run writes its results to. Implementations live outside this package
// (see the sink subpackage) so the core comparison engine never imports a
// specific storage backend; DiffOrchestrator only depends on this
// interface. The three-call shape (Open/Write/Close) leaves room for a
// future streaming writer even though DiffOrchestrator today calls Write
// exactly once, after a run's records are fully collected.
type Sink interface {
	// Open begins a new run identified by runID, recording which tables
	// are being compared and under what Options.
	Open(ctx context.Context, runID string, left, right TableRef, opts Options) error

	// Write persists a batch of records for the run opened by Open.
	Write(ctx context.Context, records []DiffRecord) error

	// Close finalizes the run with its completed stats. Errors returned
	// by any of these three methods are treated as non-fatal by
	// DiffOrchestrator: recorded as a run warning rather than failing an
	// otherwise-successful diff.
	Close(ctx context.Context, stats Snapshot) error
}
