package tablediff

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DiffOrchestrator owns algorithm selection, schema resolution, and the
// Sink write-back for a single DiffTables call. It holds no state across
// runs; every field is derived fresh from the Options passed to DiffTables.
type DiffOrchestrator struct {
	opts Options
}

// TableRef identifies one side of a comparison: a Database plus the
// schema-qualified table within it.
type TableRef struct {
	DB     Database
	Schema string
	Table  string
}

// DiffTables is the package's single entry point: it resolves both
// tables' schemas, validates key compatibility, selects an algorithm,
// runs it (optionally under a wall-clock timeout and optionally writing
// to a Sink), and returns every DiffRecord found plus the run's stats.
func DiffTables(ctx context.Context, left, right TableRef, opts Options) ([]DiffRecord, Snapshot, error) {
	opts = opts.resolved()
	orch := DiffOrchestrator{opts: opts}
	return orch.run(ctx, left, right)
}

func (orch *DiffOrchestrator) run(ctx context.Context, left, right TableRef) ([]DiffRecord, Snapshot, error) {
	runID := uuid.New().String()
	stats := NewRunStats()

	if orch.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, orch.opts.Timeout)
		defer cancel()
	}

	leftSchema, err := left.DB.DescribeTable(ctx, left.Schema, left.Table)
	if err != nil {
		return nil, stats.Snapshot(), err
	}
	rightSchema, err := right.DB.DescribeTable(ctx, right.Schema, right.Table)
	if err != nil {
		return nil, stats.Snapshot(), err
	}
	// rightCanon renames every remapped column to its left-side canonical
	// name, so every step downstream (column resolution, key-compatibility
	// checking, TableSegment construction) can treat both sides as sharing
	// one column-name vocabulary; the actual backend name is recovered via
	// SegmentConfig.ColumnAliases when SQL is rendered.
	rightCanon := remapSchema(rightSchema, orch.opts.ColumnRemapping)

	if orch.opts.ChecksumDigitsCheck && left.DB.Dialect().ChecksumDigits() != right.DB.Dialect().ChecksumDigits() {
		return nil, stats.Snapshot(), &ValidationError{
			Reason: fmt.Sprintf("checksum digit width mismatch: left=%d right=%d",
				left.DB.Dialect().ChecksumDigits(), right.DB.Dialect().ChecksumDigits()),
		}
	}

	keyCols, valCols, err := orch.resolveColumns(leftSchema, rightCanon, stats)
	if err != nil {
		return nil, stats.Snapshot(), err
	}

	leftKeyDescs, rightKeyDescs := columnDescriptors(leftSchema, keyCols), columnDescriptors(rightCanon, keyCols)
	if err := validateKeyCompatibility(leftKeyDescs, rightKeyDescs); err != nil {
		return nil, stats.Snapshot(), err
	}

	leftFull := KeyBounds{} // unbounded: QueryKeyRange below seeds the real extremes
	leftSeg, err := NewTableSegment(left.DB, left.Schema, left.Table, keyCols, valCols, leftSchema, leftFull, orch.segmentConfig(nil))
	if err != nil {
		return nil, stats.Snapshot(), err
	}
	rightSeg, err := NewTableSegment(right.DB, right.Schema, right.Table, keyCols, valCols, rightCanon, leftFull, orch.segmentConfig(orch.opts.ColumnRemapping))
	if err != nil {
		return nil, stats.Snapshot(), err
	}

	leftSeg, rightSeg, err = orch.applySampling(ctx, leftSeg, rightSeg)
	if err != nil {
		return nil, stats.Snapshot(), err
	}

	algo := orch.selectAlgorithm(left, right)

	var records []DiffRecord
	switch algo {
	case AlgorithmJoinDiff:
		records, err = (JoinDiffer{}).Run(ctx, leftSeg, rightSeg, valCols, stats)
	default:
		hd := DefaultHashDiffer()
		hd.BisectionFactor = orch.opts.BisectionFactor
		hd.BisectionThreshold = orch.opts.BisectionThreshold
		hd.MaxConcurrency = orch.opts.MaxConcurrency
		leftBounded, rightBounded, seedErr := seedBounds(ctx, leftSeg, rightSeg)
		if seedErr != nil {
			return nil, stats.Snapshot(), seedErr
		}
		records, err = hd.Run(ctx, leftBounded, rightBounded, valCols, stats)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, stats.Snapshot(), &TimeoutError{Phase: "diff"}
		}
		return nil, stats.Snapshot(), err
	}

	snapshot := stats.Snapshot()
	if orch.opts.Sink != nil {
		if err := writeToSink(ctx, orch.opts.Sink, runID, left, right, orch.opts, records, snapshot); err != nil {
			stats.Warn(fmt.Sprintf("sink write failed: %v", err))
			snapshot = stats.Snapshot()
		}
	}
	return records, snapshot, nil
}

// writeToSink drives the Open/Write/Close sequence a Sink expects for one
// run. Kept as a standalone helper so a failure at any step still attempts
// Close, giving the sink a chance to record a partial/failed run rather
// than leaving it open indefinitely.
func writeToSink(ctx context.Context, s Sink, runID string, left, right TableRef, opts Options, records []DiffRecord, stats Snapshot) error {
	if err := s.Open(ctx, runID, left, right, opts); err != nil {
		return err
	}
	writeErr := s.Write(ctx, records)
	closeErr := s.Close(ctx, stats)
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// segmentConfig builds the SegmentConfig shared by both sides of a run from
// Options, substituting aliases for the segment that needs its columns
// dereferenced through Options.ColumnRemapping (nil for the left segment,
// Options.ColumnRemapping itself for the right).
func (orch *DiffOrchestrator) segmentConfig(aliases map[string]string) SegmentConfig {
	return SegmentConfig{
		UpdateColumn:       orch.opts.UpdateColumn,
		UpdateBounds:       orch.opts.UpdateBounds,
		WhereFilter:        orch.opts.Where,
		CaseInsensitive:    !*orch.opts.CaseSensitive,
		FloatTolerance:     orch.opts.FloatTolerance,
		TimestampPrecision: orch.opts.TimestampPrecision,
		JSONMode:           orch.opts.JSONComparisonMode,
		ColumnAliases:      aliases,
	}
}

// applySampling computes a SamplingPlanner clause for each of left/right
// (scoped by their own unbounded row count) and returns copies scoped to
// it. Returns left/right unchanged when Options.Sampling is nil.
func (orch *DiffOrchestrator) applySampling(ctx context.Context, left, right *TableSegment) (*TableSegment, *TableSegment, error) {
	if orch.opts.Sampling == nil {
		return left, right, nil
	}
	leftExpr, err := orch.opts.Sampling.SampledWhere(ctx, left)
	if err != nil {
		return nil, nil, err
	}
	rightExpr, err := orch.opts.Sampling.SampledWhere(ctx, right)
	if err != nil {
		return nil, nil, err
	}
	return left.WithSamplingExpr(leftExpr), right.WithSamplingExpr(rightExpr), nil
}

// remapSchema returns a copy of schema with every column named as a value
// in remap (a canonical-name -> actual-name map, matching
// Options.ColumnRemapping's shape) renamed to its canonical key, so callers
// can treat both sides' schemas as sharing one column-name vocabulary.
// Returns schema unchanged when remap is empty.
func remapSchema(schema *Schema, remap map[string]string) *Schema {
	if len(remap) == 0 {
		return schema
	}
	actualToCanon := make(map[string]string, len(remap))
	for canon, actual := range remap {
		actualToCanon[actual] = canon
	}
	names := schema.Ordered()
	cols := make([]ColumnDescriptor, 0, len(names))
	for _, name := range names {
		cd, _ := schema.Column(name)
		if canon, ok := actualToCanon[name]; ok {
			cd.Name = canon
		}
		cols = append(cols, cd)
	}
	return NewSchema(cols)
}

// seedBounds queries each side's actual min/max key and returns copies of
// leftSeg/rightSeg scoped to the union of both, the real-data-backed
// starting bounds HashDiffer's first bisection round needs instead of
// type-range extremes.
func seedBounds(ctx context.Context, leftSeg, rightSeg *TableSegment) (*TableSegment, *TableSegment, error) {
	leftRange, err := leftSeg.QueryKeyRange(ctx)
	if err != nil {
		return nil, nil, err
	}
	rightRange, err := rightSeg.QueryKeyRange(ctx)
	if err != nil {
		return nil, nil, err
	}
	union := unionBounds(leftRange, rightRange)
	return leftSeg.WithSchema(union), rightSeg.WithSchema(union), nil
}

// selectAlgorithm implements AlgorithmAuto: JoinDiff when both sides share
// one Database and that backend can enforce key uniqueness, HashDiff
// otherwise.
func (orch *DiffOrchestrator) selectAlgorithm(left, right TableRef) Algorithm {
	if orch.opts.Algorithm != AlgorithmAuto {
		return orch.opts.Algorithm
	}
	if left.DB == right.DB && left.DB.Dialect().SupportsPrimaryKeyUniqueness() {
		return AlgorithmJoinDiff
	}
	return AlgorithmHashDiff
}

// resolveColumns splits both sides' resolved schemas into key and value
// column name lists, honoring Options.KeyColumns/ValColumns when supplied
// and otherwise defaulting ValColumns to every supported column not used
// as a key. Columns with an unsupported semantic class are either
// excluded with a warning or, under StrictTypeChecking, rejected outright.
func (orch *DiffOrchestrator) resolveColumns(left, right *Schema, stats *RunStats) (keyCols, valCols []string, err error) {
	keyCols = orch.opts.KeyColumns
	if len(keyCols) == 0 {
		return nil, nil, &ValidationError{Reason: "Options.KeyColumns must name at least one column"}
	}

	valCols = orch.opts.ValColumns
	if len(valCols) == 0 {
		seen := make(map[string]bool, len(keyCols))
		for _, k := range keyCols {
			seen[k] = true
		}
		for _, name := range left.Ordered() {
			if seen[name] {
				continue
			}
			lcd, _ := left.Column(name)
			rcd, rok := right.Column(name)
			if !rok {
				stats.Warn(fmt.Sprintf("column %q present on left only; excluded from comparison", name))
				continue
			}
			if !lcd.Supported() || !rcd.Supported() {
				msg := fmt.Sprintf("column %q has an unsupported type on one or both sides (%s / %s); excluded", name, lcd.Class, rcd.Class)
				if orch.opts.StrictTypeChecking {
					return nil, nil, &SchemaError{Column: name, Raw: lcd.RawType, Reason: msg}
				}
				stats.Warn(msg)
				continue
			}
			valCols = append(valCols, name)
		}
	}
	return keyCols, valCols, nil
}

func columnDescriptors(schema *Schema, names []string) []ColumnDescriptor {
	out := make([]ColumnDescriptor, len(names))
	for i, n := range names {
		cd, _ := schema.Column(n)
		out[i] = cd
	}
	return out
}
