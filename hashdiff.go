package tablediff

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// HashDiffer implements the recursive checksum-bisection algorithm: compare
// whole-segment checksums across both sides, and only recurse into (or
// materialize) the sub-ranges whose checksums disagree. Modeled on
// applier.Worker's channel-driven task/result pool (internal/applier),
// generalized from "apply one Target" to "resolve one TableSegment pair".
type HashDiffer struct {
	BisectionFactor    int   // cells per bisection round; see keyspace.go ChooseCheckpoints
	BisectionThreshold int64 // once both sides' segment Count is below this, fetch rows and merge-compare instead of bisecting again
	MaxConcurrency     int
}

// DefaultHashDiffer returns a HashDiffer with the reference parameters used
// when callers do not override them via Options.
func DefaultHashDiffer() HashDiffer {
	return HashDiffer{BisectionFactor: 32, BisectionThreshold: 16384, MaxConcurrency: 1}
}

// segmentPair is one unit of bisection work: the left and right
// TableSegments covering the same key bounds.
type segmentPair struct {
	left, right *TableSegment
}

// bisectionOutcome is the tagged result a worker produces for one
// segmentPair: either a settled batch of DiffRecords, or more work to
// requeue (children produced by a further bisection round).
type bisectionOutcome struct {
	records  []DiffRecord
	children []segmentPair
	err      error
}

// Run compares left and right (already scoped to matching bounds) and
// returns every DiffRecord found, recursing via a bounded worker pool.
// stats is updated as segments are visited and records are produced.
func (hd HashDiffer) Run(ctx context.Context, left, right *TableSegment, valColumns []string, stats *RunStats) ([]DiffRecord, error) {
	if hd.MaxConcurrency < 1 {
		hd.MaxConcurrency = 1
	}
	if hd.BisectionFactor < 2 {
		hd.BisectionFactor = 2
	}

	tasks := make(chan segmentPair, hd.MaxConcurrency*4)
	results := make(chan bisectionOutcome, hd.MaxConcurrency*4)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < hd.MaxConcurrency; i++ {
		g.Go(func() error {
			return hd.worker(gctx, tasks, results, valColumns, stats)
		})
	}

	// Feeder and collector run outside the errgroup so the pool can be
	// drained incrementally: bisection fans a single pair out into many
	// children, so the task channel is refilled as outcomes arrive rather
	// than all work being known up front.
	var allRecords []DiffRecord
	var pending int
	done := make(chan error, 1)

	go func() {
		defer close(tasks)
		// queue holds pairs not yet accepted by tasks; they are handed over
		// in the same select that drains results, so a round producing more
		// children than tasks can buffer never leaves a worker blocked on
		// its results send.
		queue := []segmentPair{{left: left, right: right}}
		pending = 1
		for pending > 0 {
			var next chan<- segmentPair
			var head segmentPair
			if len(queue) > 0 {
				next, head = tasks, queue[0]
			}
			select {
			case <-gctx.Done():
				done <- gctx.Err()
				return
			case next <- head:
				queue = queue[1:]
			case outcome := <-results:
				pending--
				if outcome.err != nil {
					done <- outcome.err
					return
				}
				allRecords = append(allRecords, outcome.records...)
				pending += len(outcome.children)
				queue = append(queue, outcome.children...)
			}
		}
		done <- nil
	}()

	feedErr := <-done
	waitErr := g.Wait() // workers exit once tasks is closed and drained
	if feedErr != nil {
		if ctx.Err() != nil {
			return nil, &CancelledError{}
		}
		if waitErr != nil {
			return nil, waitErr
		}
		return nil, feedErr
	}
	return allRecords, nil
}

func (hd HashDiffer) worker(ctx context.Context, tasks <-chan segmentPair, results chan<- bisectionOutcome, valColumns []string, stats *RunStats) error {
	for pair := range tasks {
		stats.IncSegmentsVisited()
		outcome := hd.resolvePair(ctx, pair, valColumns, stats)
		select {
		case results <- outcome:
		case <-ctx.Done():
			return ctx.Err()
		}
		if outcome.err != nil {
			return outcome.err
		}
	}
	return nil
}

// resolvePair compares one segmentPair's checksums and decides whether to
// settle it (no diff, or small enough to fetch-and-merge) or bisect it
// further.
func (hd HashDiffer) resolvePair(ctx context.Context, pair segmentPair, valColumns []string, stats *RunStats) bisectionOutcome {
	leftCount, leftSum, err := pair.left.CountAndChecksum(ctx)
	if err != nil {
		return bisectionOutcome{err: err}
	}
	rightCount, rightSum, err := pair.right.CountAndChecksum(ctx)
	if err != nil {
		return bisectionOutcome{err: err}
	}
	stats.AddRowsCompared(leftCount + rightCount)

	if leftCount == rightCount && leftSum == rightSum {
		return bisectionOutcome{}
	}

	if leftCount <= hd.BisectionThreshold && rightCount <= hd.BisectionThreshold {
		records, err := hd.mergeCompare(ctx, pair, valColumns, stats)
		if err != nil {
			return bisectionOutcome{err: err}
		}
		for _, r := range records {
			stats.RecordDiff(r.Kind)
		}
		return bisectionOutcome{records: records}
	}

	dc, degenerate, err := hd.chooseMesh(ctx, pair, stats)
	if err != nil {
		return bisectionOutcome{err: err}
	}
	if degenerate {
		// Bisection cannot subdivide further (e.g. both sides already
		// differ on a single remaining key value per dimension); fall
		// through to a merge-compare instead of looping forever.
		records, err := hd.mergeCompare(ctx, pair, valColumns, stats)
		if err != nil {
			return bisectionOutcome{err: err}
		}
		for _, r := range records {
			stats.RecordDiff(r.Kind)
		}
		return bisectionOutcome{records: records}
	}

	leftChildren := pair.left.SegmentByCheckpoints(dc)
	rightChildren := pair.right.SegmentByCheckpoints(dc)
	children := make([]segmentPair, len(leftChildren))
	for i := range leftChildren {
		children[i] = segmentPair{left: leftChildren[i], right: rightChildren[i]}
	}
	return bisectionOutcome{children: children}
}

// chooseMesh computes the bisection mesh for pair over the union of both
// sides' observed key ranges, per spec.md section 4.3. degenerate is true
// when the mesh would collapse to a single cell.
func (hd HashDiffer) chooseMesh(ctx context.Context, pair segmentPair, stats *RunStats) (dc DimensionCheckpoints, degenerate bool, err error) {
	leftRange, err := pair.left.QueryKeyRange(ctx)
	if err != nil {
		return nil, false, err
	}
	rightRange, err := pair.right.QueryKeyRange(ctx)
	if err != nil {
		return nil, false, err
	}
	bounds := unionBounds(leftRange, rightRange)

	dc, err = ChooseCheckpoints(bounds, hd.BisectionFactor)
	if err != nil {
		return nil, false, err
	}
	stats.IncBisectionRounds()
	return dc, dc.Degenerate(), nil
}

// unionBounds returns the smallest KeyBounds covering both a and b,
// component-wise.
func unionBounds(a, b KeyBounds) KeyBounds {
	dims := len(a.Min)
	min := make(Key, dims)
	max := make(Key, dims)
	for i := 0; i < dims; i++ {
		if a.Min[i].Compare(b.Min[i]) <= 0 {
			min[i] = a.Min[i]
		} else {
			min[i] = b.Min[i]
		}
		if a.Max[i].Compare(b.Max[i]) >= 0 {
			max[i] = a.Max[i]
		} else {
			max[i] = b.Max[i]
		}
	}
	return KeyBounds{Min: min, Max: max}
}

// mergeCompare fetches both segments' rows in full and pairs them up
// in-process by key (a map of the right side's rows), the leaf-level fallback once a segment
// pair is small enough that another checksum round trip costs more than
// just materializing the rows.
func (hd HashDiffer) mergeCompare(ctx context.Context, pair segmentPair, valColumns []string, stats *RunStats) ([]DiffRecord, error) {
	leftRows, err := pair.left.GetValues(ctx)
	if err != nil {
		return nil, err
	}
	rightRows, err := pair.right.GetValues(ctx)
	if err != nil {
		return nil, err
	}

	rightByKey := rowsByKey(pair.right, rightRows)
	seen := make(map[string]bool, len(rightRows))

	var records []DiffRecord
	for _, lrow := range leftRows {
		k := pair.left.Key(lrow)
		ks := k.String()
		rrow, ok := rightByKey[ks]
		if !ok {
			records = append(records, DiffRecord{Kind: DiffMissingOnRight, Key: k, LeftValues: lrow.Values})
			continue
		}
		seen[ks] = true
		changed := compareValues(valColumns, pair.left.resolved, pair.left.cfg.FloatTolerance, lrow, rrow)
		recordColumnSamples(stats, valColumns, lrow, rrow, changed)
		if len(changed) > 0 {
			records = append(records, DiffRecord{Kind: DiffChanged, Key: k, LeftValues: lrow.Values, RightValues: rrow.Values, ChangedCols: changed})
		}
	}
	for _, rrow := range rightRows {
		k := pair.right.Key(rrow)
		if !seen[k.String()] {
			records = append(records, DiffRecord{Kind: DiffMissingOnLeft, Key: k, RightValues: rrow.Values})
		}
	}
	return records, nil
}

// recordColumnSamples tallies the per-column ColumnStats by-product for one
// matched (left, right) row pair, using changed (already computed by
// compareValues) to decide match/mismatch per column without a second
// value comparison.
func recordColumnSamples(stats *RunStats, valColumns []string, left, right Row, changed []string) {
	changedSet := make(map[string]bool, len(changed))
	for _, c := range changed {
		changedSet[c] = true
	}
	for _, col := range valColumns {
		stats.RecordColumnSample(col, left.Values[col], right.Values[col], !changedSet[col])
	}
}
