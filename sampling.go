package tablediff

import (
	"context"
	"fmt"
	"math"
)

// SamplingMode selects how SamplingPlanner picks rows within a segment.
type SamplingMode int

// Constants enumerating the supported sampling modes.
const (
	SamplingModeProportional SamplingMode = iota // percentage-of-population sample, via Dialect.SamplingClause System/Bernoulli
	SamplingModeDeterministic                     // fixed modulus over the key expression, reproducible across runs
)

// zTable maps a confidence level to its two-tailed standard normal
// critical value, the handful of levels any caller is realistically
// expected to request. Grounded on the same finite-population-correction
// formula used by data_diff's statistical sampling in
// original_source/data_diff/sampling.py, re-expressed with Go's stdlib
// math functions instead of scipy.stats.
var zTable = map[float64]float64{
	0.90: 1.645,
	0.95: 1.960,
	0.99: 2.576,
	0.999: 3.291,
}

// SamplingPlanner computes a statistically sound sample size and renders
// the corresponding Dialect.SamplingClause fragment, for callers who want
// to bound a diff's cost with a known confidence/margin tradeoff rather
// than comparing every row.
type SamplingPlanner struct {
	Confidence float64 // e.g. 0.95; must be a key of zTable
	Margin     float64 // acceptable margin of error, e.g. 0.01 for +/-1%
	Mode       SamplingMode
}

// SampleSize returns the finite-population-corrected sample size needed to
// estimate a proportion within Margin at Confidence, given a population of
// populationSize rows. Uses the standard formula
//
//	n0 = z^2 * p(1-p) / e^2
//	n  = n0 / (1 + (n0-1)/N)
//
// with the conservative p=0.5 (maximal variance) assumption data_diff's
// sampling module also uses when no prior estimate of the diff rate is
// available.
func (sp SamplingPlanner) SampleSize(populationSize int64) (int64, error) {
	if populationSize <= 0 {
		return 0, nil
	}
	z, ok := zTable[sp.Confidence]
	if !ok {
		return 0, &ValidationError{Reason: fmt.Sprintf("unsupported confidence level %v; supported: 0.90, 0.95, 0.99, 0.999", sp.Confidence)}
	}
	if sp.Margin <= 0 || sp.Margin >= 1 {
		return 0, &ValidationError{Reason: "sampling margin must be in (0, 1)"}
	}

	n0 := (z * z * 0.25) / (sp.Margin * sp.Margin)
	n := n0 / (1 + (n0-1)/float64(populationSize))
	size := int64(math.Ceil(n))
	if size > populationSize {
		size = populationSize
	}
	if size < 1 {
		size = 1
	}
	return size, nil
}

// ConfidenceInterval returns the margin of error achieved by a sample of
// size sampleSize drawn from a population of populationSize, the inverse
// of SampleSize -- used to report what precision an already-completed
// sampled run actually achieved.
func (sp SamplingPlanner) ConfidenceInterval(populationSize, sampleSize int64) (float64, error) {
	if sampleSize <= 0 || populationSize <= 0 {
		return 0, &ValidationError{Reason: "population and sample size must be positive"}
	}
	z, ok := zTable[sp.Confidence]
	if !ok {
		return 0, &ValidationError{Reason: fmt.Sprintf("unsupported confidence level %v", sp.Confidence)}
	}
	fpc := math.Sqrt(float64(populationSize-sampleSize) / float64(populationSize-1))
	if populationSize == 1 {
		fpc = 0
	}
	se := math.Sqrt(0.25/float64(sampleSize)) * fpc
	return z * se, nil
}

// SampledWhere computes a sampling predicate for ts given its current
// unbounded row count, or "" if sampling would not shrink the segment.
// Callers scope a segment to it via TableSegment.WithSamplingExpr, which
// ANDs the resulting fragment into whereClause alongside the segment's key
// bounds, update-column bounds, and opaque filter.
func (sp SamplingPlanner) SampledWhere(ctx context.Context, ts *TableSegment) (string, error) {
	count, err := ts.Count(ctx)
	if err != nil {
		return "", err
	}
	size, err := sp.SampleSize(count)
	if err != nil {
		return "", err
	}
	if size >= count {
		return "", nil // sampling would not shrink the segment; compare it whole
	}
	d := ts.db.Dialect()
	keyExpr := d.Quote(ts.sourceColumn(ts.keyColumns[0]))
	switch sp.Mode {
	case SamplingModeDeterministic:
		modulus := count / size
		if modulus < 1 {
			modulus = 1
		}
		return d.SamplingClause(SamplingDeterministic, float64(modulus), keyExpr), nil
	default:
		pct := 100.0 * float64(size) / float64(count)
		return d.SamplingClause(SamplingSystem, pct, keyExpr), nil
	}
}
