package tablediff

import "time"

// Algorithm selects which diff strategy DiffOrchestrator uses for a run.
type Algorithm int

// Constants enumerating the supported diff algorithms.
const (
	// AlgorithmAuto picks JoinDiff when both segments share a Database and
	// that backend can enforce key uniqueness, and HashDiff otherwise.
	AlgorithmAuto Algorithm = iota
	AlgorithmHashDiff
	AlgorithmJoinDiff
)

// Options configures one DiffTables run. Field names and defaults mirror
// spec.md section 6's parameter list, generalized into a Go struct with
// zero-value-safe defaults applied by DiffTables.
type Options struct {
	Algorithm Algorithm

	KeyColumns []string
	ValColumns []string // empty means "every supported column not in KeyColumns"

	BisectionFactor    int
	BisectionThreshold int64
	MaxConcurrency     int // spec.md section 6's "threads"

	UpdateColumn string   // "" disables update-column bounds
	UpdateBounds Bounds1D // ignored when UpdateColumn is ""
	Where        string   // opaque filter appended as-is to every TableSegment query's WHERE; JoinDiffer's join query does not apply it

	// CaseSensitive overrides every Text column's own reported
	// case-sensitivity for this run. nil defaults to true (spec.md
	// section 6's case_sensitive default); set to a pointer to false to
	// fold case on both sides before hashing or comparing.
	CaseSensitive *bool

	// FloatTolerance is honored only by the leaf comparator, for
	// Float-class columns: abs(left-right) <= FloatTolerance is treated
	// as equal. 0 (the default) requires an exact match.
	FloatTolerance float64

	// TimestampPrecision overrides every Timestamp column's own reported
	// fractional-second precision for this run. nil uses each column's
	// own descriptor.
	TimestampPrecision *uint8

	JSONComparisonMode JSONComparisonMode

	// ColumnRemapping maps a left-side column name to the right-side
	// column name it should be compared against, for tables whose
	// columns are semantically aligned but differently named.
	ColumnRemapping map[string]string

	Sampling *SamplingPlanner // nil disables sampling; every row is compared

	StrictTypeChecking bool // if true, an unsupported column type is a SchemaError instead of a warning+exclude
	ChecksumDigitsCheck bool // if true, mismatched Dialect.ChecksumDigits() between sides fails fast

	Timeout time.Duration // 0 means no wall-clock limit

	Sink Sink // nil disables durable materialization of results
}

// resolved applies defaults to a zero-value-populated Options, returning a
// copy safe to use directly by DiffTables. Defaults mirror spec.md section
// 6: bisection_factor 32, bisection_threshold 16384, threads 1,
// case_sensitive true.
func (o Options) resolved() Options {
	if o.BisectionFactor == 0 {
		o.BisectionFactor = 32
	}
	if o.BisectionThreshold == 0 {
		o.BisectionThreshold = 16384
	}
	if o.MaxConcurrency == 0 {
		o.MaxConcurrency = 1
	}
	if o.CaseSensitive == nil {
		caseSensitive := true
		o.CaseSensitive = &caseSensitive
	}
	return o
}
