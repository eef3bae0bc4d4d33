package tablediff

import "fmt"

// Backend identifies an upstream DBMS a Dialect renders SQL for. Modeled on
// tengo.Vendor, generalized from a MySQL-family-only enumeration to the full
// set of backends named in spec.md section 1.
type Backend uint16

// Constants representing supported backend families.
const (
	BackendUnknown Backend = iota
	BackendMySQL
	BackendPostgres
	BackendSQLite
	BackendSnowflake
	BackendBigQuery
	BackendClickHouse
	BackendOracle
	BackendTrino
)

func (b Backend) String() string {
	switch b {
	case BackendMySQL:
		return "mysql"
	case BackendPostgres:
		return "postgres"
	case BackendSQLite:
		return "sqlite"
	case BackendSnowflake:
		return "snowflake"
	case BackendBigQuery:
		return "bigquery"
	case BackendClickHouse:
		return "clickhouse"
	case BackendOracle:
		return "oracle"
	case BackendTrino:
		return "trino"
	default:
		return "unknown"
	}
}

// ThreadingModel describes how a Database built on a given Dialect must be
// used concurrently. Threaded backends accept concurrent queries across
// multiple connections from their pool. SingleConnection backends (e.g. the
// sqlite reference backend) must serialize all query traffic through one
// logical connection, exposing a queued interface internally.
type ThreadingModel int

// Constants for the two supported threading models.
const (
	Threaded ThreadingModel = iota
	SingleConnection
)

// SamplingMethod identifies a supported sampling strategy.
type SamplingMethod int

// Constants enumerating supported sampling methods.
const (
	SamplingNone SamplingMethod = iota
	SamplingSystem
	SamplingBernoulli
	SamplingDeterministic
)

// Dialect is a polymorphic, side-effect-free SQL rendering capability: one
// implementation per supported backend family. Dialects never perform I/O;
// all operations here are pure string-rendering or pure parsing functions,
// per spec.md section 4.1.
type Dialect interface {
	// Backend identifies which DBMS family this Dialect renders for.
	Backend() Backend

	// Quote escapes identifier using the backend's quoting rules.
	Quote(identifier string) string

	// ParseType maps a raw backend column type string (as returned by
	// DescribeTable) to a ColumnDescriptor. Types this Dialect cannot map
	// are returned with Class == SemanticClassUnknown, never an error --
	// exclusion policy is the Orchestrator's responsibility.
	ParseType(name, rawType string) ColumnDescriptor

	// NormalizeNumber renders expr as a canonical fixed-scale decimal
	// string at the given scale (sign-explicit, zero-padded) so that
	// equal numeric values render identically across dialects.
	NormalizeNumber(expr string, scale uint8) string

	// NormalizeTimestamp renders expr as a canonical
	// "YYYY-MM-DD HH:MM:SS.ffffff"-shaped string at the given fractional
	// second precision. Callers are responsible for ensuring values are
	// pre-converted to UTC when the backend has no timezone support.
	NormalizeTimestamp(expr string, precision uint8, withTZ bool) string

	// NormalizeBoolean renders expr as a "0"/"1" string.
	NormalizeBoolean(expr string) string

	// NormalizeText renders expr as a string, optionally case-folded to
	// lower-case when caseSensitive is false.
	NormalizeText(expr string, caseSensitive bool) string

	// NormalizeUUID renders expr as a canonical lower-case, unhyphenated
	// hex string.
	NormalizeUUID(expr string) string

	// NormalizeJSON renders expr as a canonical string form appropriate
	// for the requested comparison mode.
	NormalizeJSON(expr string, mode JSONComparisonMode) string

	// Concat null-safely concatenates the already-normalized exprs into a
	// single fingerprint input expression.
	Concat(exprs []string) string

	// MD5AsInt returns an expression computing the low ChecksumDigits()
	// hex digits of md5(expr), interpreted as a nonnegative integer.
	MD5AsInt(expr string) string

	// MD5AsHex returns an expression computing the low ChecksumDigits()
	// hex digits of md5(expr) as a hex string.
	MD5AsHex(expr string) string

	// SumChecksum returns an additive, order-independent aggregate
	// expression over the per-row MD5AsInt values produced by expr.
	SumChecksum(expr string) string

	// SamplingClause renders a sampling fragment for the given method and
	// parameter (a percentage for System/Bernoulli, a modulus for
	// Deterministic keyed on keyExpr).
	SamplingClause(method SamplingMethod, parameter float64, keyExpr string) string

	// ChecksumDigits is the number of low hex digits of an MD5 hash this
	// Dialect truncates to when computing checksums. DiffOrchestrator
	// compares both sides' values at run start only when
	// Options.ChecksumDigitsCheck is set, failing with a ValidationError on
	// a mismatch; with it unset, no comparison is made.
	ChecksumDigits() int

	// SupportsPrimaryKeyUniqueness reports whether this backend can
	// enforce/verify a unique constraint on arbitrary column sets, a
	// precondition JoinDiffer requires on both sides.
	SupportsPrimaryKeyUniqueness() bool

	// SupportsAlphanumericKeys reports whether this backend's key-space
	// arithmetic (bisection) is meaningful for fixed-width string keys,
	// as opposed to integer/decimal keys only.
	SupportsAlphanumericKeys() bool

	// ThreadingModel reports how a Database built on this Dialect must
	// be used concurrently.
	ThreadingModel() ThreadingModel
}

// JSONComparisonMode selects how JSON-typed columns are normalized for
// comparison: byte-for-byte string equality, or structural (key-order and
// whitespace insensitive) equality.
type JSONComparisonMode int

// Constants for the two supported JSON comparison modes.
const (
	JSONComparisonStrict JSONComparisonMode = iota
	JSONComparisonStructural
)

var dialectRegistry = map[Backend]Dialect{}

// RegisterDialect makes d available via DialectFor(d.Backend()). Dialect
// implementations in this package call this from an init() function; callers
// embedding additional backends may do the same.
func RegisterDialect(d Dialect) {
	dialectRegistry[d.Backend()] = d
}

// DialectFor returns the registered Dialect for backend, or an error if
// none is registered.
func DialectFor(backend Backend) (Dialect, error) {
	d, ok := dialectRegistry[backend]
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("no dialect registered for backend %q", backend)}
	}
	return d, nil
}

// baseDialect centralizes the per-backend facts every SQL dialect in this
// package reports the same way (backend identity, checksum digit width,
// threading model), so each concrete Dialect only needs to implement what
// is actually backend-specific, identifier quoting included. This mirrors how tengo.Flavor
// centralizes vendor/version comparisons rather than duplicating them
// per call site.
type baseDialect struct {
	backend        Backend
	checksumDigits int
	threadingModel ThreadingModel
}

func (b baseDialect) Backend() Backend             { return b.backend }
func (b baseDialect) ChecksumDigits() int           { return b.checksumDigits }
func (b baseDialect) ThreadingModel() ThreadingModel { return b.threadingModel }
