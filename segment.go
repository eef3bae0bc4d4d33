package tablediff

import (
	"context"
	"fmt"
	"strings"
)

// TableSegment is an immutable value object describing one half-open
// key-range slice of one table in one Database: the comparable unit both
// HashDiffer and JoinDiffer recurse/operate over. Modeled on tengo.Table as
// "the thing queries are built against", but unlike a Table, a TableSegment
// never mutates and never issues DDL -- only the read-only query methods
// below.
type TableSegment struct {
	db           Database
	schemaName   string
	tableName    string
	keyColumns   []string
	valColumns   []string
	bounds       KeyBounds
	resolved     *Schema
	cfg          SegmentConfig
	samplingExpr string // raw SQL fragment ANDed into whereClause; set via WithSamplingExpr
}

// Bounds1D is an optional, half-open [Min, Max) bound on a single
// non-key column -- the update-column bounds a caller supplies alongside
// an update_column name per spec.md section 6, mirroring KeyBounds'
// inclusive-lo/exclusive-hi convention but allowing either side to be
// nil when the caller only wants a floor or a ceiling.
type Bounds1D struct {
	Min *KeyComponent
	Max *KeyComponent
}

// SegmentConfig carries the run-level comparison parameters that apply to
// every query a TableSegment issues, as opposed to the per-call key range
// carried in bounds. Two segments being diffed against each other share
// one logical SegmentConfig (built once by DiffOrchestrator), except for
// ColumnAliases, which is necessarily per-side.
type SegmentConfig struct {
	UpdateColumn string
	UpdateBounds Bounds1D

	// WhereFilter is an opaque, caller-supplied raw SQL fragment appended
	// to the segment WHERE as-is. Callers are trusted to have written
	// SQL valid for both sides' dialects; TableSegment never parses it.
	WhereFilter string

	// CaseInsensitive forces every Text column's comparison to fold case
	// regardless of the column's own reported CaseSensitive, satisfying
	// the run-level case_sensitive=false override. The zero value
	// (false) leaves each column's own case sensitivity in effect, which
	// is the spec's case_sensitive=true default.
	CaseInsensitive bool

	// FloatTolerance is honored only by the leaf comparator (compareValues,
	// decodeJoinRow), never baked into the SQL normalization expression,
	// since a checksum has no notion of "close enough".
	FloatTolerance float64

	// TimestampPrecision overrides every Timestamp column's own reported
	// fractional-second precision when non-nil.
	TimestampPrecision *uint8

	JSONMode JSONComparisonMode

	// ColumnAliases maps a canonical column name (the name shared by both
	// sides' keyColumns/valColumns) to the actual backend column name
	// this particular segment must reference in SQL. A nil/empty map
	// means every column's actual name equals its canonical name.
	ColumnAliases map[string]string
}

// NewTableSegment builds the unbounded (whole-table) TableSegment for
// schema.table, keyed by keyColumns (in composite-key order) and comparing
// valColumns (every other column participating in the diff). resolved must
// already reflect both keyColumns and valColumns as Supported() columns,
// indexed by their canonical name (see SegmentConfig.ColumnAliases);
// callers build it via Database.DescribeTable plus whatever exclusion
// policy the orchestrator applies.
func NewTableSegment(db Database, schemaName, tableName string, keyColumns, valColumns []string, resolved *Schema, bounds KeyBounds, cfg SegmentConfig) (*TableSegment, error) {
	if len(keyColumns) == 0 {
		return nil, &ValidationError{Reason: "table segment requires at least one key column"}
	}
	for _, kc := range keyColumns {
		if !resolved.Has(kc) {
			return nil, &ValidationError{Reason: fmt.Sprintf("key column %q not present in resolved schema", kc)}
		}
	}
	return &TableSegment{
		db:         db,
		schemaName: schemaName,
		tableName:  tableName,
		keyColumns: keyColumns,
		valColumns: valColumns,
		bounds:     bounds,
		resolved:   resolved,
		cfg:        cfg,
	}, nil
}

// sourceColumn returns the actual backend column name canonical should be
// referenced as in SQL issued against this segment.
func (ts *TableSegment) sourceColumn(canonical string) string {
	if actual, ok := ts.cfg.ColumnAliases[canonical]; ok {
		return actual
	}
	return canonical
}

// WithSamplingExpr returns a copy of ts with samplingExpr ANDed into its
// WHERE clause, the form DiffOrchestrator applies once SamplingPlanner has
// computed the clause for ts's unbounded row count.
func (ts *TableSegment) WithSamplingExpr(expr string) *TableSegment {
	cp := *ts
	cp.samplingExpr = expr
	return &cp
}

// WithSchema returns a copy of ts bound to the given bounds instead of its
// current ones, the constructor segment_by_checkpoints and bisection use to
// build child segments without re-introspecting the table.
func (ts *TableSegment) WithSchema(bounds KeyBounds) *TableSegment {
	cp := *ts
	cp.bounds = bounds
	return &cp
}

// Bounds returns the half-open key range this segment covers.
func (ts *TableSegment) Bounds() KeyBounds { return ts.bounds }

// KeyColumns returns the key column names in composite-key order.
func (ts *TableSegment) KeyColumns() []string { return append([]string(nil), ts.keyColumns...) }

// whereExpr is the small expression tree used to assemble a segment's key
// range predicate. Kept as an interface rather than raw string
// concatenation so segment_by_checkpoints can compose sub-predicates
// without re-parenthesizing by hand at every call site.
type whereExpr interface {
	render(d Dialect) string
}

type rawExpr string

func (r rawExpr) render(Dialect) string { return string(r) }

type cmpExpr struct {
	col string
	op  string
	val string // already a SQL literal or bind placeholder
}

func (c cmpExpr) render(d Dialect) string {
	return fmt.Sprintf("%s %s %s", d.Quote(c.col), c.op, c.val)
}

type andExpr []whereExpr

func (a andExpr) render(d Dialect) string {
	if len(a) == 0 {
		return "1=1"
	}
	parts := make([]string, len(a))
	for i, e := range a {
		parts[i] = "(" + e.render(d) + ")"
	}
	return strings.Join(parts, " AND ")
}

// boundsExpr renders ts.bounds as a WHERE clause: `lo <= col AND col < hi`
// per key dimension, conjoined, using SQL literals for each KeyComponent
// (parameterized binds are not used here since bound values are internally
// generated by bisection, never attacker-controlled user input).
func (ts *TableSegment) boundsExpr() whereExpr {
	var clauses andExpr
	for i, col := range ts.keyColumns {
		if i < len(ts.bounds.Min) {
			clauses = append(clauses, cmpExpr{col: ts.sourceColumn(col), op: ">=", val: keyLiteral(ts.bounds.Min[i])})
		}
		if i < len(ts.bounds.Max) {
			clauses = append(clauses, cmpExpr{col: ts.sourceColumn(col), op: "<", val: keyLiteral(ts.bounds.Max[i])})
		}
	}
	return clauses
}

// updateBoundsExpr renders ts.cfg.UpdateBounds as a WHERE clause over
// ts.cfg.UpdateColumn, the same half-open convention as boundsExpr. Returns
// an unconditionally-true clause when no update column is configured.
func (ts *TableSegment) updateBoundsExpr() whereExpr {
	if ts.cfg.UpdateColumn == "" {
		return rawExpr("1=1")
	}
	var clauses andExpr
	col := ts.sourceColumn(ts.cfg.UpdateColumn)
	if ts.cfg.UpdateBounds.Min != nil {
		clauses = append(clauses, cmpExpr{col: col, op: ">=", val: keyLiteral(*ts.cfg.UpdateBounds.Min)})
	}
	if ts.cfg.UpdateBounds.Max != nil {
		clauses = append(clauses, cmpExpr{col: col, op: "<", val: keyLiteral(*ts.cfg.UpdateBounds.Max)})
	}
	if len(clauses) == 0 {
		return rawExpr("1=1")
	}
	return clauses
}

// whereClause renders the full WHERE a segment query uses: the conjunction
// of key bounds, update-column bounds, the opaque filter, and any sampling
// predicate, per spec.md section 4.3.
func (ts *TableSegment) whereClause() whereExpr {
	clauses := andExpr{ts.boundsExpr(), ts.updateBoundsExpr()}
	if ts.cfg.WhereFilter != "" {
		clauses = append(clauses, rawExpr(ts.cfg.WhereFilter))
	}
	if ts.samplingExpr != "" {
		clauses = append(clauses, rawExpr(ts.samplingExpr))
	}
	return clauses
}

func keyLiteral(kc KeyComponent) string {
	switch kc.Domain {
	case KeyDomainInteger:
		return fmt.Sprintf("%d", kc.I)
	case KeyDomainDecimal:
		return kc.D.String()
	default:
		return sqlLiteral(kc.S)
	}
}

func (ts *TableSegment) qualifiedTable(d Dialect) string {
	return d.Quote(ts.schemaName) + "." + d.Quote(ts.tableName)
}

// QueryKeyRange returns the range of keys present in the segment's current
// bounds, used to seed bisection with real data-backed checkpoints rather
// than assumed type-range extremes. Min is the smallest key present; since
// KeyBounds.Max is exclusive, for integer and decimal key columns Max is one
// unit (at the column's scale) past the largest key present.
func (ts *TableSegment) QueryKeyRange(ctx context.Context) (KeyBounds, error) {
	d := ts.db.Dialect()
	selectCols := make([]string, 0, len(ts.keyColumns)*2)
	for _, kc := range ts.keyColumns {
		selectCols = append(selectCols, fmt.Sprintf("MIN(%s) AS min_%s", d.Quote(ts.sourceColumn(kc)), kc))
		selectCols = append(selectCols, fmt.Sprintf("MAX(%s) AS max_%s", d.Quote(ts.sourceColumn(kc)), kc))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(selectCols, ", "), ts.qualifiedTable(d), ts.whereClause().render(d))

	rows, err := ts.db.Query(ctx, query)
	if err != nil {
		return KeyBounds{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		return KeyBounds{}, &InternalError{Token: "segment-keyrange-empty", Detail: "min/max aggregate query returned no row"}
	}
	raw := make([]any, len(selectCols))
	ptrs := make([]any, len(selectCols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return KeyBounds{}, &QueryError{SQL: query, Err: err}
	}

	min := make(Key, len(ts.keyColumns))
	max := make(Key, len(ts.keyColumns))
	for i, kc := range ts.keyColumns {
		cd, _ := ts.resolved.Column(kc)
		domain, _ := domainForClass(cd.Class)
		min[i] = scanKeyComponent(domain, raw[2*i])
		max[i] = scanKeyComponent(domain, raw[2*i+1])
		switch domain {
		case KeyDomainInteger:
			max[i] = IntKey(max[i].I + 1)
		case KeyDomainDecimal:
			max[i] = DecimalKey(max[i].D.Add(toDecimal(int64(1)).Shift(-int32(cd.Scale))))
		}
	}
	return KeyBounds{Min: min, Max: max}, nil
}

func scanKeyComponent(domain KeyDomainKind, v any) KeyComponent {
	switch domain {
	case KeyDomainInteger:
		return IntKey(toInt64(v))
	case KeyDomainDecimal:
		return DecimalKey(toDecimal(v))
	default:
		return StringKey(toStringVal(v))
	}
}

// Count returns the number of rows within the segment's current bounds.
func (ts *TableSegment) Count(ctx context.Context) (int64, error) {
	d := ts.db.Dialect()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", ts.qualifiedTable(d), ts.whereClause().render(d))
	rows, err := ts.db.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, &InternalError{Token: "segment-count-empty", Detail: "COUNT(*) query returned no row"}
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, &QueryError{SQL: query, Err: err}
	}
	return n, rows.Err()
}

// CountAndChecksum returns both the row count and the additive MD5
// checksum over every participating column (key and value columns alike,
// per spec.md section 4.5's leaf-comparison contract) within the segment's
// current bounds, in a single round trip.
func (ts *TableSegment) CountAndChecksum(ctx context.Context) (count int64, checksum string, err error) {
	d := ts.db.Dialect()
	fingerprint := ts.fingerprintExpr(d)
	query := fmt.Sprintf(
		"SELECT COUNT(*), %s FROM %s WHERE %s",
		d.SumChecksum(d.MD5AsInt(fingerprint)), ts.qualifiedTable(d), ts.whereClause().render(d),
	)
	rows, err := ts.db.Query(ctx, query)
	if err != nil {
		return 0, "", err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, "", &InternalError{Token: "segment-checksum-empty", Detail: "checksum aggregate query returned no row"}
	}
	var n int64
	var sum *string
	if err := rows.Scan(&n, &sum); err != nil {
		return 0, "", &QueryError{SQL: query, Err: err}
	}
	if sum == nil {
		return n, "0", rows.Err()
	}
	return n, *sum, rows.Err()
}

// fingerprintExpr builds the normalized, null-safely-concatenated
// expression every per-row checksum/value comparison hashes, covering key
// and value columns in a stable order (key columns first, then value
// columns in resolved schema order).
func (ts *TableSegment) fingerprintExpr(d Dialect) string {
	cols := append(append([]string(nil), ts.keyColumns...), ts.valColumns...)
	return ts.fingerprintExprFor(d, "", cols)
}

// fingerprintExprFor builds the normalized, null-safely-concatenated
// expression hashing cols in order, each referenced with the given join
// alias prefix ("" for an unaliased single-table query, "l"/"r" for the
// two sides of JoinDiffer's full outer join).
func (ts *TableSegment) fingerprintExprFor(d Dialect, alias string, cols []string) string {
	normalized := make([]string, 0, len(cols))
	for _, col := range cols {
		normalized = append(normalized, ts.normalizedColumnRef(d, alias, col))
	}
	return d.Concat(normalized)
}

// normalizedColumnRef renders col's normalization expression, referencing
// the column through its actual backend name (sourceColumn) and the given
// join alias prefix, if any.
func (ts *TableSegment) normalizedColumnRef(d Dialect, alias, col string) string {
	cd, _ := ts.resolved.Column(col)
	ref := d.Quote(ts.sourceColumn(col))
	if alias != "" {
		ref = alias + "." + ref
	}
	return ts.normalizeColumnExpr(d, ref, cd)
}

// normalizeColumnExpr renders quoted (an already alias-qualified, quoted
// column reference) as the canonical string expression two backends'
// values can be compared by, honoring ts.cfg's run-level
// case-sensitivity, timestamp-precision, and JSON-comparison overrides.
func (ts *TableSegment) normalizeColumnExpr(d Dialect, quoted string, cd ColumnDescriptor) string {
	switch cd.Class {
	case SemanticClassInteger, SemanticClassFloat:
		return d.NormalizeNumber(quoted, 0)
	case SemanticClassDecimal:
		return d.NormalizeNumber(quoted, cd.Scale)
	case SemanticClassTimestamp:
		precision := cd.Precision
		if ts.cfg.TimestampPrecision != nil {
			precision = *ts.cfg.TimestampPrecision
		}
		return d.NormalizeTimestamp(quoted, precision, cd.WithTZ)
	case SemanticClassBoolean:
		return d.NormalizeBoolean(quoted)
	case SemanticClassJSON:
		return d.NormalizeJSON(quoted, ts.cfg.JSONMode)
	case SemanticClassText:
		if looksLikeUUIDColumn(cd) {
			return d.NormalizeUUID(quoted)
		}
		return d.NormalizeText(quoted, cd.CaseSensitive && !ts.cfg.CaseInsensitive)
	default:
		return d.NormalizeText(quoted, !ts.cfg.CaseInsensitive)
	}
}

func looksLikeUUIDColumn(cd ColumnDescriptor) bool {
	return strings.Contains(strings.ToLower(cd.RawType), "uuid")
}

// ChooseCheckpoints delegates to the package-level keyspace bisection,
// seeding it with the segment's current bounds.
func (ts *TableSegment) ChooseCheckpoints(bisectionFactor int) (DimensionCheckpoints, error) {
	return ChooseCheckpoints(ts.bounds, bisectionFactor)
}

// SegmentByCheckpoints splits ts into child TableSegments covering the mesh
// cells produced by dc, preserving every other field of ts unchanged.
func (ts *TableSegment) SegmentByCheckpoints(dc DimensionCheckpoints) []*TableSegment {
	cells := MeshCells(dc)
	children := make([]*TableSegment, len(cells))
	for i, cell := range cells {
		children[i] = ts.WithSchema(cell)
	}
	return children
}

// Row is one materialized, ordered set of column values for a single
// table row, keyed by column name for GetValues callers that need random
// access, with the Columns field preserving the segment's stable projection order.
type Row struct {
	Columns []string
	Values  map[string]any
}

// GetValues fetches every key and value column for every row in ts's
// current bounds, ordered by key column ascending. This is the
// materialization path HashDiffer's leaf comparison uses once a bisected
// segment is small enough that a full fetch-and-diff beats another round
// of checksum queries, per spec.md section 4.5's threshold rule.
//
// Key columns are projected raw (Key/scanKeyComponent need the driver's
// native scan type to do key-space arithmetic), but value columns are
// projected through normalizeColumnExpr, the same normalization the
// checksum path hashes. HashDiffer's leaf comparison runs across two
// different Database backends, so without this a Postgres "true" and a
// MySQL "1" for the same boolean column -- or two decimals the drivers
// render with a different number of trailing zeros -- would scan as
// unequal Go values despite being the same row.
func (ts *TableSegment) GetValues(ctx context.Context) ([]Row, error) {
	d := ts.db.Dialect()
	cols := append(append([]string(nil), ts.keyColumns...), ts.valColumns...)
	selectExprs := make([]string, len(cols))
	for i, c := range ts.keyColumns {
		selectExprs[i] = fmt.Sprintf("%s AS %s", d.Quote(ts.sourceColumn(c)), d.Quote(c))
	}
	for i, c := range ts.valColumns {
		selectExprs[len(ts.keyColumns)+i] = fmt.Sprintf("%s AS %s", ts.normalizedColumnRef(d, "", c), d.Quote(c))
	}
	orderBy := make([]string, len(ts.keyColumns))
	for i, c := range ts.keyColumns {
		orderBy[i] = d.Quote(c)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(selectExprs, ", "), ts.qualifiedTable(d), ts.whereClause().render(d), strings.Join(orderBy, ", "),
	)
	rows, err := ts.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{SQL: query, Err: err}
		}
		r := Row{Columns: cols, Values: make(map[string]any, len(cols))}
		for i, c := range cols {
			r.Values[c] = raw[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Key extracts row's key tuple in ts's composite-key order.
func (ts *TableSegment) Key(row Row) Key {
	k := make(Key, len(ts.keyColumns))
	for i, kc := range ts.keyColumns {
		cd, _ := ts.resolved.Column(kc)
		domain, _ := domainForClass(cd.Class)
		k[i] = scanKeyComponent(domain, row.Values[kc])
	}
	return k
}
