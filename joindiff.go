package tablediff

import (
	"context"
	"fmt"
	"strings"
)

// JoinDiffer implements the same-database full-outer-join diff algorithm:
// a single SQL statement joins left and right on their key columns and
// returns only the rows missing on one side or whose normalized value
// fingerprints differ, letting the backend's own query planner do the
// comparison instead of round-tripping checksums. Only valid when both
// TableSegments live in the same Database (the join must be a single
// query), per spec.md section 4.6. Run requires the backend to report
// SupportsPrimaryKeyUniqueness; the tables' own key constraints are not
// inspected, so duplicate keys on either side are not detected. The join
// applies both segments' key-range and update-column bounds; the
// Options.Where filter and any sampling expression are not applied.
type JoinDiffer struct{}

// Run executes the full outer join comparison and returns every
// DiffRecord found. left and right must share db; callers needing to
// compare across two different Database instances must use HashDiffer
// instead.
func (JoinDiffer) Run(ctx context.Context, left, right *TableSegment, valColumns []string, stats *RunStats) ([]DiffRecord, error) {
	if left.db != right.db {
		return nil, &ValidationError{Reason: "join diff requires both segments to share one Database connection"}
	}
	d := left.db.Dialect()
	if !d.SupportsPrimaryKeyUniqueness() {
		return nil, &ValidationError{Reason: fmt.Sprintf("backend %s cannot enforce key uniqueness; join diff is unavailable", d.Backend())}
	}

	query, err := left.buildFullOuterJoin(right, valColumns)
	if err != nil {
		return nil, err
	}
	rows, err := left.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}

	var records []DiffRecord
	var compared int64
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{SQL: query, Err: err}
		}
		compared++

		rec, ok := decodeJoinRow(left, right, valColumns, cols, raw, left.resolved, left.cfg.FloatTolerance)
		if ok {
			records = append(records, rec)
			stats.RecordDiff(rec.Kind)
		}
	}
	stats.AddRowsCompared(compared)
	stats.IncSegmentsVisited()
	return records, rows.Err()
}

// buildFullOuterJoin renders the single query comparing left and right:
//
//	SELECT l.k1, ..., r.k1, ..., norm(l.v1), norm(r.v1), ... FROM left l
//	FULL OUTER JOIN right r ON l.k1 = r.k1 AND ...
//	WHERE (<bounds on l> OR <bounds on r>)
//	  AND (l.k1 IS NULL OR r.k1 IS NULL OR fingerprint(l.*) <> fingerprint(r.*))
//
// projecting every key column from both aliases (so missing-side rows can
// be detected from NULLs) and every value column from both aliases,
// normalized the same way GetValues normalizes them, so the caller can
// diff them with the same leaf comparator HashDiffer uses. The
// fingerprint predicate filters the join down to rows that are missing on
// one side or whose value columns actually differ, so a row that matches
// on every column is never fetched at all, per spec.md section 4.5 --
// without it every joined row would be pulled across the wire only to be
// thrown away by decodeJoinRow.
func (ts *TableSegment) buildFullOuterJoin(right *TableSegment, valColumns []string) (string, error) {
	if len(ts.keyColumns) != len(right.keyColumns) {
		return "", &ValidationError{Reason: "join diff requires both sides to share the same key column count"}
	}
	d := ts.db.Dialect()

	var selectCols []string
	for _, k := range ts.keyColumns {
		selectCols = append(selectCols, fmt.Sprintf("l.%s AS l_%s", d.Quote(ts.sourceColumn(k)), k))
		selectCols = append(selectCols, fmt.Sprintf("r.%s AS r_%s", d.Quote(right.sourceColumn(k)), k))
	}
	for _, v := range valColumns {
		selectCols = append(selectCols, fmt.Sprintf("%s AS l_%s", ts.normalizedColumnRef(d, "l", v), v))
		selectCols = append(selectCols, fmt.Sprintf("%s AS r_%s", right.normalizedColumnRef(d, "r", v), v))
	}

	var onClauses []string
	for i, k := range ts.keyColumns {
		onClauses = append(onClauses, fmt.Sprintf("l.%s = r.%s", d.Quote(ts.sourceColumn(k)), d.Quote(right.sourceColumn(right.keyColumns[i]))))
	}

	leftWhere := ts.boundsExprAliased(d, "l")
	rightWhere := right.boundsExprAliased(d, "r")

	leftKeyRef := fmt.Sprintf("l.%s", d.Quote(ts.sourceColumn(ts.keyColumns[0])))
	rightKeyRef := fmt.Sprintf("r.%s", d.Quote(right.sourceColumn(right.keyColumns[0])))
	lFingerprint := ts.fingerprintExprFor(d, "l", valColumns)
	rFingerprint := right.fingerprintExprFor(d, "r", valColumns)

	query := fmt.Sprintf(
		"SELECT %s FROM %s l FULL OUTER JOIN %s r ON %s WHERE ((%s) OR (%s)) AND (%s IS NULL OR %s IS NULL OR %s <> %s)",
		strings.Join(selectCols, ", "),
		ts.qualifiedTable(d), right.qualifiedTable(d),
		strings.Join(onClauses, " AND "),
		leftWhere, rightWhere,
		leftKeyRef, rightKeyRef,
		lFingerprint, rFingerprint,
	)
	return query, nil
}

// boundsExprAliased renders ts's key-range and update-column bounds
// qualified by a join alias (`l."col" >= 1 AND l."col" < 2`), since the
// full outer join query has both sides in one FROM clause and unqualified
// column references would be ambiguous. The opaque Where filter and any
// sampling predicate are deliberately not included here: both are raw SQL
// text scoped to one unaliased table, and re-aliasing arbitrary caller SQL
// for a two-table join without column-level introspection is not safe to
// do automatically, so JoinDiffer only ever sees key and update-column
// bounds.
func (ts *TableSegment) boundsExprAliased(d Dialect, alias string) string {
	var clauses []string
	for i, col := range ts.keyColumns {
		if i < len(ts.bounds.Min) {
			clauses = append(clauses, fmt.Sprintf("%s.%s >= %s", alias, d.Quote(ts.sourceColumn(col)), keyLiteral(ts.bounds.Min[i])))
		}
		if i < len(ts.bounds.Max) {
			clauses = append(clauses, fmt.Sprintf("%s.%s < %s", alias, d.Quote(ts.sourceColumn(col)), keyLiteral(ts.bounds.Max[i])))
		}
	}
	if ts.cfg.UpdateColumn != "" {
		col := ts.sourceColumn(ts.cfg.UpdateColumn)
		if ts.cfg.UpdateBounds.Min != nil {
			clauses = append(clauses, fmt.Sprintf("%s.%s >= %s", alias, d.Quote(col), keyLiteral(*ts.cfg.UpdateBounds.Min)))
		}
		if ts.cfg.UpdateBounds.Max != nil {
			clauses = append(clauses, fmt.Sprintf("%s.%s < %s", alias, d.Quote(col), keyLiteral(*ts.cfg.UpdateBounds.Max)))
		}
	}
	if len(clauses) == 0 {
		return "1=1"
	}
	return strings.Join(clauses, " AND ")
}

// decodeJoinRow interprets one row of buildFullOuterJoin's projection
// (l_<key>, r_<key>, l_<val>, r_<val> columns) into a DiffRecord, or
// reports ok=false for a row where both sides are present and identical.
// resolved and floatTolerance drive the same leaf comparator HashDiffer
// uses, so the two algorithms agree on what counts as "changed".
func decodeJoinRow(left, right *TableSegment, valColumns []string, cols []string, raw []any, resolved *Schema, floatTolerance float64) (DiffRecord, bool) {
	byName := make(map[string]any, len(cols))
	for i, c := range cols {
		byName[c] = raw[i]
	}

	leftPresent := false
	for _, k := range left.keyColumns {
		if byName["l_"+k] != nil {
			leftPresent = true
			break
		}
	}
	rightPresent := false
	for _, k := range right.keyColumns {
		if byName["r_"+k] != nil {
			rightPresent = true
			break
		}
	}

	switch {
	case leftPresent && !rightPresent:
		return DiffRecord{Kind: DiffMissingOnRight, Key: extractJoinKey(left.keyColumns, "l_", byName), LeftValues: extractJoinValues(valColumns, "l_", byName)}, true
	case rightPresent && !leftPresent:
		return DiffRecord{Kind: DiffMissingOnLeft, Key: extractJoinKey(right.keyColumns, "r_", byName), RightValues: extractJoinValues(valColumns, "r_", byName)}, true
	default:
		lvals := extractJoinValues(valColumns, "l_", byName)
		rvals := extractJoinValues(valColumns, "r_", byName)
		var changed []string
		for _, v := range valColumns {
			if valueDiffers(v, resolved, floatTolerance, lvals[v], rvals[v]) {
				changed = append(changed, v)
			}
		}
		if len(changed) == 0 {
			return DiffRecord{}, false
		}
		return DiffRecord{Kind: DiffChanged, Key: extractJoinKey(left.keyColumns, "l_", byName), LeftValues: lvals, RightValues: rvals, ChangedCols: changed}, true
	}
}

func extractJoinKey(keyColumns []string, prefix string, byName map[string]any) Key {
	k := make(Key, len(keyColumns))
	for i, col := range keyColumns {
		k[i] = StringKey(toStringVal(byName[prefix+col]))
	}
	return k
}

func extractJoinValues(valColumns []string, prefix string, byName map[string]any) map[string]any {
	out := make(map[string]any, len(valColumns))
	for _, col := range valColumns {
		out[col] = byName[prefix+col]
	}
	return out
}
