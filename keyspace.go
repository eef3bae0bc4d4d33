package tablediff

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// KeyBounds is a half-open key-space interval: Min is inclusive, Max is
// exclusive, matching the WHERE assembly convention in segment.go
// (`lo <= col AND col < hi`) that guarantees disjoint cover across sibling
// segments.
type KeyBounds struct {
	Min Key
	Max Key
}

// DimensionCheckpoints holds, for each key-column dimension independently,
// an ordered list of checkpoint values (including both endpoints) that
// subdivide that dimension's range. The outer slice is indexed by key
// column position; TableSegment.segment_by_checkpoints takes the cartesian
// product of these per-dimension lists to build the mesh of child segments,
// per spec.md 4.3's "for composite keys, n is taken per dimension so the
// final mesh has approximately n boxes" rule.
type DimensionCheckpoints [][]KeyComponent

// ChooseCheckpoints computes evenly spaced checkpoints across min/max
// (inclusive of both bounds) such that the cartesian mesh over all key
// dimensions has approximately n cells. For a single-column key this is
// exactly n+1 checkpoints; for a composite key of d columns, each dimension
// gets round(n^(1/d)) checkpoints (clipped to the dimension's own discrete
// range where one is known, e.g. integer keys), so the product of
// per-dimension cell counts approximates n.
func ChooseCheckpoints(bounds KeyBounds, n int) (DimensionCheckpoints, error) {
	if n < 1 {
		return nil, &ValidationError{Reason: "bisection_factor must be >= 1"}
	}
	if len(bounds.Min) != len(bounds.Max) {
		return nil, &InternalError{Token: "keyspace-dim-mismatch", Detail: "min/max key arity differs"}
	}
	dims := len(bounds.Min)
	if dims == 0 {
		return nil, &ValidationError{Reason: "key bounds have no dimensions"}
	}

	perDim := perDimensionCount(n, dims)
	out := make(DimensionCheckpoints, dims)
	for i := 0; i < dims; i++ {
		lo, hi := bounds.Min[i], bounds.Max[i]
		if lo.Compare(hi) >= 0 {
			return nil, &ValidationError{Reason: fmt.Sprintf("key dimension %d has min >= max", i)}
		}
		count := perDim
		if span, ok := integerSpan(lo, hi); ok && span < int64(count) {
			count = int(span)
			if count < 1 {
				count = 1
			}
		}
		points, err := evenlySpaced(lo, hi, count)
		if err != nil {
			return nil, err
		}
		out[i] = points
	}
	return out, nil
}

// perDimensionCount returns how many cells (not checkpoints) each of `dims`
// independent dimensions should be split into so that the cartesian product
// of cell counts approximates n overall. Always at least 1.
func perDimensionCount(n, dims int) int {
	if dims <= 1 {
		return n
	}
	perDim := int(math.Round(math.Pow(float64(n), 1.0/float64(dims))))
	if perDim < 1 {
		perDim = 1
	}
	return perDim
}

// integerSpan returns the count of distinct integer values in [lo, hi) if
// both components are integer-domain, and whether that count was available.
func integerSpan(lo, hi KeyComponent) (int64, bool) {
	if lo.Domain != KeyDomainInteger || hi.Domain != KeyDomainInteger {
		return 0, false
	}
	return hi.I - lo.I, true
}

// evenlySpaced returns count+1 checkpoints (including both lo and hi)
// evenly spaced across [lo, hi], one point per k/count fraction.
func evenlySpaced(lo, hi KeyComponent, count int) ([]KeyComponent, error) {
	if count < 1 {
		count = 1
	}
	points := make([]KeyComponent, 0, count+1)
	for k := 0; k <= count; k++ {
		p, err := pointAtFraction(lo, hi, k, count)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// pointAtFraction returns the KeyComponent at lo + (num/den)*(hi-lo), using
// domain-appropriate exact arithmetic: integer division for integer keys,
// decimal.Decimal arithmetic for decimal keys, and a big.Int-mediated
// interpolation for fixed-width hex/UUID string keys.
func pointAtFraction(lo, hi KeyComponent, num, den int) (KeyComponent, error) {
	if lo.Domain != hi.Domain {
		return KeyComponent{}, &InternalError{Token: "keyspace-domain-mismatch", Detail: "lo/hi domains differ"}
	}
	switch lo.Domain {
	case KeyDomainInteger:
		span := hi.I - lo.I
		return IntKey(lo.I + (span*int64(num))/int64(den)), nil
	case KeyDomainDecimal:
		frac := decimal.NewFromInt(int64(num)).Div(decimal.NewFromInt(int64(den)))
		delta := hi.D.Sub(lo.D).Mul(frac)
		return DecimalKey(lo.D.Add(delta)), nil
	default: // KeyDomainString
		return hexPointAtFraction(lo.S, hi.S, num, den)
	}
}

// hexPointAtFraction treats fixed-width hex strings (hex digests, or UUIDs
// with dashes stripped) as big-endian unsigned integers and interpolates
// between them, re-padding the result to the original width. Dashes in
// UUID-formatted strings are preserved positionally is not attempted here;
// callers working with UUID keys should strip dashes before constructing
// StringKey components, matching normalize_uuid's canonical form.
func hexPointAtFraction(loStr, hiStr string, num, den int) (KeyComponent, error) {
	if len(loStr) != len(hiStr) {
		return KeyComponent{}, &ValidationError{Reason: "fixed-width string keys must have equal length on both bounds"}
	}
	width := len(loStr)
	lo, ok1 := new(big.Int).SetString(loStr, 16)
	hi, ok2 := new(big.Int).SetString(hiStr, 16)
	if !ok1 || !ok2 {
		return KeyComponent{}, &ValidationError{Reason: "string key bounds are not valid hex digests; cannot bisect"}
	}
	span := new(big.Int).Sub(hi, lo)
	span.Mul(span, big.NewInt(int64(num)))
	span.Div(span, big.NewInt(int64(den)))
	result := new(big.Int).Add(lo, span)
	s := result.Text(16)
	if len(s) < width {
		s = fmt.Sprintf("%0*s", width, s)
	}
	return StringKey(s), nil
}

// MeshCells returns the cartesian product of per-dimension checkpoints as a
// list of half-open KeyBounds, one per mesh cell, in row-major order over
// the dimensions.
func MeshCells(dc DimensionCheckpoints) []KeyBounds {
	if len(dc) == 0 {
		return nil
	}
	cellCounts := make([]int, len(dc))
	total := 1
	for i, pts := range dc {
		cellCounts[i] = len(pts) - 1
		if cellCounts[i] < 1 {
			cellCounts[i] = 1
		}
		total *= cellCounts[i]
	}
	cells := make([]KeyBounds, 0, total)
	idx := make([]int, len(dc))
	for {
		min := make(Key, len(dc))
		max := make(Key, len(dc))
		for d := range dc {
			min[d] = dc[d][idx[d]]
			if idx[d]+1 < len(dc[d]) {
				max[d] = dc[d][idx[d]+1]
			} else {
				max[d] = dc[d][len(dc[d])-1]
			}
		}
		cells = append(cells, KeyBounds{Min: min, Max: max})

		pos := len(dc) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < cellCounts[pos] {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return cells
}

// Degenerate returns true if the mesh produced by ChooseCheckpoints would
// collapse to a single cell indistinguishable from the original bounds
// (i.e. every dimension has exactly one cell), in which case the caller
// should fall through to the leaf path rather than recurse forever.
func (dc DimensionCheckpoints) Degenerate() bool {
	for _, pts := range dc {
		if len(pts) > 2 {
			return false
		}
	}
	return true
}
