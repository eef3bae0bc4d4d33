package tablediff

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// toInt64, toDecimal, and toStringVal coerce the database/sql driver's
// loosely-typed scan targets (int64, float64, []byte, string, time.Time,
// or nil depending on driver) into the concrete Go type a KeyComponent of
// the given domain needs. Every database/sql driver in this module's
// require block (go-sql-driver/mysql, lib/pq, mattn/go-sqlite3) returns
// numeric columns as either int64 or []byte depending on column type and
// driver flags, so both are handled uniformly here rather than in each
// call site.
func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case []byte:
		n, _ := strconv.ParseInt(string(t), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func toDecimal(v any) decimal.Decimal {
	switch t := v.(type) {
	case []byte:
		d, err := decimal.NewFromString(string(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(t)
	case int64:
		return decimal.NewFromInt(t)
	default:
		return decimal.Zero
	}
}

func toFloatVal(v any) (float64, bool) {
	switch t := v.(type) {
	case []byte:
		f, err := strconv.ParseFloat(string(t), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	case float64:
		return t, true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func toStringVal(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
