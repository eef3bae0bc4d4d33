package tablediff

import (
	"fmt"
	"strings"
)

// sqliteDialect renders SQL for SQLite. It is the reference
// SingleConnection backend (spec.md 4.2: "backends flagged SingleConnection
// serialize internally and publish a queue"), grounded on
// adapter/sqlite3/sqlite3.go and database/sqlite3/database.go in
// sqldef-sqldef, the pack's other example of a lightweight, single-file
// backend used primarily for integration testing.
type sqliteDialect struct{ baseDialect }

func init() {
	RegisterDialect(sqliteDialect{baseDialect{backend: BackendSQLite, checksumDigits: 16, threadingModel: SingleConnection}})
}

func (sqliteDialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (d sqliteDialect) ParseType(name, rawType string) ColumnDescriptor {
	cd := ColumnDescriptor{Name: name, RawType: rawType}
	base, size, scale, hasParen := splitTypeModifiers(rawType)
	switch {
	case isOneOf(base, "integer", "int", "tinyint", "smallint", "mediumint", "bigint"):
		cd.Class = SemanticClassInteger
	case isOneOf(base, "decimal", "numeric"):
		cd.Class = SemanticClassDecimal
		if hasParen {
			cd.Precision, cd.Scale = size, scale
		} else {
			cd.Precision, cd.Scale = 38, 10
		}
	case isOneOf(base, "real", "double", "float"):
		cd.Class = SemanticClassFloat
	case base == "boolean":
		cd.Class = SemanticClassBoolean
	case isOneOf(base, "char", "varchar", "text", "clob"):
		cd.Class = SemanticClassText
		cd.CaseSensitive = true
	case base == "date":
		cd.Class = SemanticClassDate
	case isOneOf(base, "datetime", "timestamp"):
		cd.Class = SemanticClassTimestamp
		cd.Precision = 3
	case base == "blob":
		cd.Class = SemanticClassBinary
	default:
		cd.Class = SemanticClassUnknown
	}
	return cd
}

func (sqliteDialect) NormalizeNumber(expr string, scale uint8) string {
	return fmt.Sprintf("PRINTF('%%.%df', CAST(%s AS REAL))", scale, expr)
}

func (sqliteDialect) NormalizeTimestamp(expr string, precision uint8, withTZ bool) string {
	_ = precision // STRFTIME's %f always yields millisecond precision in sqlite
	_ = withTZ    // sqlite has no native timezone type; caller pre-converts to UTC
	return fmt.Sprintf("STRFTIME('%%Y-%%m-%%d %%H:%%M:%%f', %s)", expr)
}

func (sqliteDialect) NormalizeBoolean(expr string) string {
	return fmt.Sprintf("CASE WHEN %s THEN '1' ELSE '0' END", expr)
}

func (sqliteDialect) NormalizeText(expr string, caseSensitive bool) string {
	if caseSensitive {
		return expr
	}
	return fmt.Sprintf("LOWER(%s)", expr)
}

func (sqliteDialect) NormalizeUUID(expr string) string {
	return fmt.Sprintf("LOWER(REPLACE(%s, '-', ''))", expr)
}

func (sqliteDialect) NormalizeJSON(expr string, mode JSONComparisonMode) string {
	if mode == JSONComparisonStructural {
		return fmt.Sprintf("JSON(%s)", expr)
	}
	return expr
}

func (sqliteDialect) Concat(exprs []string) string {
	quoted := make([]string, len(exprs))
	for i, e := range exprs {
		quoted[i] = fmt.Sprintf("COALESCE(%s, CHAR(0))", e)
	}
	return strings.Join(quoted, " || CHAR(31) || ")
}

func (d sqliteDialect) MD5AsInt(expr string) string {
	// sqlite has no built-in MD5, and CAST(text AS INTEGER) cannot parse a
	// '0x'-prefixed hex string (it only reads a leading decimal run), so the
	// hex-to-int conversion is done inside the registered scalar function
	// itself rather than at the SQL level; see Database's sqlite connection
	// hook for tablediff_md5_int.
	return fmt.Sprintf("tablediff_md5_int(%s, %d)", expr, d.ChecksumDigits())
}

func (d sqliteDialect) MD5AsHex(expr string) string {
	return fmt.Sprintf("SUBSTR(tablediff_md5_hex(%s), -%d)", expr, d.ChecksumDigits())
}

func (sqliteDialect) SumChecksum(expr string) string {
	// sqlite's SUM over integers raises "integer overflow" as soon as the
	// running int64 total overflows, which two 64-bit row hashes can already
	// do. Summing the high and low 32-bit halves separately keeps both totals
	// in range; the result is rendered as "high:low", so it is comparable
	// only with another sqlite checksum.
	return fmt.Sprintf("(SUM((%s) >> 32) || ':' || SUM((%s) & 4294967295))", expr, expr)
}

func (sqliteDialect) SamplingClause(method SamplingMethod, parameter float64, keyExpr string) string {
	switch method {
	case SamplingSystem, SamplingBernoulli:
		return fmt.Sprintf("ABS(RANDOM()) %% 100 < %f", parameter)
	case SamplingDeterministic:
		m := int64(parameter)
		if m < 1 {
			m = 1
		}
		return fmt.Sprintf("CAST(%s AS INTEGER) %% %d = 0", keyExpr, m)
	default:
		return ""
	}
}

func (sqliteDialect) SupportsPrimaryKeyUniqueness() bool { return true }
func (sqliteDialect) SupportsAlphanumericKeys() bool      { return true }
