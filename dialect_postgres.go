package tablediff

import (
	"fmt"
	"strings"
)

// postgresDialect renders SQL for PostgreSQL. Grounded on adapter/postgres
// and database/postgres/parser.go from sqldef-sqldef's multi-dialect
// adapter set, which is the pack's other example of a from-scratch
// per-backend rendering layer (quoting, type introspection) alongside
// tengo's MySQL-only Flavor.
type postgresDialect struct{ baseDialect }

func init() {
	RegisterDialect(postgresDialect{baseDialect{backend: BackendPostgres, checksumDigits: 16, threadingModel: Threaded}})
}

func (postgresDialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (d postgresDialect) ParseType(name, rawType string) ColumnDescriptor {
	cd := ColumnDescriptor{Name: name, RawType: rawType}
	base, size, scale, hasParen := splitTypeModifiers(rawType)
	base = strings.TrimSuffix(base, "[]")
	switch {
	case isOneOf(base, "smallint", "integer", "int", "int2", "int4", "bigint", "int8", "serial", "bigserial", "smallserial"):
		cd.Class = SemanticClassInteger
	case isOneOf(base, "numeric", "decimal"):
		cd.Class = SemanticClassDecimal
		if hasParen {
			cd.Precision, cd.Scale = size, scale
		} else {
			cd.Precision, cd.Scale = 38, 10
		}
	case isOneOf(base, "real", "double precision", "float4", "float8"):
		cd.Class = SemanticClassFloat
	case base == "boolean" || base == "bool":
		cd.Class = SemanticClassBoolean
	case isOneOf(base, "char", "character", "varchar", "character varying", "text", "bpchar"):
		cd.Class = SemanticClassText
		cd.CaseSensitive = true
	case base == "date":
		cd.Class = SemanticClassDate
	case isOneOf(base, "timestamp", "timestamp without time zone", "timestamptz", "timestamp with time zone"):
		cd.Class = SemanticClassTimestamp
		cd.Precision = size
		cd.WithTZ = strings.Contains(base, "tz") || strings.Contains(rawType, "with time zone")
	case isOneOf(base, "bytea"):
		cd.Class = SemanticClassBinary
	case isOneOf(base, "json", "jsonb"):
		cd.Class = SemanticClassJSON
	case base == "uuid":
		cd.Class = SemanticClassText
		cd.CaseSensitive = false
	default:
		cd.Class = SemanticClassUnknown
	}
	return cd
}

func (postgresDialect) NormalizeNumber(expr string, scale uint8) string {
	return fmt.Sprintf("CAST(%s AS NUMERIC(38,%d))::text", expr, scale)
}

func (postgresDialect) NormalizeTimestamp(expr string, precision uint8, withTZ bool) string {
	if precision > 6 {
		precision = 6
	}
	src := expr
	if withTZ {
		src = fmt.Sprintf("%s AT TIME ZONE 'UTC'", expr)
	}
	mask := "YYYY-MM-DD HH24:MI:SS"
	if precision > 0 {
		mask += fmt.Sprintf(".FF%d", precision)
	}
	return fmt.Sprintf("TO_CHAR(%s, '%s')", src, mask)
}

func (postgresDialect) NormalizeBoolean(expr string) string {
	return fmt.Sprintf("CASE WHEN %s THEN '1' ELSE '0' END", expr)
}

func (postgresDialect) NormalizeText(expr string, caseSensitive bool) string {
	if caseSensitive {
		return expr
	}
	return fmt.Sprintf("LOWER(%s)", expr)
}

func (postgresDialect) NormalizeUUID(expr string) string {
	return fmt.Sprintf("LOWER(REPLACE(%s::text, '-', ''))", expr)
}

func (postgresDialect) NormalizeJSON(expr string, mode JSONComparisonMode) string {
	if mode == JSONComparisonStructural {
		return fmt.Sprintf("%s::jsonb::text", expr)
	}
	return fmt.Sprintf("%s::text", expr)
}

func (postgresDialect) Concat(exprs []string) string {
	return fmt.Sprintf("CONCAT_WS(E'\\x1f', %s)", strings.Join(exprs, ", "))
}

func (d postgresDialect) MD5AsInt(expr string) string {
	return fmt.Sprintf("('x' || RIGHT(MD5(%s), %d))::bit(%d)::bigint", expr, d.ChecksumDigits(), d.ChecksumDigits()*4)
}

func (d postgresDialect) MD5AsHex(expr string) string {
	return fmt.Sprintf("RIGHT(MD5(%s), %d)", expr, d.ChecksumDigits())
}

func (postgresDialect) SumChecksum(expr string) string {
	return fmt.Sprintf("SUM(%s)", expr)
}

func (postgresDialect) SamplingClause(method SamplingMethod, parameter float64, keyExpr string) string {
	switch method {
	case SamplingSystem:
		return fmt.Sprintf("TABLESAMPLE SYSTEM (%f)", parameter)
	case SamplingBernoulli:
		return fmt.Sprintf("TABLESAMPLE BERNOULLI (%f)", parameter)
	case SamplingDeterministic:
		m := int64(parameter)
		if m < 1 {
			m = 1
		}
		return fmt.Sprintf("MOD(%s::bigint, %d) = 0", keyExpr, m)
	default:
		return ""
	}
}

func (postgresDialect) SupportsPrimaryKeyUniqueness() bool { return true }
func (postgresDialect) SupportsAlphanumericKeys() bool      { return true }
