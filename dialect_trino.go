package tablediff

import (
	"fmt"
	"strings"
)

// trinoDialect renders SQL for Trino/Presto, used against lakehouse table
// formats (Iceberg, Hive, Delta) in original_source/n8n's query-engine
// branches. Rendering-only per SPEC_FULL.md section 4.1.
type trinoDialect struct{ baseDialect }

func init() {
	RegisterDialect(trinoDialect{baseDialect{backend: BackendTrino, checksumDigits: 16, threadingModel: Threaded}})
}

func (trinoDialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (d trinoDialect) ParseType(name, rawType string) ColumnDescriptor {
	cd := ColumnDescriptor{Name: name, RawType: rawType}
	base, size, scale, hasParen := splitTypeModifiers(rawType)
	switch {
	case isOneOf(base, "tinyint", "smallint", "integer", "int", "bigint"):
		cd.Class = SemanticClassInteger
	case base == "decimal":
		cd.Class = SemanticClassDecimal
		if hasParen {
			cd.Precision, cd.Scale = size, scale
		} else {
			cd.Precision, cd.Scale = 38, 0
		}
	case isOneOf(base, "real", "double"):
		cd.Class = SemanticClassFloat
	case base == "boolean":
		cd.Class = SemanticClassBoolean
	case isOneOf(base, "varchar", "char", "varbinary"):
		cd.Class = SemanticClassText
		cd.CaseSensitive = true
		if base == "varbinary" {
			cd.Class = SemanticClassBinary
		}
	case base == "date":
		cd.Class = SemanticClassDate
	case strings.HasPrefix(base, "timestamp"):
		cd.Class = SemanticClassTimestamp
		if hasParen {
			cd.Precision = size
		} else {
			cd.Precision = 3
		}
		cd.WithTZ = strings.Contains(base, "with time zone")
	case isOneOf(base, "json"):
		cd.Class = SemanticClassJSON
	case base == "uuid":
		cd.Class = SemanticClassText
		cd.CaseSensitive = false
	default:
		cd.Class = SemanticClassUnknown
	}
	return cd
}

func (trinoDialect) NormalizeNumber(expr string, scale uint8) string {
	return fmt.Sprintf("CAST(CAST(%s AS DECIMAL(38,%d)) AS VARCHAR)", expr, scale)
}

func (trinoDialect) NormalizeTimestamp(expr string, precision uint8, withTZ bool) string {
	if precision > 9 {
		precision = 9
	}
	src := expr
	if withTZ {
		src = fmt.Sprintf("CAST(%s AT TIME ZONE 'UTC' AS TIMESTAMP(%d))", expr, precision)
	}
	return fmt.Sprintf("FORMAT_DATETIME(%s, 'yyyy-MM-dd HH:mm:ss.%s')", src, strings.Repeat("S", int(precision)))
}

func (trinoDialect) NormalizeBoolean(expr string) string {
	return fmt.Sprintf("IF(%s, '1', '0')", expr)
}

func (trinoDialect) NormalizeText(expr string, caseSensitive bool) string {
	if caseSensitive {
		return fmt.Sprintf("TRIM(TRAILING FROM %s)", expr)
	}
	return fmt.Sprintf("LOWER(TRIM(TRAILING FROM %s))", expr)
}

func (trinoDialect) NormalizeUUID(expr string) string {
	return fmt.Sprintf("LOWER(REPLACE(CAST(%s AS VARCHAR), '-', ''))", expr)
}

func (trinoDialect) NormalizeJSON(expr string, mode JSONComparisonMode) string {
	if mode == JSONComparisonStructural {
		return fmt.Sprintf("CAST(JSON_PARSE(%s) AS JSON)", expr)
	}
	return fmt.Sprintf("CAST(%s AS VARCHAR)", expr)
}

func (trinoDialect) Concat(exprs []string) string {
	quoted := make([]string, len(exprs))
	for i, e := range exprs {
		quoted[i] = fmt.Sprintf("COALESCE(%s, CHR(0))", e)
	}
	return fmt.Sprintf("CONCAT(%s)", strings.Join(quoted, ", CHR(31), "))
}

func (d trinoDialect) MD5AsInt(expr string) string {
	return fmt.Sprintf(
		"CAST(FROM_BASE(SUBSTR(LOWER(TO_HEX(MD5(TO_UTF8(CAST(%s AS VARCHAR))))), -%d), 16) AS BIGINT)",
		expr, d.ChecksumDigits(),
	)
}

func (d trinoDialect) MD5AsHex(expr string) string {
	return fmt.Sprintf("SUBSTR(LOWER(TO_HEX(MD5(TO_UTF8(CAST(%s AS VARCHAR))))), -%d)", expr, d.ChecksumDigits())
}

func (trinoDialect) SumChecksum(expr string) string {
	return fmt.Sprintf("SUM(%s)", expr)
}

func (trinoDialect) SamplingClause(method SamplingMethod, parameter float64, keyExpr string) string {
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
		return fmt.Sprintf("MOD(%s, %d) = 0", keyExpr, m)
	default:
		return ""
	}
}

func (trinoDialect) SupportsPrimaryKeyUniqueness() bool { return false } // most Trino connectors have no enforced constraints
func (trinoDialect) SupportsAlphanumericKeys() bool      { return true }
