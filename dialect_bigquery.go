package tablediff

import (
	"fmt"
	"strings"
)

// bigqueryDialect renders SQL for Google BigQuery. Rendering-only per
// SPEC_FULL.md section 4.1 (no driver is wired for it in this module).
// Grounded on the warehouse-SQL rendering idioms shared across
// n8n/core/comparison_engine.py's per-backend branches in original_source/.
type bigqueryDialect struct{ baseDialect }

func init() {
	RegisterDialect(bigqueryDialect{baseDialect{backend: BackendBigQuery, checksumDigits: 16, threadingModel: Threaded}})
}

func (bigqueryDialect) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "\\`") + "`"
}

func (d bigqueryDialect) ParseType(name, rawType string) ColumnDescriptor {
	cd := ColumnDescriptor{Name: name, RawType: rawType}
	base, size, scale, hasParen := splitTypeModifiers(rawType)
	switch strings.ToUpper(base) {
	case "INT64", "INT", "INTEGER", "SMALLINT", "BIGINT", "TINYINT", "BYTEINT":
		cd.Class = SemanticClassInteger
	case "NUMERIC", "BIGNUMERIC", "DECIMAL", "BIGDECIMAL":
		cd.Class = SemanticClassDecimal
		if hasParen {
			cd.Precision, cd.Scale = size, scale
		} else {
			cd.Precision, cd.Scale = 38, 9
		}
	case "FLOAT64", "FLOAT":
		cd.Class = SemanticClassFloat
	case "BOOL", "BOOLEAN":
		cd.Class = SemanticClassBoolean
	case "STRING":
		cd.Class = SemanticClassText
		cd.CaseSensitive = true
	case "DATE":
		cd.Class = SemanticClassDate
	case "DATETIME", "TIMESTAMP":
		cd.Class = SemanticClassTimestamp
		cd.Precision = 6
		cd.WithTZ = strings.ToUpper(base) == "TIMESTAMP"
	case "BYTES":
		cd.Class = SemanticClassBinary
	case "JSON":
		cd.Class = SemanticClassJSON
	default:
		cd.Class = SemanticClassUnknown
	}
	return cd
}

func (bigqueryDialect) NormalizeNumber(expr string, scale uint8) string {
	return fmt.Sprintf("FORMAT('%%.%df', CAST(%s AS BIGNUMERIC))", scale, expr)
}

func (bigqueryDialect) NormalizeTimestamp(expr string, precision uint8, withTZ bool) string {
	if precision > 6 {
		precision = 6
	}
	src := expr
	if withTZ {
		src = fmt.Sprintf("TIMESTAMP(%s, 'UTC')", expr)
	}
	return fmt.Sprintf("FORMAT_TIMESTAMP('%%Y-%%m-%%d %%H:%%M:%%E%dS', %s)", precision, src)
}

func (bigqueryDialect) NormalizeBoolean(expr string) string {
	return fmt.Sprintf("IF(%s, '1', '0')", expr)
}

func (bigqueryDialect) NormalizeText(expr string, caseSensitive bool) string {
	if caseSensitive {
		return expr
	}
	return fmt.Sprintf("LOWER(%s)", expr)
}

func (bigqueryDialect) NormalizeUUID(expr string) string {
	return fmt.Sprintf("LOWER(REPLACE(%s, '-', ''))", expr)
}

func (bigqueryDialect) NormalizeJSON(expr string, mode JSONComparisonMode) string {
	if mode == JSONComparisonStructural {
		return fmt.Sprintf("TO_JSON_STRING(PARSE_JSON(%s))", expr)
	}
	return fmt.Sprintf("TO_JSON_STRING(%s)", expr)
}

func (bigqueryDialect) Concat(exprs []string) string {
	return fmt.Sprintf("ARRAY_TO_STRING([%s], '\\x1f')", strings.Join(exprs, ", "))
}

func (d bigqueryDialect) MD5AsInt(expr string) string {
	return fmt.Sprintf("CAST(CONCAT('0x', SUBSTR(TO_HEX(MD5(%s)), -%d)) AS INT64)", expr, d.ChecksumDigits())
}

func (d bigqueryDialect) MD5AsHex(expr string) string {
	return fmt.Sprintf("SUBSTR(TO_HEX(MD5(%s)), -%d)", expr, d.ChecksumDigits())
}

func (bigqueryDialect) SumChecksum(expr string) string {
	return fmt.Sprintf("SUM(%s)", expr)
}

func (bigqueryDialect) SamplingClause(method SamplingMethod, parameter float64, keyExpr string) string {
	switch method {
	case SamplingSystem, SamplingBernoulli:
		return fmt.Sprintf("RAND() < %f", parameter/100.0)
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

func (bigqueryDialect) SupportsPrimaryKeyUniqueness() bool { return false } // BigQuery has no enforced PK/unique constraints
func (bigqueryDialect) SupportsAlphanumericKeys() bool      { return true }
