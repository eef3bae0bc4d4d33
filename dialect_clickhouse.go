package tablediff

import (
	"fmt"
	"strings"
)

// clickhouseDialect renders SQL for the ClickHouse family (ClickHouse
// itself, and clickzetta-style lakehouse variants referenced in
// original_source/n8n/core/clickzetta_adapter.py and
// original_source/data_diff/databases/clickzetta.py). Rendering-only per
// SPEC_FULL.md section 4.1.
type clickhouseDialect struct{ baseDialect }

func init() {
	RegisterDialect(clickhouseDialect{baseDialect{backend: BackendClickHouse, checksumDigits: 16, threadingModel: Threaded}})
}

func (clickhouseDialect) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "\\`") + "`"
}

func (d clickhouseDialect) ParseType(name, rawType string) ColumnDescriptor {
	cd := ColumnDescriptor{Name: name, RawType: rawType}
	base := rawType
	base = strings.TrimPrefix(base, "Nullable(")
	base = strings.TrimSuffix(base, ")")
	baseLower, size, scale, hasParen := splitTypeModifiers(base)
	switch {
	case isOneOf(baseLower, "int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64"):
		cd.Class = SemanticClassInteger
	case isOneOf(baseLower, "decimal", "decimal32", "decimal64", "decimal128"):
		cd.Class = SemanticClassDecimal
		if hasParen {
			cd.Precision, cd.Scale = size, scale
		} else {
			cd.Precision, cd.Scale = 38, 9
		}
	case isOneOf(baseLower, "float32", "float64"):
		cd.Class = SemanticClassFloat
	case baseLower == "bool":
		cd.Class = SemanticClassBoolean
	case isOneOf(baseLower, "string", "fixedstring"):
		cd.Class = SemanticClassText
		cd.CaseSensitive = true
	case baseLower == "date" || baseLower == "date32":
		cd.Class = SemanticClassDate
	case strings.HasPrefix(baseLower, "datetime"):
		cd.Class = SemanticClassTimestamp
		cd.Precision = scale
		cd.WithTZ = strings.Contains(rawType, ",")
	case baseLower == "uuid":
		cd.Class = SemanticClassText
		cd.CaseSensitive = false
	default:
		cd.Class = SemanticClassUnknown
	}
	return cd
}

func (clickhouseDialect) NormalizeNumber(expr string, scale uint8) string {
	return fmt.Sprintf("formatRow('CSV', toDecimal128(%s, %d))", expr, scale)
}

func (clickhouseDialect) NormalizeTimestamp(expr string, precision uint8, withTZ bool) string {
	if precision > 9 {
		precision = 9
	}
	src := expr
	if withTZ {
		src = fmt.Sprintf("toTimeZone(%s, 'UTC')", expr)
	}
	return fmt.Sprintf("formatDateTime(%s, '%%Y-%%m-%%d %%H:%%i:%%S.%s')", src, strings.Repeat("0", int(precision)))
}

func (clickhouseDialect) NormalizeBoolean(expr string) string {
	return fmt.Sprintf("if(%s, '1', '0')", expr)
}

func (clickhouseDialect) NormalizeText(expr string, caseSensitive bool) string {
	if caseSensitive {
		return expr
	}
	return fmt.Sprintf("lowerUTF8(%s)", expr)
}

func (clickhouseDialect) NormalizeUUID(expr string) string {
	return fmt.Sprintf("lower(replaceAll(toString(%s), '-', ''))", expr)
}

func (clickhouseDialect) NormalizeJSON(expr string, mode JSONComparisonMode) string {
	if mode == JSONComparisonStructural {
		return fmt.Sprintf("toJSONString(%s)", expr)
	}
	return fmt.Sprintf("toString(%s)", expr)
}

func (clickhouseDialect) Concat(exprs []string) string {
	return fmt.Sprintf("concatWithSeparator(char(31), %s)", strings.Join(exprs, ", "))
}

func (d clickhouseDialect) MD5AsInt(expr string) string {
	return fmt.Sprintf("reinterpretAsUInt64(reverse(substring(unhex(lower(hex(MD5(%s)))), -%d)))", expr, d.ChecksumDigits()/2)
}

func (d clickhouseDialect) MD5AsHex(expr string) string {
	return fmt.Sprintf("substring(lower(hex(MD5(%s))), -%d)", expr, d.ChecksumDigits())
}

func (clickhouseDialect) SumChecksum(expr string) string {
	return fmt.Sprintf("sum(%s)", expr)
}

func (clickhouseDialect) SamplingClause(method SamplingMethod, parameter float64, keyExpr string) string {
	switch method {
	case SamplingSystem, SamplingBernoulli:
		return fmt.Sprintf("SAMPLE %f", parameter/100.0)
	case SamplingDeterministic:
		m := int64(parameter)
		if m < 1 {
			m = 1
		}
		return fmt.Sprintf("modulo(%s, %d) = 0", keyExpr, m)
	default:
		return ""
	}
}

func (clickhouseDialect) SupportsPrimaryKeyUniqueness() bool { return false } // ClickHouse ORDER BY keys are not enforced-unique
func (clickhouseDialect) SupportsAlphanumericKeys() bool      { return true }
