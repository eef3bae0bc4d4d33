package tablediff

import (
	"fmt"
	"strings"
)

// oracleDialect renders SQL for Oracle Database. Rendering-only per
// SPEC_FULL.md section 4.1. Oracle has no native BOOLEAN column type and
// represents UUID-shaped keys as RAW(16)/CHAR(36); both are handled below.
type oracleDialect struct{ baseDialect }

func init() {
	RegisterDialect(oracleDialect{baseDialect{backend: BackendOracle, checksumDigits: 16, threadingModel: Threaded}})
}

func (oracleDialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (d oracleDialect) ParseType(name, rawType string) ColumnDescriptor {
	cd := ColumnDescriptor{Name: name, RawType: rawType}
	base, size, scale, hasParen := splitTypeModifiers(strings.ToLower(rawType))
	switch {
	case base == "number" && hasParen && scale == 0:
		cd.Class = SemanticClassInteger
	case base == "number" && !hasParen:
		cd.Class = SemanticClassDecimal
		cd.Precision, cd.Scale = 38, 10
	case base == "number":
		cd.Class = SemanticClassDecimal
		cd.Precision, cd.Scale = size, scale
	case isOneOf(base, "binary_float", "binary_double", "float"):
		cd.Class = SemanticClassFloat
	case isOneOf(base, "varchar2", "nvarchar2", "char", "nchar", "clob", "long"):
		cd.Class = SemanticClassText
		cd.CaseSensitive = true
	case base == "date":
		cd.Class = SemanticClassTimestamp // Oracle DATE always carries time-of-day
		cd.Precision = 0
	case strings.HasPrefix(base, "timestamp"):
		cd.Class = SemanticClassTimestamp
		cd.Precision = size
		cd.WithTZ = strings.Contains(base, "with time zone")
	case isOneOf(base, "raw", "blob", "long raw"):
		cd.Class = SemanticClassBinary
	default:
		cd.Class = SemanticClassUnknown
	}
	return cd
}

func (oracleDialect) NormalizeNumber(expr string, scale uint8) string {
	return fmt.Sprintf("TO_CHAR(CAST(%s AS NUMBER(38,%d)))", expr, scale)
}

func (oracleDialect) NormalizeTimestamp(expr string, precision uint8, withTZ bool) string {
	if precision > 9 {
		precision = 9
	}
	src := expr
	if withTZ {
		src = fmt.Sprintf("SYS_EXTRACT_UTC(%s)", expr)
	}
	mask := "YYYY-MM-DD HH24:MI:SS"
	if precision > 0 {
		mask += fmt.Sprintf(".FF%d", precision)
	}
	return fmt.Sprintf("TO_CHAR(%s, '%s')", src, mask)
}

func (oracleDialect) NormalizeBoolean(expr string) string {
	// Oracle has no native boolean type; callers conventionally store 0/1
	// or 'Y'/'N' in a NUMBER(1) or CHAR(1) column, already integer/text.
	return fmt.Sprintf("CASE WHEN %s IN (1, '1', 'Y', 'y') THEN '1' ELSE '0' END", expr)
}

func (oracleDialect) NormalizeText(expr string, caseSensitive bool) string {
	if caseSensitive {
		return fmt.Sprintf("RTRIM(%s)", expr) // Oracle CHAR is blank-padded
	}
	return fmt.Sprintf("LOWER(RTRIM(%s))", expr)
}

func (oracleDialect) NormalizeUUID(expr string) string {
	return fmt.Sprintf("LOWER(REPLACE(RAWTOHEX(%s), '-', ''))", expr)
}

func (oracleDialect) NormalizeJSON(expr string, mode JSONComparisonMode) string {
	if mode == JSONComparisonStructural {
		return fmt.Sprintf("JSON_QUERY(%s, '$')", expr)
	}
	return fmt.Sprintf("TO_CHAR(%s)", expr)
}

func (oracleDialect) Concat(exprs []string) string {
	quoted := make([]string, len(exprs))
	for i, e := range exprs {
		quoted[i] = fmt.Sprintf("NVL(%s, CHR(0))", e)
	}
	return strings.Join(quoted, " || CHR(31) || ")
}

func (d oracleDialect) MD5AsInt(expr string) string {
	return fmt.Sprintf(
		"TO_NUMBER(SUBSTR(RAWTOHEX(DBMS_CRYPTO.HASH(UTL_RAW.CAST_TO_RAW(%s), DBMS_CRYPTO.HASH_MD5)), -%d), 'XXXXXXXXXXXXXXXX')",
		expr, d.ChecksumDigits(),
	)
}

func (d oracleDialect) MD5AsHex(expr string) string {
	return fmt.Sprintf(
		"SUBSTR(RAWTOHEX(DBMS_CRYPTO.HASH(UTL_RAW.CAST_TO_RAW(%s), DBMS_CRYPTO.HASH_MD5)), -%d)",
		expr, d.ChecksumDigits(),
	)
}

func (oracleDialect) SumChecksum(expr string) string {
	return fmt.Sprintf("SUM(%s)", expr)
}

func (oracleDialect) SamplingClause(method SamplingMethod, parameter float64, keyExpr string) string {
	switch method {
	case SamplingSystem:
		return fmt.Sprintf("SAMPLE (%f)", parameter)
	case SamplingBernoulli:
		return fmt.Sprintf("SAMPLE BLOCK (%f)", parameter)
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

func (oracleDialect) SupportsPrimaryKeyUniqueness() bool { return true }
func (oracleDialect) SupportsAlphanumericKeys() bool      { return true }
