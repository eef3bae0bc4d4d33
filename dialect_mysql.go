package tablediff

import (
	"fmt"
	"strconv"
	"strings"
)

// mysqlDialect renders SQL for MySQL and MariaDB. Grounded on
// internal/tengo/columntype.go's ParseColumnType (the same paren-splitting
// parse of "decimal(10,2)"-shaped strings) and internal/tengo/errors.go's
// convention of working directly against the raw information_schema type
// string rather than a richer catalog API.
type mysqlDialect struct{ baseDialect }

func init() {
	RegisterDialect(mysqlDialect{baseDialect{backend: BackendMySQL, checksumDigits: 16, threadingModel: Threaded}})
}

func (mysqlDialect) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (d mysqlDialect) ParseType(name, rawType string) ColumnDescriptor {
	cd := ColumnDescriptor{Name: name, RawType: rawType}
	base, size, scale, hasParen := splitTypeModifiers(rawType)
	switch {
	case base == "tinyint" && hasParen && size == 1:
		cd.Class = SemanticClassBoolean
	case base == "boolean" || base == "bool":
		cd.Class = SemanticClassBoolean
	case isOneOf(base, "tinyint", "smallint", "mediumint", "int", "integer", "bigint", "year"):
		cd.Class = SemanticClassInteger
	case isOneOf(base, "decimal", "numeric", "dec", "fixed"):
		cd.Class = SemanticClassDecimal
		if hasParen {
			cd.Precision, cd.Scale = size, scale
		} else {
			cd.Precision, cd.Scale = 10, 0
		}
	case isOneOf(base, "float", "double", "double precision", "real"):
		cd.Class = SemanticClassFloat
	case isOneOf(base, "char", "varchar", "text", "tinytext", "mediumtext", "longtext", "enum", "set"):
		cd.Class = SemanticClassText
		cd.CaseSensitive = strings.Contains(rawType, "_bin") || strings.Contains(rawType, "_cs")
	case base == "date":
		cd.Class = SemanticClassDate
	case isOneOf(base, "datetime", "timestamp"):
		cd.Class = SemanticClassTimestamp
		cd.Precision = scale
		cd.WithTZ = base == "timestamp"
	case isOneOf(base, "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob"):
		cd.Class = SemanticClassBinary
	case base == "json":
		cd.Class = SemanticClassJSON
	default:
		cd.Class = SemanticClassUnknown
	}
	return cd
}

func (mysqlDialect) NormalizeNumber(expr string, scale uint8) string {
	return fmt.Sprintf("CAST(%s AS DECIMAL(38,%d))", expr, scale)
}

func (mysqlDialect) NormalizeTimestamp(expr string, precision uint8, withTZ bool) string {
	_ = withTZ // MySQL TIMESTAMP is implicitly session-timezone; caller pre-converts to UTC
	if precision == 0 {
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i:%%s')", expr)
	}
	if precision > 6 {
		precision = 6
	}
	return fmt.Sprintf(
		"CONCAT(DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i:%%s'), '.', LPAD(SUBSTRING(DATE_FORMAT(%s, '%%f'), 1, %d), %d, '0'))",
		expr, expr, precision, precision,
	)
}

func (mysqlDialect) NormalizeBoolean(expr string) string {
	return fmt.Sprintf("IF(%s, '1', '0')", expr)
}

func (mysqlDialect) NormalizeText(expr string, caseSensitive bool) string {
	if caseSensitive {
		return expr
	}
	return fmt.Sprintf("LOWER(%s)", expr)
}

func (mysqlDialect) NormalizeUUID(expr string) string {
	return fmt.Sprintf("LOWER(REPLACE(%s, '-', ''))", expr)
}

func (mysqlDialect) NormalizeJSON(expr string, mode JSONComparisonMode) string {
	if mode == JSONComparisonStructural {
		return fmt.Sprintf("JSON_EXTRACT(%s, '$')", expr)
	}
	return fmt.Sprintf("CAST(%s AS CHAR)", expr)
}

func (mysqlDialect) Concat(exprs []string) string {
	return fmt.Sprintf("CONCAT_WS('\\x1f', %s)", strings.Join(exprs, ", "))
}

func (d mysqlDialect) MD5AsInt(expr string) string {
	return fmt.Sprintf("CONV(RIGHT(MD5(%s), %d), 16, 10)", expr, d.ChecksumDigits())
}

func (d mysqlDialect) MD5AsHex(expr string) string {
	return fmt.Sprintf("RIGHT(MD5(%s), %d)", expr, d.ChecksumDigits())
}

func (d mysqlDialect) SumChecksum(expr string) string {
	return fmt.Sprintf("SUM(CAST(%s AS SIGNED))", expr)
}

func (mysqlDialect) SamplingClause(method SamplingMethod, parameter float64, keyExpr string) string {
	switch method {
	case SamplingSystem, SamplingBernoulli:
		return fmt.Sprintf("RAND() < %f", parameter/100.0)
	case SamplingDeterministic:
		m := int64(parameter)
		if m < 1 {
			m = 1
		}
		return fmt.Sprintf("MOD(CAST(%s AS SIGNED), %d) = 0", keyExpr, m)
	default:
		return ""
	}
}

func (mysqlDialect) SupportsPrimaryKeyUniqueness() bool { return true }
func (mysqlDialect) SupportsAlphanumericKeys() bool      { return true }

// splitTypeModifiers parses a raw type string like "decimal(10,2) unsigned"
// into a base name plus optional (size, scale) parenthesized modifiers,
// mirroring tengo.ParseColumnType's cut-based parsing approach.
func splitTypeModifiers(raw string) (base string, size, scale uint8, hasParen bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, " unsigned")
	s = strings.TrimSuffix(s, " zerofill")
	before, after, ok := strings.Cut(s, "(")
	if !ok {
		return s, 0, 0, false
	}
	inner, _, _ := strings.Cut(after, ")")
	sizeStr, scaleStr, hasScale := strings.Cut(inner, ",")
	sz, _ := strconv.ParseUint(strings.TrimSpace(sizeStr), 10, 8)
	var sc uint64
	if hasScale {
		sc, _ = strconv.ParseUint(strings.TrimSpace(scaleStr), 10, 8)
	}
	return before, uint8(sz), uint8(sc), true
}

func isOneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
