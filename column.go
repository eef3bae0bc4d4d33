package tablediff

import "fmt"

// SemanticClass is the normalized type class a backend-specific column type
// string is mapped to by a Dialect. Only columns with a supported semantic
// class may participate in checksums or equality comparisons (unless the
// caller disables strict type checking, in which case unsupported columns
// are excluded and reported as a warning instead).
type SemanticClass int

// Constants enumerating the supported semantic classes. SemanticClassUnknown
// is permitted to appear in a resolved schema, but is never hashed/compared.
const (
	SemanticClassUnknown SemanticClass = iota
	SemanticClassInteger
	SemanticClassDecimal
	SemanticClassFloat
	SemanticClassBoolean
	SemanticClassText
	SemanticClassDate
	SemanticClassTimestamp
	SemanticClassBinary
	SemanticClassJSON
)

func (sc SemanticClass) String() string {
	switch sc {
	case SemanticClassInteger:
		return "Integer"
	case SemanticClassDecimal:
		return "Decimal"
	case SemanticClassFloat:
		return "Float"
	case SemanticClassBoolean:
		return "Boolean"
	case SemanticClassText:
		return "Text"
	case SemanticClassDate:
		return "Date"
	case SemanticClassTimestamp:
		return "Timestamp"
	case SemanticClassBinary:
		return "Binary"
	case SemanticClassJSON:
		return "JSON"
	default:
		return "Unknown"
	}
}

// ColumnDescriptor describes one column of a resolved schema: its name, the
// raw backend type string it came from, and the normalized semantic class
// plus any class-specific modifiers (decimal precision/scale, text collation
// and case sensitivity, timestamp precision and timezone-awareness).
type ColumnDescriptor struct {
	Name          string
	RawType       string
	Class         SemanticClass
	Precision     uint8  // Decimal: total digits. Timestamp: fractional-second digits (0-9).
	Scale         uint8  // Decimal: digits after the decimal point.
	Collation     string // Text: backend collation name, if known.
	CaseSensitive bool   // Text: whether the collation compares case-sensitively.
	WithTZ        bool   // Timestamp: whether the backend stores a UTC offset.
}

// Supported returns true if this column's semantic class may participate in
// checksums and equality comparisons.
func (cd ColumnDescriptor) Supported() bool {
	return cd.Class != SemanticClassUnknown
}

func (cd ColumnDescriptor) String() string {
	return fmt.Sprintf("%s %s (%s)", cd.Name, cd.RawType, cd.Class)
}

// Schema is a resolved column name -> descriptor map, plus the ordered index
// used for per-row materialization on the hot path (get_values). Looking up
// a column by name is O(1); iterating in the stable query-projection order
// used at the leaves is done via Ordered.
type Schema struct {
	byName  map[string]ColumnDescriptor
	ordered []string
}

// NewSchema builds a Schema from a name-ordered list of descriptors. The
// supplied order becomes the stable projection order used when rows are
// materialized, so callers should pass columns in the order they intend to
// SELECT them.
func NewSchema(columns []ColumnDescriptor) *Schema {
	s := &Schema{
		byName:  make(map[string]ColumnDescriptor, len(columns)),
		ordered: make([]string, 0, len(columns)),
	}
	for _, c := range columns {
		if _, exists := s.byName[c.Name]; !exists {
			s.ordered = append(s.ordered, c.Name)
		}
		s.byName[c.Name] = c
	}
	return s
}

// Column returns the descriptor for name, and whether it was found.
func (s *Schema) Column(name string) (ColumnDescriptor, bool) {
	if s == nil {
		return ColumnDescriptor{}, false
	}
	cd, ok := s.byName[name]
	return cd, ok
}

// Ordered returns the column names in stable projection order.
func (s *Schema) Ordered() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Has returns true if name is present in the schema, regardless of support.
func (s *Schema) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.byName[name]
	return ok
}
