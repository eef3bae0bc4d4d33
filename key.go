package tablediff

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// KeyDomainKind identifies which totally-ordered scalar domain a key
// component is drawn from. Mixed-domain keys (e.g. comparing an Integer
// component on one side against a String component on the other) are
// rejected at validation time -- see validateKeyCompatibility.
type KeyDomainKind int

// Constants enumerating the supported key component domains.
const (
	KeyDomainInteger KeyDomainKind = iota
	KeyDomainDecimal
	KeyDomainString // fixed-width strings: UUIDs, hex digests, zero-padded codes
)

func (k KeyDomainKind) String() string {
	switch k {
	case KeyDomainInteger:
		return "Integer"
	case KeyDomainDecimal:
		return "Decimal"
	case KeyDomainString:
		return "String"
	default:
		return "Unknown"
	}
}

// KeyComponent is one scalar value of a (possibly composite) Key. Exactly
// one of the typed fields is meaningful, selected by Domain.
type KeyComponent struct {
	Domain KeyDomainKind
	I      int64
	D      decimal.Decimal
	S      string
}

// IntKey builds a single-column integer KeyComponent.
func IntKey(v int64) KeyComponent {
	return KeyComponent{Domain: KeyDomainInteger, I: v}
}

// DecimalKey builds a single-column decimal KeyComponent.
func DecimalKey(v decimal.Decimal) KeyComponent {
	return KeyComponent{Domain: KeyDomainDecimal, D: v}
}

// StringKey builds a single-column fixed-width-string KeyComponent (UUIDs,
// hex digests, and similar lexically-ordered identifiers).
func StringKey(v string) KeyComponent {
	return KeyComponent{Domain: KeyDomainString, S: v}
}

// Compare returns -1, 0, or 1 according to whether kc is less than, equal
// to, or greater than other. Both components must share the same Domain;
// Compare panics otherwise, since cross-domain comparison is a validation
// failure the caller must catch before reaching this point.
func (kc KeyComponent) Compare(other KeyComponent) int {
	if kc.Domain != other.Domain {
		panic(fmt.Errorf("tablediff: cannot compare key components of domain %s and %s", kc.Domain, other.Domain))
	}
	switch kc.Domain {
	case KeyDomainInteger:
		switch {
		case kc.I < other.I:
			return -1
		case kc.I > other.I:
			return 1
		default:
			return 0
		}
	case KeyDomainDecimal:
		return kc.D.Cmp(other.D)
	default: // KeyDomainString
		return strings.Compare(kc.S, other.S)
	}
}

func (kc KeyComponent) String() string {
	switch kc.Domain {
	case KeyDomainInteger:
		return fmt.Sprintf("%d", kc.I)
	case KeyDomainDecimal:
		return kc.D.String()
	default:
		return kc.S
	}
}

// Key is an ordered tuple of KeyComponent values, one per key column, in the
// same column order on both sides of a comparison.
type Key []KeyComponent

// Compare returns -1, 0, or 1 comparing k to other component-wise, left to
// right (lexicographic order over the tuple).
func (k Key) Compare(other Key) int {
	n := len(k)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if c := k[i].Compare(other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(other):
		return -1
	case len(k) > len(other):
		return 1
	default:
		return 0
	}
}

// Equal returns true if k and other compare as equal.
func (k Key) Equal(other Key) bool {
	return k.Compare(other) == 0
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, c := range k {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// validateKeyCompatibility checks that two key tuples share domains
// component-wise, so interval arithmetic (min/max/mid) is well-defined
// across both sides of a run. A mismatch is a *ValidationError, since
// spec.md requires the run to fail before any query is issued.
func validateKeyCompatibility(leftCols []ColumnDescriptor, rightCols []ColumnDescriptor) error {
	if len(leftCols) != len(rightCols) {
		return &ValidationError{Reason: fmt.Sprintf("key column count mismatch: left has %d, right has %d", len(leftCols), len(rightCols))}
	}
	for i := range leftCols {
		ld, lok := domainForClass(leftCols[i].Class)
		rd, rok := domainForClass(rightCols[i].Class)
		if !lok || !rok {
			return &ValidationError{Reason: fmt.Sprintf("key column %q has a type that cannot be ordered (%s)", leftCols[i].Name, leftCols[i].Class)}
		}
		if ld != rd {
			return &ValidationError{Reason: fmt.Sprintf("key column %q domain mismatch: left is %s, right is %s", leftCols[i].Name, ld, rd)}
		}
	}
	return nil
}

// domainForClass maps a semantic class to the key domain it would occupy if
// used as a key column. Only order-compatible classes are eligible.
func domainForClass(class SemanticClass) (KeyDomainKind, bool) {
	switch class {
	case SemanticClassInteger:
		return KeyDomainInteger, true
	case SemanticClassDecimal:
		return KeyDomainDecimal, true
	case SemanticClassText, SemanticClassDate, SemanticClassTimestamp:
		return KeyDomainString, true
	default:
		return 0, false
	}
}
