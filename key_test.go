package tablediff

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyComponentCompare(t *testing.T) {
	assert.Equal(t, -1, IntKey(1).Compare(IntKey(2)))
	assert.Equal(t, 1, IntKey(5).Compare(IntKey(2)))
	assert.Equal(t, 0, IntKey(5).Compare(IntKey(5)))

	assert.Equal(t, -1, DecimalKey(decimal.NewFromFloat(1.1)).Compare(DecimalKey(decimal.NewFromFloat(2.2))))
	assert.Equal(t, 0, StringKey("abc").Compare(StringKey("abc")))
	assert.Equal(t, -1, StringKey("abc").Compare(StringKey("abd")))
}

func TestKeyComponentCompareDomainMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		IntKey(1).Compare(StringKey("1"))
	})
}

func TestKeyCompareLexicographic(t *testing.T) {
	a := Key{IntKey(1), IntKey(5)}
	b := Key{IntKey(1), IntKey(9)}
	assert.Equal(t, -1, a.Compare(b))
	assert.True(t, a.Equal(Key{IntKey(1), IntKey(5)}))
}

func TestValidateKeyCompatibility(t *testing.T) {
	left := []ColumnDescriptor{{Name: "id", Class: SemanticClassInteger}}
	right := []ColumnDescriptor{{Name: "id", Class: SemanticClassInteger}}
	require.NoError(t, validateKeyCompatibility(left, right))

	mismatched := []ColumnDescriptor{{Name: "id", Class: SemanticClassText}}
	err := validateKeyCompatibility(left, mismatched)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestValidateKeyCompatibilityArityMismatch(t *testing.T) {
	left := []ColumnDescriptor{{Name: "id", Class: SemanticClassInteger}}
	right := []ColumnDescriptor{{Name: "id", Class: SemanticClassInteger}, {Name: "id2", Class: SemanticClassInteger}}
	err := validateKeyCompatibility(left, right)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
