package tablediff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectForAllBackendsRegistered(t *testing.T) {
	backends := []Backend{
		BackendMySQL, BackendPostgres, BackendSQLite,
		BackendSnowflake, BackendBigQuery, BackendClickHouse,
		BackendOracle, BackendTrino,
	}
	for _, b := range backends {
		d, err := DialectFor(b)
		require.NoError(t, err, "backend %s", b)
		assert.Equal(t, b, d.Backend())
		assert.Greater(t, d.ChecksumDigits(), 0)
	}
}

func TestDialectForUnknownBackend(t *testing.T) {
	_, err := DialectFor(BackendUnknown)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestMySQLParseTypeClassifiesCommonTypes(t *testing.T) {
	d, err := DialectFor(BackendMySQL)
	require.NoError(t, err)

	cases := []struct {
		raw      string
		expected SemanticClass
	}{
		{"int(11)", SemanticClassInteger},
		{"bigint unsigned", SemanticClassInteger},
		{"decimal(10,2)", SemanticClassDecimal},
		{"varchar(255)", SemanticClassText},
		{"datetime(3)", SemanticClassTimestamp},
		{"tinyint(1)", SemanticClassBoolean},
		{"json", SemanticClassJSON},
	}
	for _, c := range cases {
		cd := d.ParseType("col", c.raw)
		assert.Equalf(t, c.expected, cd.Class, "raw type %q", c.raw)
	}
}

func TestSQLiteThreadingModelIsSingleConnection(t *testing.T) {
	d, err := DialectFor(BackendSQLite)
	require.NoError(t, err)
	assert.Equal(t, SingleConnection, d.ThreadingModel())
}

func TestMySQLThreadingModelIsThreaded(t *testing.T) {
	d, err := DialectFor(BackendMySQL)
	require.NoError(t, err)
	assert.Equal(t, Threaded, d.ThreadingModel())
}

func TestNormalizeBooleanRendersZeroOrOneLiteralShape(t *testing.T) {
	for _, backend := range []Backend{BackendMySQL, BackendPostgres, BackendSQLite, BackendSnowflake, BackendBigQuery, BackendClickHouse, BackendOracle, BackendTrino} {
		d, err := DialectFor(backend)
		require.NoError(t, err)
		expr := d.NormalizeBoolean("col")
		assert.NotEmpty(t, expr, "backend %s", backend)
		assert.Contains(t, expr, "'1'", "backend %s", backend)
		assert.Contains(t, expr, "'0'", "backend %s", backend)
	}
}

func TestSupportsPrimaryKeyUniquenessMatchesBackendReality(t *testing.T) {
	warehouseOnly := []Backend{BackendSnowflake, BackendBigQuery, BackendClickHouse, BackendTrino}
	for _, b := range warehouseOnly {
		d, err := DialectFor(b)
		require.NoError(t, err)
		assert.False(t, d.SupportsPrimaryKeyUniqueness(), "backend %s", b)
	}
	enforced := []Backend{BackendMySQL, BackendPostgres, BackendSQLite, BackendOracle}
	for _, b := range enforced {
		d, err := DialectFor(b)
		require.NoError(t, err)
		assert.True(t, d.SupportsPrimaryKeyUniqueness(), "backend %s", b)
	}
}
