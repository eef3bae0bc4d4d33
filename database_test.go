package tablediff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// openSQLite opens an in-process, file-backed sqlite database (a distinct
// temp file per call, since ":memory:" would give each *sql.DB connection
// its own empty database under Go's connection pooling) with the
// tablediff_md5_hex/tablediff_md5_int scalar functions installed, and
// creates one table from ddl.
func openSQLite(t *testing.T, ddl string, rows []string) Database {
	t.Helper()
	dialect, err := DialectFor(BackendSQLite)
	require.NoError(t, err)

	dsn := "file:" + t.TempDir() + "/test.db?cache=shared"
	db, err := NewSQLDatabase("sqlite3", dsn, dialect, RetryPolicy{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	sd, ok := db.(*sqlDatabase)
	require.True(t, ok)
	_, err = sd.db.ExecContext(ctx, ddl)
	require.NoError(t, err)
	for _, stmt := range rows {
		_, err = sd.db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return db
}

func TestNewSQLDatabaseCanBeCalledTwiceForSQLite(t *testing.T) {
	// Regression test: sql.Register panics if called twice for the same
	// driver name in one process. Two independent sqlite Database instances
	// must not trigger that.
	d1 := openSQLite(t, `CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`, nil)
	d2 := openSQLite(t, `CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`, nil)
	require.NotNil(t, d1)
	require.NotNil(t, d2)
}

func TestDescribeTableAndChecksumRoundTrip(t *testing.T) {
	db := openSQLite(t,
		`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT, price DECIMAL(10,2))`,
		[]string{
			`INSERT INTO widgets VALUES (1, 'bolt', 1.50)`,
			`INSERT INTO widgets VALUES (2, 'nut', 0.25)`,
		},
	)
	ctx := context.Background()

	schema, err := db.DescribeTable(ctx, "main", "widgets")
	require.NoError(t, err)
	require.True(t, schema.Has("id"))
	require.True(t, schema.Has("name"))
	require.True(t, schema.Has("price"))

	seg, err := NewTableSegment(db, "main", "widgets", []string{"id"}, []string{"name", "price"}, schema, KeyBounds{}, SegmentConfig{})
	require.NoError(t, err)

	count, checksum, err := seg.CountAndChecksum(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.NotEmpty(t, checksum)
	require.NotEqual(t, "0", checksum)
}

func TestDiffTablesHashDiffFindsRowLevelDifferences(t *testing.T) {
	left := openSQLite(t,
		`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT, price DECIMAL(10,2))`,
		[]string{
			`INSERT INTO widgets VALUES (1, 'bolt', 1.50)`,
			`INSERT INTO widgets VALUES (2, 'nut', 0.25)`,
			`INSERT INTO widgets VALUES (3, 'washer', 0.10)`,
		},
	)
	right := openSQLite(t,
		`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT, price DECIMAL(10,2))`,
		[]string{
			`INSERT INTO widgets VALUES (1, 'bolt', 1.75)`, // changed
			`INSERT INTO widgets VALUES (2, 'nut', 0.25)`,  // unchanged
			// id 3 missing on right; id 4 only on right
			`INSERT INTO widgets VALUES (4, 'screw', 0.05)`,
		},
	)

	records, snapshot, err := DiffTables(context.Background(),
		TableRef{DB: left, Schema: "main", Table: "widgets"},
		TableRef{DB: right, Schema: "main", Table: "widgets"},
		Options{KeyColumns: []string{"id"}, Algorithm: AlgorithmHashDiff},
	)
	require.NoError(t, err)
	require.Len(t, records, 3)

	byKind := map[DiffKind]int{}
	for _, r := range records {
		byKind[r.Kind]++
	}
	require.Equal(t, 1, byKind[DiffChanged])
	require.Equal(t, 1, byKind[DiffMissingOnRight])
	require.Equal(t, 1, byKind[DiffMissingOnLeft])
	require.Greater(t, snapshot.RowsCompared, int64(0))
}

func TestDiffTablesIdenticalTablesProduceNoRecords(t *testing.T) {
	ddl := `CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)`
	stmts := []string{
		`INSERT INTO widgets VALUES (1, 'bolt')`,
		`INSERT INTO widgets VALUES (2, 'nut')`,
	}
	left := openSQLite(t, ddl, stmts)
	right := openSQLite(t, ddl, stmts)

	records, _, err := DiffTables(context.Background(),
		TableRef{DB: left, Schema: "main", Table: "widgets"},
		TableRef{DB: right, Schema: "main", Table: "widgets"},
		Options{KeyColumns: []string{"id"}, Algorithm: AlgorithmHashDiff},
	)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestDiffTablesJoinDiffSameDatabase(t *testing.T) {
	db := openSQLite(t,
		`CREATE TABLE widgets_l (id INTEGER PRIMARY KEY, name TEXT);
		 CREATE TABLE widgets_r (id INTEGER PRIMARY KEY, name TEXT)`,
		[]string{
			`INSERT INTO widgets_l VALUES (1, 'bolt')`,
			`INSERT INTO widgets_l VALUES (2, 'nut')`,
			`INSERT INTO widgets_r VALUES (1, 'bolt-renamed')`,
			`INSERT INTO widgets_r VALUES (2, 'nut')`,
		},
	)

	records, _, err := DiffTables(context.Background(),
		TableRef{DB: db, Schema: "main", Table: "widgets_l"},
		TableRef{DB: db, Schema: "main", Table: "widgets_r"},
		Options{KeyColumns: []string{"id"}, Algorithm: AlgorithmJoinDiff},
	)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, DiffChanged, records[0].Kind)
}
