package tablediff

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VividCortex/mysqlerr"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Database is the query-execution capability a TableSegment is built
// against: a schema-describing, row-fetching wrapper around a single
// backend connection pool. Modeled on tengo.Instance, narrowed to the
// read-only operations the comparison engine needs and generalized across
// backend families via Dialect rather than hard-coded to MySQL.
type Database interface {
	// Dialect returns the SQL-rendering capability bound to this Database.
	Dialect() Dialect

	// DescribeTable returns the resolved column schema for schema.table.
	DescribeTable(ctx context.Context, schema, table string) (*Schema, error)

	// Query executes query (already fully rendered by the caller) and
	// returns the resulting rows. Retryable transient errors are retried
	// internally per RetryPolicy before a QueryError is returned.
	Query(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)

	// Close releases the underlying connection pool.
	Close() error
}

// RetryPolicy configures how a sqlDatabase retries transient query errors.
// Modeled on cmd_push.go's DML retry loop, generalized from a fixed retry
// count to an exponential backoff.
type RetryPolicy struct {
	MaxElapsed time.Duration // 0 disables retries entirely
	MaxRetries int
}

// DefaultRetryPolicy is applied by NewSQLDatabase when the caller supplies
// a zero-value RetryPolicy.
var DefaultRetryPolicy = RetryPolicy{MaxElapsed: 30 * time.Second, MaxRetries: 5}

// sqlDatabase is the Database implementation backing every registered
// Dialect: a thin, mutex-free wrapper over a single *sqlx.DB pool (the pool
// itself already serializes SingleConnection backends via its own
// MaxOpenConns=1 setting, so no additional locking is needed here).
type sqlDatabase struct {
	db      *sqlx.DB
	dialect Dialect
	retry   RetryPolicy
}

// sqliteDriverName is the database/sql driver name this package registers
// its tablediff_md5_hex-equipped sqlite3 driver under. NewSQLDatabase
// substitutes this for whatever driverName the caller passed when
// dialect.Backend() == BackendSQLite, since dialect_sqlite.go's
// MD5AsInt/MD5AsHex expressions assume the scalar function is always
// present on the connection.
const sqliteDriverName = "sqlite3_tablediff"

var registerSQLiteDriverOnce sync.Once

// NewSQLDatabase opens driverName/dsn via database/sql and wraps it as a
// Database rendering SQL through dialect. SingleConnection dialects
// (sqlite) have the pool's MaxOpenConns pinned to 1 so that every query
// is serialized through one logical connection, per spec.md section 4.2.
func NewSQLDatabase(driverName, dsn string, dialect Dialect, retry RetryPolicy) (Database, error) {
	if retry == (RetryPolicy{}) {
		retry = DefaultRetryPolicy
	}
	if dialect.Backend() == BackendSQLite {
		registerSQLiteDriverOnce.Do(func() {
			sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
				ConnectHook: func(conn *sqlite3.SQLiteConn) error {
					if err := conn.RegisterFunc("tablediff_md5_hex", md5HexScalar, true); err != nil {
						return err
					}
					return conn.RegisterFunc("tablediff_md5_int", md5IntScalar, true)
				},
			})
		})
		driverName = sqliteDriverName
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("opening %s connection: %v", driverName, err)}
	}
	if dialect.ThreadingModel() == SingleConnection {
		db.SetMaxOpenConns(1)
	}
	return &sqlDatabase{db: db, dialect: dialect, retry: retry}, nil
}

func (sd *sqlDatabase) Dialect() Dialect { return sd.dialect }

func (sd *sqlDatabase) Close() error {
	return sd.db.Close()
}

// DescribeTable introspects schema.table via the backend's information
// catalog and resolves each column through Dialect.ParseType. This module
// ships only the MySQL/Postgres/SQLite introspection queries since those
// are the backends with live drivers wired (spec.md section 1 excludes
// connection bring-up for the warehouse-only dialects); callers targeting
// a rendering-only dialect are expected to supply a pre-built Schema
// directly to TableSegment rather than going through DescribeTable.
func (sd *sqlDatabase) DescribeTable(ctx context.Context, schema, table string) (*Schema, error) {
	query, args := sd.describeTableQuery(schema, table)
	if query == "" {
		return nil, &ValidationError{Reason: fmt.Sprintf("DescribeTable not supported for backend %s", sd.dialect.Backend())}
	}
	rows, err := sd.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnDescriptor
	for rows.Next() {
		var name, rawType string
		if err := rows.Scan(&name, &rawType); err != nil {
			return nil, &QueryError{SQL: query, Err: err}
		}
		columns = append(columns, sd.dialect.ParseType(name, rawType))
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	if len(columns) == 0 {
		return nil, &SchemaError{Column: "*", Raw: "", Reason: fmt.Sprintf("table %s.%s not found or has no columns", schema, table)}
	}
	return NewSchema(columns), nil
}

func (sd *sqlDatabase) describeTableQuery(schema, table string) (string, []any) {
	switch sd.dialect.Backend() {
	case BackendMySQL:
		return `SELECT column_name, column_type FROM information_schema.columns
				WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`, []any{schema, table}
	case BackendPostgres:
		return `SELECT column_name, format_type(atttypid, atttypmod)
				FROM information_schema.columns c
				JOIN pg_attribute a ON a.attname = c.column_name
				JOIN pg_class t ON t.oid = a.attrelid AND t.relname = c.table_name
				WHERE c.table_schema = $1 AND c.table_name = $2 ORDER BY c.ordinal_position`, []any{schema, table}
	case BackendSQLite:
		return fmt.Sprintf(`SELECT name, type FROM pragma_table_info(%s)`, sqlLiteral(table)), nil
	default:
		return "", nil
	}
}

// Query executes query, retrying transient errors per RetryPolicy using an
// exponential backoff. Modeled on cmd_push.go's statement-retry loop,
// generalized from a fixed sleep/retry count to backoff.ExponentialBackOff.
func (sd *sqlDatabase) Query(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	if sd.retry.MaxElapsed == 0 {
		return sd.queryOnce(ctx, query, args...)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = sd.retry.MaxElapsed
	bounded := backoff.WithMaxRetries(bo, uint64(sd.retry.MaxRetries))
	withCtx := backoff.WithContext(bounded, ctx)

	var rows *sqlx.Rows
	operation := func() error {
		var err error
		rows, err = sd.queryOnce(ctx, query, args...)
		if err != nil && !IsTransientQueryError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(operation, withCtx); err != nil {
		if ctx.Err() != nil {
			return nil, &CancelledError{}
		}
		var perm *backoff.PermanentError
		if errorsAsPermanent(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return rows, nil
}

func errorsAsPermanent(err error, target **backoff.PermanentError) bool {
	pe, ok := err.(*backoff.PermanentError)
	if !ok {
		return false
	}
	*target = pe
	return true
}

func (sd *sqlDatabase) queryOnce(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	rows, err := sd.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err, Transient: isTransientError(sd.dialect.Backend(), err)}
	}
	return rows, nil
}

// isTransientError classifies a driver-level error as retryable. Grounded
// on the error-code dispatch tables in internal/tengo/errors.go, extended
// to Postgres (via lib/pq.Error.Code classes) and sqlite (via
// mattn/go-sqlite3.Error.Code) alongside the existing MySQL handling.
func isTransientError(backend Backend, err error) bool {
	switch backend {
	case BackendMySQL:
		var myErr *mysql.MySQLError
		if asMySQLError(err, &myErr) {
			switch myErr.Number {
			case mysqlerr.ER_LOCK_WAIT_TIMEOUT, mysqlerr.ER_LOCK_DEADLOCK,
				mysqlerr.ER_QUERY_INTERRUPTED, mysqlerr.CR_SERVER_LOST,
				mysqlerr.CR_SERVER_GONE_ERROR, mysqlerr.ER_CON_COUNT_ERROR:
				return true
			}
		}
	case BackendPostgres:
		var pqErr *pq.Error
		if asPQError(err, &pqErr) {
			switch pqErr.Code.Class() {
			case "08", "40", "53", "55", "57", "58": // connection exception, txn rollback, insufficient resources, object-not-in-prereq-state, op-intervention, system error
				return true
			}
		}
	case BackendSQLite:
		var sqErr sqlite3.Error
		if asSQLiteError(err, &sqErr) {
			return sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked
		}
	}
	return false
}

func asMySQLError(err error, target **mysql.MySQLError) bool {
	me, ok := err.(*mysql.MySQLError)
	if !ok {
		return false
	}
	*target = me
	return true
}

func asPQError(err error, target **pq.Error) bool {
	pe, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	*target = pe
	return true
}

func asSQLiteError(err error, target *sqlite3.Error) bool {
	se, ok := err.(sqlite3.Error)
	if !ok {
		return false
	}
	*target = se
	return true
}

// md5HexScalar is registered with mattn/go-sqlite3 as tablediff_md5_hex. It
// computes the same md5(text) -> lower-hex mapping every other backend's
// built-in MD5 function provides; the real work is crypto/md5 (see
// checksum.go).
func md5HexScalar(s string) string {
	return md5Hex(s)
}

// md5IntScalar is registered as tablediff_md5_int. SQLite's CAST(text AS
// INTEGER) parses only a leading decimal run, so a '0x'-prefixed hex string
// would always cast to 0 -- the lower ChecksumDigits() hex digits of the
// MD5 are parsed as a base-16 integer here in Go instead, the way the other
// dialects' MD5AsInt expressions rely on a native CONV/bit-reinterpret
// function to do.
func md5IntScalar(s string, digits int) int64 {
	hex := md5Hex(s)
	if digits > 0 && digits < len(hex) {
		hex = hex[len(hex)-digits:]
	}
	n, _ := strconv.ParseUint(hex, 16, 64)
	return int64(n)
}

func sqlLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
