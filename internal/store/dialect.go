package store

import (
	"database/sql"
	"fmt"
)

// Dialect abstracts the handful of SQL differences between the production
// Postgres store and the SQLite store used by the package's own tests. It
// exists only to paper over placeholder syntax and a handful of statement
// shapes, not to build a full query builder.
type Dialect interface {
	// Name identifies the dialect; Schema branches on it for column types
	// and InsertAuditRow for the RETURNING form of the insert.
	Name() string
	// Placeholder returns the positional parameter marker for the i'th
	// (0-based) bound argument.
	Placeholder(i int) string
	// ForUpdateClause is appended to SELECTs that must take a row lock.
	// Postgres: " FOR UPDATE". SQLite has no row-level locking; it returns
	// "" and instead relies on the connection being opened with
	// "_txlock=immediate" (see OpenSQLite) so every BeginTx takes a
	// database-level write lock up front.
	ForUpdateClause() string
	// TxOptions is passed to sql.DB.BeginTx.
	TxOptions() *sql.TxOptions
}

// postgresDialect targets Postgres via the pgx stdlib driver.
type postgresDialect struct{}

func (postgresDialect) Name() string            { return "postgres" }
func (postgresDialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i+1) }
func (postgresDialect) ForUpdateClause() string  { return " FOR UPDATE" }
func (postgresDialect) TxOptions() *sql.TxOptions {
	// Repeatable read is the isolation floor a transfer needs: the
	// availability read and the commitment update must see one snapshot.
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
}

// Postgres returns the production Dialect.
var Postgres Dialect = postgresDialect{}

// sqliteDialect targets SQLite (mattn/go-sqlite3) for tests.
type sqliteDialect struct{}

func (sqliteDialect) Name() string            { return "sqlite3" }
func (sqliteDialect) Placeholder(int) string  { return "?" }
func (sqliteDialect) ForUpdateClause() string { return "" }
func (sqliteDialect) TxOptions() *sql.TxOptions {
	// The isolation level itself is whatever SQLite gives a single
	// writer under an immediate transaction, which is sufficient for the
	// test harness; see OpenSQLite for the _txlock=immediate DSN param.
	return nil
}

// SQLite returns the test Dialect.
var SQLite Dialect = sqliteDialect{}
