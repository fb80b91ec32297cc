package database

import "context"

// Querier is the statement surface shared by a pool and a transaction.
type Querier interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) (Result, error)
}

// DB is the central contract for all database operations.
// Layers above this package talk only to this interface; they never import
// the postgres or mysql packages directly.
type DB interface {
	Querier

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the connection pool.
	Close()

	// Dialect reports the SQL flavour the backend speaks.
	Dialect() Dialect

	// WithTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, opts TxOptions, fn func(Querier) error) error
}

// TxOptions configures WithTx.
type TxOptions struct {
	// ReadOnly asks the server to reject writes for the transaction's lifetime.
	ReadOnly bool
}

// Result describes the outcome of Exec.
type Result struct {
	RowsAffected int64
	// LastInsertID is only populated by backends without RETURNING support.
	LastInsertID int64
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}
