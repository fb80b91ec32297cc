// Package postgres implements database.DB on top of a pgx connection pool.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/errs"
)

// Driver is a PostgreSQL implementation of database.DB backed by pgxpool.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	pool *pgxpool.Pool

	sqlOnce sync.Once
	sqlDB   *sql.DB
}

var _ database.DB = (*Driver)(nil)

// New connects to PostgreSQL using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	pool, err := buildPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	d := &Driver{pool: pool}

	pingCtx, cancel := context.WithTimeout(ctx, withDefaultDuration(cfg.ConnectTimeout, defaultConnTimeout))
	defer cancel()

	if err := d.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the application shuts down.
func (d *Driver) Close() {
	if d.sqlDB != nil {
		_ = d.sqlDB.Close()
	}
	d.pool.Close()
}

// Dialect implements database.DB.
func (d *Driver) Dialect() database.Dialect {
	return database.DialectPostgres
}

// Query executes a SQL statement that returns multiple rows.
func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	return query(ctx, d.pool, sql, args...)
}

// QueryRow executes a SQL statement expected to return at most one row.
func (d *Driver) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgxRow{row: d.pool.QueryRow(ctx, sql, args...)}
}

// Exec executes a statement that returns no rows.
func (d *Driver) Exec(ctx context.Context, sql string, args ...any) (database.Result, error) {
	return exec(ctx, d.pool, sql, args...)
}

// WithTx runs fn in a transaction, committing on success.
func (d *Driver) WithTx(ctx context.Context, opts database.TxOptions, fn func(database.Querier) error) error {
	txOpts := pgx.TxOptions{}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}

	tx, err := d.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return mapError(err, "begin transaction failed")
	}

	if err := fn(&txQuerier{tx: tx}); err != nil {
		// Rollback errors are secondary to the one fn produced.
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// SQLDB exposes the pool through database/sql for tools such as goose.
// The handle is owned by the Driver and closed with it.
func (d *Driver) SQLDB() *sql.DB {
	d.sqlOnce.Do(func() {
		d.sqlDB = stdlib.OpenDBFromPool(d.pool)
	})
	return d.sqlDB
}

// pgxQuerier is the subset of pgxpool.Pool and pgx.Tx the driver needs.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func query(ctx context.Context, q pgxQuerier, sql string, args ...any) (database.Rows, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows}, nil
}

type pgxExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func exec(ctx context.Context, q pgxExecer, sql string, args ...any) (database.Result, error) {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return database.Result{}, mapError(err, "exec failed")
	}
	return database.Result{RowsAffected: tag.RowsAffected()}, nil
}

// txQuerier adapts pgx.Tx to database.Querier.
type txQuerier struct {
	tx pgx.Tx
}

func (t *txQuerier) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	return query(ctx, t.tx, sql, args...)
}

func (t *txQuerier) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgxRow{row: t.tx.QueryRow(ctx, sql, args...)}
}

func (t *txQuerier) Exec(ctx context.Context, sql string, args ...any) (database.Result, error) {
	return exec(ctx, t.tx, sql, args...)
}

// pgxRows wraps pgx.Rows to satisfy database.Rows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Close()                 { r.rows.Close() }

func (r *pgxRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "row iteration failed")
	}
	return nil
}

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

// pgxRow wraps pgx.Row to satisfy database.Row.
type pgxRow struct {
	row pgx.Row
}

func (r *pgxRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.Wrap(errs.ErrKindNotFound, "no rows", err)
		}
		return mapError(err, "scan failed")
	}
	return nil
}
