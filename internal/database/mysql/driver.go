// Package mysql implements database.DB on top of database/sql and
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/koustreak/greeny/internal/database"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver
)

// Driver is a MySQL implementation of database.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db *sql.DB
}

var _ database.DB = (*Driver)(nil)

// New opens a MySQL connection pool using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := buildPool(cfg)
	if err != nil {
		return nil, err
	}

	d := &Driver{db: db}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout(cfg))
	defer cancel()

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

// NewFromDB wraps an already configured *sql.DB.
func NewFromDB(db *sql.DB) *Driver {
	return &Driver{db: db}
}

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

func (d *Driver) Dialect() database.Dialect {
	return database.DialectMySQL
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return queryRows(ctx, d.db, query, args...)
}

func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: d.db.QueryRowContext(ctx, query, args...)}
}

func (d *Driver) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execStmt(ctx, d.db, query, args...)
}

// WithTx runs fn in a transaction, committing on success.
func (d *Driver) WithTx(ctx context.Context, opts database.TxOptions, fn func(database.Querier) error) error {
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly})
	if err != nil {
		return mapError(err, "begin transaction failed")
	}

	if err := fn(&txQuerier{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// SQLDB returns the underlying handle. It is owned by the Driver.
func (d *Driver) SQLDB() *sql.DB {
	return d.db
}

// sqlQuerier is the subset of *sql.DB and *sql.Tx the driver needs.
type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryRows(ctx context.Context, q sqlQuerier, query string, args ...any) (database.Rows, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

func execStmt(ctx context.Context, q sqlQuerier, query string, args ...any) (database.Result, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return database.Result{}, mapError(err, "exec failed")
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return database.Result{RowsAffected: affected, LastInsertID: lastID}, nil
}

type txQuerier struct {
	tx *sql.Tx
}

func (t *txQuerier) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return queryRows(ctx, t.tx, query, args...)
}

func (t *txQuerier) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: t.tx.QueryRowContext(ctx, query, args...)}
}

func (t *txQuerier) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execStmt(ctx, t.tx, query, args...)
}

// mysqlRows converts the []byte values the text protocol yields for numeric
// columns into int64 / float64 so callers see the same types Postgres gives.
type mysqlRows struct {
	rows  *sql.Rows
	types []string
}

func (r *mysqlRows) Next() bool                 { return r.rows.Next() }
func (r *mysqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *mysqlRows) Close()                     { _ = r.rows.Close() }

func (r *mysqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "row iteration failed")
	}
	return nil
}

func (r *mysqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}

	for i, d := range dest {
		p, ok := d.(*any)
		if !ok {
			continue
		}
		if b, ok := (*p).([]byte); ok {
			*p = convertBytes(r.columnType(i), b)
		}
	}
	return nil
}

// columnType loads the column types on first use; only rows that actually
// carry raw bytes need them.
func (r *mysqlRows) columnType(i int) string {
	if r.types == nil {
		r.types = []string{}
		if cts, err := r.rows.ColumnTypes(); err == nil {
			r.types = make([]string, len(cts))
			for j, ct := range cts {
				r.types[j] = ct.DatabaseTypeName()
			}
		}
	}
	if i < len(r.types) {
		return r.types[i]
	}
	return ""
}

func convertBytes(dbType string, b []byte) any {
	s := string(b)
	switch strings.ToUpper(dbType) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT":
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	case "DECIMAL", "FLOAT", "DOUBLE":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

type mysqlRow struct {
	row *sql.Row
}

func (r *mysqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}
