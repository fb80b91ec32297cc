// Package query executes generated SQL against the store and renders the
// outcome as text for the composition prompt.
package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/metrics"
)

// Result is the outcome of executing one generated query. A non-empty Err is
// the failure marker; execution failures are data, not Go errors.
type Result struct {
	SQL       string   `json:"sql"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Count     int      `json:"count"`
	Truncated bool     `json:"truncated,omitempty"`
	Text      string   `json:"text"`
	Err       string   `json:"error,omitempty"`
}

// Failed reports whether execution failed.
func (r Result) Failed() bool {
	return r.Err != ""
}

// Options configures an Executor.
type Options struct {
	// Timeout bounds each statement. Zero leaves only the caller's deadline.
	Timeout time.Duration

	// MaxRows caps how many rows are read and rendered. Zero means 50.
	MaxRows int

	// ReadOnly enables the statement guard and runs queries in a read-only
	// transaction.
	ReadOnly bool
}

// Executor runs generated SQL. It is safe for concurrent use.
type Executor struct {
	db   database.DB
	opts Options
}

// NewExecutor returns an Executor over db.
func NewExecutor(db database.DB, opts Options) *Executor {
	if opts.MaxRows <= 0 {
		opts.MaxRows = 50
	}
	return &Executor{db: db, opts: opts}
}

// Execute runs sql and never returns an error: failures are recorded in
// Result.Err with the underlying message.
func (e *Executor) Execute(ctx context.Context, sql string) Result {
	res := Result{SQL: sql}
	log := logger.FromContext(ctx)

	runCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	if err := e.run(runCtx, sql, &res); err != nil {
		if runCtx.Err() != nil && !errs.IsTimeout(err) {
			err = errs.Wrap(errs.ErrKindTimeout, "query timed out", err)
		}
		res.Err = failureMessage(err, e.opts.Timeout)
		res.Columns, res.Rows, res.Count = nil, nil, 0
		metrics.QueryExecutionFailures.Inc()
		log.With().Str("sql", sql).Logger().Warnf("query execution failed: %s", res.Err)
	} else {
		log.With().Str("sql", sql).Int("rows", res.Count).Logger().Debug("query executed")
	}

	res.Text = Render(res)
	return res
}

func (e *Executor) run(ctx context.Context, sql string, res *Result) error {
	if strings.TrimSpace(sql) == "" {
		return errs.New(errs.ErrKindInvalidInput, "empty query")
	}
	if e.opts.ReadOnly {
		if err := CheckReadOnly(sql, e.db.Dialect()); err != nil {
			return err
		}
	}

	return e.db.WithTx(ctx, database.TxOptions{ReadOnly: e.opts.ReadOnly}, func(q database.Querier) error {
		rows, err := q.Query(ctx, sql)
		if err != nil {
			return err
		}
		cols, values, truncated, err := database.ScanRows(rows, e.opts.MaxRows)
		if err != nil {
			return err
		}
		for _, row := range values {
			for i := range row {
				row[i] = Normalize(row[i])
			}
		}
		res.Columns, res.Rows, res.Count, res.Truncated = cols, values, len(values), truncated
		return nil
	})
}

// failureMessage keeps the server's wording (syntax error, missing table,
// permission) without the kind prefix errs.Error adds.
func failureMessage(err error, timeout time.Duration) string {
	if errs.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		if timeout > 0 {
			return "query timed out after " + timeout.String()
		}
		return "query timed out"
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
