package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/greeny/internal/errs"
)

// PostgreSQL SQLSTATE codes that get a kind other than query_failed.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
	pgErrNotNullViolation    = "23502"
	pgErrQueryCanceled       = "57014"
	pgErrInsufficientPriv    = "42501"
	pgErrReadOnlyTx          = "25006"
	pgErrInvalidPassword     = "28P01"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// TLS, network, DNS and auth failures before any SQLSTATE is known.
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func classifySQLState(code string) errs.ErrKind {
	switch code {
	case pgErrUniqueViolation, pgErrForeignKeyViolation:
		return errs.ErrKindConflict
	case pgErrNotNullViolation:
		return errs.ErrKindInvalidInput
	case pgErrQueryCanceled:
		return errs.ErrKindTimeout
	case pgErrInsufficientPriv, pgErrReadOnlyTx:
		return errs.ErrKindPermissionDenied
	case pgErrInvalidPassword:
		return errs.ErrKindConnectionFailed
	}
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "57P"):
		return errs.ErrKindConnectionFailed
	case strings.HasPrefix(code, "22"):
		return errs.ErrKindInvalidInput
	default:
		return errs.ErrKindQueryFailed
	}
}
