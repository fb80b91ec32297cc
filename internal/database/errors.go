package database

import "github.com/koustreak/greeny/internal/errs"

func errQuery(msg string, cause error) *errs.Error {
	if e, ok := cause.(*errs.Error); ok {
		return e
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, cause)
}

func errInvalidInput(msg string) *errs.Error {
	return errs.New(errs.ErrKindInvalidInput, msg)
}
