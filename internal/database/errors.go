package database

import (
	"context"
	"errors"

	"github.com/koustreak/sqlforge/internal/errs"
)

// Constructor helpers shared by this package and its drivers. Drivers do their
// own SQLSTATE classification first and fall back to Classify for errors that
// carry no server code.

// errQuery keeps the kind a driver already assigned to cause.
func errQuery(msg string, cause error) *errs.Error {
	kind := errs.KindOf(cause)
	if kind == errs.ErrKindUnknown {
		kind = errs.ErrKindQueryFailed
	}
	return errs.Wrap(kind, msg, cause)
}

func errInvalidInput(msg string) *errs.Error {
	return errs.New(errs.ErrKindInvalidInput, msg)
}

// Classify maps an error without a server-side code onto an ErrKind:
// context expiry becomes a timeout, anything else a connection failure.
func Classify(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// KindForSQLState maps a Postgres SQLSTATE code onto an ErrKind. Both the pgx
// and lib/pq drivers surface the same codes.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
func KindForSQLState(code string) errs.ErrKind {
	if len(code) < 2 {
		return errs.ErrKindQueryFailed
	}
	switch code[:2] {
	case "08", "53", "57": // connection, resources, operator intervention
		if code == "57014" { // query_canceled
			return errs.ErrKindTimeout
		}
		return errs.ErrKindConnectionFailed
	case "28": // invalid authorization
		return errs.ErrKindPermissionDenied
	case "42":
		if code == "42501" { // insufficient_privilege
			return errs.ErrKindPermissionDenied
		}
		return errs.ErrKindQueryFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
