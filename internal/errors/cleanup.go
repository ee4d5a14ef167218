// Package errors provides cleanup helpers that log or propagate close errors
// instead of dropping them.
package errors

import (
	"database/sql"
	stderrors "errors"
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes an io.Closer and logs a failure.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// CloseInto closes closer and stores its error in *errp when no earlier error
// is set there. Meant for a deferred call with a named error return:
//
//	defer errors.CloseInto(&err, s)
func CloseInto(errp *error, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil && *errp == nil {
		*errp = err
	}
}

// DeferRollback rolls back a transaction and logs a failure.
// sql.ErrTxDone is expected after a successful commit and ignored.
func DeferRollback(logger zerolog.Logger, tx *sql.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !stderrors.Is(err, sql.ErrTxDone) {
		logger.Warn().Err(err).Msg("transaction rollback failed")
	}
}
