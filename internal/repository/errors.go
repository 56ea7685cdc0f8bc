package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/lib/pq"
)

// PostgreSQL error codes the repository classifies
const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqQueryCanceled        = "57014"
)

// conflictMessages maps unique constraints to caller-facing messages
var conflictMessages = map[string]string{
	"identities_login_key":      "username already exists",
	"identities_email_key":      "email already exists",
	"vehicles_plate_key":        "plate number already registered",
	"vehicles_scan_payload_key": "scan code already issued",
}

// mapError classifies a storage error into one of the model error kinds.
// Errors that already carry a kind pass through unchanged.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if models.Kind(err) != nil {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", models.ErrTransient, op, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrNotFound, op)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			msg, ok := conflictMessages[pqErr.Constraint]
			if !ok {
				msg = "duplicate value violates " + pqErr.Constraint
			}
			return fmt.Errorf("%w: %s", models.ErrConflict, msg)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s: referenced record does not exist", models.ErrNotFound, op)
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable, pqQueryCanceled:
			return fmt.Errorf("%w: %s: %w", models.ErrTransient, op, err)
		}
	}

	return fmt.Errorf("%w: %s: %w", models.ErrDependency, op, err)
}

// isSerializationFailure reports whether err is a conflict the database
// resolved by aborting this transaction, which is safe to run again.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	return false
}
