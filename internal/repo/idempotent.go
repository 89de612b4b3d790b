// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the generic create-exactly-once helper
// used for orders (keyed by idempotency_key) and payments (keyed by
// external_payment_id).
//
// The helper closes the check-then-act race without any lock: the unique
// index on the natural key column is the real arbiter. When a concurrent
// caller wins the race between the initial select and the insert, the
// resulting constraint violation is recovered by re-reading the winner's row
// exactly once; it is never surfaced to the caller as an error.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// IsConstraintViolation reports whether err is a unique-constraint violation.
// It is the single place backend-specific error shapes are inspected; callers
// only ever see the boolean classification.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations;
	// Postgres phrases them differently again.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed: unique") ||
		strings.Contains(msg, "duplicate key")
}

// CreateIdempotent inserts rec unless a row with the same natural key already
// exists, in which case the existing row is returned with isExisting=true.
//
// Algorithm:
//  1. Select by keyColumn = keyValue. If found, return it with isExisting=true.
//  2. A select error other than "not found" is returned as-is; no insert is
//     attempted.
//  3. Otherwise insert rec; on success return rec with isExisting=false.
//  4. Insert failed with a uniqueness violation (a concurrent caller won the
//     race), re-run the select once and return the winner with isExisting=true.
//     This is a single retry, not a loop; a failure of the retried select is
//     surfaced unrecovered.
//  5. Any other insert error is returned verbatim.
//
// All callers observe the same logical record, whether they created it or
// lost the race.
func CreateIdempotent[T any](ctx context.Context, db *gorm.DB, keyColumn, keyValue string, rec *T) (*T, bool, error) {
	var existing T
	err := db.WithContext(ctx).Where(keyColumn+" = ?", keyValue).First(&existing).Error
	if err == nil {
		return &existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsConstraintViolation(err) {
			var winner T
			if rerr := db.WithContext(ctx).Where(keyColumn+" = ?", keyValue).First(&winner).Error; rerr != nil {
				return nil, false, rerr
			}
			return &winner, true, nil
		}
		return nil, false, err
	}
	return rec, false, nil
}
