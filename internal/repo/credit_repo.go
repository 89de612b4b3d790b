// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the atomic ledger operations on seller
// credits.
//
// Check-and-decrement is the one mutation that cannot be split into an
// application-layer read followed by a write: the window between the two is
// wide enough to race under load. Both operations here run as a single
// backend transaction whose first statement is a conditional UPDATE, so the
// balance check and the mutation are indivisible; application code never
// holds a balance value across the call.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dowajoo/go-market-backend/internal/domain"
)

// ErrCreditNotFound is returned when the referenced credit row is absent.
var ErrCreditNotFound = errors.New("credit not found")

// Ledger reasons recorded on credit transactions.
const (
	LedgerReasonDeduct = "ad_charge"
	LedgerReasonTopUp  = "top_up"
)

// DeductResult is the outcome of an atomic balance mutation. Remaining is the
// post-operation balance on success and the untouched balance when the
// precondition fails.
type DeductResult struct {
	Success   bool
	Remaining int64
}

// DeductCredit atomically verifies balance >= amount, decrements the balance,
// and appends a ledger row, returning the resulting balance. If the balance
// cannot cover the amount, nothing is mutated and the current balance is
// reported with Success=false. A missing credit ID yields ErrCreditNotFound.
func DeductCredit(ctx context.Context, db *gorm.DB, creditID string, amount int64) (DeductResult, error) {
	var out DeductResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Credit{}).
			Where("id = ? AND balance >= ?", creditID, amount).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance - ?", amount),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}

		var c domain.Credit
		if err := tx.Where("id = ?", creditID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCreditNotFound
			}
			return err
		}

		if res.RowsAffected == 0 {
			// Insufficient balance; c holds the untouched value.
			out = DeductResult{Success: false, Remaining: c.Balance}
			return nil
		}

		entry := &domain.CreditTransaction{
			ID:           uuid.NewString(),
			CreditID:     creditID,
			Delta:        -amount,
			BalanceAfter: c.Balance,
			Reason:       LedgerReasonDeduct,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		out = DeductResult{Success: true, Remaining: c.Balance}
		return nil
	})
	if err != nil {
		return DeductResult{}, err
	}
	return out, nil
}

// AddCredit atomically increments a credit balance and appends the matching
// ledger row, returning the new balance. Same indivisibility contract as
// DeductCredit.
func AddCredit(ctx context.Context, db *gorm.DB, creditID string, amount int64) (int64, error) {
	var remaining int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Credit{}).
			Where("id = ?", creditID).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance + ?", amount),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCreditNotFound
		}

		var c domain.Credit
		if err := tx.Where("id = ?", creditID).First(&c).Error; err != nil {
			return err
		}

		entry := &domain.CreditTransaction{
			ID:           uuid.NewString(),
			CreditID:     creditID,
			Delta:        amount,
			BalanceAfter: c.Balance,
			Reason:       LedgerReasonTopUp,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		remaining = c.Balance
		return nil
	})
	return remaining, err
}
