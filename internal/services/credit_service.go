// Package services - CreditService
//
// This file implements CreditService, the application-level view of the
// seller credit ledger. It validates amounts and relays the atomic backend
// result; it never reads a balance and writes a decremented value itself,
// because that read-modify-write split is exactly the race the ledger
// operations in the repo layer exist to prevent.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dowajoo/go-market-backend/internal/repo"
)

// CreditService exposes atomic balance operations on seller credits.
type CreditService struct {
	// DB is the GORM handle used for all credit operations.
	DB *gorm.DB
}

// Deduct atomically charges amount against the credit and returns the
// remaining balance.
//
// Outcomes:
//   - amount <= 0: ErrInvalidDeduction, remaining 0.
//   - unknown credit ID: ErrCreditNotFound, remaining 0.
//   - insufficient balance: ErrInsufficientCredit with the untouched balance;
//     nothing was mutated.
//   - success: nil error and the post-deduction balance; a ledger row was
//     appended in the same atomic step.
func (s *CreditService) Deduct(ctx context.Context, creditID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidDeduction
	}
	res, err := repo.DeductCredit(ctx, s.DB, creditID, amount)
	if err != nil {
		if errors.Is(err, repo.ErrCreditNotFound) {
			return 0, ErrCreditNotFound
		}
		return 0, err
	}
	if !res.Success {
		return res.Remaining, ErrInsufficientCredit
	}
	return res.Remaining, nil
}

// TopUp atomically adds amount to the credit and returns the new balance.
func (s *CreditService) TopUp(ctx context.Context, creditID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidDeduction
	}
	remaining, err := repo.AddCredit(ctx, s.DB, creditID, amount)
	if err != nil {
		if errors.Is(err, repo.ErrCreditNotFound) {
			return 0, ErrCreditNotFound
		}
		return 0, err
	}
	return remaining, nil
}
