package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dowajoo/go-market-backend/internal/domain"
)

func TestDeductCredit_ExactBalanceThenInsufficient(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Credit{}, &domain.CreditTransaction{})
	ctx := context.Background()

	if err := db.Create(&domain.Credit{ID: "credit-123", SellerID: "s1", Balance: 3000}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Deducting the exact balance succeeds and leaves zero.
	res, err := DeductCredit(ctx, db, "credit-123", 3000)
	if err != nil {
		t.Fatalf("DeductCredit: %v", err)
	}
	if !res.Success || res.Remaining != 0 {
		t.Fatalf("expected success with 0 remaining, got %+v", res)
	}

	// A second identical deduction must fail the precondition and leave the
	// balance and ledger untouched.
	res, err = DeductCredit(ctx, db, "credit-123", 3000)
	if err != nil {
		t.Fatalf("second DeductCredit: %v", err)
	}
	if res.Success || res.Remaining != 0 {
		t.Fatalf("expected rejection with 0 remaining, got %+v", res)
	}

	var entries int64
	if err := db.Model(&domain.CreditTransaction{}).Where("credit_id = ?", "credit-123").Count(&entries).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if entries != 1 {
		t.Fatalf("rejected deduction must not append a ledger row, have %d", entries)
	}
}

func TestDeductCredit_MissingCredit(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Credit{}, &domain.CreditTransaction{})

	if _, err := DeductCredit(context.Background(), db, "missing", 100); !errors.Is(err, ErrCreditNotFound) {
		t.Fatalf("expected ErrCreditNotFound, got %v", err)
	}
}

func TestDeductCredit_LedgerRowMatchesMutation(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Credit{}, &domain.CreditTransaction{})
	ctx := context.Background()

	if err := db.Create(&domain.Credit{ID: "c1", SellerID: "s1", Balance: 5000}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := DeductCredit(ctx, db, "c1", 1200)
	if err != nil || !res.Success {
		t.Fatalf("DeductCredit: res=%+v err=%v", res, err)
	}
	if res.Remaining != 3800 {
		t.Fatalf("remaining = %d, want 3800", res.Remaining)
	}

	var entry domain.CreditTransaction
	if err := db.First(&entry, "credit_id = ?", "c1").Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if entry.Delta != -1200 || entry.BalanceAfter != 3800 || entry.Reason != LedgerReasonDeduct {
		t.Fatalf("unexpected ledger row: %+v", entry)
	}
}

func TestAddCredit(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Credit{}, &domain.CreditTransaction{})
	ctx := context.Background()

	if _, err := AddCredit(ctx, db, "missing", 100); !errors.Is(err, ErrCreditNotFound) {
		t.Fatalf("expected ErrCreditNotFound, got %v", err)
	}

	if err := db.Create(&domain.Credit{ID: "c1", SellerID: "s1", Balance: 100}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	balance, err := AddCredit(ctx, db, "c1", 900)
	if err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	if balance != 1000 {
		t.Fatalf("balance = %d, want 1000", balance)
	}

	var entry domain.CreditTransaction
	if err := db.First(&entry, "credit_id = ?", "c1").Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if entry.Delta != 900 || entry.BalanceAfter != 1000 || entry.Reason != LedgerReasonTopUp {
		t.Fatalf("unexpected ledger row: %+v", entry)
	}
}

// Hammers one credit from many goroutines. Only as many deductions may succeed
// as the balance can cover, and the balance must never go negative.
func TestDeductCredit_ConcurrentNeverOverspends(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Credit{}, &domain.CreditTransaction{})
	// Serialize on one connection so SQLite never reports busy instead of
	// exercising the conditional update.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	ctx := context.Background()

	if err := db.Create(&domain.Credit{ID: "c1", SellerID: "s1", Balance: 500}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make([]DeductResult, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = DeductCredit(ctx, db, "c1", 100)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i].Success {
			succeeded++
		}
		if results[i].Remaining < 0 {
			t.Fatalf("worker %d observed negative balance: %+v", i, results[i])
		}
	}
	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successful deductions, got %d", succeeded)
	}

	var c domain.Credit
	if err := db.First(&c, "id = ?", "c1").Error; err != nil {
		t.Fatalf("load credit: %v", err)
	}
	if c.Balance != 0 {
		t.Fatalf("final balance = %d, want 0", c.Balance)
	}

	var entries int64
	if err := db.Model(&domain.CreditTransaction{}).Where("credit_id = ?", "c1").Count(&entries).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if entries != 5 {
		t.Fatalf("ledger rows = %d, want 5", entries)
	}
}
