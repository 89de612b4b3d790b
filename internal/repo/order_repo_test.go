package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dowajoo/go-market-backend/internal/domain"
)

func newOrderRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("order_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func testOrder(buyer, seller string) *domain.Order {
	return &domain.Order{
		BuyerID:     buyer,
		SellerID:    seller,
		ServiceID:   "svc-1",
		Title:       "Logo design",
		Status:      string(domain.StatusPendingPayment),
		Amount:      50_000,
		TotalAmount: 50_000,
	}
}

func TestCreateOrder_SetsIDAndTimestamps(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Order{})

	start := time.Now().UTC().Add(-time.Minute)
	created, existing, err := CreateOrder(context.Background(), db, testOrder("b1", "s1"), "key-a")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if existing {
		t.Fatal("fresh key must not report an existing order")
	}
	if created.ID == "" || created.IdempotencyKey == nil || *created.IdempotencyKey != "key-a" {
		t.Fatalf("unexpected Order fields: %+v", created)
	}
	if created.CreatedAt.Before(start) || created.UpdatedAt.Before(start) {
		t.Fatalf("timestamps seem unset: %+v", created)
	}
}

// A second submission with the same key must return the original order, no
// matter how many rows the table otherwise holds.
func TestCreateOrder_DuplicateKeyReturnsOriginal(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Order{})
	ctx := context.Background()

	first, _, err := CreateOrder(ctx, db, testOrder("b1", "s1"), "idem-1")
	if err != nil {
		t.Fatalf("first CreateOrder: %v", err)
	}

	second, existing, err := CreateOrder(ctx, db, testOrder("b1", "s1"), "idem-1")
	if err != nil {
		t.Fatalf("second CreateOrder: %v", err)
	}
	if !existing {
		t.Fatal("duplicate key must report the existing order")
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate returned a different order: %s vs %s", second.ID, first.ID)
	}

	var count int64
	if err := db.Model(&domain.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 order, got %d", count)
	}
}

// Different keys never deduplicate, even with identical payloads.
func TestCreateOrder_DistinctKeysCreateDistinctOrders(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Order{})
	ctx := context.Background()

	a, _, err := CreateOrder(ctx, db, testOrder("b1", "s1"), "key-a")
	if err != nil {
		t.Fatalf("CreateOrder a: %v", err)
	}
	b, _, err := CreateOrder(ctx, db, testOrder("b1", "s1"), "key-b")
	if err != nil {
		t.Fatalf("CreateOrder b: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("distinct keys must create distinct orders")
	}
}

// Simulates losing the select-then-insert race: a competing row with the same
// key is inserted between the initial lookup and the insert, via a create
// callback. The caller must still receive the winner's row, not an error.
func TestCreateOrder_LostRaceReturnsWinner(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Order{})
	ctx := context.Background()

	key := "contested"
	armed := true
	err := db.Callback().Create().Before("gorm:create").Register("test:competing_insert", func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "orders" {
			return
		}
		armed = false // the competing insert below re-enters this callback

		winner := testOrder("b-winner", "s1")
		winner.ID = "winner-id"
		winner.IdempotencyKey = &key
		now := time.Now().UTC()
		winner.CreatedAt = now
		winner.UpdatedAt = now
		if err := db.Session(&gorm.Session{NewDB: true}).Create(winner).Error; err != nil {
			t.Errorf("competing insert: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	got, existing, err := CreateOrder(ctx, db, testOrder("b-loser", "s1"), key)
	if err != nil {
		t.Fatalf("CreateOrder after lost race: %v", err)
	}
	if !existing {
		t.Fatal("lost race must be reported as an existing order")
	}
	if got.ID != "winner-id" || got.BuyerID != "b-winner" {
		t.Fatalf("expected the winner's row, got %+v", got)
	}

	var count int64
	if err := db.Model(&domain.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 order after race, got %d", count)
	}
}

func TestGetOrderByIdempotencyKey(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Order{})
	ctx := context.Background()

	if _, err := GetOrderByIdempotencyKey(ctx, db, "b1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, _, err := CreateOrder(ctx, db, testOrder("b1", "s1"), "key-a")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	got, err := GetOrderByIdempotencyKey(ctx, db, "b1", "key-a")
	if err != nil {
		t.Fatalf("GetOrderByIdempotencyKey: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("wrong order: %s vs %s", got.ID, created.ID)
	}

	// Another buyer's key lookup must not leak the order.
	if _, err := GetOrderByIdempotencyKey(ctx, db, "b2", "key-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong buyer, got %v", err)
	}
}

func TestUpdateOrderStatusLocked_AppliesAndAdvancesRevision(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Order{})
	ctx := context.Background()

	o, _, err := CreateOrder(ctx, db, testOrder("b1", "s1"), "key-a")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	newRev := o.UpdatedAt.Add(time.Second)
	updated, err := UpdateOrderStatusLocked(ctx, db, o.ID, map[string]any{
		"status":     string(domain.StatusInProgress),
		"updated_at": newRev,
	}, o.UpdatedAt)
	if err != nil {
		t.Fatalf("UpdateOrderStatusLocked: %v", err)
	}
	if updated.Status != string(domain.StatusInProgress) {
		t.Fatalf("status not applied: %+v", updated)
	}
	if updated.UpdatedAt.Equal(o.UpdatedAt) {
		t.Fatal("revision must advance on a successful write")
	}
}

func TestUpdateOrderStatusLocked_StaleRevisionConflicts(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Order{})
	ctx := context.Background()

	o, _, err := CreateOrder(ctx, db, testOrder("b1", "s1"), "key-a")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	staleRev := o.UpdatedAt

	// First writer wins.
	if _, err := UpdateOrderStatusLocked(ctx, db, o.ID, map[string]any{
		"status":     string(domain.StatusInProgress),
		"updated_at": staleRev.Add(time.Second),
	}, staleRev); err != nil {
		t.Fatalf("first write: %v", err)
	}

	// Second writer still holds the old revision and must be rejected,
	// distinctly from not-found and generic errors.
	_, err = UpdateOrderStatusLocked(ctx, db, o.ID, map[string]any{
		"status":     string(domain.StatusCancelled),
		"updated_at": staleRev.Add(2 * time.Second),
	}, staleRev)
	if !errors.Is(err, ErrLockConflict) {
		t.Fatalf("expected ErrLockConflict, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("lock conflict must not be conflated with not-found")
	}

	// The losing write must not have touched the row.
	got, err := GetOrder(ctx, db, o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != string(domain.StatusInProgress) {
		t.Fatalf("loser mutated the row: %+v", got)
	}
}

func TestUpdateOrderStatusLocked_MissingOrderConflicts(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Order{})

	_, err := UpdateOrderStatusLocked(context.Background(), db, "missing", map[string]any{
		"status":     string(domain.StatusInProgress),
		"updated_at": time.Now().UTC(),
	}, time.Now().UTC())
	if !errors.Is(err, ErrLockConflict) {
		t.Fatalf("expected ErrLockConflict for missing row, got %v", err)
	}
}

func TestCountAndListOrders_BuyerOrSeller(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Order{})
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	seed := []domain.Order{
		{ID: "o1", BuyerID: "u1", SellerID: "s1", ServiceID: "x", Title: "t", Status: "completed", Amount: 1, TotalAmount: 1, CreatedAt: base.Add(1 * time.Second), UpdatedAt: base},
		{ID: "o2", BuyerID: "u2", SellerID: "u1", ServiceID: "x", Title: "t", Status: "completed", Amount: 1, TotalAmount: 1, CreatedAt: base.Add(2 * time.Second), UpdatedAt: base},
		{ID: "o3", BuyerID: "u2", SellerID: "s2", ServiceID: "x", Title: "t", Status: "completed", Amount: 1, TotalAmount: 1, CreatedAt: base.Add(3 * time.Second), UpdatedAt: base},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", seed[i].ID, err)
		}
	}

	// u1 participates in o1 (buyer) and o2 (seller).
	total, err := CountOrders(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CountOrders: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2, got %d", total)
	}

	page, err := ListOrdersPage(ctx, db, "u1", 0, 10)
	if err != nil {
		t.Fatalf("ListOrdersPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != "o2" || page[1].ID != "o1" {
		t.Fatalf("unexpected page (want newest first): %+v", page)
	}
}

func TestGetSellerAndService_NotFound(t *testing.T) {
	db := newOrderRepoDB(t, &domain.Seller{}, &domain.Service{})
	ctx := context.Background()

	if _, err := GetSeller(ctx, db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSeller: expected ErrNotFound, got %v", err)
	}
	if _, err := GetService(ctx, db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetService: expected ErrNotFound, got %v", err)
	}
}
