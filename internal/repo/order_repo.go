// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition.
//
// Error semantics:
//   - When an order is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - UpdateOrderStatusLocked returns ErrLockConflict when the conditional
//     update matches zero rows, which means the row was mutated between the
//     caller's read and this write. Callers should re-fetch and decide whether
//     to retry; this is a different condition from a generic DB failure.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dowajoo/go-market-backend/internal/domain"
)

// ErrLockConflict indicates an optimistic-lock mismatch: the order's
// updated_at no longer equals the revision the caller read. The row was
// changed by a concurrent writer; the caller holds stale state.
var ErrLockConflict = errors.New("order was modified concurrently")

// GetOrder fetches a single order by ID. Every caller that intends to mutate
// the order should read it immediately before the write to keep the race
// window minimal; orders are never cached.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder inserts a new order exactly once per idempotency key. Repeated
// calls with the same key return the original row with isExisting=true, no
// matter how the duplicates interleave.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order, idempotencyKey string) (*domain.Order, bool, error) {
	now := time.Now().UTC()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.IdempotencyKey = &idempotencyKey
	o.CreatedAt = now
	o.UpdatedAt = now
	return CreateIdempotent(ctx, db, "idempotency_key", idempotencyKey, o)
}

// GetOrderByIdempotencyKey returns the buyer's order created under key, or
// ErrNotFound. Used by the transport-level replay check; the create path does
// not depend on it.
func GetOrderByIdempotencyKey(ctx context.Context, db *gorm.DB, buyerID, key string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Where("buyer_id = ? AND idempotency_key = ?", buyerID, key).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrderStatusLocked persists a state-machine-approved transition using
// compare-and-swap semantics on updated_at. The update is filtered on both the
// order ID and the revision the caller read; fields must already contain the
// new status and a fresh updated_at (see domain.Transition), so every
// successful write advances the revision and at most one row can ever match a
// given (id, updated_at) pair.
//
// Zero affected rows means a concurrent writer got there first and yields
// ErrLockConflict. On success the updated row is re-read and returned.
func UpdateOrderStatusLocked(ctx context.Context, db *gorm.DB, orderID string, fields map[string]any, expectedUpdatedAt time.Time) (*domain.Order, error) {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND updated_at = ?", orderID, expectedUpdatedAt).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrLockConflict
	}
	return GetOrder(ctx, db, orderID)
}

// CountOrders returns the total number of orders in which userID participates
// as buyer or seller.
func CountOrders(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Count(&total).Error
	return total, err
}

// ListOrdersPage returns a paginated slice of the user's orders, most recent
// first. The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListOrdersPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetSeller fetches a seller profile by ID.
func GetSeller(ctx context.Context, db *gorm.DB, id string) (*domain.Seller, error) {
	var s domain.Seller
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetService fetches a service listing by ID.
func GetService(ctx context.Context, db *gorm.DB, id string) (*domain.Service, error) {
	var svc domain.Service
	if err := db.WithContext(ctx).Where("id = ?", id).First(&svc).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}
