// Package services - OrderService
//
// This file implements OrderService, which owns the order lifecycle: creating
// orders exactly once per idempotency key (direct purchase) and applying
// status transitions under optimistic concurrency control.
//
// Every mutation re-reads the order immediately before acting on it; this
// layer never caches rows. Concurrency guarantees are pushed down to the
// backend: the unique index on idempotency_key arbitrates duplicate creation,
// and the conditional update on updated_at arbitrates concurrent transitions.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// order and caller identifiers.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dowajoo/go-market-backend/internal/domain"
	"github.com/dowajoo/go-market-backend/internal/repo"
)

// OrderService coordinates order creation and lifecycle transitions.
type OrderService struct {
	// DB is the GORM handle used for all order operations.
	DB *gorm.DB

	// Amount bounds for direct purchases, in minor currency units.
	MinOrderAmount int64
	MaxOrderAmount int64

	// MaxTitleLen caps order titles by byte length.
	MaxTitleLen int

	// CommissionRate applied to new orders, in [0,1].
	CommissionRate float64
}

// NewOrderService constructs an OrderService with the marketplace defaults
// (1,000 to 100,000,000 minor units, 200-char titles, zero commission).
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{
		DB:             db,
		MinOrderAmount: 1_000,
		MaxOrderAmount: 100_000_000,
		MaxTitleLen:    200,
	}
}

// DirectPurchaseInput is the validated input for creating an order directly
// from a service listing.
type DirectPurchaseInput struct {
	BuyerID        string
	SellerID       string // sellers.id, not the seller's user id
	ServiceID      string
	Title          string
	Description    string
	Amount         int64
	DeliveryDays   int
	IdempotencyKey string
}

// CreateDirectPurchase creates an order for a service exactly once per
// idempotency key.
//
// Validation:
//   - Amount must be within the configured bounds (ErrInvalidAmount) and
//     equal the listed service price (ErrPriceMismatch).
//   - Title must be non-empty and within MaxTitleLen; otherwise ErrInvalidTitle.
//   - The seller must exist (ErrSellerNotFound) and must not be the buyer
//     (ErrSelfPurchase); the service must exist (ErrServiceNotFound).
//
// The returned bool reports whether an existing order was returned instead of
// a newly created one; both outcomes are success for the caller.
func (s *OrderService) CreateDirectPurchase(ctx context.Context, in DirectPurchaseInput) (*domain.Order, bool, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "CreateDirectPurchase",
		trace.WithAttributes(
			attribute.String("buyer.id", in.BuyerID),
			attribute.String("service.id", in.ServiceID),
		),
	)
	defer span.End()

	if in.Amount < s.MinOrderAmount || in.Amount > s.MaxOrderAmount {
		return nil, false, ErrInvalidAmount
	}
	if in.Title == "" || (s.MaxTitleLen > 0 && len(in.Title) > s.MaxTitleLen) {
		return nil, false, ErrInvalidTitle
	}

	seller, err := repo.GetSeller(ctx, s.DB, in.SellerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, ErrSellerNotFound
		}
		return nil, false, err
	}
	if seller.UserID == in.BuyerID {
		return nil, false, ErrSelfPurchase
	}

	svc, err := repo.GetService(ctx, s.DB, in.ServiceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, ErrServiceNotFound
		}
		return nil, false, err
	}
	if svc.Price != in.Amount {
		return nil, false, ErrPriceMismatch
	}

	days := in.DeliveryDays
	if days <= 0 {
		days = svc.DeliveryDays
	}
	desc := in.Description
	if desc == "" {
		desc = svc.Title
	}
	fee := int64(float64(in.Amount) * s.CommissionRate)

	order := &domain.Order{
		BuyerID:        in.BuyerID,
		SellerID:       seller.UserID, // orders reference the seller's user id
		ServiceID:      in.ServiceID,
		Title:          in.Title,
		Description:    desc,
		Status:         string(domain.StatusPendingPayment),
		Amount:         in.Amount,
		TotalAmount:    in.Amount,
		CommissionRate: s.CommissionRate,
		CommissionFee:  fee,
		SellerAmount:   in.Amount - fee,
		DeliveryDays:   days,
	}
	return repo.CreateOrder(ctx, s.DB, order, in.IdempotencyKey)
}

// UpdateStatus applies a role-scoped status transition to an order.
//
// Sequence:
//  1. Parse the requested status; unknown values fail with ErrInvalidStatus
//     before the order is even fetched.
//  2. Re-fetch the order (fresh read, ErrOrderNotFound when missing).
//  3. Resolve the caller's role by identity; a non-participant fails with
//     ErrNotParticipant.
//  4. Ask the state machine to approve the transition; rejections surface as
//     *domain.TransitionError with the full (current, requested, role) triple.
//  5. Persist via the optimistic updater. repo.ErrLockConflict passes through
//     untouched: the caller holds stale state and must re-read before
//     deciding to retry. No automatic retry happens here.
func (s *OrderService) UpdateStatus(ctx context.Context, callerID, orderID, requested string) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("order.requested_status", requested),
		),
	)
	defer span.End()

	target, err := domain.ParseOrderStatus(requested)
	if err != nil {
		return nil, ErrInvalidStatus
	}

	order, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	role, ok := domain.RoleFor(order, callerID)
	if !ok {
		return nil, ErrNotParticipant
	}

	change, err := domain.Transition(domain.OrderStatus(order.Status), target, role, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	return repo.UpdateOrderStatusLocked(ctx, s.DB, order.ID, change.Fields, order.UpdatedAt)
}

// ListPage returns a page of the user's orders plus the total count, applying
// defaults for invalid page/pageSize.
func (s *OrderService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountOrders(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Order{}, 0, nil
	}

	items, err := repo.ListOrdersPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}
