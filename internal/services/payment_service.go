// Package services - PaymentService
//
// This file implements the payment verification orchestrator: "record
// payment, advance order, notify" as one logical operation with
// partial-failure tolerance. The payment row is written exactly once per
// gateway payment ID, the order advances under the optimistic lock, and the
// two secondary effects (payment-request linkage, seller notification) are
// best-effort only.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dowajoo/go-market-backend/internal/domain"
	"github.com/dowajoo/go-market-backend/internal/repo"
)

// Notifier delivers fire-and-forget notifications. Implementations must treat
// delivery as best-effort; a returned error is logged by the caller and never
// affects the outcome of the operation that triggered it.
type Notifier interface {
	// PaymentReceived tells the seller that an order has been paid.
	PaymentReceived(ctx context.Context, sellerID, orderID string, amount int64) error
}

// LogNotifier is the default Notifier: it only writes a structured log line.
// Real delivery channels (push, email) hang off the same interface.
type LogNotifier struct{}

// PaymentReceived implements Notifier.
func (LogNotifier) PaymentReceived(_ context.Context, sellerID, orderID string, amount int64) error {
	log.Info().
		Str("seller_id", sellerID).
		Str("order_id", orderID).
		Int64("amount", amount).
		Msg("payment received")
	return nil
}

// PaymentService implements the buyer's payment verification use case.
type PaymentService struct {
	// DB is the GORM handle used for all payment operations.
	DB *gorm.DB
	// Notifier receives the best-effort payment notification. Nil disables it.
	Notifier Notifier
}

// VerifyInput carries the request data for payment verification.
type VerifyInput struct {
	OrderID           string
	ExternalPaymentID string
	// PaymentRequestID optionally links a seller-issued payment request;
	// updating it is best-effort.
	PaymentRequestID string
	// Amount is what the gateway reports as settled. When non-zero it must
	// equal the order's total.
	Amount int64
	// Method labels the payment instrument; defaults to "card".
	Method string
}

// VerifyResult is the finalized order/payment summary returned on success.
type VerifyResult struct {
	Order   *domain.Order
	Payment *domain.Payment
}

// Verify records the gateway payment and advances the order to in_progress.
//
// Sequence:
//  1. Re-fetch the order; the caller must be its buyer (ErrNotBuyer) and its
//     status must be pending_payment (anything else yields ErrAlreadyPaid,
//     even a status that merely looks unpaid). A reported amount that does
//     not equal the order total yields ErrPriceMismatch.
//  2. Record the payment exactly once, keyed by the gateway payment ID. A
//     redelivered call finds the existing row and continues with it, which
//     also lets a verification that previously recorded the payment but
//     failed to advance the order finish the job on retry.
//  3. A payment persistence failure is reported as ErrPaymentRecordFailed;
//     the order is untouched.
//  4. Advance pending_payment to in_progress through the state machine and the
//     optimistic updater. repo.ErrLockConflict passes through unchanged; any
//     other failure is reported as ErrOrderAdvanceFailed; the payment row
//     now exists but the order did not move, a surfaced inconsistency for
//     reconciliation, never a silent retry.
//  5. If a payment request ID was supplied, mark it paid. Failure is logged
//     and ignored.
//  6. Fire the seller notification. Failure is logged and ignored.
func (s *PaymentService) Verify(ctx context.Context, callerID string, in VerifyInput) (*VerifyResult, error) {
	tr := otel.Tracer("services/PaymentService")
	ctx, span := tr.Start(ctx, "Verify",
		trace.WithAttributes(
			attribute.String("order.id", in.OrderID),
			attribute.String("payment.external_id", in.ExternalPaymentID),
		),
	)
	defer span.End()

	order, err := repo.GetOrder(ctx, s.DB, in.OrderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.BuyerID != callerID {
		return nil, ErrNotBuyer
	}
	if domain.OrderStatus(order.Status) != domain.StatusPendingPayment {
		return nil, ErrAlreadyPaid
	}
	if in.Amount != 0 && in.Amount != order.TotalAmount {
		return nil, ErrPriceMismatch
	}

	method := in.Method
	if method == "" {
		method = "card"
	}
	payment, _, err := repo.CreatePayment(ctx, s.DB, order.ID, in.ExternalPaymentID, order.TotalAmount, method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentRecordFailed, err)
	}

	change, err := domain.Transition(domain.StatusPendingPayment, domain.StatusInProgress, domain.RoleSystem, time.Now().UTC())
	if err != nil {
		// The table always allows this row; reaching here means the table
		// itself changed underneath us.
		return nil, fmt.Errorf("%w: %v", ErrOrderAdvanceFailed, err)
	}
	updated, err := repo.UpdateOrderStatusLocked(ctx, s.DB, order.ID, change.Fields, order.UpdatedAt)
	if err != nil {
		if errors.Is(err, repo.ErrLockConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderAdvanceFailed, err)
	}

	if in.PaymentRequestID != "" {
		if err := repo.MarkPaymentRequestPaid(ctx, s.DB, in.PaymentRequestID, order.ID); err != nil {
			log.Error().
				Err(err).
				Str("payment_request_id", in.PaymentRequestID).
				Str("order_id", order.ID).
				Msg("payment request update failed (non-critical)")
		}
	}

	if s.Notifier != nil {
		if err := s.Notifier.PaymentReceived(ctx, updated.SellerID, updated.ID, updated.TotalAmount); err != nil {
			log.Error().
				Err(err).
				Str("order_id", updated.ID).
				Msg("payment notification failed (non-critical)")
		}
	}

	return &VerifyResult{Order: updated, Payment: payment}, nil
}
