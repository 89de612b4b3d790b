// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Payment and
// PaymentRequest models.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dowajoo/go-market-backend/internal/domain"
)

// Payment lifecycle values. A completed payment is the only kind the
// verification flow records; anything else is gateway-side state we never see.
const (
	PaymentStatusCompleted = "completed"
	PaymentRequestPaid     = "paid"
)

// CreatePayment records a settlement for orderID exactly once per external
// payment ID. A retried webhook or client call with the same externalID
// returns the original row with isExisting=true.
func CreatePayment(ctx context.Context, db *gorm.DB, orderID, externalID string, amount int64, method string) (*domain.Payment, bool, error) {
	now := time.Now().UTC()
	p := &domain.Payment{
		ID:                uuid.NewString(),
		OrderID:           orderID,
		ExternalPaymentID: externalID,
		Amount:            amount,
		Method:            method,
		Status:            PaymentStatusCompleted,
		PaidAt:            &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return CreateIdempotent(ctx, db, "external_payment_id", externalID, p)
}

// GetPaymentByExternalID fetches a payment row by the gateway's payment ID.
func GetPaymentByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := db.WithContext(ctx).Where("external_payment_id = ?", externalID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPaymentRequestPaid links a payment request to the order it settled and
// flips it to paid. Returns ErrNotFound when the request does not exist.
// Callers treat any failure here as best-effort: it is logged, never fatal.
func MarkPaymentRequestPaid(ctx context.Context, db *gorm.DB, requestID, orderID string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.PaymentRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]any{
			"status":     PaymentRequestPaid,
			"order_id":   orderID,
			"paid_at":    now,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
