// Payment HTTP handlers.
//
// This file exposes REST endpoints for payment operations:
//   - POST /payments/verify          (record a completed payment, advance order)
//   - POST /payments/direct-purchase (create an order for a service listing)
//
// Both endpoints are deduplicated: verification by the gateway's payment id,
// direct purchase by an Idempotency-Key header (generated server-side when the
// client omits it).
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dowajoo/go-market-backend/internal/http/middleware"
	"github.com/dowajoo/go-market-backend/internal/repo"
	"github.com/dowajoo/go-market-backend/internal/services"
)

//
// DTOs
//

// VerifyPaymentRequest is the JSON payload for payment verification.
type VerifyPaymentRequest struct {
	// PaymentID is the external gateway's payment identifier.
	PaymentID string `json:"payment_id" binding:"required" example:"imp_1234567890"`
	// OrderID is the order the payment settles.
	OrderID string `json:"order_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// PaymentRequestID optionally links a pending payment request to mark as paid.
	PaymentRequestID string `json:"payment_request_id,omitempty" example:"7c9f0a7e-0c1d-4f7b-9a40-3b1f6c1d2e3f"`
	// Amount is the settled amount as reported by the gateway, in minor units.
	Amount int64 `json:"amount" example:"50000"`
	// Method is the payment method label (e.g. "card").
	Method string `json:"method,omitempty" example:"card"`
}

// VerifiedOrder is the order fragment echoed after successful verification.
type VerifiedOrder struct {
	ID        string `json:"id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Status    string `json:"status" example:"in_progress"`
	PaymentID string `json:"payment_id" example:"imp_1234567890"`
}

// VerifyPaymentResponse confirms a processed verification.
type VerifyPaymentResponse struct {
	Success bool          `json:"success" example:"true"`
	Order   VerifiedOrder `json:"order"`
}

// DirectPurchaseRequest is the JSON payload for creating a direct purchase.
type DirectPurchaseRequest struct {
	SellerID  string `json:"seller_id" binding:"required" example:"a2d4a1f0-62f2-4f3a-8a9a-111111111111"`
	ServiceID string `json:"service_id" binding:"required" example:"b3e5b2f1-73f3-4f4b-9b0b-222222222222"`
	// Title describes the purchase (max 200 chars).
	Title       string `json:"title" binding:"required" example:"Logo design package"`
	Description string `json:"description,omitempty" example:"Two concepts, three revisions"`
	// Amount is the listed price in minor units.
	Amount       int64 `json:"amount" binding:"required" example:"50000"`
	DeliveryDays int   `json:"delivery_days,omitempty" example:"7"`
}

// DirectPurchaseResponse confirms a created (or replayed) direct purchase.
type DirectPurchaseResponse struct {
	Success        bool   `json:"success" example:"true"`
	OrderID        string `json:"order_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	IdempotencyKey string `json:"idempotency_key" example:"order-20260828-a1b2c3"`
	Amount         int64  `json:"amount" example:"50000"`
	// IsExisting is true when a reused idempotency key returned the
	// previously created order instead of a new one.
	IsExisting bool `json:"is_existing" example:"false"`
}

//
// Handlers
//

// VerifyPayment godoc
// @ID          verifyPayment
// @Summary     Verify a completed payment
// @Description Records the gateway payment exactly once and advances the order
// @Description from pending_payment to in_progress. Retried verifications of
// @Description the same payment are safe and still advance a stuck order.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.VerifyPaymentRequest  true  "Verification payload"
//
// @Success     200  {object} handlers.VerifyPaymentResponse
// @Failure     400  {object} handlers.ErrorResponse "Validation error or order not awaiting payment"
// @Failure     403  {object} handlers.ErrorResponse "Caller is not the buyer"
// @Failure     404  {object} handlers.ErrorResponse "Order not found"
// @Failure     409  {object} handlers.ErrorResponse "Concurrent modification"
// @Failure     500  {object} handlers.ErrorResponse "Payment recording or order advancement failed"
// @Router      /payments/verify [post]
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "payment_id and order_id required")
		return
	}
	if _, err := uuid.Parse(req.OrderID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order_id must be a UUID")
		return
	}

	res, err := h.paySvc.Verify(c.Request.Context(), userID(c), services.VerifyInput{
		OrderID:           req.OrderID,
		ExternalPaymentID: strings.TrimSpace(req.PaymentID),
		PaymentRequestID:  strings.TrimSpace(req.PaymentRequestID),
		Amount:            req.Amount,
		Method:            req.Method,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			middleware.ObserveVerification("rejected")
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		case errors.Is(err, services.ErrNotBuyer):
			middleware.ObserveVerification("rejected")
			fail(c, http.StatusForbidden, ErrCodeForbidden, "only the buyer can verify this payment")
		case errors.Is(err, services.ErrAlreadyPaid):
			middleware.ObserveVerification("rejected")
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order is not awaiting payment")
		case errors.Is(err, services.ErrPriceMismatch):
			middleware.ObserveVerification("rejected")
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount does not match the order total")
		case errors.Is(err, repo.ErrLockConflict):
			middleware.ObserveVerification("failed")
			middleware.ObserveLockConflict(c.FullPath())
			fail(c, http.StatusConflict, ErrCodeLockConflict, "order was modified concurrently, re-read and retry")
		case errors.Is(err, services.ErrPaymentRecordFailed):
			middleware.ObserveVerification("failed")
			fail(c, http.StatusInternalServerError, ErrCodePaymentFailed, "payment could not be recorded")
		case errors.Is(err, services.ErrOrderAdvanceFailed):
			middleware.ObserveVerification("failed")
			fail(c, http.StatusInternalServerError, ErrCodeOrderUpdateFailed, "payment recorded but order update failed")
		default:
			middleware.ObserveVerification("failed")
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	middleware.ObserveVerification("verified")
	ok(c, http.StatusOK, VerifyPaymentResponse{
		Success: true,
		Order: VerifiedOrder{
			ID:        res.Order.ID,
			Status:    string(res.Order.Status),
			PaymentID: res.Payment.ExternalPaymentID,
		},
	})
}

// DirectPurchase godoc
// @ID          directPurchase
// @Summary     Create a direct purchase order
// @Description Creates a pending_payment order for a fixed-price service listing.
// @Description Honors the Idempotency-Key header: retries with the same key
// @Description return the originally created order.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Deduplication key for retries"
// @Param       body             body    handlers.DirectPurchaseRequest  true  "Purchase payload"
//
// @Success     201  {object} handlers.DirectPurchaseResponse
// @Success     200  {object} handlers.DirectPurchaseResponse "Replayed from idempotency key"
// @Failure     400  {object} handlers.ErrorResponse "Validation error"
// @Failure     403  {object} handlers.ErrorResponse "Buyer and seller are the same user"
// @Failure     404  {object} handlers.ErrorResponse "Seller or service not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /payments/direct-purchase [post]
func (h *Handlers) DirectPurchase(c *gin.Context) {
	var req DirectPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	key, found := middleware.GetIdempotencyKey(c)
	if !found {
		key = uuid.NewString()
	}

	order, existing, err := h.orderSvc.CreateDirectPurchase(c.Request.Context(), services.DirectPurchaseInput{
		BuyerID:        userID(c),
		SellerID:       req.SellerID,
		ServiceID:      req.ServiceID,
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Amount:         req.Amount,
		DeliveryDays:   req.DeliveryDays,
		IdempotencyKey: key,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount out of accepted range")
		case errors.Is(err, services.ErrInvalidTitle):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-200 chars)")
		case errors.Is(err, services.ErrPriceMismatch):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount does not match the listed price")
		case errors.Is(err, services.ErrSelfPurchase):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "cannot purchase your own service")
		case errors.Is(err, services.ErrSellerNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "seller not found")
		case errors.Is(err, services.ErrServiceNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "service not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	status := http.StatusCreated
	if existing {
		status = http.StatusOK
	}
	ok(c, status, DirectPurchaseResponse{
		Success:        true,
		OrderID:        order.ID,
		IdempotencyKey: key,
		Amount:         order.Amount,
		IsExisting:     existing,
	})
}
