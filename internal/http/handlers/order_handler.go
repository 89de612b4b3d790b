// Order HTTP handlers.
//
// This file exposes REST endpoints for order resources:
//   - GET    /orders               (list, paginated, ETag support)
//   - PATCH  /orders/{id}/status   (role-checked status transition)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dowajoo/go-market-backend/internal/domain"
	"github.com/dowajoo/go-market-backend/internal/http/middleware"
	"github.com/dowajoo/go-market-backend/internal/repo"
	"github.com/dowajoo/go-market-backend/internal/services"
	"github.com/dowajoo/go-market-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// OrderService defines order lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type OrderService interface {
	// CreateDirectPurchase creates an order for a fixed-price service listing.
	// The bool reports whether an existing order was returned for a reused
	// idempotency key instead of a newly created one.
	CreateDirectPurchase(ctx context.Context, in services.DirectPurchaseInput) (*domain.Order, bool, error)
	// UpdateStatus applies a role-checked status transition to an order.
	UpdateStatus(ctx context.Context, callerID, orderID, requested string) (*domain.Order, error)
	// ListPage returns a page of orders the user participates in, plus the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error)
}

// PaymentService defines payment verification operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PaymentService interface {
	// Verify records a completed payment and advances the order to in_progress.
	Verify(ctx context.Context, callerID string, in services.VerifyInput) (*services.VerifyResult, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for orders and payments. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	orderSvc OrderService
	paySvc   PaymentService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(orderSvc OrderService, paySvc PaymentService) *Handlers {
	return &Handlers{orderSvc: orderSvc, paySvc: paySvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// UpdateOrderStatusRequest is the JSON payload for a status transition.
type UpdateOrderStatusRequest struct {
	// Status is the requested target status (e.g. "delivered", "completed").
	Status string `json:"status" binding:"required" example:"delivered"`
}

// UpdateOrderStatusResponse confirms an applied transition.
type UpdateOrderStatusResponse struct {
	Success bool   `json:"success" example:"true"`
	OrderID string `json:"order_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Status  string `json:"status" example:"delivered"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListOrdersResponse wraps a page of orders and pagination information.
type ListOrdersResponse struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// UpdateOrderStatus godoc
// @ID          updateOrderStatus
// @Summary     Change an order's status
// @Description Applies a role-checked status transition. Buyers and sellers may
// @Description only request the transitions their role allows; anything else is
// @Description rejected with the current status, the requested status, and the role.
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Order ID (UUID)"        format(uuid) example(141add05-4415-4938-b5a1-17e0d3171aff)
// @Param       body       body    handlers.UpdateOrderStatusRequest  true  "Requested status"
//
// @Success     200  {object} handlers.UpdateOrderStatusResponse
// @Failure     400  {object} handlers.TransitionErrorResponse "Invalid or disallowed transition"
// @Failure     403  {object} handlers.ErrorResponse "Caller is not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Order not found"
// @Failure     409  {object} handlers.ErrorResponse "Concurrent modification"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /orders/{id}/status [patch]
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}

	requested := strings.TrimSpace(req.Status)
	order, err := h.orderSvc.UpdateStatus(c.Request.Context(), userID(c), orderID, requested)
	if err != nil {
		var te *domain.TransitionError
		switch {
		case errors.As(err, &te):
			middleware.ObserveTransition(requested, "rejected")
			failTransition(c, te)
		case errors.Is(err, services.ErrInvalidStatus):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status value")
		case errors.Is(err, services.ErrOrderNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		case errors.Is(err, services.ErrNotParticipant):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this order")
		case errors.Is(err, repo.ErrLockConflict):
			middleware.ObserveTransition(requested, "conflict")
			middleware.ObserveLockConflict(c.FullPath())
			fail(c, http.StatusConflict, ErrCodeLockConflict, "order was modified concurrently, re-read and retry")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	middleware.ObserveTransition(requested, "applied")
	ok(c, http.StatusOK, UpdateOrderStatusResponse{
		Success: true,
		OrderID: order.ID,
		Status:  string(order.Status),
	})
}

// ListOrders godoc
// @ID          listOrders
// @Summary     List orders (paginated)
// @Description Returns a page of orders the user participates in as buyer or seller.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Orders
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListOrdersResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /orders [get]
func (h *Handlers) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.orderSvc.(*services.OrderService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.OrdersStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"orders:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Fetch page.
	items, total, err := h.orderSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListOrdersResponse{
		Orders: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}
