// Error codes returned in the envelope's "code" field. The generic ones
// mirror HTTP status semantics; the domain ones distinguish which step of a
// composite operation failed: payment_failed means the payment row was not
// recorded and the order is untouched, order_update_failed means the payment
// row exists but the order did not advance, and lock_conflict tells the
// client to re-read and retry rather than treat the rejection as final.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeLockConflict      = "lock_conflict"
	ErrCodePaymentFailed     = "payment_failed"
	ErrCodeOrderUpdateFailed = "order_update_failed"
	ErrCodeCreateFailed      = "create_failed"
	ErrCodeListFailed        = "list_failed"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)
