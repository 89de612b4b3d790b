// Package services defines the business logic for orders, payments, and
// seller credits. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer. Transition rejections carry their own structured type
// (domain.TransitionError) and repo lock conflicts surface as
// repo.ErrLockConflict; everything else funnels through these sentinels.
package services

import "errors"

// Order-related errors.
var (
	// ErrOrderNotFound indicates that the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidStatus is returned when a requested target status is not one
	// of the recognized order states. It is decided before any role or
	// ownership check.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrNotParticipant is returned when the caller is neither the buyer nor
	// the seller of the order.
	ErrNotParticipant = errors.New("caller is not a participant of this order")

	// ErrInvalidAmount is returned when an order amount is outside the
	// configured bounds or does not match the listed service price.
	ErrInvalidAmount = errors.New("invalid order amount")

	// ErrInvalidTitle is returned when an order title is empty or too long.
	ErrInvalidTitle = errors.New("invalid order title")

	// ErrPriceMismatch is returned when the submitted amount does not equal
	// the listed service price. Distinct from ErrInvalidAmount so a client
	// can tell a tampered price from an out-of-range one.
	ErrPriceMismatch = errors.New("amount does not match the listed price")

	// ErrSelfPurchase is returned when a buyer attempts to purchase their own
	// service.
	ErrSelfPurchase = errors.New("cannot purchase your own service")

	// ErrSellerNotFound indicates that the referenced seller does not exist.
	ErrSellerNotFound = errors.New("seller not found")

	// ErrServiceNotFound indicates that the referenced service listing does
	// not exist.
	ErrServiceNotFound = errors.New("service not found")
)

// Payment-related errors.
var (
	// ErrNotBuyer is returned when someone other than the order's buyer
	// attempts payment verification.
	ErrNotBuyer = errors.New("only the buyer can verify payment")

	// ErrAlreadyPaid is returned when the order's status is not eligible for
	// payment confirmation (anything other than pending_payment).
	ErrAlreadyPaid = errors.New("order is already paid or not payable")

	// ErrPaymentRecordFailed wraps a failure to persist the payment row; the
	// order was left untouched.
	ErrPaymentRecordFailed = errors.New("failed to record payment")

	// ErrOrderAdvanceFailed wraps a failure to advance the order after the
	// payment row was persisted. The payment exists but the order did not
	// move; this inconsistency is surfaced for reconciliation, not retried
	// silently.
	ErrOrderAdvanceFailed = errors.New("payment recorded but order update failed")
)

// Credit-related errors.
var (
	// ErrCreditNotFound indicates that the referenced credit account is
	// absent.
	ErrCreditNotFound = errors.New("credit account not found")

	// ErrInsufficientCredit is returned when a deduction exceeds the current
	// balance. The balance is left untouched.
	ErrInsufficientCredit = errors.New("insufficient credit balance")

	// ErrInvalidDeduction is returned for non-positive deduction amounts.
	ErrInvalidDeduction = errors.New("deduction amount must be positive")
)
