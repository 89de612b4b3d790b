// Order lifecycle rules.
//
// This file implements the order state machine as a pure function: it decides
// whether a role may move an order between two statuses and computes the
// column values that accompany an approved transition. It performs no I/O and
// knows nothing about storage; persisting an approved transition is the job of
// repo.UpdateOrderStatusLocked.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// OrderStatus enumerates the fixed set of order lifecycle states.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusInProgress     OrderStatus = "in_progress"
	StatusRevision       OrderStatus = "revision"
	StatusDelivered      OrderStatus = "delivered"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
	StatusDispute        OrderStatus = "dispute"
)

// ErrUnknownStatus is returned by ParseOrderStatus for values outside the
// seven recognized states. This is pure input validation and runs before any
// role or ownership check.
var ErrUnknownStatus = errors.New("unknown order status")

// orderStatuses is the closed set accepted by ParseOrderStatus.
var orderStatuses = map[OrderStatus]struct{}{
	StatusPendingPayment: {},
	StatusInProgress:     {},
	StatusRevision:       {},
	StatusDelivered:      {},
	StatusCompleted:      {},
	StatusCancelled:      {},
	StatusDispute:        {},
}

// ParseOrderStatus validates a client-supplied status string against the
// recognized set. It returns ErrUnknownStatus for anything else.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := orderStatuses[st]; !ok {
		return "", ErrUnknownStatus
	}
	return st, nil
}

// Role identifies who is requesting a transition relative to the order.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"

	// RoleSystem is used only by the payment verification flow to advance
	// pending_payment orders once a completed payment is recorded. It is never
	// derived from a caller identity.
	RoleSystem Role = "system"
)

// TransitionError reports a rejected transition with enough structure for the
// caller to render an actionable message.
type TransitionError struct {
	CurrentStatus   OrderStatus
	RequestedStatus OrderStatus
	Role            Role
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order from %s to %s as %s", e.CurrentStatus, e.RequestedStatus, e.Role)
}

type transitionKey struct {
	from OrderStatus
	role Role
}

// transitions is the complete authorization table. Any (from, role, to)
// combination absent here is rejected.
var transitions = map[transitionKey][]OrderStatus{
	{StatusInProgress, RoleSeller}:     {StatusDelivered},
	{StatusRevision, RoleSeller}:       {StatusInProgress},
	{StatusDelivered, RoleBuyer}:       {StatusCompleted, StatusDispute},
	{StatusPendingPayment, RoleSystem}: {StatusInProgress},
}

// CanTransition reports whether role may move an order from one status to
// another.
func CanTransition(from, to OrderStatus, role Role) bool {
	for _, allowed := range transitions[transitionKey{from, role}] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StatusChange is an approved transition together with the column assignments
// that persist it. Fields always carries status and updated_at; delivered and
// completed targets add their one-shot timestamp, and the system payment
// transition additionally stamps paid_at.
type StatusChange struct {
	NewStatus OrderStatus
	Fields    map[string]any
}

// Transition decides whether role may move an order from current to requested
// and, if so, returns the column values for the write. On rejection it returns
// a *TransitionError carrying the full (current, requested, role) triple.
//
// The requested status is assumed to already be a member of the recognized
// set; call ParseOrderStatus on raw client input first.
func Transition(current, requested OrderStatus, role Role, now time.Time) (*StatusChange, error) {
	if !CanTransition(current, requested, role) {
		return nil, &TransitionError{
			CurrentStatus:   current,
			RequestedStatus: requested,
			Role:            role,
		}
	}

	fields := map[string]any{
		"status":     string(requested),
		"updated_at": now,
	}
	switch requested {
	case StatusDelivered:
		fields["delivered_at"] = now
	case StatusCompleted:
		fields["completed_at"] = now
	case StatusInProgress:
		if role == RoleSystem {
			fields["paid_at"] = now
		}
	}

	return &StatusChange{NewStatus: requested, Fields: fields}, nil
}

// RoleFor resolves the caller's role on an order by identity, or reports
// that the caller is not a participant. A non-participant is an authorization
// failure, not a state-machine failure.
func RoleFor(o *Order, callerID string) (Role, bool) {
	switch callerID {
	case o.BuyerID:
		return RoleBuyer, true
	case o.SellerID:
		return RoleSeller, true
	default:
		return "", false
	}
}
