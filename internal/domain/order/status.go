package order

import "github.com/go-faster/errors"

// Status enumerates the fulfillment states of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// PaymentStatus enumerates the payment states of an order. It is a parallel
// machine to Status, synchronized by the payment service.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// ErrTransitionNotAllowed is returned for any forbidden status transition,
// including cancellation of a delivered order.
var ErrTransitionNotAllowed = errors.New("order status transition not allowed")

// transitions is the authoritative fulfillment state machine. There is one
// rule for cancellation eligibility, used by both the customer-facing cancel
// path and admin transitions.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled, StatusRefunded},
	StatusConfirmed:  {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Cancellable reports whether a customer may cancel an order in this status.
func (s Status) Cancellable() bool {
	return CanTransition(s, StatusCancelled)
}

// ValidStatus reports whether s is a known fulfillment status.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionPayment reports whether the payment status may move from one
// state to another: pending → paid → refunded, with failed terminal and
// reachable only from pending.
func CanTransitionPayment(from, to PaymentStatus) bool {
	switch from {
	case PaymentPending:
		return to == PaymentPaid || to == PaymentFailed
	case PaymentPaid:
		return to == PaymentRefunded
	default:
		return false
	}
}
