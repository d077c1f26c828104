package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates the states of a payment attempt.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// RefundStatus enumerates the states of a refund.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
)

// Sentinel errors for payment operations.
var (
	// ErrNotFound is returned when a payment does not exist or belongs to
	// another customer.
	ErrNotFound = errors.New("payment not found")
	// ErrOrderAlreadyPaid is returned when an intent is requested for an
	// order whose payment is no longer pending.
	ErrOrderAlreadyPaid = errors.New("order is not awaiting payment")
	// ErrNotSucceeded is returned by Confirm when the provider has not
	// confirmed the intent yet.
	ErrNotSucceeded = errors.New("payment has not succeeded yet")
	// ErrNotRefundable is returned when a refund targets a payment that has
	// not succeeded.
	ErrNotRefundable = errors.New("payment is not refundable")
	// ErrRefundExceedsPayment is returned when the refund amount exceeds the
	// paid amount.
	ErrRefundExceedsPayment = errors.New("refund amount exceeds payment amount")
	// ErrInvalidSignature is returned when a webhook payload fails
	// signature verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// ProviderError wraps a failure reported by the payment provider. The HTTP
// layer maps it to 502.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider: %s", e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Payment is one provider-backed charge attempt against an order. An order
// may accumulate several attempts; at most one succeeds.
type Payment struct {
	ID         string
	OrderID    string
	CustomerID string
	Amount     decimal.Decimal
	Currency   string
	Method     string
	Status     Status

	ProviderIntentID string
	FailureReason    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Refund reverses a succeeded payment, fully or partially.
type Refund struct {
	ID               string
	PaymentID        string
	OrderID          string
	Amount           decimal.Decimal
	Status           RefundStatus
	Reason           string
	ProviderRefundID string
	CreatedAt        time.Time
}

// Intent is the provider-side payment intent handle.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Provider abstracts the payment provider's API surface used by the service.
type Provider interface {
	// CreateIntent opens a payment intent for the given amount in minor
	// units (cents).
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
	// GetIntent retrieves the current state of an intent.
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	// Refund refunds an intent for the given amount in minor units and
	// returns the provider refund id.
	Refund(ctx context.Context, intentID string, amountCents int64) (string, error)
}

// Store defines the persistence operations for payments. The Mark* methods
// synchronize the order's payment_status (and status, where the state machine
// allows confirmation) in the same database transaction as the payment write,
// appending the order history row atomically.
type Store interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (*Payment, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Payment, error)

	// MarkSucceeded sets the payment to succeeded, the order's payment
	// status to paid, and confirms the order when it is still pending.
	// A non-empty eventID is recorded in the same transaction; a
	// previously recorded id makes the call a no-op, as does an already
	// succeeded payment.
	MarkSucceeded(ctx context.Context, paymentID, eventID string) error
	// MarkFailed sets the payment to failed with a reason. The order's
	// payment status moves to failed only from pending. eventID follows
	// the MarkSucceeded contract.
	MarkFailed(ctx context.Context, paymentID, reason, eventID string) error
	// CreateRefund persists the refund and moves payment and order to
	// refunded in one transaction.
	CreateRefund(ctx context.Context, r *Refund) error

	// RecordWebhookEvent registers a provider event id that carries no
	// state change. It reports false when the event was seen before.
	RecordWebhookEvent(ctx context.Context, eventID string) (bool, error)
	// SeenWebhookEvent reports whether the event id was recorded already.
	SeenWebhookEvent(ctx context.Context, eventID string) (bool, error)
}
