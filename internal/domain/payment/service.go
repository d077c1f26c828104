package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silencedor/commerce-api/internal/domain/order"
)

var cents = decimal.NewFromInt(100)

// Service coordinates payments between the order store and the payment
// provider.
type Service struct {
	orders   order.Repository
	store    Store
	provider Provider
	currency string

	webhookSecret []byte
	tolerance     time.Duration
	now           func() time.Time
	lg            *zap.Logger
}

// Config holds non-dependency settings for the payment service.
type Config struct {
	Currency         string
	WebhookSecret    string
	WebhookTolerance time.Duration
}

// NewService creates a payment Service.
func NewService(orders order.Repository, store Store, provider Provider, cfg Config, lg *zap.Logger) *Service {
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Service{
		orders:        orders,
		store:         store,
		provider:      provider,
		currency:      cfg.Currency,
		webhookSecret: []byte(cfg.WebhookSecret),
		tolerance:     tolerance,
		now:           time.Now,
		lg:            lg,
	}
}

// IntentResult is returned by CreateIntent for the client to complete the
// payment on the provider's side.
type IntentResult struct {
	Payment      *Payment
	ClientSecret string
}

// CreateIntent opens a provider payment intent for the order's total and
// records a pending payment attempt. An order may hold several attempts;
// intents are only created while the order still awaits payment.
func (s *Service) CreateIntent(ctx context.Context, customerID, orderID string) (*IntentResult, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, order.ErrNotFound
	}
	if o.PaymentStat != order.PaymentPending {
		return nil, ErrOrderAlreadyPaid
	}

	amountCents := o.TotalAmount.Mul(cents).IntPart()
	intent, err := s.provider.CreateIntent(ctx, amountCents, s.currency, map[string]string{
		"order_id":     o.ID,
		"order_number": o.Number,
		"customer_id":  o.CustomerID,
	})
	if err != nil {
		return nil, err
	}

	p := &Payment{
		ID:               uuid.New().String(),
		OrderID:          o.ID,
		CustomerID:       customerID,
		Amount:           o.TotalAmount,
		Currency:         s.currency,
		Method:           "card",
		Status:           StatusPending,
		ProviderIntentID: intent.ID,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	return &IntentResult{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

// Confirm checks the intent state with the provider and, when it succeeded,
// marks the payment succeeded and the order paid and confirmed in one
// transaction.
func (s *Service) Confirm(ctx context.Context, customerID, paymentID string) (*Payment, error) {
	p, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.CustomerID != customerID {
		return nil, ErrNotFound
	}

	intent, err := s.provider.GetIntent(ctx, p.ProviderIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != "succeeded" {
		return nil, ErrNotSucceeded
	}

	if err := s.store.MarkSucceeded(ctx, p.ID, ""); err != nil {
		return nil, fmt.Errorf("mark payment succeeded: %w", err)
	}
	p.Status = StatusSucceeded
	return p, nil
}

// ListByCustomer returns the customer's payment attempts, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Payment, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

// CreateRefund refunds a succeeded payment, fully when amount is zero,
// otherwise partially. The provider refund happens first; the local state
// change is transactional.
func (s *Service) CreateRefund(ctx context.Context, customerID, paymentID string, amount decimal.Decimal, reason string) (*Refund, error) {
	p, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.CustomerID != customerID {
		return nil, ErrNotFound
	}
	if p.Status != StatusSucceeded {
		return nil, ErrNotRefundable
	}
	if amount.IsZero() {
		amount = p.Amount
	}
	if amount.GreaterThan(p.Amount) {
		return nil, ErrRefundExceedsPayment
	}

	providerRefundID, err := s.provider.Refund(ctx, p.ProviderIntentID, amount.Mul(cents).IntPart())
	if err != nil {
		return nil, err
	}

	r := &Refund{
		ID:               uuid.New().String(),
		PaymentID:        p.ID,
		OrderID:          p.OrderID,
		Amount:           amount,
		Status:           RefundSucceeded,
		Reason:           reason,
		ProviderRefundID: providerRefundID,
	}
	if err := s.store.CreateRefund(ctx, r); err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return r, nil
}

// HandleWebhook verifies, deduplicates, and applies a provider webhook
// delivery. Duplicate deliveries of the same event id are acknowledged
// without reprocessing. Events for unknown intents are logged and dropped so
// the provider does not retry them forever.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if err := VerifySignature(payload, signatureHeader, s.webhookSecret, s.now(), s.tolerance); err != nil {
		return err
	}

	event, err := ParseEvent(payload)
	if err != nil {
		return err
	}

	seen, err := s.store.SeenWebhookEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if seen {
		s.lg.Info("duplicate webhook event ignored", zap.String("event_id", event.ID))
		return nil
	}

	p, err := s.store.GetByIntentID(ctx, event.IntentID)
	if err != nil {
		s.lg.Warn("webhook for unknown payment intent",
			zap.String("event_id", event.ID),
			zap.String("intent_id", event.IntentID))
		return s.acknowledge(ctx, event.ID)
	}

	// The event id is committed together with the status change: when the
	// apply fails the id is not recorded, so the provider's retry of the
	// same event is reprocessed instead of absorbed as a duplicate.
	switch event.Type {
	case EventIntentSucceeded:
		if err := s.store.MarkSucceeded(ctx, p.ID, event.ID); err != nil {
			return fmt.Errorf("mark payment succeeded: %w", err)
		}
	case EventIntentFailed:
		if err := s.store.MarkFailed(ctx, p.ID, event.FailureMessage, event.ID); err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
	default:
		s.lg.Info("unhandled webhook event type",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)))
		return s.acknowledge(ctx, event.ID)
	}
	return nil
}

// acknowledge records an event id that carries no state change, so its
// retransmissions are answered from the dedupe ledger.
func (s *Service) acknowledge(ctx context.Context, eventID string) error {
	if _, err := s.store.RecordWebhookEvent(ctx, eventID); err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}
