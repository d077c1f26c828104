package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/silencedor/commerce-api/internal/domain/order"
	"github.com/silencedor/commerce-api/internal/domain/payment"
)

const (
	paymentColumns = `id, order_id, customer_id, amount, currency, method, status,
		provider_intent_id, failure_reason, created_at, updated_at`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, customer_id, amount, currency, method, status, provider_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getPaymentByIDSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	getPaymentByIntentSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE provider_intent_id = $1`

	listPaymentsByCustomerSQL = `SELECT ` + paymentColumns + ` FROM payments
		WHERE customer_id = $1 ORDER BY created_at DESC`

	lockPaymentSQL = `SELECT status, order_id FROM payments WHERE id = $1 FOR UPDATE`

	setPaymentStatusSQL = `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`

	setPaymentFailedSQL = `UPDATE payments SET status = 'failed', failure_reason = $2, updated_at = now()
		WHERE id = $1`

	lockOrderPaymentSQL = `SELECT status, payment_status FROM orders WHERE id = $1 FOR UPDATE`

	setOrderPaymentStatusSQL = `UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`

	insertRefundSQL = `INSERT INTO refunds (id, payment_id, order_id, amount, status, reason, provider_refund_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertWebhookEventSQL = `INSERT INTO webhook_events (provider_event_id) VALUES ($1)
		ON CONFLICT (provider_event_id) DO NOTHING`

	seenWebhookEventSQL = `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE provider_event_id = $1)`
)

var _ payment.Store = (*PaymentStore)(nil)

// PaymentStore implements payment.Store backed by PostgreSQL. State changes
// that span payment and order rows run in one transaction, with the order's
// history row appended atomically.
type PaymentStore struct {
	pool *pgxpool.Pool
}

// NewPaymentStore returns a PaymentStore that uses the given pool.
func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

// CreatePayment persists a new payment attempt.
func (s *PaymentStore) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.pool.Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.CustomerID, p.Amount, p.Currency, p.Method, p.Status, p.ProviderIntentID,
	)
	if err != nil {
		return fmt.Errorf("creating payment %q: %w", p.ID, err)
	}
	return nil
}

// GetByID returns a payment by id.
func (s *PaymentStore) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	return s.getOne(ctx, getPaymentByIDSQL, id)
}

// GetByIntentID returns the payment created for a provider intent.
func (s *PaymentStore) GetByIntentID(ctx context.Context, intentID string) (*payment.Payment, error) {
	return s.getOne(ctx, getPaymentByIntentSQL, intentID)
}

func (s *PaymentStore) getOne(ctx context.Context, query, arg string) (*payment.Payment, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting payment: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment: %w", err)
	}
	return &p, nil
}

// ListByCustomer returns the customer's payments, newest first.
func (s *PaymentStore) ListByCustomer(ctx context.Context, customerID string) ([]payment.Payment, error) {
	rows, err := s.pool.Query(ctx, listPaymentsByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	return pgx.CollectRows(rows, scanPayment)
}

// MarkSucceeded sets the payment to succeeded, the order's payment status to
// paid, and confirms a still-pending order, appending the history row. The
// webhook event id, when given, is inserted in the same transaction: the id
// only exists once the status change committed, so a failed apply leaves the
// event unrecorded and the provider's retry is reprocessed. Re-marking an
// already succeeded payment is a no-op.
func (s *PaymentStore) MarkSucceeded(ctx context.Context, paymentID, eventID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if eventID != "" {
		fresh, err := recordEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if !fresh {
			// A previous delivery committed this event's effect.
			return nil
		}
	}

	status, orderID, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return err
	}
	if status == payment.StatusSucceeded {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, setPaymentStatusSQL, paymentID, payment.StatusSucceeded); err != nil {
		return fmt.Errorf("updating payment status: %w", err)
	}

	orderStatus, payStatus, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order.CanTransitionPayment(payStatus, order.PaymentPaid) {
		if _, err := tx.Exec(ctx, setOrderPaymentStatusSQL, orderID, order.PaymentPaid); err != nil {
			return fmt.Errorf("updating order payment status: %w", err)
		}
	}
	if order.CanTransition(orderStatus, order.StatusConfirmed) {
		if _, err := tx.Exec(ctx, updateOrderStatusSQL, orderID, order.StatusConfirmed); err != nil {
			return fmt.Errorf("confirming order: %w", err)
		}
		if _, err := tx.Exec(ctx, insertHistorySQL, orderID, order.StatusConfirmed, "payment confirmed"); err != nil {
			return fmt.Errorf("appending order history: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// MarkFailed sets the payment to failed with a reason. The order's payment
// status moves to failed only while it is still pending; a paid order is
// never clobbered by a late failure event. eventID follows the MarkSucceeded
// contract.
func (s *PaymentStore) MarkFailed(ctx context.Context, paymentID, reason, eventID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if eventID != "" {
		fresh, err := recordEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}
	}

	status, orderID, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return err
	}
	if status == payment.StatusFailed || status == payment.StatusSucceeded {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, setPaymentFailedSQL, paymentID, reason); err != nil {
		return fmt.Errorf("updating payment status: %w", err)
	}

	_, payStatus, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order.CanTransitionPayment(payStatus, order.PaymentFailed) {
		if _, err := tx.Exec(ctx, setOrderPaymentStatusSQL, orderID, order.PaymentFailed); err != nil {
			return fmt.Errorf("updating order payment status: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// CreateRefund records the refund and moves payment and order to refunded in
// one transaction, appending the order history row.
func (s *PaymentStore) CreateRefund(ctx context.Context, r *payment.Refund) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin refund tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertRefundSQL,
		r.ID, r.PaymentID, r.OrderID, r.Amount, r.Status, r.Reason, r.ProviderRefundID,
	); err != nil {
		return fmt.Errorf("creating refund %q: %w", r.ID, err)
	}

	if _, err := tx.Exec(ctx, setPaymentStatusSQL, r.PaymentID, payment.StatusRefunded); err != nil {
		return fmt.Errorf("updating payment status: %w", err)
	}

	orderStatus, payStatus, err := lockOrder(ctx, tx, r.OrderID)
	if err != nil {
		return err
	}
	if order.CanTransitionPayment(payStatus, order.PaymentRefunded) {
		if _, err := tx.Exec(ctx, setOrderPaymentStatusSQL, r.OrderID, order.PaymentRefunded); err != nil {
			return fmt.Errorf("updating order payment status: %w", err)
		}
	}
	if order.CanTransition(orderStatus, order.StatusRefunded) {
		if _, err := tx.Exec(ctx, updateOrderStatusSQL, r.OrderID, order.StatusRefunded); err != nil {
			return fmt.Errorf("updating order status: %w", err)
		}
		if _, err := tx.Exec(ctx, insertHistorySQL, r.OrderID, order.StatusRefunded, "payment refunded"); err != nil {
			return fmt.Errorf("appending order history: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// RecordWebhookEvent registers a provider event id that carries no state
// change, reporting false when the event was seen before.
func (s *PaymentStore) RecordWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	return recordEvent(ctx, s.pool, eventID)
}

// SeenWebhookEvent reports whether the event id was recorded already.
func (s *PaymentStore) SeenWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	if err := s.pool.QueryRow(ctx, seenWebhookEventSQL, eventID).Scan(&seen); err != nil {
		return false, fmt.Errorf("checking webhook event %q: %w", eventID, err)
	}
	return seen, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func recordEvent(ctx context.Context, db execer, eventID string) (bool, error) {
	tag, err := db.Exec(ctx, insertWebhookEventSQL, eventID)
	if err != nil {
		return false, fmt.Errorf("recording webhook event %q: %w", eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func lockPayment(ctx context.Context, tx pgx.Tx, paymentID string) (payment.Status, string, error) {
	var (
		status  string
		orderID string
	)
	if err := tx.QueryRow(ctx, lockPaymentSQL, paymentID).Scan(&status, &orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", payment.ErrNotFound
		}
		return "", "", fmt.Errorf("locking payment %q: %w", paymentID, err)
	}
	return payment.Status(status), orderID, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (order.Status, order.PaymentStatus, error) {
	var status, payStatus string
	if err := tx.QueryRow(ctx, lockOrderPaymentSQL, orderID).Scan(&status, &payStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", order.ErrNotFound
		}
		return "", "", fmt.Errorf("locking order %q: %w", orderID, err)
	}
	return order.Status(status), order.PaymentStatus(payStatus), nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p      payment.Payment
		status string
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &p.CustomerID, &p.Amount, &p.Currency, &p.Method, &status,
		&p.ProviderIntentID, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt,
	)
	p.Status = payment.Status(status)
	return p, err
}
