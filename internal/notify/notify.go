// Package notify delivers fire-and-forget customer and operations
// notifications with bounded retry. Send failures never propagate to the
// request path: messages that exhaust their attempts are dead-lettered and
// logged.
package notify

import (
	"context"
	"time"
)

// Kind enumerates the notification types raised by the order flow.
type Kind string

const (
	KindOrderConfirmation Kind = "order_confirmation"
	KindOrderCancelled    Kind = "order_cancelled"
	KindLowStock          Kind = "low_stock"
)

// Message is one notification to deliver.
type Message struct {
	Kind       Kind
	CustomerID string
	// Fields carries kind-specific payload (order number, totals, product
	// id, remaining stock).
	Fields map[string]string
}

// Sender delivers a message over a concrete transport. The email transport
// itself is out of scope; LogSender stands in for it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// RetryPolicy bounds delivery attempts. After MaxAttempts failures the
// message is dead-lettered.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// backoff returns the delay before the given retry (1-based), doubling each
// attempt and capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
