package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/silencedor/commerce-api/internal/domain/order"
)

// Dispatcher queues messages and delivers them in the background. Enqueue
// never blocks the caller: when the queue is full the message is
// dead-lettered immediately.
type Dispatcher struct {
	sender Sender
	policy RetryPolicy
	lg     *zap.Logger

	queue  chan Message
	g      *errgroup.Group
	cancel context.CancelFunc

	mu   sync.Mutex
	dead []Message

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a Dispatcher with the given queue capacity.
func NewDispatcher(sender Sender, policy RetryPolicy, queueSize int, lg *zap.Logger) *Dispatcher {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 500 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		sender: sender,
		policy: policy,
		lg:     lg,
		queue:  make(chan Message, queueSize),
	}
}

// Start launches the delivery workers. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	d.startOnce.Do(func() {
		if workers <= 0 {
			workers = 2
		}
		ctx, cancel := context.WithCancel(ctx)
		d.cancel = cancel
		d.g, ctx = errgroup.WithContext(ctx)
		for range workers {
			d.g.Go(func() error {
				d.worker(ctx)
				return nil
			})
		}
	})
}

// Stop drains delivery and waits for workers to exit. Messages still queued
// when the context is cancelled stay undelivered; they are logged as dropped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
			_ = d.g.Wait()
		}
		close(d.queue)
		for msg := range d.queue {
			d.lg.Warn("notification dropped at shutdown", zap.String("kind", string(msg.Kind)))
		}
	})
}

// Enqueue submits a message for delivery without blocking.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.lg.Warn("notification queue full, dead-lettering", zap.String("kind", string(msg.Kind)))
		d.deadLetter(msg)
	}
}

// DeadLetters returns a copy of the messages that exhausted their retries.
func (d *Dispatcher) DeadLetters() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Message, len(d.dead))
	copy(out, d.dead)
	return out
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

// deliver attempts the send with bounded retry and exponential backoff.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		if err := d.sender.Send(ctx, msg); err == nil {
			return
		} else {
			lastErr = err
		}
		if attempt == d.policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			d.deadLetter(msg)
			return
		case <-time.After(d.policy.backoff(attempt)):
		}
	}
	d.lg.Error("notification delivery failed, dead-lettering",
		zap.String("kind", string(msg.Kind)),
		zap.Int("attempts", d.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	d.deadLetter(msg)
}

func (d *Dispatcher) deadLetter(msg Message) {
	d.mu.Lock()
	d.dead = append(d.dead, msg)
	d.mu.Unlock()
}

// LogSender writes notifications to the log. It stands in for the real email
// transport, which is outside this service.
type LogSender struct {
	lg *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(lg *zap.Logger) *LogSender {
	return &LogSender{lg: lg}
}

// Send logs the message.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	fields := []zap.Field{
		zap.String("kind", string(msg.Kind)),
		zap.String("customer_id", msg.CustomerID),
	}
	for k, v := range msg.Fields {
		fields = append(fields, zap.String(k, v))
	}
	s.lg.Info("notification", fields...)
	return nil
}

var _ order.Events = (*OrderEvents)(nil)

// OrderEvents adapts the dispatcher to the order service's event hooks.
type OrderEvents struct {
	d *Dispatcher
}

// NewOrderEvents creates the adapter.
func NewOrderEvents(d *Dispatcher) *OrderEvents {
	return &OrderEvents{d: d}
}

// OrderPlaced enqueues the order confirmation notification.
func (e *OrderEvents) OrderPlaced(o *order.Order) {
	e.d.Enqueue(Message{
		Kind:       KindOrderConfirmation,
		CustomerID: o.CustomerID,
		Fields: map[string]string{
			"order_number": o.Number,
			"total":        o.TotalAmount.StringFixed(2),
		},
	})
}

// OrderCancelled enqueues the cancellation notification.
func (e *OrderEvents) OrderCancelled(o *order.Order) {
	e.d.Enqueue(Message{
		Kind:       KindOrderCancelled,
		CustomerID: o.CustomerID,
		Fields: map[string]string{
			"order_number": o.Number,
		},
	})
}

// LowStock enqueues a stock alert for operations.
func (e *OrderEvents) LowStock(productID string, remaining int) {
	e.d.Enqueue(Message{
		Kind: KindLowStock,
		Fields: map[string]string{
			"product_id": productID,
			"remaining":  strconv.Itoa(remaining),
		},
	})
}
