package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/silencedor/commerce-api/internal/domain/order"
)

// --- Mock implementations ---

type mockSender struct {
	mu       sync.Mutex
	sent     []Message
	failures int
	calls    int
}

func (s *mockSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errSendFailed
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *mockSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *mockSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errSendFailed = assert.AnError

// --- Helpers ---

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func testMessage() Message {
	return Message{
		Kind:       KindOrderConfirmation,
		CustomerID: "cust-1",
		Fields:     map[string]string{"order_number": "SD12345678"},
	}
}

// --- Tests ---

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.backoff(3))
	assert.Equal(t, 800*time.Millisecond, p.backoff(4))
	// Doubling is capped at MaxDelay from the fifth attempt on.
	assert.Equal(t, time.Second, p.backoff(5))
	assert.Equal(t, time.Second, p.backoff(10))
}

func TestDispatcher_Delivers(t *testing.T) {
	sender := &mockSender{}
	d := NewDispatcher(sender, fastPolicy(), 8, zap.NewNop())
	d.Start(context.Background(), 1)
	defer d.Stop()

	d.Enqueue(testMessage())

	require.Eventually(t, func() bool {
		return sender.sentCount() == 1
	}, time.Second, 5*time.Millisecond)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, KindOrderConfirmation, sender.sent[0].Kind)
	assert.Equal(t, "cust-1", sender.sent[0].CustomerID)
	assert.Empty(t, d.DeadLetters())
}

func TestDispatcher_RetriesTransientFailure(t *testing.T) {
	sender := &mockSender{failures: 2}
	d := NewDispatcher(sender, fastPolicy(), 8, zap.NewNop())
	d.Start(context.Background(), 1)
	defer d.Stop()

	d.Enqueue(testMessage())

	require.Eventually(t, func() bool {
		return sender.sentCount() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, sender.callCount())
	assert.Empty(t, d.DeadLetters())
}

func TestDispatcher_DeadLettersAfterExhaustedRetries(t *testing.T) {
	sender := &mockSender{failures: 100}
	d := NewDispatcher(sender, fastPolicy(), 8, zap.NewNop())
	d.Start(context.Background(), 1)
	defer d.Stop()

	d.Enqueue(testMessage())

	require.Eventually(t, func() bool {
		return len(d.DeadLetters()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, sender.callCount())
	assert.Equal(t, KindOrderConfirmation, d.DeadLetters()[0].Kind)
	assert.Zero(t, sender.sentCount())
}

func TestDispatcher_EnqueueDeadLettersWhenQueueFull(t *testing.T) {
	sender := &mockSender{}
	// Workers never started: the queue fills and stays full.
	d := NewDispatcher(sender, fastPolicy(), 2, zap.NewNop())

	d.Enqueue(testMessage())
	d.Enqueue(testMessage())
	overflow := testMessage()
	overflow.Kind = KindLowStock
	d.Enqueue(overflow)

	dead := d.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, KindLowStock, dead[0].Kind)
}

func TestDispatcher_StopWaitsForWorkers(t *testing.T) {
	sender := &mockSender{}
	d := NewDispatcher(sender, fastPolicy(), 8, zap.NewNop())
	d.Start(context.Background(), 2)

	d.Enqueue(testMessage())

	require.Eventually(t, func() bool {
		return sender.sentCount() == 1
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	// Stop is idempotent.
	d.Stop()
}

func TestOrderEvents_MapsOrderFields(t *testing.T) {
	sender := &mockSender{}
	d := NewDispatcher(sender, fastPolicy(), 8, zap.NewNop())
	d.Start(context.Background(), 1)
	defer d.Stop()

	events := NewOrderEvents(d)
	events.OrderPlaced(&order.Order{
		CustomerID:  "cust-1",
		Number:      "SDABCDEF12",
		TotalAmount: decimal.RequireFromString("32.50"),
	})
	events.OrderCancelled(&order.Order{
		CustomerID: "cust-1",
		Number:     "SDABCDEF12",
	})
	events.LowStock("prod-1", 3)

	require.Eventually(t, func() bool {
		return sender.sentCount() == 3
	}, time.Second, 5*time.Millisecond)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	byKind := make(map[Kind]Message, len(sender.sent))
	for _, msg := range sender.sent {
		byKind[msg.Kind] = msg
	}
	require.Len(t, byKind, 3)
	assert.Equal(t, "SDABCDEF12", byKind[KindOrderConfirmation].Fields["order_number"])
	assert.Equal(t, "32.50", byKind[KindOrderConfirmation].Fields["total"])
	assert.Equal(t, "SDABCDEF12", byKind[KindOrderCancelled].Fields["order_number"])
	assert.Equal(t, "prod-1", byKind[KindLowStock].Fields["product_id"])
	assert.Equal(t, "3", byKind[KindLowStock].Fields["remaining"])
}
