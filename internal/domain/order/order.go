package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the immutable-once-created, priced snapshot of a purchase intent.
// Pricing fields are frozen at checkout; later product or coupon changes do
// not affect an existing order.
type Order struct {
	ID          string
	Number      string
	CustomerID  string
	Status      Status
	PaymentStat PaymentStatus

	BillingAddressID  string
	ShippingAddressID string

	Items []Item

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingCost   decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal

	CouponCode string

	TrackingNumber  string
	ShippingCarrier string
	CustomerNotes   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a single line of an order. UnitPrice and Name are snapshots taken
// at checkout time, independent of later catalog changes.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// LineTotal returns UnitPrice × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// HistoryEntry is one row of the append-only status audit trail.
type HistoryEntry struct {
	Status    Status
	Notes     string
	CreatedAt time.Time
}

// StockLevel reports a product's remaining tracked quantity after checkout
// depleted it. Used to raise low-stock notifications.
type StockLevel struct {
	ProductID string
	Remaining int
}

// NewNumber generates a customer-facing order number: "SD" followed by the
// first 8 characters of a UUID, upper-cased.
func NewNumber() string {
	return "SD" + strings.ToUpper(uuid.New().String()[:8])
}

// Repository defines read and transition operations for persisted orders.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	History(ctx context.Context, orderID string) ([]HistoryEntry, error)

	// Transition updates the order status and appends exactly one history
	// row in the same transaction. It must reject transitions that
	// CanTransition forbids with ErrTransitionNotAllowed.
	Transition(ctx context.Context, orderID string, to Status, notes string) error

	// SetTracking records shipment tracking details.
	SetTracking(ctx context.Context, orderID, trackingNumber, carrier string) error
}

// CheckoutStore persists a fully priced order atomically: it decrements stock
// with a floor, consumes the coupon use conditionally, inserts the order with
// its items, applied coupon, and initial history row, and clears the cart —
// all in a single database transaction. Any failure leaves no trace.
type CheckoutStore interface {
	CreateOrder(ctx context.Context, o *Order, cartID string) ([]StockLevel, error)
}
