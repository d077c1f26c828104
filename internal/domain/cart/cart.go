package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart operations.
var (
	// ErrNoOwner is returned when neither a customer nor a session key
	// identifies the cart.
	ErrNoOwner = errors.New("cart owner required")
	// ErrInvalidQuantity is returned when an item quantity is not positive.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrInsufficientStock is returned when the requested quantity exceeds
	// the product's tracked inventory.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Owner identifies who a cart belongs to: an authenticated customer or an
// anonymous session. Exactly one field is set.
type Owner struct {
	CustomerID string
	SessionKey string
}

// Valid reports whether exactly one owner kind is set.
func (o Owner) Valid() bool {
	return (o.CustomerID != "") != (o.SessionKey != "")
}

// Cart is the mutable pre-checkout container of line items. It is created
// lazily on first add and cleared, not deleted, when checkout succeeds.
type Cart struct {
	ID        string
	Owner     Owner
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a single product line in a cart.
type Item struct {
	ProductID string
	Quantity  int
}

// Summary is the priced read model of a cart. All monetary fields are derived
// from current product prices at read time, never stored.
type Summary struct {
	Cart       *Cart
	Lines      []Line
	TotalItems int
	TotalPrice decimal.Decimal
	IsEmpty    bool
}

// Line pairs a cart item with current product details.
type Line struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
}

// Repository defines persistence operations for carts. Implementations must
// keep one cart per owner and one line per product per cart.
type Repository interface {
	// GetOrCreate returns the owner's cart, creating an empty one if absent.
	GetOrCreate(ctx context.Context, owner Owner) (*Cart, error)
	// AddItemQuantity inserts the line or adds delta to its quantity,
	// atomically, and returns the resulting quantity.
	AddItemQuantity(ctx context.Context, cartID, productID string, delta int) (int, error)
	// SetItemQuantity overwrites the line quantity, inserting the line when
	// missing.
	SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) error
	// RemoveItem deletes the line. Removing an absent line is not an error.
	RemoveItem(ctx context.Context, cartID, productID string) error
	// Clear removes all lines, leaving the cart row in place.
	Clear(ctx context.Context, cartID string) error
}
