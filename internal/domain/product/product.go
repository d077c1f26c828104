package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for product lookups and stock checks.
var (
	// ErrNotFound is returned when a requested product does not exist or is
	// not published.
	ErrNotFound = errors.New("product not found")
	// ErrUnavailable is returned when a product exists but cannot be sold
	// (unpublished or out of stock).
	ErrUnavailable = errors.New("product unavailable")
)

// Status enumerates the catalog lifecycle states of a product.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Status   Status

	// TrackInventory controls whether Quantity is authoritative. When false,
	// the product is treated as always in stock.
	TrackInventory bool
	Quantity       int

	Image Image
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Sellable reports whether the product can currently be added to a cart.
func (p *Product) Sellable() bool {
	if p.Status != StatusPublished {
		return false
	}
	if p.TrackInventory && p.Quantity <= 0 {
		return false
	}
	return true
}

// HasStock reports whether the product can satisfy the requested quantity.
// Untracked products always have stock.
func (p *Product) HasStock(quantity int) bool {
	if !p.TrackInventory {
		return true
	}
	return p.Quantity >= quantity
}

// Repository defines read operations for the product catalog. Stock mutation
// happens only inside the checkout transaction (see order.CheckoutStore).
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
