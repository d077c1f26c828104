package address

import (
	"context"

	"github.com/go-faster/errors"
)

// Sentinel errors for address operations.
var (
	// ErrNotFound is returned when an address does not exist.
	ErrNotFound = errors.New("address not found")
	// ErrNotOwned is returned when an address belongs to another customer.
	ErrNotOwned = errors.New("address does not belong to customer")
)

// Address is a customer's saved billing or shipping address.
type Address struct {
	ID         string
	CustomerID string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
	IsDefault  bool
}

// Repository defines persistence operations for addresses.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Address, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Address, error)
	Create(ctx context.Context, a *Address) error

	// SetDefault marks the address as the customer's default, clearing any
	// previous default in the same transaction. At most one address per
	// customer is ever default.
	SetDefault(ctx context.Context, customerID, addressID string) error
}

// Verify confirms the address exists and belongs to the customer.
func Verify(ctx context.Context, repo Repository, customerID, addressID string) (*Address, error) {
	a, err := repo.GetByID(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if a.CustomerID != customerID {
		return nil, ErrNotOwned
	}
	return a, nil
}
