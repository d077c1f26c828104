package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/silencedor/commerce-api/internal/domain/product"
)

// Service encapsulates cart business logic. Stock is checked at add time but
// never reserved; the authoritative check happens inside the checkout
// transaction.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// Get returns the owner's cart summary, creating an empty cart if needed.
func (s *Service) Get(ctx context.Context, owner Owner) (*Summary, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	c, err := s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return s.summarize(ctx, c)
}

// AddItem adds quantity of the product to the owner's cart, inserting or
// incrementing the line. The product must be sellable and, when inventory is
// tracked, have stock for the combined quantity.
func (s *Service) AddItem(ctx context.Context, owner Owner, productID string, quantity int) (*Summary, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Sellable() {
		return nil, product.ErrUnavailable
	}

	c, err := s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	existing := 0
	for _, item := range c.Items {
		if item.ProductID == productID {
			existing = item.Quantity
			break
		}
	}
	if !p.HasStock(existing + quantity) {
		return nil, ErrInsufficientStock
	}

	if _, err := s.carts.AddItemQuantity(ctx, c.ID, productID, quantity); err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	c, err = s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("reload cart: %w", err)
	}
	return s.summarize(ctx, c)
}

// SetQuantity overwrites the line quantity. A quantity of zero or less
// removes the line.
func (s *Service) SetQuantity(ctx context.Context, owner Owner, productID string, quantity int) (*Summary, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}

	c, err := s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if quantity <= 0 {
		if err := s.carts.RemoveItem(ctx, c.ID, productID); err != nil {
			return nil, fmt.Errorf("remove cart item: %w", err)
		}
	} else {
		p, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !p.Sellable() {
			return nil, product.ErrUnavailable
		}
		if !p.HasStock(quantity) {
			return nil, ErrInsufficientStock
		}
		if err := s.carts.SetItemQuantity(ctx, c.ID, productID, quantity); err != nil {
			return nil, fmt.Errorf("set cart item quantity: %w", err)
		}
	}

	c, err = s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("reload cart: %w", err)
	}
	return s.summarize(ctx, c)
}

// RemoveItem deletes the product's line from the cart. It is idempotent:
// removing an absent line succeeds.
func (s *Service) RemoveItem(ctx context.Context, owner Owner, productID string) (*Summary, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	c, err := s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if err := s.carts.RemoveItem(ctx, c.ID, productID); err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}

	c, err = s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("reload cart: %w", err)
	}
	return s.summarize(ctx, c)
}

// Clear removes every line from the owner's cart.
func (s *Service) Clear(ctx context.Context, owner Owner) error {
	if !owner.Valid() {
		return ErrNoOwner
	}
	c, err := s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if err := s.carts.Clear(ctx, c.ID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// summarize prices the cart lines against current product data.
func (s *Service) summarize(ctx context.Context, c *Cart) (*Summary, error) {
	sum := &Summary{
		Cart:       c,
		TotalPrice: decimal.Zero,
		IsEmpty:    len(c.Items) == 0,
	}
	if len(c.Items) == 0 {
		return sum, nil
	}

	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	sum.Lines = make([]Line, 0, len(c.Items))
	for _, item := range c.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			// Product removed from the catalog after being carted; skip the
			// line rather than failing the whole read.
			continue
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum.Lines = append(sum.Lines, Line{
			ProductID: item.ProductID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
			LineTotal: lineTotal,
		})
		sum.TotalItems += item.Quantity
		sum.TotalPrice = sum.TotalPrice.Add(lineTotal)
	}
	return sum, nil
}
