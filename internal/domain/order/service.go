package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/silencedor/commerce-api/internal/domain/address"
	"github.com/silencedor/commerce-api/internal/domain/cart"
	"github.com/silencedor/commerce-api/internal/domain/coupon"
	"github.com/silencedor/commerce-api/internal/domain/product"
)

// Sentinel errors for checkout validation.
var (
	// ErrEmptyCart is returned when checkout is attempted on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidAddress is returned when a billing or shipping address is
	// missing or belongs to another customer.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrNotFound is returned when an order does not exist or belongs to
	// another customer.
	ErrNotFound = errors.New("order not found")
)

// ProductUnavailableError indicates a carted product can no longer be sold.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is unavailable", e.ProductID)
}

// InsufficientStockError indicates a carted quantity exceeds tracked stock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Pricing holds the checkout pricing policy. TaxRate applies to the
// undiscounted subtotal. Shipping is waived for free_shipping coupons and for
// subtotals at or above FreeShippingOver when set.
type Pricing struct {
	TaxRate          decimal.Decimal
	ShippingCost     decimal.Decimal
	FreeShippingOver *decimal.Decimal
}

// Events receives post-commit notifications from the order service. Handlers
// must not block; delivery is fire-and-forget from the request path.
type Events interface {
	OrderPlaced(o *Order)
	OrderCancelled(o *Order)
	LowStock(productID string, remaining int)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) OrderPlaced(*Order)    {}
func (NopEvents) OrderCancelled(*Order) {}
func (NopEvents) LowStock(string, int)  {}

// CheckoutRequest holds the input for creating an order from a cart.
type CheckoutRequest struct {
	CustomerID        string
	BillingAddressID  string
	ShippingAddressID string
	CouponCode        string
	CustomerNotes     string
}

// Service turns carts into orders and manages order lifecycle transitions.
type Service struct {
	carts     cart.Repository
	products  product.Repository
	coupons   coupon.Repository
	addresses address.Repository
	orders    Repository
	checkout  CheckoutStore
	pricing   Pricing
	events    Events
	now       func() time.Time

	lowStockThreshold int
}

// NewService creates an order Service. Pass NopEvents when no notification
// sink is wired.
func NewService(
	carts cart.Repository,
	products product.Repository,
	coupons coupon.Repository,
	addresses address.Repository,
	orders Repository,
	checkout CheckoutStore,
	pricing Pricing,
	events Events,
) *Service {
	return &Service{
		carts:             carts,
		products:          products,
		coupons:           coupons,
		addresses:         addresses,
		orders:            orders,
		checkout:          checkout,
		pricing:           pricing,
		events:            events,
		now:               time.Now,
		lowStockThreshold: 5,
	}
}

// Checkout creates an order from the customer's cart. The whole persistence
// step is one transaction: any validation or write failure leaves the cart
// and catalog untouched. On success the cart is cleared.
//
// Invalid coupon codes fail the checkout with a coupon error rather than
// being silently dropped; callers wanting a pre-check use ValidateCoupon.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	owner := cart.Owner{CustomerID: req.CustomerID}
	c, err := s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	if _, err := address.Verify(ctx, s.addresses, req.CustomerID, req.BillingAddressID); err != nil {
		return nil, errors.Wrap(ErrInvalidAddress, "billing")
	}
	if _, err := address.Verify(ctx, s.addresses, req.CustomerID, req.ShippingAddressID); err != nil {
		return nil, errors.Wrap(ErrInvalidAddress, "shipping")
	}

	items, subtotal, err := s.priceCart(ctx, c)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	freeShipping := false
	if req.CouponCode != "" {
		rule, err := s.coupons.FindByCode(ctx, req.CouponCode)
		if err != nil {
			return nil, err
		}
		if err := coupon.Validate(rule, s.now(), req.CustomerID, subtotal); err != nil {
			return nil, err
		}
		discount, err = coupon.Discount(rule, subtotal)
		if err != nil {
			return nil, err
		}
		freeShipping = rule.Type == coupon.TypeFreeShipping
	}

	tax := subtotal.Mul(s.pricing.TaxRate).Round(2)
	shipping := s.pricing.ShippingCost
	if freeShipping || (s.pricing.FreeShippingOver != nil && subtotal.GreaterThanOrEqual(*s.pricing.FreeShippingOver)) {
		shipping = decimal.Zero
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		ID:                uuid.New().String(),
		Number:            NewNumber(),
		CustomerID:        req.CustomerID,
		Status:            StatusPending,
		PaymentStat:       PaymentPending,
		BillingAddressID:  req.BillingAddressID,
		ShippingAddressID: req.ShippingAddressID,
		Items:             items,
		Subtotal:          subtotal.Round(2),
		TaxAmount:         tax,
		ShippingCost:      shipping.Round(2),
		DiscountAmount:    discount,
		TotalAmount:       total.Round(2),
		CouponCode:        req.CouponCode,
		CustomerNotes:     req.CustomerNotes,
	}

	levels, err := s.checkout.CreateOrder(ctx, o, c.ID)
	if err != nil {
		return nil, err
	}

	s.events.OrderPlaced(o)
	for _, lvl := range levels {
		if lvl.Remaining <= s.lowStockThreshold {
			s.events.LowStock(lvl.ProductID, lvl.Remaining)
		}
	}
	return o, nil
}

// priceCart re-validates every cart line against current product state and
// snapshots prices. All-or-nothing: the first failing line aborts.
func (s *Service) priceCart(ctx context.Context, c *cart.Cart) ([]Item, decimal.Decimal, error) {
	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, 0, len(c.Items))
	subtotal := decimal.Zero
	for _, line := range c.Items {
		p, ok := byID[line.ProductID]
		if !ok || !p.Sellable() {
			return nil, decimal.Zero, &ProductUnavailableError{ProductID: line.ProductID}
		}
		if !p.HasStock(line.Quantity) {
			return nil, decimal.Zero, &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: p.Quantity,
			}
		}
		item := Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
		}
		items = append(items, item)
		subtotal = subtotal.Add(item.LineTotal())
	}
	return items, subtotal, nil
}

// ValidateCoupon pre-checks a coupon against an order amount without
// consuming a use. Returns the rule and the discount it would grant.
func (s *Service) ValidateCoupon(ctx context.Context, customerID, code string, orderAmount decimal.Decimal) (*coupon.Rule, decimal.Decimal, error) {
	rule, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if err := coupon.Validate(rule, s.now(), customerID, orderAmount); err != nil {
		return nil, decimal.Zero, err
	}
	discount, err := coupon.Discount(rule, orderAmount)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return rule, discount, nil
}

// Get returns the customer's order by id.
func (s *Service) Get(ctx context.Context, customerID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns the customer's orders, newest first.
func (s *Service) List(ctx context.Context, customerID string) ([]Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

// Cancel cancels the customer's order. One rule governs eligibility:
// cancellation is allowed exactly when the state machine permits a move to
// cancelled (pending, confirmed, or processing).
func (s *Service) Cancel(ctx context.Context, customerID, orderID string) (*Order, error) {
	o, err := s.Get(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.Cancellable() {
		return nil, ErrTransitionNotAllowed
	}
	if err := s.orders.Transition(ctx, o.ID, StatusCancelled, "cancelled by customer"); err != nil {
		return nil, err
	}
	o.Status = StatusCancelled
	s.events.OrderCancelled(o)
	return o, nil
}

// Tracking is the read model for the order tracking endpoint.
type Tracking struct {
	OrderNumber     string
	Status          Status
	TrackingNumber  string
	ShippingCarrier string
	History         []HistoryEntry
}

// Track returns tracking details for the customer's order by number.
func (s *Service) Track(ctx context.Context, customerID, orderNumber string) (*Tracking, error) {
	o, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	history, err := s.orders.History(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("order history: %w", err)
	}
	return &Tracking{
		OrderNumber:     o.Number,
		Status:          o.Status,
		TrackingNumber:  o.TrackingNumber,
		ShippingCarrier: o.ShippingCarrier,
		History:         history,
	}, nil
}

// TransitionRequest is the admin-side input for moving an order through
// fulfillment.
type TransitionRequest struct {
	OrderID        string
	To             Status
	Notes          string
	TrackingNumber string
	Carrier        string
}

// Transition applies an admin fulfillment transition, guarded by the state
// machine, optionally recording tracking details when the order ships.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*Order, error) {
	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !ValidStatus(req.To) || !CanTransition(o.Status, req.To) {
		return nil, ErrTransitionNotAllowed
	}
	if req.To == StatusShipped && req.TrackingNumber != "" {
		if err := s.orders.SetTracking(ctx, o.ID, req.TrackingNumber, req.Carrier); err != nil {
			return nil, fmt.Errorf("set tracking: %w", err)
		}
		o.TrackingNumber = req.TrackingNumber
		o.ShippingCarrier = req.Carrier
	}
	if err := s.orders.Transition(ctx, o.ID, req.To, req.Notes); err != nil {
		return nil, err
	}
	o.Status = req.To
	return o, nil
}
