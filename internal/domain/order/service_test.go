package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silencedor/commerce-api/internal/domain/address"
	"github.com/silencedor/commerce-api/internal/domain/cart"
	"github.com/silencedor/commerce-api/internal/domain/coupon"
	"github.com/silencedor/commerce-api/internal/domain/product"
)

// --- Mock implementations ---

type mockCartRepo struct {
	cart *cart.Cart
	err  error
}

func (m *mockCartRepo) GetOrCreate(_ context.Context, _ cart.Owner) (*cart.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartRepo) AddItemQuantity(_ context.Context, _, _ string, _ int) (int, error) {
	return 0, nil
}

func (m *mockCartRepo) SetItemQuantity(_ context.Context, _, _ string, _ int) error {
	return nil
}

func (m *mockCartRepo) RemoveItem(_ context.Context, _, _ string) error { return nil }
func (m *mockCartRepo) Clear(_ context.Context, _ string) error         { return nil }

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCouponRepo struct {
	rule *coupon.Rule
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*coupon.Rule, error) {
	if m.rule == nil {
		return nil, coupon.ErrNotFound
	}
	return m.rule, nil
}

type mockAddressRepo struct {
	byID map[string]*address.Address
}

func (m *mockAddressRepo) GetByID(_ context.Context, id string) (*address.Address, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, address.ErrNotFound
	}
	return a, nil
}

func (m *mockAddressRepo) ListByCustomer(_ context.Context, _ string) ([]address.Address, error) {
	return nil, nil
}

func (m *mockAddressRepo) Create(_ context.Context, _ *address.Address) error { return nil }
func (m *mockAddressRepo) SetDefault(_ context.Context, _, _ string) error    { return nil }

type mockOrderRepo struct {
	byID        map[string]*Order
	transitions []Status
	tracking    []string
	transErr    error
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByNumber(_ context.Context, number string) (*Order, error) {
	for _, o := range m.byID {
		if o.Number == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, _ string) ([]Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) History(_ context.Context, _ string) ([]HistoryEntry, error) {
	return []HistoryEntry{{Status: StatusPending, Notes: "order created"}}, nil
}

func (m *mockOrderRepo) Transition(_ context.Context, orderID string, to Status, _ string) error {
	if m.transErr != nil {
		return m.transErr
	}
	m.transitions = append(m.transitions, to)
	if o, ok := m.byID[orderID]; ok {
		o.Status = to
	}
	return nil
}

func (m *mockOrderRepo) SetTracking(_ context.Context, _, number, carrier string) error {
	m.tracking = append(m.tracking, number+"/"+carrier)
	return nil
}

type mockCheckoutStore struct {
	lastOrder  *Order
	lastCartID string
	levels     []StockLevel
	err        error
	calls      int
}

func (m *mockCheckoutStore) CreateOrder(_ context.Context, o *Order, cartID string) ([]StockLevel, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	m.lastOrder = o
	m.lastCartID = cartID
	return m.levels, nil
}

type recordedEvents struct {
	placed    []*Order
	cancelled []*Order
	lowStock  map[string]int
}

func newRecordedEvents() *recordedEvents {
	return &recordedEvents{lowStock: make(map[string]int)}
}

func (e *recordedEvents) OrderPlaced(o *Order)    { e.placed = append(e.placed, o) }
func (e *recordedEvents) OrderCancelled(o *Order) { e.cancelled = append(e.cancelled, o) }
func (e *recordedEvents) LowStock(id string, remaining int) {
	e.lowStock[id] = remaining
}

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func sellable(id, name, price string, qty int) product.Product {
	return product.Product{
		ID:             id,
		Name:           name,
		Price:          dec(price),
		Status:         product.StatusPublished,
		TrackInventory: true,
		Quantity:       qty,
	}
}

type fixture struct {
	carts     *mockCartRepo
	products  *mockProductRepo
	coupons   *mockCouponRepo
	addresses *mockAddressRepo
	orders    *mockOrderRepo
	checkout  *mockCheckoutStore
	events    *recordedEvents
	pricing   Pricing
}

func newFixture() *fixture {
	return &fixture{
		carts: &mockCartRepo{cart: &cart.Cart{
			ID:    "cart-1",
			Owner: cart.Owner{CustomerID: "cust-1"},
			Items: []cart.Item{
				{ProductID: "p1", Quantity: 2},
				{ProductID: "p2", Quantity: 1},
			},
		}},
		products: &mockProductRepo{byID: map[string]product.Product{
			"p1": sellable("p1", "Widget", "10.00", 10),
			"p2": sellable("p2", "Gadget", "5.00", 10),
		}},
		coupons: &mockCouponRepo{},
		addresses: &mockAddressRepo{byID: map[string]*address.Address{
			"addr-1": {ID: "addr-1", CustomerID: "cust-1"},
			"addr-2": {ID: "addr-2", CustomerID: "cust-1"},
		}},
		orders:   &mockOrderRepo{byID: map[string]*Order{}},
		checkout: &mockCheckoutStore{},
		events:   newRecordedEvents(),
		pricing:  Pricing{TaxRate: dec("0.20"), ShippingCost: dec("5.00")},
	}
}

func (f *fixture) service() *Service {
	return NewService(f.carts, f.products, f.coupons, f.addresses,
		f.orders, f.checkout, f.pricing, f.events)
}

func checkoutReq() CheckoutRequest {
	return CheckoutRequest{
		CustomerID:        "cust-1",
		BillingAddressID:  "addr-1",
		ShippingAddressID: "addr-2",
	}
}

// --- Checkout tests ---

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture()
	f.carts.cart.Items = nil

	_, err := f.service().Checkout(context.Background(), checkoutReq())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, f.checkout.calls)
}

func TestCheckout_InvalidBillingAddress(t *testing.T) {
	f := newFixture()
	req := checkoutReq()
	req.BillingAddressID = "missing"

	_, err := f.service().Checkout(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestCheckout_ForeignShippingAddress(t *testing.T) {
	f := newFixture()
	f.addresses.byID["addr-2"].CustomerID = "someone-else"

	_, err := f.service().Checkout(context.Background(), checkoutReq())
	require.ErrorIs(t, err, ErrInvalidAddress)
	assert.Zero(t, f.checkout.calls)
}

func TestCheckout_Pricing(t *testing.T) {
	f := newFixture()

	o, err := f.service().Checkout(context.Background(), checkoutReq())
	require.NoError(t, err)

	// 2 × 10.00 + 1 × 5.00 = 25.00, tax 20% = 5.00, shipping 5.00
	assert.True(t, o.Subtotal.Equal(dec("25.00")), "subtotal %s", o.Subtotal)
	assert.True(t, o.TaxAmount.Equal(dec("5.00")), "tax %s", o.TaxAmount)
	assert.True(t, o.ShippingCost.Equal(dec("5.00")), "shipping %s", o.ShippingCost)
	assert.True(t, o.DiscountAmount.IsZero())
	assert.True(t, o.TotalAmount.Equal(dec("35.00")), "total %s", o.TotalAmount)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStat)
	assert.Len(t, o.Number, 10)
	assert.Equal(t, "SD", o.Number[:2])
	assert.Equal(t, "cart-1", f.checkout.lastCartID)
}

func TestCheckout_PricingIdentity(t *testing.T) {
	f := newFixture()
	f.coupons.rule = &coupon.Rule{
		Code:       "TEN",
		Type:       coupon.TypePercentage,
		Value:      dec("10"),
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(time.Hour),
		Active:     true,
	}
	req := checkoutReq()
	req.CouponCode = "TEN"

	o, err := f.service().Checkout(context.Background(), req)
	require.NoError(t, err)

	// total = subtotal + tax + shipping - discount, with tax on the
	// undiscounted subtotal.
	want := o.Subtotal.Add(o.TaxAmount).Add(o.ShippingCost).Sub(o.DiscountAmount)
	assert.True(t, o.TotalAmount.Equal(want), "total %s != %s", o.TotalAmount, want)
	assert.True(t, o.DiscountAmount.Equal(dec("2.50")), "discount %s", o.DiscountAmount)
	assert.True(t, o.TotalAmount.Equal(dec("32.50")), "total %s", o.TotalAmount)
}

func TestCheckout_CouponBelowMinimumFails(t *testing.T) {
	f := newFixture()
	f.coupons.rule = &coupon.Rule{
		Code:               "BIG",
		Type:               coupon.TypePercentage,
		Value:              dec("10"),
		MinimumOrderAmount: decPtr("50.00"),
		ValidFrom:          time.Now().Add(-time.Hour),
		ValidUntil:         time.Now().Add(time.Hour),
		Active:             true,
	}
	req := checkoutReq()
	req.CouponCode = "BIG"

	_, err := f.service().Checkout(context.Background(), req)
	require.ErrorIs(t, err, coupon.ErrMinimumNotMet)
	assert.Zero(t, f.checkout.calls, "invalid coupon must abort checkout")
}

func TestCheckout_CouponRestrictedToOthersFails(t *testing.T) {
	f := newFixture()
	f.coupons.rule = &coupon.Rule{
		Code:                  "VIPONLY",
		Type:                  coupon.TypePercentage,
		Value:                 dec("15"),
		ApplicableCustomerIDs: []string{"vip-1", "vip-2"},
		ValidFrom:             time.Now().Add(-time.Hour),
		ValidUntil:            time.Now().Add(time.Hour),
		Active:                true,
	}
	req := checkoutReq()
	req.CouponCode = "VIPONLY"

	_, err := f.service().Checkout(context.Background(), req)
	require.ErrorIs(t, err, coupon.ErrNotEligible)
	assert.Zero(t, f.checkout.calls)
}

func TestCheckout_CouponAudienceIncludesCustomer(t *testing.T) {
	f := newFixture()
	f.coupons.rule = &coupon.Rule{
		Code:                  "VIPONLY",
		Type:                  coupon.TypePercentage,
		Value:                 dec("15"),
		ApplicableCustomerIDs: []string{"cust-1"},
		ValidFrom:             time.Now().Add(-time.Hour),
		ValidUntil:            time.Now().Add(time.Hour),
		Active:                true,
	}
	req := checkoutReq()
	req.CouponCode = "VIPONLY"

	o, err := f.service().Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, o.DiscountAmount.Equal(dec("3.75")), "discount %s", o.DiscountAmount)
}

func TestCheckout_UnknownCouponFails(t *testing.T) {
	f := newFixture()
	req := checkoutReq()
	req.CouponCode = "NOSUCH"

	_, err := f.service().Checkout(context.Background(), req)
	require.ErrorIs(t, err, coupon.ErrNotFound)
	assert.Zero(t, f.checkout.calls)
}

func TestCheckout_FreeShippingCoupon(t *testing.T) {
	f := newFixture()
	f.coupons.rule = &coupon.Rule{
		Code:       "SHIPFREE",
		Type:       coupon.TypeFreeShipping,
		Value:      decimal.Zero,
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(time.Hour),
		Active:     true,
	}
	req := checkoutReq()
	req.CouponCode = "SHIPFREE"

	o, err := f.service().Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, o.ShippingCost.IsZero(), "shipping %s", o.ShippingCost)
	assert.True(t, o.DiscountAmount.IsZero())
	assert.True(t, o.TotalAmount.Equal(dec("30.00")), "total %s", o.TotalAmount)
}

func TestCheckout_FreeShippingThreshold(t *testing.T) {
	f := newFixture()
	f.pricing.FreeShippingOver = decPtr("25.00")

	o, err := f.service().Checkout(context.Background(), checkoutReq())
	require.NoError(t, err)
	assert.True(t, o.ShippingCost.IsZero(), "shipping %s", o.ShippingCost)
	assert.True(t, o.TotalAmount.Equal(dec("30.00")), "total %s", o.TotalAmount)
}

func TestCheckout_TotalNeverNegative(t *testing.T) {
	f := newFixture()
	f.pricing = Pricing{TaxRate: decimal.Zero, ShippingCost: decimal.Zero}
	f.coupons.rule = &coupon.Rule{
		Code:       "HUGE",
		Type:       coupon.TypeFixed,
		Value:      dec("100.00"),
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(time.Hour),
		Active:     true,
	}
	req := checkoutReq()
	req.CouponCode = "HUGE"

	o, err := f.service().Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, o.TotalAmount.IsNegative())
}

func TestCheckout_UnavailableProductAborts(t *testing.T) {
	f := newFixture()
	p := f.products.byID["p2"]
	p.Status = product.StatusArchived
	f.products.byID["p2"] = p

	_, err := f.service().Checkout(context.Background(), checkoutReq())

	var unavailable *ProductUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "p2", unavailable.ProductID)
	assert.Zero(t, f.checkout.calls, "all-or-nothing: no partial order")
}

func TestCheckout_InsufficientStockAborts(t *testing.T) {
	f := newFixture()
	p := f.products.byID["p1"]
	p.Quantity = 1
	f.products.byID["p1"] = p

	_, err := f.service().Checkout(context.Background(), checkoutReq())

	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, "p1", stock.ProductID)
	assert.Equal(t, 2, stock.Requested)
	assert.Equal(t, 1, stock.Available)
}

func TestCheckout_SnapshotsPrices(t *testing.T) {
	f := newFixture()

	o, err := f.service().Checkout(context.Background(), checkoutReq())
	require.NoError(t, err)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "Widget", o.Items[0].Name)
	assert.True(t, o.Items[0].UnitPrice.Equal(dec("10.00")))
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestCheckout_Events(t *testing.T) {
	f := newFixture()
	f.checkout.levels = []StockLevel{
		{ProductID: "p1", Remaining: 8},
		{ProductID: "p2", Remaining: 3},
	}

	_, err := f.service().Checkout(context.Background(), checkoutReq())
	require.NoError(t, err)

	require.Len(t, f.events.placed, 1)
	assert.Equal(t, map[string]int{"p2": 3}, f.events.lowStock,
		"only levels at or below the threshold raise low-stock events")
}

// --- Lifecycle tests ---

func TestValidateCoupon(t *testing.T) {
	f := newFixture()
	f.coupons.rule = &coupon.Rule{
		Code:       "TEN",
		Type:       coupon.TypePercentage,
		Value:      dec("10"),
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(time.Hour),
		Active:     true,
		UsedCount:  7,
	}

	rule, discount, err := f.service().ValidateCoupon(context.Background(), "cust-1", "TEN", dec("25.00"))
	require.NoError(t, err)
	assert.Equal(t, "TEN", rule.Code)
	assert.True(t, discount.Equal(dec("2.50")), "discount %s", discount)
	assert.Equal(t, 7, f.coupons.rule.UsedCount, "pre-check must not consume a use")
}

func TestGet_ForeignOrderHidden(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &Order{ID: "o1", CustomerID: "someone-else"}

	_, err := f.service().Get(context.Background(), "cust-1", "o1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancel(t *testing.T) {
	cancellable := []Status{StatusPending, StatusConfirmed, StatusProcessing}
	blocked := []Status{StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded}

	for _, st := range cancellable {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture()
			f.orders.byID["o1"] = &Order{ID: "o1", CustomerID: "cust-1", Status: st}

			o, err := f.service().Cancel(context.Background(), "cust-1", "o1")
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, o.Status)
			assert.Equal(t, []Status{StatusCancelled}, f.orders.transitions,
				"exactly one transition recorded")
			assert.Len(t, f.events.cancelled, 1)
		})
	}

	for _, st := range blocked {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture()
			f.orders.byID["o1"] = &Order{ID: "o1", CustomerID: "cust-1", Status: st}

			_, err := f.service().Cancel(context.Background(), "cust-1", "o1")
			require.ErrorIs(t, err, ErrTransitionNotAllowed)
			assert.Empty(t, f.orders.transitions)
			assert.Empty(t, f.events.cancelled)
		})
	}
}

func TestTrack(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &Order{
		ID:              "o1",
		Number:          "SDAB12CD34",
		CustomerID:      "cust-1",
		Status:          StatusShipped,
		TrackingNumber:  "TRK-1",
		ShippingCarrier: "laposte",
	}

	tr, err := f.service().Track(context.Background(), "cust-1", "SDAB12CD34")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, tr.Status)
	assert.Equal(t, "TRK-1", tr.TrackingNumber)
	require.Len(t, tr.History, 1)

	_, err = f.service().Track(context.Background(), "other", "SDAB12CD34")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransition_ShippedRecordsTracking(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &Order{ID: "o1", CustomerID: "cust-1", Status: StatusProcessing}

	o, err := f.service().Transition(context.Background(), TransitionRequest{
		OrderID:        "o1",
		To:             StatusShipped,
		TrackingNumber: "TRK-9",
		Carrier:        "chronopost",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, "TRK-9", o.TrackingNumber)
	assert.Equal(t, []string{"TRK-9/chronopost"}, f.orders.tracking)
}

func TestTransition_Invalid(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &Order{ID: "o1", CustomerID: "cust-1", Status: StatusDelivered}

	_, err := f.service().Transition(context.Background(), TransitionRequest{
		OrderID: "o1",
		To:      StatusShipped,
	})
	require.ErrorIs(t, err, ErrTransitionNotAllowed)
	assert.Empty(t, f.orders.transitions)
}
