package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/silencedor/commerce-api/internal/domain/address"
	"github.com/silencedor/commerce-api/internal/domain/cart"
	"github.com/silencedor/commerce-api/internal/domain/order"
	"github.com/silencedor/commerce-api/internal/domain/payment"
	"github.com/silencedor/commerce-api/internal/domain/product"
)

type productView struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Price    decimal.Decimal  `json:"price"`
	Category string           `json:"category"`
	InStock  bool             `json:"inStock"`
	Image    productImageView `json:"image"`
}

type productImageView struct {
	Thumbnail string `json:"thumbnail"`
	Mobile    string `json:"mobile"`
	Tablet    string `json:"tablet"`
	Desktop   string `json:"desktop"`
}

func (h *Handler) productToView(p *product.Product) productView {
	return productView{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Category: p.Category,
		InStock:  p.Sellable(),
		Image: productImageView{
			Thumbnail: h.imageURL(p.Image.Thumbnail),
			Mobile:    h.imageURL(p.Image.Mobile),
			Tablet:    h.imageURL(p.Image.Tablet),
			Desktop:   h.imageURL(p.Image.Desktop),
		},
	}
}

func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

type cartView struct {
	Items      []cartLineView  `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	IsEmpty    bool            `json:"isEmpty"`
}

type cartLineView struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

func cartToView(s *cart.Summary) cartView {
	v := cartView{
		Items:      make([]cartLineView, 0, len(s.Lines)),
		TotalItems: s.TotalItems,
		TotalPrice: s.TotalPrice,
		IsEmpty:    s.IsEmpty,
	}
	for _, l := range s.Lines {
		v.Items = append(v.Items, cartLineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal,
		})
	}
	return v
}

type addressView struct {
	ID         string `json:"id"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"isDefault"`
}

func addressToView(a *address.Address) addressView {
	return addressView{
		ID:         a.ID,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		IsDefault:  a.IsDefault,
	}
}

type orderView struct {
	ID            string `json:"id"`
	Number        string `json:"number"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`

	Items []orderItemView `json:"items"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	ShippingCost   decimal.Decimal `json:"shippingCost"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`

	CouponCode string `json:"couponCode,omitempty"`

	BillingAddressID  string `json:"billingAddressId"`
	ShippingAddressID string `json:"shippingAddressId"`

	TrackingNumber  string `json:"trackingNumber,omitempty"`
	ShippingCarrier string `json:"shippingCarrier,omitempty"`
	CustomerNotes   string `json:"customerNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type orderItemView struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

func orderToView(o *order.Order) orderView {
	v := orderView{
		ID:                o.ID,
		Number:            o.Number,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStat),
		Items:             make([]orderItemView, 0, len(o.Items)),
		Subtotal:          o.Subtotal,
		TaxAmount:         o.TaxAmount,
		ShippingCost:      o.ShippingCost,
		DiscountAmount:    o.DiscountAmount,
		TotalAmount:       o.TotalAmount,
		CouponCode:        o.CouponCode,
		BillingAddressID:  o.BillingAddressID,
		ShippingAddressID: o.ShippingAddressID,
		TrackingNumber:    o.TrackingNumber,
		ShippingCarrier:   o.ShippingCarrier,
		CustomerNotes:     o.CustomerNotes,
		CreatedAt:         o.CreatedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		})
	}
	return v
}

type trackingView struct {
	OrderNumber     string             `json:"orderNumber"`
	Status          string             `json:"status"`
	TrackingNumber  string             `json:"trackingNumber,omitempty"`
	ShippingCarrier string             `json:"shippingCarrier,omitempty"`
	History         []historyEntryView `json:"history"`
}

type historyEntryView struct {
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func trackingToView(t *order.Tracking) trackingView {
	v := trackingView{
		OrderNumber:     t.OrderNumber,
		Status:          string(t.Status),
		TrackingNumber:  t.TrackingNumber,
		ShippingCarrier: t.ShippingCarrier,
		History:         make([]historyEntryView, 0, len(t.History)),
	}
	for _, e := range t.History {
		v.History = append(v.History, historyEntryView{
			Status:    string(e.Status),
			Notes:     e.Notes,
			CreatedAt: e.CreatedAt,
		})
	}
	return v
}

type paymentView struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func paymentToView(p *payment.Payment) paymentView {
	return paymentView{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
	}
}

type refundView struct {
	ID        string          `json:"id"`
	PaymentID string          `json:"paymentId"`
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func refundToView(r *payment.Refund) refundView {
	return refundView{
		ID:        r.ID,
		PaymentID: r.PaymentID,
		OrderID:   r.OrderID,
		Amount:    r.Amount,
		Status:    string(r.Status),
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
}
