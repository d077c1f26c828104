// Package handler exposes the HTTP JSON API: cart mutation, checkout, order
// lifecycle, coupon validation, payments, and the provider webhook receiver.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/silencedor/commerce-api/internal/domain/address"
	"github.com/silencedor/commerce-api/internal/domain/cart"
	"github.com/silencedor/commerce-api/internal/domain/order"
	"github.com/silencedor/commerce-api/internal/domain/payment"
	"github.com/silencedor/commerce-api/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses. When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Handler wires HTTP routes to the domain services.
type Handler struct {
	products  product.Repository
	addresses address.Repository
	carts     *cart.Service
	orders    *order.Service
	payments  *payment.Service
	security  *Security

	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	products product.Repository,
	addresses address.Repository,
	carts *cart.Service,
	orders *order.Service,
	payments *payment.Service,
	security *Security,
) *Handler {
	return &Handler{
		products:     products,
		addresses:    addresses,
		carts:        carts,
		orders:       orders,
		payments:     payments,
		security:     security,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes returns the API router. The webhook receiver sits outside the API
// key middleware; it authenticates by payload signature instead.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhooks/payment", h.PaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.security.Authenticate)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddCartItem)
		r.Patch("/cart/items/{productID}", h.UpdateCartItem)
		r.Delete("/cart/items/{productID}", h.RemoveCartItem)
		r.Delete("/cart", h.ClearCart)

		r.Get("/addresses", h.ListAddresses)
		r.Post("/addresses", h.CreateAddress)
		r.Post("/addresses/{addressID}/default", h.SetDefaultAddress)

		r.Post("/orders", h.Checkout)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Post("/orders/{orderID}/cancel", h.CancelOrder)
		r.Get("/orders/track/{orderNumber}", h.TrackOrder)

		r.Post("/coupons/validate", h.ValidateCoupon)

		r.Post("/payments/intent", h.CreatePaymentIntent)
		r.Get("/payments", h.ListPayments)
		r.Post("/payments/{paymentID}/confirm", h.ConfirmPayment)
		r.Post("/payments/{paymentID}/refund", h.RefundPayment)

		r.Group(func(r chi.Router) {
			r.Use(h.security.RequireScope(scopeAdmin))
			r.Post("/orders/{orderID}/status", h.TransitionOrder)
		})
	})

	return r
}
