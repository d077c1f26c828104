package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/silencedor/commerce-api/internal/domain/order"
)

type checkoutRequest struct {
	BillingAddressID  string `json:"billingAddressId"`
	ShippingAddressID string `json:"shippingAddressId"`
	CouponCode        string `json:"couponCode"`
	CustomerNotes     string `json:"customerNotes"`
}

type transitionOrderRequest struct {
	Status         string `json:"status"`
	Notes          string `json:"notes"`
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
}

// Checkout converts the customer's cart into an order. Stock is depleted and
// the coupon consumed atomically; on any failure nothing is committed and the
// cart survives.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		CustomerID:        cid,
		BillingAddressID:  req.BillingAddressID,
		ShippingAddressID: req.ShippingAddressID,
		CouponCode:        req.CouponCode,
		CustomerNotes:     req.CustomerNotes,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, orderToView(o))
}

// ListOrders returns the customer's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.orders.List(r.Context(), cid)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, orderToView(&orders[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

// GetOrder returns one of the customer's orders by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	o, err := h.orders.Get(r.Context(), cid, chi.URLParam(r, "orderID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(o))
}

// CancelOrder cancels the customer's order while it is still cancellable.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	o, err := h.orders.Cancel(r.Context(), cid, chi.URLParam(r, "orderID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(o))
}

// TrackOrder returns shipping status and history for the customer's order by
// its public number.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	t, err := h.orders.Track(r.Context(), cid, chi.URLParam(r, "orderNumber"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, trackingToView(t))
}

// TransitionOrder applies an admin fulfillment transition.
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	to := order.Status(req.Status)
	if !order.ValidStatus(to) {
		respondError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	o, err := h.orders.Transition(r.Context(), order.TransitionRequest{
		OrderID:        chi.URLParam(r, "orderID"),
		To:             to,
		Notes:          req.Notes,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(o))
}
