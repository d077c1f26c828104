package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createIntentRequest struct {
	OrderID string `json:"orderId"`
}

type createIntentResponse struct {
	Payment      paymentView `json:"payment"`
	ClientSecret string      `json:"clientSecret"`
}

type refundRequest struct {
	// Amount of zero (or omitted) refunds the full payment.
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// CreatePaymentIntent opens a provider payment intent for an order awaiting
// payment and returns the client secret used to complete it.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createIntentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "orderId is required")
		return
	}

	res, err := h.payments.CreateIntent(r.Context(), cid, req.OrderID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, createIntentResponse{
		Payment:      paymentToView(res.Payment),
		ClientSecret: res.ClientSecret,
	})
}

// ListPayments returns the customer's payment attempts.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	payments, err := h.payments.ListByCustomer(r.Context(), cid)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	views := make([]paymentView, 0, len(payments))
	for i := range payments {
		views = append(views, paymentToView(&payments[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

// ConfirmPayment re-checks the provider intent and settles the payment. The
// webhook normally settles first; this endpoint covers clients polling after
// redirect.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.payments.Confirm(r.Context(), cid, chi.URLParam(r, "paymentID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, paymentToView(p))
}

// RefundPayment refunds a succeeded payment, fully or partially.
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req refundRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ref, err := h.payments.CreateRefund(r.Context(), cid, chi.URLParam(r, "paymentID"), req.Amount, req.Reason)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, refundToView(ref))
}
