package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type validateCouponRequest struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
}

type validateCouponResponse struct {
	Code           string          `json:"code"`
	Description    string          `json:"description,omitempty"`
	Type           string          `json:"type"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// ValidateCoupon checks a coupon against an order amount without consuming a
// use, returning the discount it would grant at checkout.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req validateCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	rule, discount, err := h.orders.ValidateCoupon(r.Context(), cid, req.Code, req.OrderAmount)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, validateCouponResponse{
		Code:           rule.Code,
		Description:    rule.Description,
		Type:           string(rule.Type),
		DiscountAmount: discount,
	})
}
