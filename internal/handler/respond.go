package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/silencedor/commerce-api/internal/domain/address"
	"github.com/silencedor/commerce-api/internal/domain/cart"
	"github.com/silencedor/commerce-api/internal/domain/coupon"
	"github.com/silencedor/commerce-api/internal/domain/order"
	"github.com/silencedor/commerce-api/internal/domain/payment"
	"github.com/silencedor/commerce-api/internal/domain/product"
)

// errorResponse is the error envelope for every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Code: status, Message: message})
}

// respondDomainError maps domain errors onto the API's status code contract:
// 400 bad input, 404 missing resource, 409 stock/coupon conflicts, 422 domain
// rejection, 502 provider failure. Unknown errors become 500 and are logged.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrNoOwner),
		errors.Is(err, order.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, address.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, cart.ErrInsufficientStock),
		errors.Is(err, coupon.ErrExhausted):
		respondError(w, http.StatusConflict, err.Error())

	case errors.Is(err, order.ErrInvalidAddress),
		errors.Is(err, address.ErrNotOwned):
		respondError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, product.ErrUnavailable),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrMinimumNotMet),
		errors.Is(err, coupon.ErrNotEligible),
		errors.Is(err, order.ErrTransitionNotAllowed),
		errors.Is(err, payment.ErrOrderAlreadyPaid),
		errors.Is(err, payment.ErrNotSucceeded),
		errors.Is(err, payment.ErrNotRefundable),
		errors.Is(err, payment.ErrRefundExceedsPayment):
		respondError(w, http.StatusUnprocessableEntity, err.Error())

	default:
		var (
			unavailable *order.ProductUnavailableError
			stock       *order.InsufficientStockError
			provider    *payment.ProviderError
		)
		switch {
		case errors.As(err, &unavailable):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &stock):
			respondError(w, http.StatusConflict, err.Error())
		case errors.As(err, &provider):
			respondError(w, http.StatusBadGateway, err.Error())
		default:
			zctx.From(r.Context()).Error("request failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

// decodeBody decodes the JSON request body into dst, rejecting unknown
// fields. It writes the 400 response itself and reports success.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
