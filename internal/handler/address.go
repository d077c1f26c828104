package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/silencedor/commerce-api/internal/domain/address"
)

type createAddressRequest struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"isDefault"`
}

// ListAddresses returns the customer's address book.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	addrs, err := h.addresses.ListByCustomer(r.Context(), cid)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	views := make([]addressView, 0, len(addrs))
	for i := range addrs {
		views = append(views, addressToView(&addrs[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

// CreateAddress adds an address to the customer's address book.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createAddressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Line1 == "" || req.City == "" || req.PostalCode == "" || req.Country == "" {
		respondError(w, http.StatusBadRequest, "line1, city, postalCode and country are required")
		return
	}

	a := &address.Address{
		ID:         uuid.NewString(),
		CustomerID: cid,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		IsDefault:  req.IsDefault,
	}
	if err := h.addresses.Create(r.Context(), a); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, addressToView(a))
}

// SetDefaultAddress marks an address as the customer's default.
func (h *Handler) SetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	cid := customerID(r)
	if cid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.addresses.SetDefault(r.Context(), cid, chi.URLParam(r, "addressID")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
