package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the caller's cart summary, creating the cart if absent.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.carts.Get(r.Context(), owner)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartToView(summary))
}

// AddCartItem adds quantity of a product to the cart, merging with an
// existing line for the same product.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	summary, err := h.carts.AddItem(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartToView(summary))
}

// UpdateCartItem overwrites a line's quantity. A quantity of zero or less
// removes the line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	summary, err := h.carts.SetQuantity(r.Context(), owner, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartToView(summary))
}

// RemoveCartItem deletes a line from the cart. Removing an absent line
// succeeds.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.carts.RemoveItem(r.Context(), owner, chi.URLParam(r, "productID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartToView(summary))
}

// ClearCart removes every line from the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.carts.Clear(r.Context(), owner); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
