package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListProducts returns the published catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	views := make([]productView, 0, len(products))
	for i := range products {
		views = append(views, h.productToView(&products[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

// GetProduct returns a single product by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.productToView(p))
}
