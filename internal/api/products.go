package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"tailorshop/m/internal/catalog"
)

type productRequest struct {
	Name        string          `json:"name" validate:"required"`
	Category    *string         `json:"category"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"amount"`
	Stock       int64           `json:"stock" validate:"gte=0"`
}

func (p productRequest) input() catalog.ProductInput {
	return catalog.ProductInput{
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	products, err := h.products.List(r.Context(), catalog.Page{Offset: offset, Limit: limit})
	if err != nil {
		h.respondStoreError(w, r, err, "unable to fetch products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err, "unable to load product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.bind(w, r, &req) {
		return
	}
	product, err := h.products.Create(r.Context(), req.input())
	if err != nil {
		h.respondStoreError(w, r, err, "unable to create product")
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req productRequest
	if !h.bind(w, r, &req) {
		return
	}
	product, err := h.products.Update(r.Context(), id, req.input())
	if err != nil {
		h.respondStoreError(w, r, err, "unable to update product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, r, err, "unable to delete product")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "product removed"})
}
