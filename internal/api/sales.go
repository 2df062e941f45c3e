package api

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"tailorshop/m/internal/sales"
)

type saleItemRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"amount"`
}

type saleRequest struct {
	BuyerID     int64             `json:"buyer_id" validate:"required,gt=0"`
	AttendantID *int64            `json:"attendant_id,omitempty" validate:"omitempty,gt=0"`
	Items       []saleItemRequest `json:"items" validate:"dive"`
}

type saleResponse struct {
	SaleID    int64           `json:"sale_id"`
	Reference string          `json:"reference"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt string          `json:"created_at"`
	Message   string          `json:"message"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if !h.bind(w, r, &req) {
		return
	}

	in := sales.Request{BuyerID: req.BuyerID, Items: make([]sales.ItemRequest, len(req.Items))}
	if req.AttendantID != nil {
		in.AttendantID = *req.AttendantID
	} else if uid, ok := callerID(r.Context()); ok {
		in.AttendantID = uid
	}
	for i, item := range req.Items {
		in.Items[i] = sales.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}

	receipt, err := h.sales.Record(r.Context(), in)
	if err != nil {
		h.respondStoreError(w, r, err, "could not register sale")
		return
	}

	respondJSON(w, http.StatusCreated, saleResponse{
		SaleID:    receipt.SaleID,
		Reference: receipt.Reference,
		Total:     receipt.Total,
		CreatedAt: receipt.CreatedAt,
		Message:   "sale registered",
	})
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sales.Filter{From: q.Get("from"), To: q.Get("to")}
	if raw := q.Get("buyer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "buyer_id must be a positive integer")
			return
		}
		filter.BuyerID = id
	}

	list, err := h.sales.List(r.Context(), filter)
	if err != nil {
		h.respondStoreError(w, r, err, "unable to fetch sales")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	sale, err := h.sales.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err, "unable to load sale")
		return
	}
	respondJSON(w, http.StatusOK, sale)
}
