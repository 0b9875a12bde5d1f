package api

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/erazemk/avtomat/internal/model"
	"github.com/erazemk/avtomat/internal/receipt"
	"github.com/erazemk/avtomat/internal/vending"
)

// SalesHandler runs purchases and reports the sale history.
type SalesHandler struct {
	Machine *vending.Machine
}

type saleResponse struct {
	model.Sale
	Total   decimal.Decimal `json:"total"`
	Warning string          `json:"warning,omitempty"`
}

func newSaleResponse(s model.Sale, warn string) saleResponse {
	return saleResponse{Sale: s, Total: s.Total(), Warning: warn}
}

// Purchase handles POST /api/items/{id}/purchase.
func (h *SalesHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sale, err := h.Machine.Purchase(r.Context(), id)
	if !applied(err) {
		engineError(w, err)
		return
	}

	slog.Info("item sold", "sale", sale.ID, "item", id, "total", sale.Total().String())
	jsonResponse(w, http.StatusCreated, newSaleResponse(sale, warning(err)))
}

// List handles GET /api/sales.
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	sales := h.Machine.ListSales()
	resp := make([]saleResponse, 0, len(sales))
	for _, s := range sales {
		resp = append(resp, newSaleResponse(s, ""))
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Summary handles GET /api/sales/summary.
func (h *SalesHandler) Summary(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Machine.Summary())
}

// Get handles GET /api/sales/{id}.
func (h *SalesHandler) Get(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.Machine.FindSale(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "sale not found")
		return
	}
	jsonResponse(w, http.StatusOK, newSaleResponse(sale, ""))
}

// Receipt handles GET /api/sales/{id}/receipt.
func (h *SalesHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.Machine.FindSale(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "sale not found")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := receipt.Render(w, sale); err != nil {
		slog.Error("failed to write receipt", "sale", sale.ID, "error", err)
	}
}

// Clear handles DELETE /api/sales.
func (h *SalesHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n := h.Machine.SaleCount()
	h.Machine.ClearSales()
	slog.Info("sale history cleared", "sales", n, "operator", operatorName(r))
	jsonResponse(w, http.StatusOK, map[string]any{"message": "sale history cleared", "cleared": n})
}
