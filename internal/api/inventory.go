package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/avtomat/internal/vending"
)

// InventoryHandler reports and refreshes the inventory as a whole.
type InventoryHandler struct {
	Machine *vending.Machine
}

type inventoryStatus struct {
	Items    int    `json:"items"`
	Sales    int    `json:"sales"`
	Load     string `json:"load"`
	Fallback bool   `json:"fallback"`
}

// Status handles GET /api/inventory.
func (h *InventoryHandler) Status(w http.ResponseWriter, r *http.Request) {
	res := h.Machine.LoadResult()
	jsonResponse(w, http.StatusOK, inventoryStatus{
		Items:    h.Machine.ItemCount(),
		Sales:    h.Machine.SaleCount(),
		Load:     res.Status.String(),
		Fallback: res.Fallback(),
	})
}

// Reload handles POST /api/inventory/reload.
func (h *InventoryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	res := h.Machine.Reload(r.Context())
	if res.Fallback() {
		slog.Error("inventory reload failed", "error", res.Err)
		jsonError(w, http.StatusInternalServerError, "the inventory store could not be read; current inventory kept")
		return
	}

	slog.Info("inventory reloaded", "items", h.Machine.ItemCount(), "load", res.Status.String(), "operator", operatorName(r))
	jsonResponse(w, http.StatusOK, map[string]any{
		"items": h.Machine.ItemCount(),
		"load":  res.Status.String(),
	})
}
