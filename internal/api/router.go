package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/avtomat/internal/model"
	"github.com/erazemk/avtomat/internal/vending"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, machine *vending.Machine, jwtSecret, mediaDir string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	operatorsHandler := &OperatorsHandler{DB: db}
	itemsHandler := &ItemsHandler{Machine: machine, MediaDir: mediaDir}
	salesHandler := &SalesHandler{Machine: machine}
	inventoryHandler := &InventoryHandler{Machine: machine}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireAttendant := RequireRole(model.RoleAttendant)

	// Public: login and the customer-facing product grid.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("GET /api/items/{id}/image", itemsHandler.GetImage)
	mux.HandleFunc("POST /api/items/{id}/purchase", salesHandler.Purchase)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Operators (admin only).
	mux.Handle("GET /api/operators", authMW(requireAdmin(http.HandlerFunc(operatorsHandler.List))))
	mux.Handle("POST /api/operators", authMW(requireAdmin(http.HandlerFunc(operatorsHandler.Create))))
	mux.Handle("DELETE /api/operators/{id}", authMW(requireAdmin(http.HandlerFunc(operatorsHandler.Delete))))

	// Items: restock and edit (attendant+), add and remove (admin).
	mux.Handle("POST /api/items", authMW(requireAdmin(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("PUT /api/items/{id}", authMW(requireAttendant(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireAdmin(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("PUT /api/items/{id}/image", authMW(requireAttendant(http.HandlerFunc(itemsHandler.UploadImage))))

	// Sales: read (attendant+), clear (admin).
	mux.Handle("GET /api/sales", authMW(requireAttendant(http.HandlerFunc(salesHandler.List))))
	mux.Handle("GET /api/sales/summary", authMW(requireAttendant(http.HandlerFunc(salesHandler.Summary))))
	mux.Handle("GET /api/sales/{id}", authMW(requireAttendant(http.HandlerFunc(salesHandler.Get))))
	mux.Handle("GET /api/sales/{id}/receipt", authMW(requireAttendant(http.HandlerFunc(salesHandler.Receipt))))
	mux.Handle("DELETE /api/sales", authMW(requireAdmin(http.HandlerFunc(salesHandler.Clear))))

	// Inventory as a whole.
	mux.Handle("GET /api/inventory", authMW(requireAttendant(http.HandlerFunc(inventoryHandler.Status))))
	mux.Handle("POST /api/inventory/reload", authMW(requireAdmin(http.HandlerFunc(inventoryHandler.Reload))))

	return mux
}
