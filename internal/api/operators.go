package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/avtomat/internal/auth"
	"github.com/erazemk/avtomat/internal/model"
	"github.com/erazemk/avtomat/internal/store"
)

// OperatorsHandler manages kiosk staff accounts (admin only).
type OperatorsHandler struct {
	DB *sql.DB
}

type createOperatorRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// List handles GET /api/operators.
func (h *OperatorsHandler) List(w http.ResponseWriter, r *http.Request) {
	ops, err := store.ListOperators(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list operators", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list operators")
		return
	}
	if ops == nil {
		ops = []model.Operator{}
	}
	jsonResponse(w, http.StatusOK, ops)
}

// Create handles POST /api/operators.
func (h *OperatorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" || req.Role == "" {
		jsonError(w, http.StatusBadRequest, "username, password, and role required")
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	op, err := store.CreateOperator(r.Context(), h.DB, req.Username, hash, req.Role)
	if err != nil {
		jsonError(w, http.StatusConflict, "username already exists")
		return
	}

	slog.Info("operator created", "operator", op.Username, "role", op.Role)
	jsonResponse(w, http.StatusCreated, op)
}

// Delete handles DELETE /api/operators/{id}.
func (h *OperatorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid operator id")
		return
	}

	if claims := GetClaims(r.Context()); claims != nil && claims.OperatorID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	op, err := store.GetOperator(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if op == nil || op.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "operator not found")
		return
	}

	if err := store.DeleteOperator(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete operator")
		return
	}

	slog.Info("operator deleted", "operator", op.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "operator deleted"})
}
