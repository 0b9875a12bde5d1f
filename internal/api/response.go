package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/avtomat/internal/vending"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

// engineError maps an error from the vending engine to a response.
func engineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vending.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, vending.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vending.ErrDuplicateID), errors.Is(err, vending.ErrOutOfStock):
		status = http.StatusConflict
	default:
		slog.Error("engine failure", "error", err)
	}
	jsonError(w, status, vending.Message(err))
}

// warning returns the message for a change that was applied but not saved.
// Any other error must be handled with engineError first.
func warning(err error) string {
	if errors.Is(err, vending.ErrNotPersisted) {
		return vending.Message(err)
	}
	return ""
}

// applied reports whether err still means the change took effect.
func applied(err error) bool {
	return err == nil || errors.Is(err, vending.ErrNotPersisted)
}
