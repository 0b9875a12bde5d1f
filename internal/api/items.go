package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/avtomat/internal/imaging"
	"github.com/erazemk/avtomat/internal/model"
	"github.com/erazemk/avtomat/internal/vending"
)

// ItemsHandler exposes the product inventory.
type ItemsHandler struct {
	Machine  *vending.Machine
	MediaDir string
}

type itemResponse struct {
	model.Item
	Warning string `json:"warning,omitempty"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.Machine.ListItems()
	if r.URL.Query().Get("available") == "true" {
		inStock := items[:0]
		for _, item := range items {
			if item.InStock() {
				inStock = append(inStock, item)
			}
		}
		items = inStock
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.Machine.FindItem(r.PathValue("id"))
	if !ok {
		engineError(w, vending.ErrNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var item model.Item
	if err := decodeJSON(r, &item); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.Machine.AddItem(r.Context(), item)
	if !applied(err) {
		engineError(w, err)
		return
	}

	slog.Info("item added", "id", item.ID, "operator", operatorName(r))
	jsonResponse(w, http.StatusCreated, itemResponse{Item: item, Warning: warning(err)})
}

// Update handles PUT /api/items/{id}. The body replaces every field; an
// empty id keeps the current one. A stored image follows a renamed item and
// is deleted once no longer referenced.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	old, _ := h.Machine.FindItem(id)

	var data model.Item
	if err := decodeJSON(r, &data); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if data.ID == "" {
		data.ID = id
	}

	err := h.Machine.UpdateItem(r.Context(), id, data)
	if !applied(err) {
		engineError(w, err)
		return
	}

	if data.ImageRef != old.ImageRef {
		h.removeImage(old.ImageRef)
	} else if data.ID != id {
		data, err = h.moveImage(r, data, err)
	}

	slog.Info("item updated", "id", id, "new_id", data.ID, "operator", operatorName(r))
	jsonResponse(w, http.StatusOK, itemResponse{Item: data, Warning: warning(err)})
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	old, _ := h.Machine.FindItem(id)
	removed, err := h.Machine.RemoveItem(r.Context(), id)
	if !applied(err) {
		engineError(w, err)
		return
	}
	if !removed {
		engineError(w, vending.ErrNotFound)
		return
	}
	h.removeImage(old.ImageRef)

	slog.Info("item removed", "id", id, "operator", operatorName(r))
	resp := map[string]string{"message": "item deleted"}
	if msg := warning(err); msg != "" {
		resp["warning"] = msg
	}
	jsonResponse(w, http.StatusOK, resp)
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	prev, ok := h.Machine.FindItem(id)
	if !ok {
		engineError(w, vending.ErrNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	ref, err := imaging.Save(h.MediaDir, id, file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupported) || errors.Is(err, imaging.ErrTooLarge) {
			jsonError(w, http.StatusBadRequest, "image must be a JPEG or PNG under 8 MB")
			return
		}
		slog.Error("failed to store image", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	item, err := h.Machine.SetItemImage(r.Context(), id, ref)
	if !applied(err) {
		engineError(w, err)
		return
	}
	if prev.ImageRef != ref {
		h.removeImage(prev.ImageRef)
	}

	jsonResponse(w, http.StatusOK, itemResponse{Item: item, Warning: warning(err)})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.Machine.FindItem(r.PathValue("id"))
	if !ok {
		engineError(w, vending.ErrNotFound)
		return
	}

	path, ok := imaging.Path(h.MediaDir, item.ImageRef)
	if !ok {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

// moveImage renames the stored image of a renamed item and records the new
// reference. Failures keep the old reference, which still resolves.
func (h *ItemsHandler) moveImage(r *http.Request, item model.Item, prevErr error) (model.Item, error) {
	ref, err := imaging.Move(h.MediaDir, item.ImageRef, item.ID)
	if err != nil {
		slog.Warn("failed to move image of renamed item", "id", item.ID, "error", err)
		return item, prevErr
	}
	if ref == item.ImageRef {
		return item, prevErr
	}

	updated, err := h.Machine.SetItemImage(r.Context(), item.ID, ref)
	if !applied(err) {
		slog.Warn("failed to record moved image", "id", item.ID, "error", err)
		return item, prevErr
	}
	if err == nil {
		err = prevErr
	}
	return updated, err
}

func (h *ItemsHandler) removeImage(ref string) {
	if err := imaging.Remove(h.MediaDir, ref); err != nil {
		slog.Warn("failed to remove unused image", "ref", ref, "error", err)
	}
}

func operatorName(r *http.Request) string {
	if claims := GetClaims(r.Context()); claims != nil {
		return claims.Username
	}
	return ""
}
