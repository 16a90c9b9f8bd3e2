package preview

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"drivelens/internal/logging"
)

// Handler serves the bytes behind in-memory preview resources.
type Handler struct {
	store *MemoryStore
}

func NewHandler(store *MemoryStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, contentType, ok := h.store.Get(id)
	if !ok {
		http.Error(w, "Resource not found", http.StatusNotFound)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-store")

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.WithContext(r.Context()).Debug("failed to write resource", zap.String("resource_id", id), zap.Error(err))
	}
}
