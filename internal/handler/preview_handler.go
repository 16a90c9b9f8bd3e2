package handler

import (
	"net/http"

	"drivelens/internal/domain"
)

type fileRequest struct {
	File domain.File `json:"file"`
}

// BeginPreview starts previewing the posted file. A terminal failure is
// rendered as an error; otherwise the snapshot is returned, 202 while the
// preview is still loading.
func (h *SessionHandler) BeginPreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req fileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.File.ID == "" {
		writeError(w, r, domain.Invalid("file.id is required"))
		return
	}

	snap := sess.Preview.BeginPreview(r.Context(), req.File, credential(r))
	if snap.Status == domain.PreviewLoading && wantsWait(r) {
		waitFor(r, sess.Preview.Wait)
		snap = sess.Preview.Current()
	}
	writeSnapshot(w, r, snap)
}

// GetPreview returns the live preview snapshot.
func (h *SessionHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if wantsWait(r) {
		waitFor(r, sess.Preview.Wait)
	}
	writeJSON(w, http.StatusOK, sess.Preview.Current())
}

// ClosePreview ends the live preview and releases its resource.
func (h *SessionHandler) ClosePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Preview.Close()
	w.WriteHeader(http.StatusNoContent)
}

func writeSnapshot(w http.ResponseWriter, r *http.Request, snap domain.PreviewSnapshot) {
	switch snap.Status {
	case domain.PreviewError:
		writeJSON(w, StatusOf(snap.ErrorKind), errorResponse{Error: snap.ErrorKind, Message: snap.ErrorMessage})
	case domain.PreviewLoading:
		writeJSON(w, http.StatusAccepted, snap)
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}
