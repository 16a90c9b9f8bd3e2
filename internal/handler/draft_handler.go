package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"drivelens/internal/domain"
)

func (h *SessionHandler) GetDrafts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Mutations.Drafts())
}

func (h *SessionHandler) SetRenameDraft(w http.ResponseWriter, r *http.Request) {
	var d domain.RenameDraft
	h.setDraft(w, r, &d, func(s draftSetter) error { return s.SetRenameDraft(d) })
}

func (h *SessionHandler) SetMoveDraft(w http.ResponseWriter, r *http.Request) {
	var d domain.MoveDraft
	h.setDraft(w, r, &d, func(s draftSetter) error { return s.SetMoveDraft(d) })
}

func (h *SessionHandler) SetDeleteTarget(w http.ResponseWriter, r *http.Request) {
	var d domain.DeleteTarget
	h.setDraft(w, r, &d, func(s draftSetter) error { return s.SetDeleteTarget(d) })
}

func (h *SessionHandler) SetShareDraft(w http.ResponseWriter, r *http.Request) {
	var d domain.ShareDraft
	h.setDraft(w, r, &d, func(s draftSetter) error { return s.SetShareDraft(d) })
}

func (h *SessionHandler) CancelDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Mutations.CancelDraft(domain.DraftKind(chi.URLParam(r, "kind"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CommitDraft runs the pending draft of {kind}. On failure the draft is kept.
func (h *SessionHandler) CommitDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Mutations.Commit(r.Context(), domain.DraftKind(chi.URLParam(r, "kind")), credential(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Mutations.Drafts())
}

type draftSetter interface {
	SetRenameDraft(domain.RenameDraft) error
	SetMoveDraft(domain.MoveDraft) error
	SetDeleteTarget(domain.DeleteTarget) error
	SetShareDraft(domain.ShareDraft) error
}

func (h *SessionHandler) setDraft(w http.ResponseWriter, r *http.Request, body interface{}, set func(draftSetter) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := decode(r, body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := set(sess.Mutations); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Mutations.Drafts())
}
