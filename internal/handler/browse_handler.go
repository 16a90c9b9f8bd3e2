package handler

import (
	"net/http"

	"drivelens/internal/domain"
	"drivelens/internal/service"
)

type filesResponse struct {
	service.BrowserState
	Category domain.Category `json:"category"`
	Query    string          `json:"q,omitempty"`
}

type viewRequest struct {
	View domain.View `json:"view"`
}

type openFolderRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type breadcrumbRequest struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

// GetFiles returns the loaded files filtered by ?category= and ?q=, together
// with the listing status and navigation of the active view.
func (h *SessionHandler) GetFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	category, err := domain.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, domain.Invalid(err.Error()))
		return
	}
	query := r.URL.Query().Get("q")

	if wantsWait(r) {
		waitFor(r, sess.Browser.Wait)
	}

	st := sess.Browser.State()
	st.Files = sess.Browser.Files(category, query)
	writeJSON(w, http.StatusOK, filesResponse{BrowserState: st, Category: category, Query: query})
}

func (h *SessionHandler) SwitchView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req viewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.Browser.SwitchView(r.Context(), req.View, credential(r)); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeState(w, r, sess)
}

func (h *SessionHandler) OpenFolder(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req openFolderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	folder := domain.File{ID: req.ID, Name: req.Name, MIMEType: domain.FolderMIME}
	if err := sess.Browser.OpenFolder(r.Context(), folder, credential(r)); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeState(w, r, sess)
}

// GoBack is a no-op at the root.
func (h *SessionHandler) GoBack(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Browser.GoBack(r.Context(), credential(r))
	h.writeState(w, r, sess)
}

func (h *SessionHandler) JumpToBreadcrumb(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req breadcrumbRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.Browser.JumpToBreadcrumb(r.Context(), req.ID, req.Index, credential(r)); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeState(w, r, sess)
}

func (h *SessionHandler) JumpToRoot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Browser.JumpToRoot(r.Context(), credential(r))
	h.writeState(w, r, sess)
}

// LoadNextPage is a no-op when the current folder has no more pages.
func (h *SessionHandler) LoadNextPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Browser.LoadNextPage(r.Context(), credential(r))
	h.writeState(w, r, sess)
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Browser.Refresh(r.Context(), credential(r))
	h.writeState(w, r, sess)
}

func (h *SessionHandler) Breadcrumbs(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Browser.State().Breadcrumbs)
}

func (h *SessionHandler) SuggestedFolders(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	folders := sess.Browser.SuggestedFolders()
	if folders == nil {
		folders = []domain.File{}
	}
	writeJSON(w, http.StatusOK, folders)
}

// writeState responds with the browser state, after the pending listing
// settles when ?wait=true.
func (h *SessionHandler) writeState(w http.ResponseWriter, r *http.Request, sess *service.Session) {
	if wantsWait(r) {
		waitFor(r, sess.Browser.Wait)
	}
	writeJSON(w, http.StatusOK, sess.Browser.State())
}
