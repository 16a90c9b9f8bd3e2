package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"drivelens/internal/auth"
	"drivelens/internal/events"
	"drivelens/internal/service"
)

const maxWait = 30 * time.Second

// SessionHandler serves every session-scoped endpoint.
type SessionHandler struct {
	sessions *service.SessionService
	origins  *events.OriginChecker
}

func NewSessionHandler(sessions *service.SessionService, origins *events.OriginChecker) *SessionHandler {
	return &SessionHandler{sessions: sessions, origins: origins}
}

// Routes mounts the handler under /sessions.
func (h *SessionHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateSession)
	r.Route("/{id}", func(r chi.Router) {
		r.Delete("/", h.DeleteSession)

		r.Get("/files", h.GetFiles)
		r.Post("/view", h.SwitchView)
		r.Post("/folders/open", h.OpenFolder)
		r.Post("/folders/back", h.GoBack)
		r.Post("/folders/breadcrumb", h.JumpToBreadcrumb)
		r.Post("/folders/root", h.JumpToRoot)
		r.Get("/folders/suggested", h.SuggestedFolders)
		r.Post("/pages/next", h.LoadNextPage)
		r.Post("/refresh", h.Refresh)
		r.Get("/breadcrumbs", h.Breadcrumbs)

		r.Post("/preview", h.BeginPreview)
		r.Get("/preview", h.GetPreview)
		r.Delete("/preview", h.ClosePreview)

		r.Get("/drafts", h.GetDrafts)
		r.Put("/drafts/rename", h.SetRenameDraft)
		r.Put("/drafts/move", h.SetMoveDraft)
		r.Put("/drafts/delete", h.SetDeleteTarget)
		r.Put("/drafts/share", h.SetShareDraft)
		r.Delete("/drafts/{kind}", h.CancelDraft)
		r.Post("/drafts/{kind}/commit", h.CommitDraft)

		r.Get("/events", h.Events)
	})
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": sess.ID})
}

func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	events.Serve(w, r, sess.Events, h.origins)
}

// session resolves the {id} route parameter, writing the error response when
// it cannot.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	sess, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func credential(r *http.Request) string {
	return auth.CredentialFrom(r.Context())
}

// wantsWait reports whether the caller asked to block until the pending
// operation settles.
func wantsWait(r *http.Request) bool {
	return r.URL.Query().Get("wait") == "true"
}

func waitFor(r *http.Request, wait func(context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), maxWait)
	defer cancel()
	wait(ctx)
}
