package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drivelens/internal/domain"
	"drivelens/internal/events"
	"drivelens/internal/logging"
	"drivelens/internal/metrics"
	"drivelens/internal/preview"
	"drivelens/internal/repository"
	"drivelens/internal/service/drive"
)

const persistTimeout = 5 * time.Second

// Session is one client's browsing state: its listing, its single live
// preview, its pending drafts and its event stream.
type Session struct {
	ID        string
	Browser   *Browser
	Preview   *preview.Service
	Mutations *MutationService
	Events    *events.Broker

	lastSeen atomic.Int64
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) idleSince(cutoff time.Time) bool {
	return s.lastSeen.Load() < cutoff.UnixNano()
}

// listingEvent is the payload of listing.* events.
type listingEvent struct {
	Generation uint64               `json:"generation"`
	View       domain.View          `json:"view"`
	FolderID   string               `json:"folder_id"`
	Status     domain.ListingStatus `json:"status"`
	Count      int                  `json:"count"`
	HasMore    bool                 `json:"has_more"`
}

type SessionOption func(*SessionService)

// WithPreviewOptions applies opts to every session's preview resolver.
func WithPreviewOptions(opts ...preview.Option) SessionOption {
	return func(s *SessionService) { s.previewOpts = append(s.previewOpts, opts...) }
}

func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *SessionService) { s.log = l }
}

// SessionService creates, restores and expires browsing sessions.
type SessionService struct {
	storage     drive.Storage
	listing     *ListingService
	resources   preview.ResourceStore
	viewer      preview.Viewer
	repo        repository.SessionRepository
	ttl         time.Duration
	previewOpts []preview.Option
	log         *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionService(
	storage drive.Storage,
	resources preview.ResourceStore,
	viewer preview.Viewer,
	repo repository.SessionRepository,
	ttl time.Duration,
	opts ...SessionOption,
) *SessionService {
	s := &SessionService{
		storage:   storage,
		listing:   NewListingService(storage),
		resources: resources,
		viewer:    viewer,
		repo:      repo,
		ttl:       ttl,
		log:       logging.L(),
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session at the root of the owned view.
func (s *SessionService) Create(ctx context.Context) (*Session, error) {
	sess := s.build(uuid.NewString())
	if err := s.persist(ctx, sess); err != nil {
		sess.close()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SetSessionsActive(n)
	s.log.Info("session created", zap.String("session_id", sess.ID))
	return sess, nil
}

// Get returns the session with id, restoring its navigation from the
// repository when it is not in memory. Restored sessions have an empty file
// collection until the next listing fetch.
func (s *SessionService) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.touch()
		return sess, nil
	}

	snap, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	restored := s.build(id)
	restored.Browser.Restore(snap.View, snap.Owned, snap.Shared)

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		restored.close()
		existing.touch()
		return existing, nil
	}
	s.sessions[id] = restored
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SetSessionsActive(n)
	s.log.Info("session restored", zap.String("session_id", id), zap.String("view", string(snap.View)))
	return restored, nil
}

// Close ends the session, releases its preview resource and forgets its
// persisted navigation.
func (s *SessionService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if ok {
		sess.close()
		metrics.SetSessionsActive(n)
	} else if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("session closed", zap.String("session_id", id))
	return nil
}

// Cleanup closes sessions idle for longer than the TTL and prunes expired
// persisted sessions. It returns the number of in-memory sessions closed.
func (s *SessionService) Cleanup(ctx context.Context) int {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired, active []*Session
	for id, sess := range s.sessions {
		if sess.idleSince(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		} else {
			active = append(active, sess)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
		if err := s.repo.Delete(ctx, sess.ID); err != nil {
			s.log.Warn("failed to delete expired session", zap.String("session_id", sess.ID), zap.Error(err))
		}
		s.log.Info("session expired", zap.String("session_id", sess.ID))
	}

	// Live sessions may not have navigated recently; refresh their records
	// so the prune below keeps them.
	for _, sess := range active {
		if err := s.persist(ctx, sess); err != nil {
			s.log.Warn("failed to persist session", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	if ids, err := s.repo.DeleteIdle(ctx, cutoff); err != nil {
		s.log.Warn("failed to prune idle sessions", zap.Error(err))
	} else if len(ids) > 0 {
		s.log.Info("pruned idle sessions", zap.Int("count", len(ids)))
	}

	metrics.SetSessionsActive(n)
	return len(expired)
}

// Run calls Cleanup every interval until ctx is done.
func (s *SessionService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}

// Shutdown releases every in-memory session. Persisted navigation is kept so
// sessions can be restored after a restart.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	metrics.SetSessionsActive(0)
}

// Len returns the number of in-memory sessions.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) build(id string) *Session {
	sess := &Session{ID: id, Events: events.NewBroker()}
	log := s.log.With(zap.String("session_id", id))

	sess.Browser = NewBrowser(s.listing,
		WithBrowserLogger(log),
		WithBrowserListener(func(st BrowserState) { s.onListing(sess, st) }),
	)

	opts := append([]preview.Option{
		preview.WithLogger(log),
		preview.WithListener(func(snap domain.PreviewSnapshot) { s.onPreview(sess, snap) }),
	}, s.previewOpts...)
	sess.Preview = preview.NewService(s.storage, s.resources, s.viewer, opts...)

	sess.Mutations = NewMutationService(s.storage, sess.Browser, func(r MutationResult) {
		sess.Events.Publish(events.Event{Type: events.MutationDone, SessionID: id, Data: r})
	})

	sess.touch()
	return sess
}

func (s *SessionService) onListing(sess *Session, st BrowserState) {
	var typ string
	switch st.Status.State {
	case domain.ListingLoading:
		typ = events.ListingLoading
	case domain.ListingReady:
		typ = events.ListingReady
	case domain.ListingError:
		typ = events.ListingError
	default:
		return
	}

	sess.Events.Publish(events.Event{
		Type:      typ,
		SessionID: sess.ID,
		Data: listingEvent{
			Generation: st.Generation,
			View:       st.View,
			FolderID:   st.Navigation.CurrentFolderID,
			Status:     st.Status,
			Count:      len(st.Files),
			HasMore:    st.HasMore,
		},
	})

	if st.Status.State == domain.ListingReady {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.persist(ctx, sess); err != nil {
			s.log.Warn("failed to persist session", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
}

func (s *SessionService) onPreview(sess *Session, snap domain.PreviewSnapshot) {
	var typ string
	switch snap.Status {
	case domain.PreviewLoading:
		typ = events.PreviewLoading
	case domain.PreviewReady:
		typ = events.PreviewReady
	case domain.PreviewError:
		typ = events.PreviewError
	default:
		typ = events.PreviewIdle
	}
	sess.Events.Publish(events.Event{Type: typ, SessionID: sess.ID, Data: snap})
}

func (s *SessionService) persist(ctx context.Context, sess *Session) error {
	view, owned, shared := sess.Browser.Navigation()
	return s.repo.Save(ctx, domain.SessionSnapshot{
		ID:     sess.ID,
		View:   view,
		Owned:  owned,
		Shared: shared,
	})
}

func (s *Session) close() {
	s.Preview.Close()
	s.Events.Publish(events.Event{Type: events.SessionClosed, SessionID: s.ID})
	s.Events.Close()
}
