package preview

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"drivelens/internal/domain"
	"drivelens/internal/logging"
	"drivelens/internal/metrics"
)

const unsupportedMessage = "This file type cannot be previewed. Download it to view."

// Fetcher reads file bytes from the remote store.
type Fetcher interface {
	GetContent(ctx context.Context, credential, fileID string) ([]byte, string, error)
	Export(ctx context.Context, credential, fileID, mimeType string) ([]byte, error)
}

// ImageOptimizer downsizes image bytes before they are handed out.
type ImageOptimizer interface {
	Optimize(data []byte) ([]byte, string, error)
}

type Option func(*Service)

func WithImageOptimizer(o ImageOptimizer) Option {
	return func(s *Service) { s.optimizer = o }
}

// WithListener registers a callback invoked after every state transition of
// the live session. It runs outside the service lock.
func WithListener(fn func(domain.PreviewSnapshot)) Option {
	return func(s *Service) { s.listener = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// session is one preview attempt. It is owned by Service and only mutated
// under Service.mu.
type session struct {
	generation uint64
	file       domain.File
	strategy   domain.Strategy
	status     domain.PreviewStatus
	payload    *domain.Payload
	err        *domain.Error
	resource   *Resource
	startedAt  time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Service resolves previews for a single viewer. At most one session is live;
// starting a new one retires the previous session and releases its resource.
type Service struct {
	fetcher   Fetcher
	resources ResourceStore
	viewer    Viewer
	optimizer ImageOptimizer
	listener  func(domain.PreviewSnapshot)
	log       *zap.Logger

	mu         sync.Mutex
	generation uint64
	live       *session
	seq        uint64

	notifyMu sync.Mutex
	notified uint64
}

// NewService creates a preview resolver.
func NewService(fetcher Fetcher, resources ResourceStore, viewer Viewer, opts ...Option) *Service {
	s := &Service{
		fetcher:   fetcher,
		resources: resources,
		viewer:    viewer,
		log:       logging.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginPreview starts previewing file and returns the initial snapshot. The
// result is terminal for credential, gate and viewer outcomes; otherwise the
// session is loading and resolves in the background.
func (s *Service) BeginPreview(ctx context.Context, file domain.File, credential string) domain.PreviewSnapshot {
	s.mu.Lock()
	s.retireLocked()

	s.generation++
	sess := &session{
		generation: s.generation,
		file:       file,
		status:     domain.PreviewLoading,
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}
	s.live = sess

	log := s.log.With(zap.String("file_id", file.ID), zap.Uint64("generation", sess.generation))

	switch {
	case credential == "":
		s.failLocked(sess, domain.AuthRequired())
	case file.IsFolder() || !CanPreview(file):
		sess.strategy = domain.StrategyUnsupported
		s.failLocked(sess, domain.Unsupported(unsupportedMessage))
	default:
		sess.strategy = SelectStrategy(file)
		s.startLocked(ctx, sess, credential, log)
	}

	snap := sess.snapshot()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.notify(snap, seq)
	return snap
}

func (s *Service) startLocked(ctx context.Context, sess *session, credential string, log *zap.Logger) {
	switch sess.strategy {
	case domain.StrategyDocumentViewer, domain.StrategySlideViewer:
		u, err := s.viewer.URL(sess.strategy, sess.file.ID)
		if err != nil {
			s.failLocked(sess, domain.Unsupported(err.Error()))
			return
		}
		sess.payload = &domain.Payload{URL: u}
		sess.status = domain.PreviewReady
		close(sess.done)
		metrics.RecordPreview(string(sess.strategy), string(sess.status), 0)
		return
	case domain.StrategyUnsupported:
		s.failLocked(sess, domain.Unsupported(unsupportedMessage))
		return
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess.cancel = cancel

	log.Debug("resolving preview", zap.String("strategy", string(sess.strategy)))
	go s.resolve(taskCtx, sess, credential, log)
}

func (s *Service) resolve(ctx context.Context, sess *session, credential string, log *zap.Logger) {
	defer close(sess.done)

	payload, res, err := s.produce(ctx, sess.file, sess.strategy, credential)

	s.mu.Lock()
	if s.live != sess {
		s.mu.Unlock()
		if res != nil {
			if rerr := res.Release(); rerr != nil {
				log.Warn("failed to release stale preview resource", zap.Error(rerr))
			}
		}
		metrics.RecordStalePreview()
		log.Debug("discarded stale preview result")
		return
	}

	if err != nil {
		var de *domain.Error
		if !errors.As(err, &de) {
			de = domain.FetchFailed("failed to load preview", err)
		}
		log.Warn("preview failed", zap.String("strategy", string(sess.strategy)), zap.Error(err))
		s.failLocked(sess, de)
	} else {
		sess.payload = payload
		sess.resource = res
		sess.status = domain.PreviewReady
		metrics.RecordPreview(string(sess.strategy), string(sess.status), time.Since(sess.startedAt))
	}
	snap := sess.snapshot()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.notify(snap, seq)
}

// produce runs the strategy. Any resource is allocated as the last step so a
// failure never leaves an orphaned allocation.
func (s *Service) produce(ctx context.Context, f domain.File, strategy domain.Strategy, credential string) (*domain.Payload, *Resource, error) {
	switch strategy {
	case domain.StrategyPDFInline, domain.StrategyImageInline, domain.StrategyVideoInline, domain.StrategyAudioInline:
		data, contentType, err := s.fetcher.GetContent(ctx, credential, f.ID)
		if err != nil {
			return nil, nil, err
		}
		if contentType == "" {
			contentType = f.MIMEType
		}
		if strategy == domain.StrategyImageInline && s.optimizer != nil {
			if out, ct, oerr := s.optimizer.Optimize(data); oerr != nil {
				s.log.Debug("image optimization skipped", zap.String("file_id", f.ID), zap.Error(oerr))
			} else {
				data, contentType = out, ct
			}
		}
		res, err := s.resources.Put(ctx, data, contentType)
		if err != nil {
			return nil, nil, domain.FetchFailed("failed to allocate preview resource", err)
		}
		return &domain.Payload{URL: res.URL, ContentType: contentType}, res, nil

	case domain.StrategyTableCSV:
		data, _, err := s.fetcher.GetContent(ctx, credential, f.ID)
		if err != nil {
			return nil, nil, err
		}
		return tablePayload(data)

	case domain.StrategyTableExportCSV:
		data, err := s.fetcher.Export(ctx, credential, f.ID, domain.MIMECSV)
		if err != nil {
			return nil, nil, err
		}
		return tablePayload(data)

	case domain.StrategyTableWorkbook:
		data, _, err := s.fetcher.GetContent(ctx, credential, f.ID)
		if err != nil {
			return nil, nil, err
		}
		legacy := f.MIMEType == domain.MIMEXLS || f.Extension() == "xls"
		rows, err := DecodeWorkbook(data, legacy)
		if err != nil {
			return nil, nil, domain.ParseFailed("failed to read spreadsheet", err)
		}
		return &domain.Payload{Table: rows}, nil, nil

	case domain.StrategyTextInline:
		data, _, err := s.fetcher.GetContent(ctx, credential, f.ID)
		if err != nil {
			return nil, nil, err
		}
		if !utf8.Valid(data) {
			return nil, nil, domain.ParseFailed("file is not valid UTF-8 text", nil)
		}
		return &domain.Payload{Text: string(data)}, nil, nil
	}
	return nil, nil, domain.Unsupported(unsupportedMessage)
}

func tablePayload(data []byte) (*domain.Payload, *Resource, error) {
	if !utf8.Valid(data) {
		return nil, nil, domain.ParseFailed("file is not valid UTF-8 text", nil)
	}
	return &domain.Payload{Table: ParseCSV(string(data))}, nil, nil
}

func (s *Service) failLocked(sess *session, err *domain.Error) {
	sess.status = domain.PreviewError
	sess.err = err
	sess.payload = nil
	if sess.cancel == nil {
		// Terminated synchronously; no task will close done.
		close(sess.done)
	}
	metrics.RecordPreview(string(sess.strategy), string(err.Kind), time.Since(sess.startedAt))
}

// retireLocked is the single cleanup routine. It detaches the live session and
// releases its resource; an in-flight task notices it is no longer live.
func (s *Service) retireLocked() {
	sess := s.live
	if sess == nil {
		return
	}
	s.live = nil
	if sess.cancel != nil {
		sess.cancel()
	}
	if sess.resource != nil {
		if err := sess.resource.Release(); err != nil && !errors.Is(err, ErrResourceReleased) {
			s.log.Warn("failed to release preview resource",
				zap.String("file_id", sess.file.ID), zap.String("resource_id", sess.resource.ID), zap.Error(err))
		}
		sess.resource = nil
	}
}

// Current returns a snapshot of the live session, or an idle snapshot.
func (s *Service) Current() domain.PreviewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		return domain.PreviewSnapshot{Generation: s.generation, Status: domain.PreviewIdle}
	}
	return s.live.snapshot()
}

// Close ends the live session and releases its resource.
func (s *Service) Close() {
	s.mu.Lock()
	had := s.live != nil
	s.retireLocked()
	snap := domain.PreviewSnapshot{Generation: s.generation, Status: domain.PreviewIdle}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if had {
		s.notify(snap, seq)
	}
}

// Wait blocks until the live session reaches a terminal state.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	sess := s.live
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	select {
	case <-sess.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notify delivers snap unless a later transition was already delivered.
func (s *Service) notify(snap domain.PreviewSnapshot, seq uint64) {
	if s.listener == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.notified {
		return
	}
	s.notified = seq
	s.listener(snap)
}

func (sess *session) snapshot() domain.PreviewSnapshot {
	f := sess.file
	snap := domain.PreviewSnapshot{
		Generation: sess.generation,
		File:       &f,
		Strategy:   sess.strategy,
		Status:     sess.status,
		Payload:    sess.payload,
		StartedAt:  sess.startedAt,
	}
	if sess.err != nil {
		snap.ErrorKind = sess.err.Kind
		snap.ErrorMessage = sess.err.Message
	}
	return snap
}
