package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"drivelens/internal/domain"
	"drivelens/internal/logging"
	"drivelens/internal/preview"
)

// BrowserState is a read-only copy of what the user is looking at.
type BrowserState struct {
	Generation  uint64                 `json:"generation"`
	View        domain.View            `json:"view"`
	Navigation  domain.NavigationState `json:"navigation"`
	Breadcrumbs []domain.Breadcrumb    `json:"breadcrumbs"`
	Status      domain.ListingStatus   `json:"status"`
	Files       []domain.File          `json:"files"`
	HasMore     bool                   `json:"has_more"`

	seq uint64
}

// listingRequest identifies one listing fetch. A result is applied only while
// the request is still the latest one for the same view, folder and page.
type listingRequest struct {
	generation uint64
	view       domain.View
	folderID   string
	cursor     string
	page       int
	appendPage bool
	done       chan struct{}
}

type BrowserOption func(*Browser)

// WithBrowserListener registers a callback for every listing transition. It
// runs outside the browser lock.
func WithBrowserListener(fn func(BrowserState)) BrowserOption {
	return func(b *Browser) { b.listener = fn }
}

func WithBrowserLogger(l *zap.Logger) BrowserOption {
	return func(b *Browser) { b.log = l }
}

// Browser owns both views' navigation and the current file collection.
type Browser struct {
	listing  *ListingService
	listener func(BrowserState)
	log      *zap.Logger

	mu         sync.Mutex
	view       domain.View
	navs       map[domain.View]*Navigator
	files      []domain.File
	status     domain.ListingStatus
	generation uint64
	pending    *listingRequest
	seq        uint64

	notifyMu sync.Mutex
	notified uint64
}

func NewBrowser(listing *ListingService, opts ...BrowserOption) *Browser {
	b := &Browser{
		listing: listing,
		log:     logging.L(),
		view:    domain.ViewOwned,
		navs: map[domain.View]*Navigator{
			domain.ViewOwned:  NewNavigator(domain.ViewOwned),
			domain.ViewShared: NewNavigator(domain.ViewShared),
		},
		files:  []domain.File{},
		status: domain.ListingStatus{State: domain.ListingIdle},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SwitchView activates view at its root and fetches the first page.
func (b *Browser) SwitchView(ctx context.Context, view domain.View, credential string) error {
	if _, err := domain.ParseView(string(view)); err != nil {
		return domain.Invalid(err.Error())
	}

	b.mu.Lock()
	b.view = view
	b.navs[view].Reset()
	snap := b.startLocked(ctx, credential, false)
	b.mu.Unlock()

	b.notify(snap)
	return nil
}

// OpenFolder descends into folder in the active view.
func (b *Browser) OpenFolder(ctx context.Context, folder domain.File, credential string) error {
	if folder.ID == "" {
		return domain.Invalid("folder id is required")
	}
	if folder.MIMEType != "" && !folder.IsFolder() {
		return domain.Invalid("only folders can be opened")
	}

	b.mu.Lock()
	b.navs[b.view].OpenFolder(folder)
	snap := b.startLocked(ctx, credential, false)
	b.mu.Unlock()

	b.notify(snap)
	return nil
}

// GoBack returns to the parent folder. It reports false, without fetching,
// when already at the root.
func (b *Browser) GoBack(ctx context.Context, credential string) bool {
	b.mu.Lock()
	if !b.navs[b.view].GoBack() {
		b.mu.Unlock()
		return false
	}
	snap := b.startLocked(ctx, credential, false)
	b.mu.Unlock()

	b.notify(snap)
	return true
}

func (b *Browser) JumpToBreadcrumb(ctx context.Context, id string, index int, credential string) error {
	b.mu.Lock()
	if err := b.navs[b.view].JumpToBreadcrumb(id, index); err != nil {
		b.mu.Unlock()
		return err
	}
	snap := b.startLocked(ctx, credential, false)
	b.mu.Unlock()

	b.notify(snap)
	return nil
}

func (b *Browser) JumpToRoot(ctx context.Context, credential string) {
	b.mu.Lock()
	b.navs[b.view].Reset()
	snap := b.startLocked(ctx, credential, false)
	b.mu.Unlock()

	b.notify(snap)
}

// LoadNextPage appends the next page of the current folder. It reports false,
// without fetching, when there is no continuation cursor.
func (b *Browser) LoadNextPage(ctx context.Context, credential string) bool {
	b.mu.Lock()
	if !b.navs[b.view].state.HasMore() {
		b.mu.Unlock()
		return false
	}
	snap := b.startLocked(ctx, credential, true)
	b.mu.Unlock()

	b.notify(snap)
	return true
}

// Refresh refetches the first page of the current folder.
func (b *Browser) Refresh(ctx context.Context, credential string) {
	b.mu.Lock()
	b.navs[b.view].resetPage()
	snap := b.startLocked(ctx, credential, false)
	b.mu.Unlock()

	b.notify(snap)
}

func (b *Browser) startLocked(ctx context.Context, credential string, appendPage bool) BrowserState {
	nav := b.navs[b.view]

	b.generation++
	req := &listingRequest{
		generation: b.generation,
		view:       b.view,
		folderID:   nav.state.CurrentFolderID,
		page:       nav.state.CurrentPage,
		appendPage: appendPage,
		done:       make(chan struct{}),
	}
	if appendPage {
		req.cursor = nav.state.Cursor
		req.page++
	}
	b.pending = req
	if !appendPage {
		// The previous collection belongs to another folder or page.
		b.files = []domain.File{}
	}
	b.status = domain.ListingStatus{State: domain.ListingLoading}
	b.seq++

	go b.fetch(context.WithoutCancel(ctx), req, credential)
	return b.stateLocked()
}

func (b *Browser) fetch(ctx context.Context, req *listingRequest, credential string) {
	defer close(req.done)

	page, err := b.listing.FetchPage(ctx, req.view, req.folderID, req.cursor, credential)

	b.mu.Lock()
	if !b.isCurrentLocked(req) {
		b.mu.Unlock()
		b.log.Debug("discarded stale listing",
			zap.String("view", string(req.view)),
			zap.String("folder_id", req.folderID),
			zap.Int("page", req.page),
		)
		return
	}

	nav := b.navs[req.view]
	if err != nil {
		b.status = domain.ListingStatus{
			State:     domain.ListingError,
			ErrorKind: domain.KindOf(err),
			Message:   domain.MessageOf(err),
		}
	} else {
		if req.appendPage {
			b.files = append(b.files, page.Files...)
			nav.AdvancePage(page.NextCursor)
		} else {
			b.files = append([]domain.File{}, page.Files...)
			nav.SetCursor(page.NextCursor)
		}
		b.status = domain.ListingStatus{State: domain.ListingReady}
	}
	b.seq++
	snap := b.stateLocked()
	b.mu.Unlock()

	b.notify(snap)
}

func (b *Browser) isCurrentLocked(req *listingRequest) bool {
	if req.generation != b.generation || req.view != b.view {
		return false
	}
	st := b.navs[req.view].state
	if st.CurrentFolderID != req.folderID {
		return false
	}
	if req.appendPage {
		return st.CurrentPage == req.page-1
	}
	return st.CurrentPage == req.page
}

// Wait blocks until the latest listing fetch has finished.
func (b *Browser) Wait(ctx context.Context) error {
	b.mu.Lock()
	req := b.pending
	b.mu.Unlock()
	if req == nil {
		return nil
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Browser) State() BrowserState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Files returns the loaded files filtered by category and name query.
func (b *Browser) Files(category domain.Category, query string) []domain.File {
	b.mu.Lock()
	files := append([]domain.File{}, b.files...)
	b.mu.Unlock()
	return preview.Filter(files, category, query)
}

// SuggestedFolders returns shared or co-owned folders among the loaded files.
func (b *Browser) SuggestedFolders() []domain.File {
	b.mu.Lock()
	defer b.mu.Unlock()
	return preview.SuggestedFolders(b.files)
}

// Lookup finds a loaded file by id.
func (b *Browser) Lookup(id string) (domain.File, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range b.files {
		if f.ID == id {
			return f, true
		}
	}
	return domain.File{}, false
}

// Navigation returns the active view and both views' navigation state.
func (b *Browser) Navigation() (domain.View, domain.NavigationState, domain.NavigationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view, b.navs[domain.ViewOwned].Snapshot(), b.navs[domain.ViewShared].Snapshot()
}

// Restore loads persisted navigation. The file collection stays empty until
// the next fetch.
func (b *Browser) Restore(view domain.View, owned, shared domain.NavigationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if view == domain.ViewShared {
		b.view = view
	} else {
		b.view = domain.ViewOwned
	}
	b.navs[domain.ViewOwned].Restore(owned)
	b.navs[domain.ViewShared].Restore(shared)
}

func (b *Browser) stateLocked() BrowserState {
	nav := b.navs[b.view]
	return BrowserState{
		Generation:  b.generation,
		View:        b.view,
		Navigation:  nav.Snapshot(),
		Breadcrumbs: nav.Breadcrumbs(),
		Status:      b.status,
		Files:       append([]domain.File{}, b.files...),
		HasMore:     nav.state.HasMore(),
		seq:         b.seq,
	}
}

// notify delivers state unless a later transition was already delivered.
func (b *Browser) notify(state BrowserState) {
	if b.listener == nil {
		return
	}
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	if state.seq <= b.notified {
		return
	}
	b.notified = state.seq
	b.listener(state)
}
