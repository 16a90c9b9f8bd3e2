package preview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivelens/internal/domain"
)

type fakeContent struct {
	data        []byte
	contentType string
	err         error
	gate        chan struct{}
}

type fakeFetcher struct {
	calls   atomic.Int32
	mu      sync.Mutex
	content map[string]fakeContent
	exports []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{content: make(map[string]fakeContent)}
}

func (f *fakeFetcher) set(id string, c fakeContent) {
	f.mu.Lock()
	f.content[id] = c
	f.mu.Unlock()
}

func (f *fakeFetcher) get(id string) fakeContent {
	f.calls.Add(1)
	f.mu.Lock()
	c := f.content[id]
	f.mu.Unlock()
	if c.gate != nil {
		<-c.gate
	}
	return c
}

func (f *fakeFetcher) GetContent(_ context.Context, _, fileID string) ([]byte, string, error) {
	c := f.get(fileID)
	return c.data, c.contentType, c.err
}

func (f *fakeFetcher) Export(_ context.Context, _, fileID, mimeType string) ([]byte, error) {
	f.mu.Lock()
	f.exports = append(f.exports, mimeType)
	f.mu.Unlock()
	c := f.get(fileID)
	return c.data, c.err
}

type countingStore struct {
	*MemoryStore
	puts atomic.Int32
}

func (s *countingStore) Put(ctx context.Context, data []byte, contentType string) (*Resource, error) {
	s.puts.Add(1)
	return s.MemoryStore.Put(ctx, data, contentType)
}

func newTestService(t *testing.T, opts ...Option) (*Service, *fakeFetcher, *countingStore) {
	t.Helper()
	fetcher := newFakeFetcher()
	store := &countingStore{MemoryStore: NewMemoryStore("http://localhost")}
	svc := NewService(fetcher, store, DefaultViewer(), opts...)
	t.Cleanup(svc.Close)
	return svc, fetcher, store
}

func waitReady(t *testing.T, svc *Service) domain.PreviewSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx))
	return svc.Current()
}

func TestBeginPreviewRequiresCredential(t *testing.T) {
	svc, fetcher, _ := newTestService(t)

	snap := svc.BeginPreview(context.Background(), domain.File{ID: "1", Name: "a.pdf", MIMEType: domain.MIMEPDF}, "")

	assert.Equal(t, domain.PreviewError, snap.Status)
	assert.Equal(t, domain.KindAuthRequired, snap.ErrorKind)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestBeginPreviewUnsupported(t *testing.T) {
	tests := []struct {
		name string
		file domain.File
	}{
		{"folder", domain.File{ID: "f", Name: "Photos", MIMEType: domain.FolderMIME}},
		{"pptx", domain.File{ID: "p", Name: "deck.pptx", MIMEType: domain.MIMEPPTX}},
		{"archive", domain.File{ID: "z", Name: "a.zip", MIMEType: "application/zip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fetcher, _ := newTestService(t)

			snap := svc.BeginPreview(context.Background(), tt.file, "token")

			assert.Equal(t, domain.PreviewError, snap.Status)
			assert.Equal(t, domain.KindUnsupported, snap.ErrorKind)
			assert.Equal(t, domain.StrategyUnsupported, snap.Strategy)
			assert.Contains(t, snap.ErrorMessage, "Download")
			assert.Equal(t, int32(0), fetcher.calls.Load())
		})
	}
}

func TestBeginPreviewViewerStrategies(t *testing.T) {
	svc, fetcher, store := newTestService(t)

	snap := svc.BeginPreview(context.Background(), domain.File{ID: "doc1", Name: "Report.docx", MIMEType: domain.MIMEDOCX}, "token")
	assert.Equal(t, domain.PreviewReady, snap.Status)
	assert.Equal(t, domain.StrategyDocumentViewer, snap.Strategy)
	require.NotNil(t, snap.Payload)
	assert.Equal(t, "https://docs.google.com/document/d/doc1/preview", snap.Payload.URL)

	snap = svc.BeginPreview(context.Background(), domain.File{ID: "deck", Name: "Deck", MIMEType: domain.MIMEGoogleSlide}, "token")
	assert.Equal(t, domain.PreviewReady, snap.Status)
	assert.Equal(t, domain.StrategySlideViewer, snap.Strategy)
	assert.Equal(t, "https://docs.google.com/presentation/d/deck/preview", snap.Payload.URL)

	assert.Equal(t, int32(0), fetcher.calls.Load())
	assert.Equal(t, 0, store.Live())
}

func TestPDFPreviewAllocatesAndReleasesResource(t *testing.T) {
	svc, fetcher, store := newTestService(t)
	fetcher.set("pdf", fakeContent{data: []byte("%PDF-1.4"), contentType: domain.MIMEPDF})

	snap := svc.BeginPreview(context.Background(), domain.File{ID: "pdf", Name: "a.pdf", MIMEType: domain.MIMEPDF}, "token")
	assert.Equal(t, domain.PreviewLoading, snap.Status)

	snap = waitReady(t, svc)
	require.Equal(t, domain.PreviewReady, snap.Status)
	require.NotNil(t, snap.Payload)
	assert.Equal(t, domain.MIMEPDF, snap.Payload.ContentType)
	assert.Contains(t, snap.Payload.URL, "http://localhost/v1/resources/")
	assert.Equal(t, 1, store.Live())

	svc.Close()
	assert.Equal(t, 0, store.Live())
	assert.Equal(t, domain.PreviewIdle, svc.Current().Status)
}

func TestNewPreviewReleasesPreviousResource(t *testing.T) {
	svc, fetcher, store := newTestService(t)
	fetcher.set("img", fakeContent{data: []byte("png"), contentType: "image/png"})
	fetcher.set("vid", fakeContent{data: []byte("mp4"), contentType: "video/mp4"})

	svc.BeginPreview(context.Background(), domain.File{ID: "img", Name: "a.png", MIMEType: "image/png"}, "token")
	first := waitReady(t, svc)
	firstID := first.Payload.URL[len("http://localhost/v1/resources/"):]

	svc.BeginPreview(context.Background(), domain.File{ID: "vid", Name: "a.mp4", MIMEType: "video/mp4"}, "token")
	waitReady(t, svc)

	_, _, ok := store.Get(firstID)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Live())
}

func TestSupersededPreviewIsDiscarded(t *testing.T) {
	svc, fetcher, store := newTestService(t)

	gate := make(chan struct{})
	fetcher.set("a", fakeContent{data: []byte("%PDF"), contentType: domain.MIMEPDF, gate: gate})
	fetcher.set("b", fakeContent{data: []byte("hello")})

	a := svc.BeginPreview(context.Background(), domain.File{ID: "a", Name: "a.pdf", MIMEType: domain.MIMEPDF}, "token")
	b := svc.BeginPreview(context.Background(), domain.File{ID: "b", Name: "b.txt", MIMEType: domain.MIMEPlain}, "token")
	require.Greater(t, b.Generation, a.Generation)

	snap := waitReady(t, svc)
	require.Equal(t, domain.PreviewReady, snap.Status)
	assert.Equal(t, "hello", snap.Payload.Text)

	close(gate)

	assert.Eventually(t, func() bool {
		return store.puts.Load() == 1 && store.Live() == 0
	}, 2*time.Second, 5*time.Millisecond)

	cur := svc.Current()
	assert.Equal(t, b.Generation, cur.Generation)
	assert.Equal(t, "b", cur.File.ID)
	assert.Equal(t, "hello", cur.Payload.Text)
}

func TestPreviewErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"forbidden", domain.Forbidden(errors.New("status 403")), domain.KindForbidden},
		{"domain fetch failure", domain.FetchFailed("not found", nil), domain.KindFetchFailed},
		{"plain error", errors.New("connection reset"), domain.KindFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fetcher, store := newTestService(t)
			fetcher.set("x", fakeContent{err: tt.err})

			svc.BeginPreview(context.Background(), domain.File{ID: "x", Name: "a.pdf", MIMEType: domain.MIMEPDF}, "token")
			snap := waitReady(t, svc)

			assert.Equal(t, domain.PreviewError, snap.Status)
			assert.Equal(t, tt.want, snap.ErrorKind)
			assert.NotEmpty(t, snap.ErrorMessage)
			assert.Nil(t, snap.Payload)
			assert.Equal(t, 0, store.Live())
		})
	}
}

func TestForbiddenMessageAsksToReauthenticate(t *testing.T) {
	svc, fetcher, _ := newTestService(t)
	fetcher.set("x", fakeContent{err: domain.Forbidden(nil)})

	svc.BeginPreview(context.Background(), domain.File{ID: "x", Name: "a.txt", MIMEType: domain.MIMEPlain}, "token")
	snap := waitReady(t, svc)

	assert.Equal(t, domain.KindForbidden, snap.ErrorKind)
	assert.Contains(t, snap.ErrorMessage, "re-authenticate")
}

func TestTablePreviews(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		svc, fetcher, _ := newTestService(t)
		fetcher.set("c", fakeContent{data: []byte("a,b\n1,2\n")})

		svc.BeginPreview(context.Background(), domain.File{ID: "c", Name: "data.csv", MIMEType: domain.MIMECSV}, "token")
		snap := waitReady(t, svc)

		require.Equal(t, domain.PreviewReady, snap.Status)
		assert.Equal(t, domain.StrategyTableCSV, snap.Strategy)
		assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, snap.Payload.Table)
	})

	t.Run("google sheet exports csv", func(t *testing.T) {
		svc, fetcher, _ := newTestService(t)
		fetcher.set("s", fakeContent{data: []byte("h1,h2\nx,y")})

		svc.BeginPreview(context.Background(), domain.File{ID: "s", Name: "Budget", MIMEType: domain.MIMEGoogleSheet}, "token")
		snap := waitReady(t, svc)

		require.Equal(t, domain.PreviewReady, snap.Status)
		assert.Equal(t, [][]string{{"h1", "h2"}, {"x", "y"}}, snap.Payload.Table)
		assert.Equal(t, []string{domain.MIMECSV}, fetcher.exports)
	})

	t.Run("xlsx", func(t *testing.T) {
		svc, fetcher, _ := newTestService(t)
		fetcher.set("w", fakeContent{data: buildWorkbook(t, [][]string{{"k", "v"}, {"a", "1"}})})

		svc.BeginPreview(context.Background(), domain.File{ID: "w", Name: "book.xlsx", MIMEType: domain.MIMEXLSX}, "token")
		snap := waitReady(t, svc)

		require.Equal(t, domain.PreviewReady, snap.Status)
		assert.Equal(t, [][]string{{"k", "v"}, {"a", "1"}}, snap.Payload.Table)
	})

	t.Run("corrupt workbook", func(t *testing.T) {
		svc, fetcher, _ := newTestService(t)
		fetcher.set("w", fakeContent{data: []byte("garbage")})

		svc.BeginPreview(context.Background(), domain.File{ID: "w", Name: "book.xlsx", MIMEType: domain.MIMEXLSX}, "token")
		snap := waitReady(t, svc)

		assert.Equal(t, domain.PreviewError, snap.Status)
		assert.Equal(t, domain.KindParseFailed, snap.ErrorKind)
	})

	t.Run("invalid utf8 csv", func(t *testing.T) {
		svc, fetcher, _ := newTestService(t)
		fetcher.set("c", fakeContent{data: []byte{0xff, 0xfe, 0xfd}})

		svc.BeginPreview(context.Background(), domain.File{ID: "c", Name: "data.csv", MIMEType: domain.MIMECSV}, "token")
		snap := waitReady(t, svc)

		assert.Equal(t, domain.KindParseFailed, snap.ErrorKind)
	})
}

type stubOptimizer struct {
	err error
}

func (o stubOptimizer) Optimize([]byte) ([]byte, string, error) {
	if o.err != nil {
		return nil, "", o.err
	}
	return []byte("small"), "image/jpeg", nil
}

func TestImagePreviewOptimizer(t *testing.T) {
	t.Run("resized", func(t *testing.T) {
		svc, fetcher, store := newTestService(t, WithImageOptimizer(stubOptimizer{}))
		fetcher.set("i", fakeContent{data: []byte("big png"), contentType: "image/png"})

		svc.BeginPreview(context.Background(), domain.File{ID: "i", Name: "a.png", MIMEType: "image/png"}, "token")
		snap := waitReady(t, svc)

		require.Equal(t, domain.PreviewReady, snap.Status)
		assert.Equal(t, "image/jpeg", snap.Payload.ContentType)
		id := snap.Payload.URL[len("http://localhost/v1/resources/"):]
		data, _, ok := store.Get(id)
		require.True(t, ok)
		assert.Equal(t, []byte("small"), data)
	})

	t.Run("falls back to original", func(t *testing.T) {
		svc, fetcher, store := newTestService(t, WithImageOptimizer(stubOptimizer{err: errors.New("vips")}))
		fetcher.set("i", fakeContent{data: []byte("big png"), contentType: "image/png"})

		svc.BeginPreview(context.Background(), domain.File{ID: "i", Name: "a.png", MIMEType: "image/png"}, "token")
		snap := waitReady(t, svc)

		require.Equal(t, domain.PreviewReady, snap.Status)
		assert.Equal(t, "image/png", snap.Payload.ContentType)
		id := snap.Payload.URL[len("http://localhost/v1/resources/"):]
		data, _, _ := store.Get(id)
		assert.Equal(t, []byte("big png"), data)
	})
}

func TestListenerSeesTransitions(t *testing.T) {
	var mu sync.Mutex
	var statuses []domain.PreviewStatus
	listener := func(s domain.PreviewSnapshot) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	}

	svc, fetcher, _ := newTestService(t, WithListener(listener))
	gate := make(chan struct{})
	fetcher.set("t", fakeContent{data: []byte("hi"), gate: gate})

	svc.BeginPreview(context.Background(), domain.File{ID: "t", Name: "a.txt", MIMEType: domain.MIMEPlain}, "token")
	close(gate)
	waitReady(t, svc)
	svc.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.PreviewStatus{domain.PreviewLoading, domain.PreviewReady, domain.PreviewIdle}, statuses)
}

func TestResourceReleaseIsIdempotent(t *testing.T) {
	var revokes atomic.Int32
	res := NewResource("r1", "http://x/r1", "image/png", 3, func() error {
		revokes.Add(1)
		return nil
	})

	require.NoError(t, res.Release())
	assert.True(t, res.Released())
	assert.ErrorIs(t, res.Release(), ErrResourceReleased)
	assert.Equal(t, int32(1), revokes.Load())
}

func TestMemoryStoreRelease(t *testing.T) {
	store := NewMemoryStore("http://localhost")

	res, err := store.Put(context.Background(), []byte("abc"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/v1/resources/"+res.ID, res.URL)

	data, ct, ok := store.Get(res.ID)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), data)
	assert.Equal(t, "text/plain", ct)

	require.NoError(t, res.Release())
	_, _, ok = store.Get(res.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Live())
}
