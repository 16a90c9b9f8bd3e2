package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"drivelens/internal/domain"
	"drivelens/internal/service/drive"
)

// fakeStorage is an in-memory drive.Storage. Listings are keyed by
// query and page token.
type fakeStorage struct {
	mu        sync.Mutex
	pages     map[string]domain.Page
	listErrs  map[string]error
	gates     map[string]chan struct{}
	listCalls []string

	content   map[string]string
	mutations []string
	mutErr    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		pages:    make(map[string]domain.Page),
		listErrs: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		content:  make(map[string]string),
	}
}

func listKey(query, token string) string {
	return query + "|" + token
}

func (f *fakeStorage) setPage(view domain.View, folderID, token string, page domain.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[listKey(ListingQuery(view, folderID), token)] = page
}

func (f *fakeStorage) setListErr(view domain.View, folderID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErrs[ListingQuery(view, folderID)] = err
}

// gate blocks listings of folderID in view until the returned func is called.
func (f *fakeStorage) gate(view domain.View, folderID string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[ListingQuery(view, folderID)] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeStorage) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listCalls...)
}

func (f *fakeStorage) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.mutations...)
}

func (f *fakeStorage) ListFiles(ctx context.Context, credential, query, pageToken string) (domain.Page, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, listKey(query, pageToken))
	gate := f.gates[query]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErrs[query]; err != nil {
		return domain.Page{}, err
	}
	page := f.pages[listKey(query, pageToken)]
	if page.Files == nil {
		page.Files = []domain.File{}
	}
	return page, nil
}

func (f *fakeStorage) GetContent(ctx context.Context, credential, fileID string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.content[fileID]
	if !ok {
		return nil, "", domain.FetchFailed("file not found", nil)
	}
	return []byte(data), "", nil
}

func (f *fakeStorage) Export(ctx context.Context, credential, fileID, mimeType string) ([]byte, error) {
	data, _, err := f.GetContent(ctx, credential, fileID)
	return data, err
}

func (f *fakeStorage) OpenContent(ctx context.Context, credential, fileID string) (*drive.Content, error) {
	data, _, err := f.GetContent(ctx, credential, fileID)
	if err != nil {
		return nil, err
	}
	f.record("open:" + fileID)
	return &drive.Content{Body: io.NopCloser(strings.NewReader(string(data))), Size: int64(len(data))}, nil
}

func (f *fakeStorage) OpenExport(ctx context.Context, credential, fileID, mimeType string) (*drive.Content, error) {
	data, _, err := f.GetContent(ctx, credential, fileID)
	if err != nil {
		return nil, err
	}
	f.record("export:" + fileID + ":" + mimeType)
	return &drive.Content{Body: io.NopCloser(strings.NewReader(string(data))), ContentType: mimeType, Size: int64(len(data))}, nil
}

func (f *fakeStorage) Rename(ctx context.Context, credential, fileID, name string) error {
	return f.mutate(fmt.Sprintf("rename:%s:%s", fileID, name))
}

func (f *fakeStorage) Move(ctx context.Context, credential, fileID, targetFolderID string, fromParents []string) error {
	return f.mutate(fmt.Sprintf("move:%s:%s:%s", fileID, targetFolderID, strings.Join(fromParents, ",")))
}

func (f *fakeStorage) Delete(ctx context.Context, credential, fileID string) error {
	return f.mutate("delete:" + fileID)
}

func (f *fakeStorage) Share(ctx context.Context, credential, fileID, email string, role domain.Role) error {
	return f.mutate(fmt.Sprintf("share:%s:%s:%s", fileID, email, role))
}

func (f *fakeStorage) mutate(entry string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutErr != nil {
		return f.mutErr
	}
	f.mutations = append(f.mutations, entry)
	return nil
}

func (f *fakeStorage) record(entry string) {
	f.mu.Lock()
	f.mutations = append(f.mutations, entry)
	f.mu.Unlock()
}
