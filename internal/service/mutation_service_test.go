package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivelens/internal/domain"
)

type mutationFixture struct {
	storage *fakeStorage
	browser *Browser
	svc     *MutationService

	mu      sync.Mutex
	results []MutationResult
}

func newMutationFixture(t *testing.T) *mutationFixture {
	t.Helper()
	f := &mutationFixture{storage: newFakeStorage()}
	f.storage.setPage(domain.ViewOwned, domain.RootFolderID, "", domain.Page{Files: []domain.File{
		{ID: "f1", Name: "a.pdf", MIMEType: domain.MIMEPDF, Parents: []string{domain.RootFolderID}},
		folder("dst", "Archive"),
	}, NextCursor: "c1"})
	f.browser, _ = newTestBrowser(t, f.storage)
	f.svc = NewMutationService(f.storage, f.browser, func(r MutationResult) {
		f.mu.Lock()
		f.results = append(f.results, r)
		f.mu.Unlock()
	})

	f.browser.Refresh(context.Background(), cred)
	waitListing(t, f.browser)
	return f
}

func (f *mutationFixture) done() []MutationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MutationResult(nil), f.results...)
}

func TestRename_SuccessClearsDraftAndRefreshes(t *testing.T) {
	f := newMutationFixture(t)
	ctx := context.Background()

	require.True(t, f.browser.LoadNextPage(ctx, cred))
	waitListing(t, f.browser)
	listings := len(f.storage.calls())

	err := f.svc.Rename(ctx, domain.File{ID: "f1"}, "  b.pdf ", cred)
	require.NoError(t, err)
	st := waitListing(t, f.browser)

	assert.Equal(t, []string{"rename:f1:b.pdf"}, f.storage.recorded())
	assert.Nil(t, f.svc.Drafts().Rename)
	assert.Equal(t, []MutationResult{{Op: domain.DraftRename, FileID: "f1"}}, f.done())

	calls := f.storage.calls()
	require.Len(t, calls, listings+1)
	assert.Equal(t, listKey(ListingQuery(domain.ViewOwned, domain.RootFolderID), ""), calls[len(calls)-1])
	assert.Equal(t, 1, st.Navigation.CurrentPage)
}

func TestRename_FailurePreservesDraft(t *testing.T) {
	f := newMutationFixture(t)
	f.storage.mutErr = domain.FetchFailed("remote store returned 500", nil)
	listings := len(f.storage.calls())

	err := f.svc.Rename(context.Background(), domain.File{ID: "f1"}, "b.pdf", cred)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)

	d := f.svc.Drafts()
	require.NotNil(t, d.Rename)
	assert.Equal(t, "b.pdf", d.Rename.NewName)
	assert.Len(t, f.storage.calls(), listings, "failed mutations do not refresh")
	assert.Empty(t, f.done())
}

func TestMutations_RequireCredential(t *testing.T) {
	f := newMutationFixture(t)
	ctx := context.Background()
	target := domain.File{ID: "f1"}

	assert.ErrorIs(t, f.svc.Rename(ctx, target, "x", ""), domain.ErrAuthRequired)
	assert.ErrorIs(t, f.svc.Move(ctx, target, "dst", ""), domain.ErrAuthRequired)
	assert.ErrorIs(t, f.svc.Delete(ctx, target, ""), domain.ErrAuthRequired)
	assert.ErrorIs(t, f.svc.Share(ctx, target, "bob@example.com", domain.RoleReader, ""), domain.ErrAuthRequired)

	assert.Empty(t, f.storage.recorded())
	d := f.svc.Drafts()
	assert.NotNil(t, d.Rename)
	assert.NotNil(t, d.Move)
	assert.NotNil(t, d.Delete)
	assert.NotNil(t, d.Share)
}

func TestMutations_Validation(t *testing.T) {
	f := newMutationFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"rename without name", func() error { return f.svc.Rename(ctx, domain.File{ID: "f1"}, "   ", cred) }},
		{"rename without file", func() error { return f.svc.Rename(ctx, domain.File{}, "x", cred) }},
		{"move without target", func() error { return f.svc.Move(ctx, domain.File{ID: "f1"}, "", cred) }},
		{"move into itself", func() error { return f.svc.Move(ctx, folder("dst", "Archive"), "dst", cred) }},
		{"delete without file", func() error { return f.svc.Delete(ctx, domain.File{}, cred) }},
		{"share bad email", func() error { return f.svc.Share(ctx, domain.File{ID: "f1"}, "not-an-email", "", cred) }},
		{"share display-name address", func() error {
			return f.svc.Share(ctx, domain.File{ID: "f1"}, "Bob <bob@example.com>", "", cred)
		}},
		{"share bad role", func() error { return f.svc.Share(ctx, domain.File{ID: "f1"}, "bob@example.com", "owner", cred) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), domain.ErrInvalid)
		})
	}
	assert.Empty(t, f.storage.recorded())
}

func TestMove_UsesParentsOrCurrentFolder(t *testing.T) {
	f := newMutationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Move(ctx, domain.File{ID: "f1", Parents: []string{"p1", "p2"}}, "dst", cred))
	waitListing(t, f.browser)

	f.storage.setPage(domain.ViewOwned, "dst", "", domain.Page{})
	require.NoError(t, f.browser.OpenFolder(ctx, folder("dst", "Archive"), cred))
	waitListing(t, f.browser)
	require.NoError(t, f.svc.Move(ctx, domain.File{ID: "f2"}, "other", cred))
	waitListing(t, f.browser)

	assert.Equal(t, []string{
		"move:f1:dst:p1,p2",
		"move:f2:other:dst",
	}, f.storage.recorded())
}

func TestDeleteAndShare(t *testing.T) {
	f := newMutationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, domain.File{ID: "f1"}, cred))
	waitListing(t, f.browser)
	require.NoError(t, f.svc.Share(ctx, domain.File{ID: "f1"}, " bob@example.com ", "", cred))
	waitListing(t, f.browser)

	assert.Equal(t, []string{"delete:f1", "share:f1:bob@example.com:reader"}, f.storage.recorded())
	assert.Len(t, f.done(), 2)
	assert.Equal(t, domain.Drafts{}, f.svc.Drafts())
}

func TestCommitRunsPendingDraft(t *testing.T) {
	f := newMutationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetRenameDraft(domain.RenameDraft{FileID: "f1", NewName: "renamed.pdf"}))
	require.NoError(t, f.svc.SetMoveDraft(domain.MoveDraft{FileID: "f1", TargetFolderID: "dst"}))

	require.NoError(t, f.svc.Commit(ctx, domain.DraftRename, cred))
	waitListing(t, f.browser)
	require.NoError(t, f.svc.Commit(ctx, domain.DraftMove, cred))
	waitListing(t, f.browser)

	assert.Equal(t, []string{
		"rename:f1:renamed.pdf",
		"move:f1:dst:root",
	}, f.storage.recorded())

	assert.ErrorIs(t, f.svc.Commit(ctx, domain.DraftDelete, cred), domain.ErrInvalid)
	assert.ErrorIs(t, f.svc.Commit(ctx, "archive", cred), domain.ErrInvalid)
}

func TestDrafts_SetAndCancel(t *testing.T) {
	f := newMutationFixture(t)

	assert.ErrorIs(t, f.svc.SetShareDraft(domain.ShareDraft{}), domain.ErrInvalid)
	require.NoError(t, f.svc.SetShareDraft(domain.ShareDraft{FileID: "f1", Email: "a@example.com"}))
	require.NoError(t, f.svc.SetDeleteTarget(domain.DeleteTarget{FileID: "f1"}))

	d := f.svc.Drafts()
	d.Share.Email = "changed"
	assert.Equal(t, "a@example.com", f.svc.Drafts().Share.Email, "drafts are returned as copies")

	require.NoError(t, f.svc.CancelDraft(domain.DraftShare))
	assert.Nil(t, f.svc.Drafts().Share)
	assert.NotNil(t, f.svc.Drafts().Delete)
	assert.ErrorIs(t, f.svc.CancelDraft("bogus"), domain.ErrInvalid)
}

func TestMutationErrorIsReturnedUnchanged(t *testing.T) {
	f := newMutationFixture(t)
	want := domain.Forbidden(errors.New("403"))
	f.storage.mutErr = want

	err := f.svc.Delete(context.Background(), domain.File{ID: "f1"}, cred)
	assert.Same(t, want, err)
}
