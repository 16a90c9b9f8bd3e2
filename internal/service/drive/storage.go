package drive

import (
	"context"
	"io"

	"drivelens/internal/domain"
)

// listFields is the partial response selector for listings.
const listFields = "nextPageToken,files(id,name,mimeType,thumbnailLink,webViewLink,parents,shared,owners)"

// Content is an open response body. Callers must close Body.
type Content struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Storage is the remote file store.
type Storage interface {
	ListFiles(ctx context.Context, credential, query, pageToken string) (domain.Page, error)
	GetContent(ctx context.Context, credential, fileID string) ([]byte, string, error)
	Export(ctx context.Context, credential, fileID, mimeType string) ([]byte, error)
	OpenContent(ctx context.Context, credential, fileID string) (*Content, error)
	OpenExport(ctx context.Context, credential, fileID, mimeType string) (*Content, error)
	Rename(ctx context.Context, credential, fileID, name string) error
	Move(ctx context.Context, credential, fileID, targetFolderID string, fromParents []string) error
	Delete(ctx context.Context, credential, fileID string) error
	Share(ctx context.Context, credential, fileID, email string, role domain.Role) error
}
