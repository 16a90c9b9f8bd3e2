package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"drivelens/internal/domain"
	"drivelens/internal/logging"
	"drivelens/internal/metrics"
	"drivelens/internal/service/drive"
)

// ListingService fetches single listing pages from the remote store.
type ListingService struct {
	storage drive.Storage
}

func NewListingService(storage drive.Storage) *ListingService {
	return &ListingService{storage: storage}
}

// FetchPage returns the page of folderID in view that starts at cursor.
func (s *ListingService) FetchPage(ctx context.Context, view domain.View, folderID, cursor, credential string) (domain.Page, error) {
	if credential == "" {
		return domain.Page{}, domain.AuthRequired()
	}

	page, err := s.storage.ListFiles(ctx, credential, ListingQuery(view, folderID), cursor)
	if err != nil {
		metrics.RecordListingFetch(string(view), "error")
		logging.WithContext(ctx).Warn("listing fetch failed",
			zap.String("view", string(view)),
			zap.String("folder_id", folderID),
			zap.Error(err),
		)
		return domain.Page{}, err
	}

	metrics.RecordListingFetch(string(view), "ok")
	return page, nil
}

// ListingQuery builds the remote query for a folder in view. The shared view
// at its root lists everything shared with the user.
func ListingQuery(view domain.View, folderID string) string {
	if folderID == "" {
		folderID = domain.RootFolderID
	}
	parent := fmt.Sprintf("'%s' in parents", escapeQuery(folderID))

	if view == domain.ViewShared {
		if folderID == domain.RootFolderID {
			return "sharedWithMe=true and trashed=false"
		}
		return "sharedWithMe=true and trashed=false and " + parent
	}
	return parent + " and trashed=false"
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
