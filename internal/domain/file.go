package domain

import (
	"path"
	"strings"
)

// MIME types the remote store reports for the formats we care about.
const (
	FolderMIME = "application/vnd.google-apps.folder"

	MIMEGoogleDoc   = "application/vnd.google-apps.document"
	MIMEGoogleSheet = "application/vnd.google-apps.spreadsheet"
	MIMEGoogleSlide = "application/vnd.google-apps.presentation"

	MIMEPDF   = "application/pdf"
	MIMEDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDOC   = "application/msword"
	MIMEXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEXLS   = "application/vnd.ms-excel"
	MIMEPPTX  = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEPPT   = "application/vnd.ms-powerpoint"
	MIMECSV   = "text/csv"
	MIMEPlain = "text/plain"
)

type Owner struct {
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// File describes one remote entry as returned by a listing page. It is never
// mutated locally; a refresh replaces the whole collection.
type File struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MIMEType      string   `json:"mimeType"`
	ThumbnailLink string   `json:"thumbnailLink,omitempty"`
	WebViewLink   string   `json:"webViewLink,omitempty"`
	Parents       []string `json:"parents,omitempty"`
	Shared        bool     `json:"shared"`
	Owners        []Owner  `json:"owners,omitempty"`
}

func (f File) IsFolder() bool {
	return f.MIMEType == FolderMIME
}

// Extension returns the lower-cased suffix after the last dot, or "".
func (f File) Extension() string {
	ext := path.Ext(f.Name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// Page is one page of a folder listing.
type Page struct {
	Files      []File `json:"files"`
	NextCursor string `json:"nextPageToken,omitempty"`
}
