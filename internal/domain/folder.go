package domain

import "fmt"

const (
	RootFolderID      = "root"
	OwnedRootName     = "My Drive"
	SharedRootName    = "Shared with me"
	UnknownFolderName = "Folder"
)

type View string

const (
	ViewOwned  View = "owned"
	ViewShared View = "shared"
)

func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewOwned, ViewShared:
		return View(s), nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// RootName is the display name of the view's root listing.
func (v View) RootName() string {
	if v == ViewShared {
		return SharedRootName
	}
	return OwnedRootName
}

// NavigationState is the folder position of one view. AncestorStack is kept
// in root-to-parent order and is popped from the end.
type NavigationState struct {
	CurrentFolderID string            `json:"current_folder_id"`
	AncestorStack   []string          `json:"ancestor_stack"`
	FolderNames     map[string]string `json:"folder_names"`
	CurrentPage     int               `json:"current_page"`
	Cursor          string            `json:"cursor,omitempty"`
}

// HasMore reports whether another page can be requested.
func (s NavigationState) HasMore() bool {
	return s.Cursor != ""
}

type Breadcrumb struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Index int    `json:"index"`
}

type ListingState string

const (
	ListingIdle    ListingState = "idle"
	ListingLoading ListingState = "loading"
	ListingReady   ListingState = "ready"
	ListingError   ListingState = "error"
)

// ListingStatus is the view-level fetch status, separate from preview errors.
type ListingStatus struct {
	State     ListingState `json:"state"`
	ErrorKind ErrorKind    `json:"error_kind,omitempty"`
	Message   string       `json:"message,omitempty"`
}
