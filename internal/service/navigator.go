package service

import (
	"fmt"

	"drivelens/internal/domain"
)

// Navigator tracks the folder position of one view. It does no I/O and is not
// safe for concurrent use; Browser serializes access.
type Navigator struct {
	view  domain.View
	state domain.NavigationState
}

func NewNavigator(view domain.View) *Navigator {
	n := &Navigator{view: view}
	n.state.FolderNames = map[string]string{domain.RootFolderID: view.RootName()}
	n.Reset()
	return n
}

// OpenFolder descends into folder.
func (n *Navigator) OpenFolder(folder domain.File) {
	n.state.AncestorStack = append(n.state.AncestorStack, n.state.CurrentFolderID)
	n.state.CurrentFolderID = folder.ID
	if folder.Name != "" {
		n.state.FolderNames[folder.ID] = folder.Name
	}
	n.resetPage()
}

// GoBack returns to the parent folder. It reports false at the root.
func (n *Navigator) GoBack() bool {
	depth := len(n.state.AncestorStack)
	if depth == 0 {
		return false
	}
	n.state.CurrentFolderID = n.state.AncestorStack[depth-1]
	n.state.AncestorStack = n.state.AncestorStack[:depth-1]
	n.resetPage()
	return true
}

// JumpToBreadcrumb moves to the breadcrumb at index, keeping the first index
// ancestors.
func (n *Navigator) JumpToBreadcrumb(id string, index int) error {
	if id == "" {
		return domain.Invalid("breadcrumb id is required")
	}
	if index < 0 || index > len(n.state.AncestorStack) {
		return domain.Invalid(fmt.Sprintf("breadcrumb index %d out of range", index))
	}
	n.state.CurrentFolderID = id
	n.state.AncestorStack = n.state.AncestorStack[:index]
	n.resetPage()
	return nil
}

// Reset returns to the view's root. Cached folder names are kept.
func (n *Navigator) Reset() {
	n.state.CurrentFolderID = domain.RootFolderID
	n.state.AncestorStack = []string{}
	n.resetPage()
}

// SetCursor records the cursor returned with the current page.
func (n *Navigator) SetCursor(cursor string) {
	n.state.Cursor = cursor
}

// AdvancePage moves to the next page after it has been appended.
func (n *Navigator) AdvancePage(cursor string) {
	n.state.CurrentPage++
	n.state.Cursor = cursor
}

// Breadcrumbs returns the path from the root to the current folder.
func (n *Navigator) Breadcrumbs() []domain.Breadcrumb {
	crumbs := make([]domain.Breadcrumb, 0, len(n.state.AncestorStack)+1)
	for i, id := range n.state.AncestorStack {
		crumbs = append(crumbs, domain.Breadcrumb{ID: id, Name: n.name(id), Index: i})
	}
	return append(crumbs, domain.Breadcrumb{
		ID:    n.state.CurrentFolderID,
		Name:  n.name(n.state.CurrentFolderID),
		Index: len(n.state.AncestorStack),
	})
}

// Snapshot returns a deep copy of the state.
func (n *Navigator) Snapshot() domain.NavigationState {
	s := n.state
	s.AncestorStack = append([]string{}, n.state.AncestorStack...)
	s.FolderNames = make(map[string]string, len(n.state.FolderNames))
	for k, v := range n.state.FolderNames {
		s.FolderNames[k] = v
	}
	return s
}

// Restore replaces the state with a persisted snapshot.
func (n *Navigator) Restore(s domain.NavigationState) {
	if s.CurrentFolderID == "" {
		s.CurrentFolderID = domain.RootFolderID
	}
	if s.AncestorStack == nil {
		s.AncestorStack = []string{}
	}
	names := map[string]string{domain.RootFolderID: n.view.RootName()}
	for k, v := range s.FolderNames {
		names[k] = v
	}
	s.FolderNames = names
	if s.CurrentPage < 1 {
		s.CurrentPage = 1
	}
	n.state = s
}

func (n *Navigator) name(id string) string {
	if name, ok := n.state.FolderNames[id]; ok && name != "" {
		return name
	}
	return domain.UnknownFolderName
}

func (n *Navigator) resetPage() {
	n.state.CurrentPage = 1
	n.state.Cursor = ""
}
