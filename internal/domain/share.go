package domain

type Role string

const (
	RoleReader    Role = "reader"
	RoleCommenter Role = "commenter"
	RoleWriter    Role = "writer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleReader, RoleCommenter, RoleWriter:
		return true
	}
	return false
}

type DraftKind string

const (
	DraftRename DraftKind = "rename"
	DraftMove   DraftKind = "move"
	DraftDelete DraftKind = "delete"
	DraftShare  DraftKind = "share"
)

// Drafts are held only while their confirmation is pending.

type RenameDraft struct {
	FileID  string `json:"file_id"`
	NewName string `json:"new_name"`
}

type MoveDraft struct {
	FileID         string `json:"file_id"`
	TargetFolderID string `json:"target_folder_id"`
}

type DeleteTarget struct {
	FileID string `json:"file_id"`
}

type ShareDraft struct {
	FileID string `json:"file_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// Drafts is a snapshot of every pending draft. Nil fields are not open.
type Drafts struct {
	Rename *RenameDraft  `json:"rename,omitempty"`
	Move   *MoveDraft    `json:"move,omitempty"`
	Delete *DeleteTarget `json:"delete,omitempty"`
	Share  *ShareDraft   `json:"share,omitempty"`
}
