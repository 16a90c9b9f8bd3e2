package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"drivelens/internal/domain"
	"drivelens/internal/logging"
	"drivelens/internal/metrics"
	"drivelens/internal/service/drive"
)

var validate = validator.New()

// MutationResult describes a finished mutation for listeners.
type MutationResult struct {
	Op     domain.DraftKind `json:"op"`
	FileID string           `json:"file_id"`
}

// MutationService issues single-shot rename, move, delete and share requests
// and holds the pending draft for each.
type MutationService struct {
	storage  drive.Storage
	browser  *Browser
	listener func(MutationResult)

	mu     sync.Mutex
	drafts domain.Drafts
}

// NewMutationService creates a gateway that refreshes browser after every
// successful mutation.
func NewMutationService(storage drive.Storage, browser *Browser, listener func(MutationResult)) *MutationService {
	return &MutationService{
		storage:  storage,
		browser:  browser,
		listener: listener,
	}
}

// Rename renames file to newName.
func (s *MutationService) Rename(ctx context.Context, file domain.File, newName, credential string) error {
	newName = strings.TrimSpace(newName)
	if file.ID == "" || newName == "" {
		return s.invalid(domain.DraftRename, "file and new name are required")
	}
	s.setDraft(func(d *domain.Drafts) { d.Rename = &domain.RenameDraft{FileID: file.ID, NewName: newName} })

	return s.run(ctx, domain.DraftRename, file, credential, func() error {
		return s.storage.Rename(ctx, credential, file.ID, newName)
	})
}

// Move reparents file under targetFolderID.
func (s *MutationService) Move(ctx context.Context, file domain.File, targetFolderID, credential string) error {
	targetFolderID = strings.TrimSpace(targetFolderID)
	if file.ID == "" || targetFolderID == "" {
		return s.invalid(domain.DraftMove, "file and target folder are required")
	}
	if targetFolderID == file.ID {
		return s.invalid(domain.DraftMove, "a folder cannot be moved into itself")
	}
	s.setDraft(func(d *domain.Drafts) { d.Move = &domain.MoveDraft{FileID: file.ID, TargetFolderID: targetFolderID} })

	from := file.Parents
	if len(from) == 0 {
		view, owned, shared := s.browser.Navigation()
		if view == domain.ViewShared {
			from = []string{shared.CurrentFolderID}
		} else {
			from = []string{owned.CurrentFolderID}
		}
	}

	return s.run(ctx, domain.DraftMove, file, credential, func() error {
		return s.storage.Move(ctx, credential, file.ID, targetFolderID, from)
	})
}

// Delete removes file.
func (s *MutationService) Delete(ctx context.Context, file domain.File, credential string) error {
	if file.ID == "" {
		return s.invalid(domain.DraftDelete, "file is required")
	}
	s.setDraft(func(d *domain.Drafts) { d.Delete = &domain.DeleteTarget{FileID: file.ID} })

	return s.run(ctx, domain.DraftDelete, file, credential, func() error {
		return s.storage.Delete(ctx, credential, file.ID)
	})
}

// Share grants role on file to email.
func (s *MutationService) Share(ctx context.Context, file domain.File, email string, role domain.Role, credential string) error {
	email = strings.TrimSpace(email)
	if file.ID == "" || email == "" {
		return s.invalid(domain.DraftShare, "file and email are required")
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return s.invalid(domain.DraftShare, fmt.Sprintf("invalid email address %q", email))
	}
	if role == "" {
		role = domain.RoleReader
	}
	if !role.Valid() {
		return s.invalid(domain.DraftShare, fmt.Sprintf("unknown role %q", role))
	}
	s.setDraft(func(d *domain.Drafts) { d.Share = &domain.ShareDraft{FileID: file.ID, Email: email, Role: role} })

	return s.run(ctx, domain.DraftShare, file, credential, func() error {
		return s.storage.Share(ctx, credential, file.ID, email, role)
	})
}

// Commit runs the pending draft of kind.
func (s *MutationService) Commit(ctx context.Context, kind domain.DraftKind, credential string) error {
	d := s.Drafts()
	switch kind {
	case domain.DraftRename:
		if d.Rename == nil {
			return domain.Invalid("no rename pending")
		}
		return s.Rename(ctx, s.file(d.Rename.FileID), d.Rename.NewName, credential)
	case domain.DraftMove:
		if d.Move == nil {
			return domain.Invalid("no move pending")
		}
		return s.Move(ctx, s.file(d.Move.FileID), d.Move.TargetFolderID, credential)
	case domain.DraftDelete:
		if d.Delete == nil {
			return domain.Invalid("no delete pending")
		}
		return s.Delete(ctx, s.file(d.Delete.FileID), credential)
	case domain.DraftShare:
		if d.Share == nil {
			return domain.Invalid("no share pending")
		}
		return s.Share(ctx, s.file(d.Share.FileID), d.Share.Email, d.Share.Role, credential)
	}
	return domain.Invalid(fmt.Sprintf("unknown draft %q", kind))
}

func (s *MutationService) SetRenameDraft(d domain.RenameDraft) error {
	if d.FileID == "" {
		return domain.Invalid("file_id is required")
	}
	s.setDraft(func(all *domain.Drafts) { all.Rename = &d })
	return nil
}

func (s *MutationService) SetMoveDraft(d domain.MoveDraft) error {
	if d.FileID == "" {
		return domain.Invalid("file_id is required")
	}
	s.setDraft(func(all *domain.Drafts) { all.Move = &d })
	return nil
}

func (s *MutationService) SetDeleteTarget(d domain.DeleteTarget) error {
	if d.FileID == "" {
		return domain.Invalid("file_id is required")
	}
	s.setDraft(func(all *domain.Drafts) { all.Delete = &d })
	return nil
}

func (s *MutationService) SetShareDraft(d domain.ShareDraft) error {
	if d.FileID == "" {
		return domain.Invalid("file_id is required")
	}
	s.setDraft(func(all *domain.Drafts) { all.Share = &d })
	return nil
}

// CancelDraft discards the pending draft of kind.
func (s *MutationService) CancelDraft(kind domain.DraftKind) error {
	switch kind {
	case domain.DraftRename, domain.DraftMove, domain.DraftDelete, domain.DraftShare:
		s.clearDraft(kind)
		return nil
	}
	return domain.Invalid(fmt.Sprintf("unknown draft %q", kind))
}

// Drafts returns a copy of every pending draft.
func (s *MutationService) Drafts() domain.Drafts {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out domain.Drafts
	if d := s.drafts.Rename; d != nil {
		c := *d
		out.Rename = &c
	}
	if d := s.drafts.Move; d != nil {
		c := *d
		out.Move = &c
	}
	if d := s.drafts.Delete; d != nil {
		c := *d
		out.Delete = &c
	}
	if d := s.drafts.Share; d != nil {
		c := *d
		out.Share = &c
	}
	return out
}

// run issues the request once. Success clears the draft and refreshes the
// current folder; failure keeps the draft for a retry.
func (s *MutationService) run(ctx context.Context, op domain.DraftKind, file domain.File, credential string, call func() error) error {
	log := logging.WithContext(ctx).With(zap.String("op", string(op)), zap.String("file_id", file.ID))

	if credential == "" {
		metrics.RecordMutation(string(op), "unauthenticated")
		return domain.AuthRequired()
	}

	if err := call(); err != nil {
		metrics.RecordMutation(string(op), "error")
		log.Warn("mutation failed", zap.Error(err))
		return err
	}

	metrics.RecordMutation(string(op), "ok")
	log.Info("mutation applied")

	s.clearDraft(op)
	s.browser.Refresh(ctx, credential)
	if s.listener != nil {
		s.listener(MutationResult{Op: op, FileID: file.ID})
	}
	return nil
}

func (s *MutationService) invalid(op domain.DraftKind, msg string) error {
	metrics.RecordMutation(string(op), "invalid")
	return domain.Invalid(msg)
}

func (s *MutationService) file(id string) domain.File {
	if f, ok := s.browser.Lookup(id); ok {
		return f
	}
	return domain.File{ID: id}
}

func (s *MutationService) setDraft(fn func(*domain.Drafts)) {
	s.mu.Lock()
	fn(&s.drafts)
	s.mu.Unlock()
}

func (s *MutationService) clearDraft(kind domain.DraftKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case domain.DraftRename:
		s.drafts.Rename = nil
	case domain.DraftMove:
		s.drafts.Move = nil
	case domain.DraftDelete:
		s.drafts.Delete = nil
	case domain.DraftShare:
		s.drafts.Share = nil
	}
}
