// Package file implements the file lifecycle (upload, listing, rename,
// comment, download, delete) and the share token registry. Authorization
// runs through the rank model's file-management check: owners always act
// on their own files, higher ranks on files of those they manage.
package file

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okarpov/stash/internal/core"
	"github.com/okarpov/stash/internal/database/models"
	"github.com/okarpov/stash/internal/logger"
	"github.com/okarpov/stash/internal/rank"
	"github.com/okarpov/stash/internal/storage"
	"gorm.io/gorm"
)

// storedNameAttempts bounds retries on generated-filename collisions.
const storedNameAttempts = 3

type Service struct {
	db      *gorm.DB
	storage storage.Backend
}

func NewService(db *gorm.DB, backend storage.Backend) *Service {
	return &Service{
		db:      db,
		storage: backend,
	}
}

// getForActor loads a file with its owner and applies the file-management
// check. A missing file is NotFound; an unauthorized actor is Forbidden.
func (s *Service) getForActor(ctx context.Context, actor *models.Account, fileID uint) (*models.File, error) {
	var f models.File
	if err := s.db.WithContext(ctx).Preload("Owner").First(&f, fileID).Error; err != nil {
		return nil, core.ErrNotFound
	}
	if !rank.CanManageFiles(actor, &f.Owner) {
		return nil, core.ErrForbidden
	}
	return &f, nil
}

// Upload writes the content to the owner's storage directory and only
// then creates the record; a crash in between leaves an orphaned physical
// file but never a dangling record. The stored name is regenerated while
// it collides with an existing record.
func (s *Service) Upload(ctx context.Context, owner *models.Account, filename string, r io.Reader, comment string) (*models.File, error) {
	if filename == "" {
		return nil, core.ErrBadRequest
	}

	if err := s.storage.EnsureDir(ctx, owner.StoragePath); err != nil {
		return nil, &core.OperationalError{Op: "provision storage directory", Err: err}
	}

	storedName, err := s.claimStoredName(ctx, filename)
	if err != nil {
		return nil, err
	}

	size, err := s.storage.Save(ctx, r, owner.StoragePath, storedName)
	if err != nil {
		return nil, &core.OperationalError{Op: "write file", Err: err}
	}

	f := &models.File{
		OwnerID:      owner.ID,
		OriginalName: filename,
		StoredName:   storedName,
		RelativePath: owner.StoragePath + storedName,
		SizeBytes:    size,
		Comment:      comment,
		Uploaded:     time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		// The bytes are on disk with no record pointing at them: remove
		// them so a store failure never strands garbage.
		if cleanErr := s.storage.Delete(ctx, f.RelativePath); cleanErr != nil {
			logger.Warn("failed to clean up after record create failure",
				"path", f.RelativePath, "error", cleanErr)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	logger.Info("file uploaded",
		"file_id", f.ID,
		"owner_id", owner.ID,
		"size_bytes", f.SizeBytes,
	)
	return f, nil
}

// claimStoredName generates stored names until one is free. The unique
// index remains the real guarantee; this loop just keeps the physical
// write from targeting a name another record already holds.
func (s *Service) claimStoredName(ctx context.Context, filename string) (string, error) {
	for attempt := 0; attempt < storedNameAttempts; attempt++ {
		name := storage.StoredName(filename)
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.File{}).
			Where("stored_name = ?", name).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check stored name: %w", err)
		}
		if count == 0 {
			return name, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique stored name")
}

// List returns the actor's own files, or a target owner's files when the
// actor manages that owner. Most recent upload first.
func (s *Service) List(ctx context.Context, actor *models.Account, targetOwnerID *uint) ([]models.File, error) {
	ownerID := actor.ID

	if targetOwnerID != nil {
		var target models.Account
		if err := s.db.WithContext(ctx).First(&target, *targetOwnerID).Error; err != nil {
			return nil, core.ErrNotFound
		}
		if !rank.CanManageFiles(actor, &target) {
			return nil, core.ErrForbidden
		}
		ownerID = target.ID
	}

	var files []models.File
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("uploaded DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// Rename changes the user-facing name only; the stored name and physical
// path never move.
func (s *Service) Rename(ctx context.Context, actor *models.Account, fileID uint, newName string) (*models.File, error) {
	f, err := s.getForActor(ctx, actor, fileID)
	if err != nil {
		return nil, err
	}

	if newName == "" {
		return nil, core.ErrBadRequest
	}

	if err := s.db.WithContext(ctx).Model(f).Update("original_name", newName).Error; err != nil {
		return nil, fmt.Errorf("failed to rename file: %w", err)
	}
	f.OriginalName = newName
	return f, nil
}

// SetComment replaces the comment; the empty string is a valid explicit
// clear. Distinguishing "absent" from "empty" happens at the transport
// layer before this is called.
func (s *Service) SetComment(ctx context.Context, actor *models.Account, fileID uint, comment string) (*models.File, error) {
	f, err := s.getForActor(ctx, actor, fileID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(f).Update("comment", comment).Error; err != nil {
		return nil, fmt.Errorf("failed to set comment: %w", err)
	}
	f.Comment = comment
	return f, nil
}

// Download opens the physical content and touches last_downloaded. A
// record whose bytes are gone is a detected inconsistency, reported as
// NotFound rather than served.
func (s *Service) Download(ctx context.Context, actor *models.Account, fileID uint) (*models.File, io.ReadCloser, error) {
	f, err := s.getForActor(ctx, actor, fileID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.open(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return f, rc, nil
}

// Delete unlinks the physical file, then removes the record. Absence of
// the bytes is tolerated; a file that exists but cannot be removed aborts
// before the record is touched.
func (s *Service) Delete(ctx context.Context, actor *models.Account, fileID uint) error {
	f, err := s.getForActor(ctx, actor, fileID)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, f.RelativePath); err != nil {
		return &core.OperationalError{Op: "unlink file", Err: err}
	}

	if err := s.db.WithContext(ctx).Delete(&models.File{}, f.ID).Error; err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	logger.Info("file deleted", "file_id", f.ID, "owner_id", f.OwnerID, "actor_id", actor.ID)
	return nil
}

// open streams the file's bytes and records the download time. The
// backend's byte count overrides the recorded size so the response
// Content-Length matches what is actually streamed, even when the
// stored object has drifted from its record.
func (s *Service) open(ctx context.Context, f *models.File) (io.ReadCloser, error) {
	info, err := s.storage.Stat(ctx, f.RelativePath)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, core.ErrNotFound
		}
		return nil, &core.OperationalError{Op: "stat file", Err: err}
	}
	f.SizeBytes = info.Size

	rc, err := s.storage.Open(ctx, f.RelativePath)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, core.ErrNotFound
		}
		return nil, &core.OperationalError{Op: "open file", Err: err}
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(f).Update("last_downloaded", now).Error; err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to touch last_downloaded: %w", err)
	}
	f.LastDownloaded = &now

	return rc, nil
}
