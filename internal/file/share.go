package file

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/okarpov/stash/internal/core"
	"github.com/okarpov/stash/internal/database/models"
	"github.com/okarpov/stash/internal/logger"
	"gorm.io/gorm"
)

// shareTokenAttempts bounds retries on generated-token collisions.
const shareTokenAttempts = 3

// EnableShare mints a share token for the file if it has none. Calling it
// on an already-shared file returns the existing token unchanged. Token
// and timestamp are written in one update so an observer never sees one
// without the other.
func (s *Service) EnableShare(ctx context.Context, actor *models.Account, fileID uint) (*models.File, error) {
	f, err := s.getForActor(ctx, actor, fileID)
	if err != nil {
		return nil, err
	}

	if f.ShareToken != nil {
		return f, nil
	}

	var lastErr error
	for attempt := 0; attempt < shareTokenAttempts; attempt++ {
		token := uuid.New().String()
		now := time.Now()

		err := s.db.WithContext(ctx).Model(f).Updates(map[string]any{
			"share_token":   token,
			"share_created": now,
		}).Error
		if err == nil {
			f.ShareToken = &token
			f.ShareCreated = &now
			logger.Info("share enabled", "file_id", f.ID, "actor_id", actor.ID)
			return f, nil
		}
		if !core.IsDuplicateKey(err) {
			return nil, fmt.Errorf("failed to enable share: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to enable share: %w", lastErr)
}

// DisableShare clears the token and timestamp together. The token value
// is discarded: a later EnableShare mints a fresh one, the old link stays
// dead forever. Idempotent on an unshared file.
func (s *Service) DisableShare(ctx context.Context, actor *models.Account, fileID uint) (*models.File, error) {
	f, err := s.getForActor(ctx, actor, fileID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(f).Updates(map[string]any{
		"share_token":   gorm.Expr("NULL"),
		"share_created": gorm.Expr("NULL"),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to disable share: %w", err)
	}

	f.ShareToken = nil
	f.ShareCreated = nil
	return f, nil
}

// ResolveShare exchanges an active token for the file's content, with no
// session and no rank check: the token itself is the whole authorization.
// It touches last_downloaded exactly like an authenticated download.
func (s *Service) ResolveShare(ctx context.Context, token string) (*models.File, io.ReadCloser, error) {
	var f models.File
	if err := s.db.WithContext(ctx).Where("share_token = ?", token).First(&f).Error; err != nil {
		return nil, nil, core.ErrNotFound
	}

	rc, err := s.open(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	return &f, rc, nil
}
