// Package account implements the account lifecycle: registration with
// field validation, deletion with optional physical purge, privilege
// level transitions, and the aggregated admin listing. Every cross-account
// operation is gated by the rank model before anything is mutated.
package account

import (
	"context"
	"fmt"

	"github.com/okarpov/stash/internal/auth"
	"github.com/okarpov/stash/internal/core"
	"github.com/okarpov/stash/internal/database/models"
	"github.com/okarpov/stash/internal/logger"
	"github.com/okarpov/stash/internal/rank"
	"github.com/okarpov/stash/internal/storage"
	"gorm.io/gorm"
)

// createAttempts bounds retries on generated-identifier collisions.
const createAttempts = 3

type Service struct {
	db         *gorm.DB
	storage    storage.Backend
	bcryptCost int
}

func NewService(db *gorm.DB, backend storage.Backend, bcryptCost int) *Service {
	return &Service{
		db:         db,
		storage:    backend,
		bcryptCost: bcryptCost,
	}
}

// Register validates all fields, then creates the account at level user
// with a freshly allocated storage path and provisions its directory.
// Validation failures come back as a per-field map with nothing written.
func (s *Service) Register(ctx context.Context, username, fullName, email, password string) (*models.Account, error) {
	verr := &core.ValidationError{}

	validateUsername(verr, username)
	if verr.Fields["username"] == nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Account{}).
			Where("username = ?", username).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if count > 0 {
			verr.Add("username", "Username already exists")
		}
	}
	validateFullName(verr, fullName)
	validateEmail(verr, email)
	validatePassword(verr, password)

	if verr.HasErrors() {
		return nil, verr
	}

	passwordHash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var account *models.Account
	for attempt := 0; attempt < createAttempts; attempt++ {
		account = &models.Account{
			Username:     username,
			FullName:     fullName,
			Email:        email,
			PasswordHash: passwordHash,
			StoragePath:  storage.NewAccountDir(username),
		}

		err = s.db.WithContext(ctx).Create(account).Error
		if err == nil {
			break
		}
		if !core.IsDuplicateKey(err) {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		// Storage path collided; regenerate and try again. A username
		// race also lands here and fails the last attempt.
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.storage.EnsureDir(ctx, account.StoragePath); err != nil {
		return nil, &core.OperationalError{Op: "provision storage directory", Err: err}
	}

	logger.Info("account registered", "account_id", account.ID, "username", account.Username)
	return account, nil
}

// Authenticate resolves credentials to an account for the login flow.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&account).Error; err != nil {
		return nil, core.ErrNotFound
	}
	if !auth.VerifyPassword(account.PasswordHash, password) {
		return nil, core.ErrNotFound
	}
	return &account, nil
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, core.ErrNotFound
	}
	return &account, nil
}

// Delete removes the target account. With purgeFiles the whole physical
// directory goes first, and a purge failure aborts the deletion with the
// account intact. Deleting a superuser requires at least one other
// superuser to remain.
func (s *Service) Delete(ctx context.Context, actor *models.Account, targetID uint, purgeFiles bool) error {
	if rank.RankOf(actor) == rank.User {
		return core.ErrForbidden
	}

	target, err := s.Get(ctx, targetID)
	if err != nil {
		return err
	}

	if !rank.CanManage(actor, target) {
		return core.ErrForbidden
	}

	if target.IsSuperuser {
		remaining, err := s.countSuperusers(ctx)
		if err != nil {
			return err
		}
		if remaining < 2 {
			return core.ErrConflict
		}
	}

	if purgeFiles {
		if err := s.storage.RemoveAll(ctx, target.StoragePath); err != nil {
			return &core.OperationalError{Op: "purge account storage", Err: err}
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", target.ID).Delete(&models.File{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Account{}, target.ID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	logger.Info("account deleted",
		"account_id", target.ID,
		"username", target.Username,
		"actor_id", actor.ID,
		"purged", purgeFiles,
	)
	return nil
}

// SetLevel moves the target to newLevel, writing all three flags in one
// update. The rank model decides who may move whom; demoting the last
// superuser is blocked the same way deletion is.
func (s *Service) SetLevel(ctx context.Context, actor *models.Account, targetID uint, newLevel string) (*models.Account, error) {
	if rank.RankOf(actor) == rank.User {
		return nil, core.ErrForbidden
	}

	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if !rank.ValidLevel(newLevel) {
		return nil, core.ErrBadRequest
	}

	if !rank.CanChangeLevel(actor, target, newLevel) {
		return nil, core.ErrForbidden
	}

	if target.IsSuperuser && newLevel != rank.LevelSuperuser {
		remaining, err := s.countSuperusers(ctx)
		if err != nil {
			return nil, err
		}
		if remaining < 2 {
			return nil, core.ErrConflict
		}
	}

	if err := rank.ApplyLevel(target, newLevel); err != nil {
		return nil, core.ErrBadRequest
	}

	err = s.db.WithContext(ctx).Model(target).
		Select("is_admin", "is_staff", "is_superuser").
		Updates(map[string]any{
			"is_admin":     target.IsAdmin,
			"is_staff":     target.IsStaff,
			"is_superuser": target.IsSuperuser,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update level: %w", err)
	}

	logger.Info("account level changed",
		"account_id", target.ID,
		"level", newLevel,
		"actor_id", actor.ID,
	)
	return target, nil
}

// Summary is one row of the admin listing: an account annotated with its
// file count and total stored bytes.
type Summary struct {
	models.Account
	FilesCount        int64 `json:"files_count"`
	TotalStorageBytes int64 `json:"total_storage_bytes"`
}

// List returns every account the actor may manage (self always included),
// annotated with file aggregates. The actor sorts first, the rest follow
// case-insensitively by username.
func (s *Service) List(ctx context.Context, actor *models.Account) ([]Summary, error) {
	if rank.RankOf(actor) == rank.User {
		return nil, core.ErrForbidden
	}

	var all []models.Account
	if err := s.db.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	manageable := make([]uint, 0, len(all))
	for i := range all {
		if all[i].ID == actor.ID || rank.CanManage(actor, &all[i]) {
			manageable = append(manageable, all[i].ID)
		}
	}

	var summaries []Summary
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Select(`accounts.*,
			COUNT(files.id) AS files_count,
			COALESCE(SUM(files.size_bytes), 0) AS total_storage_bytes,
			CASE WHEN accounts.id = ? THEN 0 ELSE 1 END AS is_actor`, actor.ID).
		Joins("LEFT JOIN files ON files.owner_id = accounts.id").
		Where("accounts.id IN ?", manageable).
		Group("accounts.id").
		Order("is_actor, LOWER(accounts.username)").
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate accounts: %w", err)
	}

	return summaries, nil
}

func (s *Service) countSuperusers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("is_superuser = ?", true).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count superusers: %w", err)
	}
	return count, nil
}
