package models

import (
	"time"
)

// Account is a registered user of the service. The three privilege flags
// are only ever mutated together through rank.ApplyLevel; their
// combination, not any single flag, determines the account's level.
type Account struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;not null;size:50" json:"username"`
	FullName     string `gorm:"not null;size:255" json:"full_name"`
	Email        string `gorm:"not null;size:255" json:"email"`
	PasswordHash string `gorm:"not null;size:255" json:"-"`

	IsAdmin     bool `gorm:"not null;default:false" json:"is_admin"`
	IsStaff     bool `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser bool `gorm:"not null;default:false" json:"is_superuser"`

	// StoragePath is the account's directory under the storage root.
	// Assigned once at registration and never regenerated.
	StoragePath string `gorm:"uniqueIndex;not null;size:255" json:"storage_path"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Files []File `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

// File is a single uploaded object. OriginalName is the user-facing name
// and the only mutable identity field; StoredName and RelativePath are
// fixed at upload time. ShareToken and ShareCreated are set and cleared
// together, never one without the other.
type File struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OwnerID uint `gorm:"not null;index" json:"owner_id"`

	OriginalName string `gorm:"not null;size:255" json:"original_name"`
	StoredName   string `gorm:"uniqueIndex;not null;size:255" json:"stored_name"`
	RelativePath string `gorm:"not null;size:500" json:"relative_path"`

	SizeBytes int64  `gorm:"not null" json:"size_bytes"`
	Comment   string `json:"comment"`

	Uploaded       time.Time  `gorm:"not null" json:"uploaded"`
	LastDownloaded *time.Time `json:"last_downloaded,omitempty"`

	ShareToken   *string    `gorm:"uniqueIndex;size:36" json:"share_token,omitempty"`
	ShareCreated *time.Time `json:"share_created,omitempty"`

	Owner Account `gorm:"foreignKey:OwnerID" json:"-"`
}
