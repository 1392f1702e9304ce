package models

import (
	"time"

	"github.com/google/uuid"
)

type FolderStatus string

const (
	FolderStatusPending    FolderStatus = "pending"
	FolderStatusProcessing FolderStatus = "processing"
	FolderStatusCompleted  FolderStatus = "completed"
	FolderStatusFailed     FolderStatus = "failed"
)

type Folder struct {
	ID            uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	DriveFolderID string    `gorm:"uniqueIndex;not null"` // Google Drive folder ID
	Name          string
	OwnerEmail    string `gorm:"index"` // Empty for public-key ingests

	Status          FolderStatus `gorm:"default:'pending';index"`
	TotalImages     int          `gorm:"default:0"`
	ProcessedImages int          `gorm:"default:0"` // Completed rows only
	ErrorMessage    *string

	LastSyncedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Images []Image `gorm:"foreignKey:FolderID"`
}

func (Folder) TableName() string {
	return "folders"
}
