package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type ImageStatus string

const (
	ImageStatusPending    ImageStatus = "pending"
	ImageStatusProcessing ImageStatus = "processing"
	ImageStatusCompleted  ImageStatus = "completed"
	ImageStatusFailed     ImageStatus = "failed"
)

// SupportedMimeTypes lists the image formats admitted at listing time.
// Anything else is skipped while listing and rejected at processing time.
var SupportedMimeTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/bmp":     true,
	"image/svg+xml": true,
}

// IsSupportedMimeType reports whether the pipeline can caption this format.
func IsSupportedMimeType(mimeType string) bool {
	return SupportedMimeTypes[mimeType]
}

type Image struct {
	ID       uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	FolderID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Google Drive metadata
	DriveFileID  string `gorm:"uniqueIndex;not null"`
	FileName     string `gorm:"index"`
	MimeType     string
	FileSize     int64
	ThumbnailURL string
	WebViewURL   string
	VersionToken string // Drive md5Checksum or modifiedTime, used for change detection

	// Captioning pipeline
	Status       ImageStatus      `gorm:"default:'pending';index"`
	Caption      *string
	Tags         *string          // Comma-separated, lowercase
	CaptionVec   *pgvector.Vector `gorm:"type:vector(768)"`
	ErrorMessage *string
	ProcessedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Folder Folder `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE"`
}

func (Image) TableName() string {
	return "images"
}
