package dto

import (
	"time"

	"github.com/google/uuid"
)

// IngestFolderRequest starts processing a Drive folder.
type IngestFolderRequest struct {
	FolderURL  string      `json:"folder_url" validate:"required"`
	Credential *Credential `json:"credential,omitempty"`
}

// Credential carries optional OAuth tokens for private folders. When
// absent the service falls back to the configured API key, which only
// reaches public folders.
type Credential struct {
	AccessToken  string    `json:"access_token" validate:"required"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// SyncFolderRequest re-scans an already ingested folder.
type SyncFolderRequest struct {
	Credential *Credential `json:"credential,omitempty"`
}

// RetryRequest re-queues failed images. ImageID targets a single image,
// FolderID a folder's failures; with neither set every failed image is
// retried. ImageID and FolderID are mutually exclusive.
type RetryRequest struct {
	ImageID    *uuid.UUID  `json:"image_id,omitempty"`
	FolderID   *uuid.UUID  `json:"folder_id,omitempty"`
	Credential *Credential `json:"credential,omitempty"`
}

// FolderResponse is the API view of a folder and its progress.
type FolderResponse struct {
	ID              uuid.UUID  `json:"id"`
	DriveFolderID   string     `json:"drive_folder_id"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	TotalImages     int        `json:"total_images"`
	ProcessedImages int        `json:"processed_images"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// FolderListResponse is the paginated folder list.
type FolderListResponse struct {
	Folders []FolderResponse `json:"folders"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

// FolderDetailResponse adds the image page, per-status counts and the
// latest scan.
type FolderDetailResponse struct {
	FolderResponse
	Images      []ImageResponse      `json:"images"`
	ImageTotal  int64                `json:"image_total"`
	ImageCounts map[string]int64     `json:"image_counts"`
	LastScan    *ScanReceiptResponse `json:"last_scan,omitempty"`
}

// ImageResponse is the API view of one image and its pipeline state.
type ImageResponse struct {
	ID           uuid.UUID  `json:"id"`
	DriveFileID  string     `json:"drive_file_id"`
	FileName     string     `json:"file_name"`
	MimeType     string     `json:"mime_type"`
	Status       string     `json:"status"`
	Caption      string     `json:"caption,omitempty"`
	Tags         string     `json:"tags,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url"`
	WebViewURL   string     `json:"web_view_url"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// ScanReceiptResponse reports what one listing pass saw.
type ScanReceiptResponse struct {
	ImagesSeen    int       `json:"images_seen"`
	ImagesAdded   int       `json:"images_added"`
	ImagesRemoved int       `json:"images_removed"`
	ImagesChanged int       `json:"images_changed"`
	DurationMs    int64     `json:"duration_ms"`
	Trigger       string    `json:"trigger"`
	CreatedAt     time.Time `json:"created_at"`
}

// RetryResponse reports how many images were re-queued.
type RetryResponse struct {
	Requeued int64 `json:"requeued"`
}

// SyncResponse reports what a synchronous re-scan changed.
type SyncResponse struct {
	FolderID        uuid.UUID `json:"folder_id"`
	Status          string    `json:"status"`
	ImagesSeen      int       `json:"images_seen"`
	ImagesAdded     int       `json:"images_added"`
	ImagesRemoved   int       `json:"images_removed"`
	ImagesChanged   int       `json:"images_changed"`
	TotalImages     int       `json:"total_images"`
	ProcessedImages int       `json:"processed_images"`
}
