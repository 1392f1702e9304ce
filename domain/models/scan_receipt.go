package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanReceipt records one listing pass over a Drive folder. Receipts let
// the sync endpoint report what the last scan saw without re-listing.
type ScanReceipt struct {
	ID       uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	FolderID uuid.UUID `gorm:"type:uuid;not null;index"`

	ImagesSeen    int
	ImagesAdded   int
	ImagesRemoved int
	ImagesChanged int
	DurationMs    int64
	Trigger       string // "ingest", "sync", "nightly"

	CreatedAt time.Time
}

func (ScanReceipt) TableName() string {
	return "scan_receipts"
}
