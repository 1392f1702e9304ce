package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/domain/dto"
)

// FolderService owns the ingest, sync and retry flows.
type FolderService interface {
	// Ingest validates the folder URL, lists the Drive folder and
	// registers it with its images. Cap and empty-folder violations fail
	// before any row is created. Re-ingesting a known folder runs a sync.
	Ingest(ctx context.Context, req *dto.IngestFolderRequest) (*dto.FolderResponse, error)

	// Sync re-lists the Drive folder and diffs against the stored rows:
	// new images are inserted, deleted ones removed, changed ones reset.
	// The diff runs synchronously; captioning work is queued.
	Sync(ctx context.Context, folderID uuid.UUID, req *dto.SyncFolderRequest) (*dto.SyncResponse, error)

	// Get returns the folder snapshot with a page of its images, cleaned
	// captions included.
	Get(ctx context.Context, folderID uuid.UUID, offset, limit int) (*dto.FolderDetailResponse, error)
	List(ctx context.Context, page, limit int) (*dto.FolderListResponse, error)

	// Retry resets failed images to pending and re-enqueues them.
	Retry(ctx context.Context, req *dto.RetryRequest) (*dto.RetryResponse, error)
}
