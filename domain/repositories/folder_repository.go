package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/domain/models"
)

type FolderRepository interface {
	// CRUD
	Create(ctx context.Context, folder *models.Folder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Folder, error)
	GetByDriveFolderID(ctx context.Context, driveFolderID string) (*models.Folder, error)
	Update(ctx context.Context, id uuid.UUID, folder *models.Folder) error
	List(ctx context.Context, offset, limit int) ([]models.Folder, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Status transitions
	SetStatus(ctx context.Context, id uuid.UUID, status models.FolderStatus, errorMessage *string) error
	SetTotals(ctx context.Context, id uuid.UUID, totalImages int) error
	TouchLastSynced(ctx context.Context, id uuid.UUID) error

	// RecomputeCounters recounts processed_images from the completed image
	// rows and settles the folder status in the same statement. Failed
	// images do not count as processed.
	RecomputeCounters(ctx context.Context, id uuid.UUID) (*models.Folder, error)
}
