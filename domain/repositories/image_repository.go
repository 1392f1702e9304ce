package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/dekalouis/v0-drive/domain/models"
)

// FilenameHit is one lexical search result with its match rank:
// 0 exact, 1 prefix, 2 substring.
type FilenameHit struct {
	Image models.Image
	Rank  int
}

// SimilarityHit is one vector search result with cosine similarity in [0,1].
type SimilarityHit struct {
	Image      models.Image
	Similarity float64
}

type ImageRepository interface {
	// CRUD
	Create(ctx context.Context, image *models.Image) error
	CreateBatch(ctx context.Context, images []*models.Image) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Image, error)
	GetByDriveFileID(ctx context.Context, driveFileID string) (*models.Image, error)
	ListByFolder(ctx context.Context, folderID uuid.UUID, offset, limit int) ([]models.Image, int64, error)
	ListDriveFileIDs(ctx context.Context, folderID uuid.UUID) ([]string, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByDriveFileIDs removes rows a sync no longer sees. Rows mid
	// pipeline are left alone; the next sync collects them once settled.
	DeleteByDriveFileIDs(ctx context.Context, folderID uuid.UUID, driveFileIDs []string) (int64, error)

	// Pipeline transitions
	// SetProcessing claims a pending row. Returns false when the row was
	// already claimed or settled by another worker.
	SetProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	// SetCompleted writes caption, tags and the vector in one update. A nil
	// vector records a degraded completion (vector backend unavailable).
	SetCompleted(ctx context.Context, id uuid.UUID, caption, tags string, vec *pgvector.Vector) error
	SetFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	// ResetToPending nulls caption, tags, vector and error together so a
	// re-run starts from a clean row.
	ResetToPending(ctx context.Context, ids []uuid.UUID) (int64, error)
	ResetFailedToPending(ctx context.Context, folderID *uuid.UUID) (int64, error)
	UpdateVersion(ctx context.Context, id uuid.UUID, fileName, versionToken, thumbnailURL string) error

	// Queries for workers and recovery
	ListPending(ctx context.Context, folderID uuid.UUID, limit int) ([]models.Image, error)
	ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]models.Image, error)
	// ListFolderIDsWithStalePending finds folders whose pending images have
	// sat untouched past the cutoff, meaning their queue jobs were lost.
	ListFolderIDsWithStalePending(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error)
	CountByStatus(ctx context.Context, folderID uuid.UUID) (map[models.ImageStatus]int64, error)

	// Search
	SearchByFilename(ctx context.Context, folderID uuid.UUID, query string, limit int) ([]FilenameHit, error)
	SearchBySimilarity(ctx context.Context, folderID uuid.UUID, vec pgvector.Vector, limit int) ([]SimilarityHit, error)
}
