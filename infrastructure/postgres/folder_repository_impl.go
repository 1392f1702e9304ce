package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
)

type folderRepositoryImpl struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) repositories.FolderRepository {
	return &folderRepositoryImpl{db: db}
}

func (r *folderRepositoryImpl) Create(ctx context.Context, folder *models.Folder) error {
	return r.db.WithContext(ctx).Create(folder).Error
}

func (r *folderRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.WithContext(ctx).First(&folder, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.KindNotFound, "folder not found")
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *folderRepositoryImpl) GetByDriveFolderID(ctx context.Context, driveFolderID string) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.WithContext(ctx).First(&folder, "drive_folder_id = ?", driveFolderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.KindNotFound, "folder not found")
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *folderRepositoryImpl) Update(ctx context.Context, id uuid.UUID, folder *models.Folder) error {
	return r.db.WithContext(ctx).Model(&models.Folder{}).Where("id = ?", id).Updates(folder).Error
}

func (r *folderRepositoryImpl) List(ctx context.Context, offset, limit int) ([]models.Folder, int64, error) {
	var folders []models.Folder
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Folder{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&folders).Error
	return folders, total, err
}

func (r *folderRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Folder{}, "id = ?", id).Error
}

func (r *folderRepositoryImpl) SetStatus(ctx context.Context, id uuid.UUID, status models.FolderStatus, errorMessage *string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
	}
	return r.db.WithContext(ctx).Model(&models.Folder{}).Where("id = ?", id).Updates(updates).Error
}

func (r *folderRepositoryImpl) SetTotals(ctx context.Context, id uuid.UUID, totalImages int) error {
	return r.db.WithContext(ctx).Model(&models.Folder{}).Where("id = ?", id).
		Update("total_images", totalImages).Error
}

func (r *folderRepositoryImpl) TouchLastSynced(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Folder{}).Where("id = ?", id).
		Update("last_synced_at", gorm.Expr("NOW()")).Error
}

// RecomputeCounters recounts from the image rows in one statement, so
// concurrent completions cannot drift the counter or double-complete the
// folder. Processed counts completed rows only; a failed image never
// advances progress, and a folder with failures never reads completed.
func (r *folderRepositoryImpl) RecomputeCounters(ctx context.Context, id uuid.UUID) (*models.Folder, error) {
	sql := `
		UPDATE folders f
		SET total_images = c.total,
		    processed_images = c.completed,
		    status = CASE
		        WHEN c.total > 0 AND c.completed = c.total THEN 'completed'
		        WHEN c.unsettled > 0 THEN 'processing'
		        WHEN f.status = 'completed' THEN 'pending'
		        ELSE f.status
		    END,
		    updated_at = NOW()
		FROM (
		    SELECT COUNT(*) AS total,
		           COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		           COUNT(*) FILTER (WHERE status IN ('pending', 'processing')) AS unsettled
		    FROM images WHERE folder_id = ?
		) c
		WHERE f.id = ?
		RETURNING f.*`

	var folder models.Folder
	err := r.db.WithContext(ctx).Raw(sql, id, id).Scan(&folder).Error
	if err != nil {
		return nil, err
	}
	if folder.ID == uuid.Nil {
		return nil, apperrors.New(apperrors.KindNotFound, "folder not found")
	}
	return &folder, nil
}
