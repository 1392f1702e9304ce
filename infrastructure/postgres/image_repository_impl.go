package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
)

type imageRepositoryImpl struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) repositories.ImageRepository {
	return &imageRepositoryImpl{db: db}
}

func (r *imageRepositoryImpl) Create(ctx context.Context, image *models.Image) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *imageRepositoryImpl) CreateBatch(ctx context.Context, images []*models.Image) error {
	if len(images) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(images, 100).Error
}

func (r *imageRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	var image models.Image
	err := r.db.WithContext(ctx).First(&image, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.KindNotFound, "image not found")
	}
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *imageRepositoryImpl) GetByDriveFileID(ctx context.Context, driveFileID string) (*models.Image, error) {
	var image models.Image
	err := r.db.WithContext(ctx).First(&image, "drive_file_id = ?", driveFileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.KindNotFound, "image not found")
	}
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *imageRepositoryImpl) ListByFolder(ctx context.Context, folderID uuid.UUID, offset, limit int) ([]models.Image, int64, error) {
	var images []models.Image
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Image{}).Where("folder_id = ?", folderID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("file_name ASC").Offset(offset).Limit(limit).Find(&images).Error
	return images, total, err
}

func (r *imageRepositoryImpl) ListDriveFileIDs(ctx context.Context, folderID uuid.UUID) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Image{}).
		Where("folder_id = ?", folderID).
		Pluck("drive_file_id", &ids).Error
	return ids, err
}

func (r *imageRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Image{}, "id = ?", id).Error
}

func (r *imageRepositoryImpl) DeleteByDriveFileIDs(ctx context.Context, folderID uuid.UUID, driveFileIDs []string) (int64, error) {
	if len(driveFileIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("folder_id = ? AND drive_file_id IN ? AND status <> ?",
			folderID, driveFileIDs, models.ImageStatusProcessing).
		Delete(&models.Image{})
	return result.RowsAffected, result.Error
}

// SetProcessing guards on pending so two workers racing for the same row
// cannot both run the pipeline for it.
func (r *imageRepositoryImpl) SetProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Image{}).
		Where("id = ? AND status = ?", id, models.ImageStatusPending).
		Update("status", models.ImageStatusProcessing)
	return result.RowsAffected > 0, result.Error
}

func (r *imageRepositoryImpl) SetCompleted(ctx context.Context, id uuid.UUID, caption, tags string, vec *pgvector.Vector) error {
	updates := map[string]interface{}{
		"status":        models.ImageStatusCompleted,
		"caption":       caption,
		"tags":          tags,
		"error_message": nil,
		"processed_at":  time.Now(),
	}
	if vec != nil {
		updates["caption_vec"] = *vec
	}
	return r.db.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(updates).Error
}

func (r *imageRepositoryImpl) SetFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	updates := map[string]interface{}{
		"status":        models.ImageStatusFailed,
		"error_message": errorMessage,
		"processed_at":  time.Now(),
	}
	return r.db.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(updates).Error
}

// ResetToPending clears all pipeline outputs together so a retried image
// cannot carry a stale caption or vector into its next run.
func (r *imageRepositoryImpl) ResetToPending(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]interface{}{
		"status":        models.ImageStatusPending,
		"caption":       nil,
		"tags":          nil,
		"caption_vec":   nil,
		"error_message": nil,
		"processed_at":  nil,
	}
	result := r.db.WithContext(ctx).Model(&models.Image{}).Where("id IN ?", ids).Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *imageRepositoryImpl) ResetFailedToPending(ctx context.Context, folderID *uuid.UUID) (int64, error) {
	updates := map[string]interface{}{
		"status":        models.ImageStatusPending,
		"caption":       nil,
		"tags":          nil,
		"caption_vec":   nil,
		"error_message": nil,
		"processed_at":  nil,
	}
	q := r.db.WithContext(ctx).Model(&models.Image{}).Where("status = ?", models.ImageStatusFailed)
	if folderID != nil {
		q = q.Where("folder_id = ?", *folderID)
	}
	result := q.Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *imageRepositoryImpl) UpdateVersion(ctx context.Context, id uuid.UUID, fileName, versionToken, thumbnailURL string) error {
	updates := map[string]interface{}{
		"file_name":     fileName,
		"version_token": versionToken,
		"thumbnail_url": thumbnailURL,
	}
	return r.db.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(updates).Error
}

func (r *imageRepositoryImpl) ListPending(ctx context.Context, folderID uuid.UUID, limit int) ([]models.Image, error) {
	var images []models.Image
	err := r.db.WithContext(ctx).
		Where("folder_id = ? AND status = ?", folderID, models.ImageStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&images).Error
	return images, err
}

func (r *imageRepositoryImpl) ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]models.Image, error) {
	var images []models.Image
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.ImageStatusProcessing, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&images).Error
	return images, err
}

func (r *imageRepositoryImpl) ListFolderIDsWithStalePending(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Image{}).
		Distinct("folder_id").
		Where("status = ? AND updated_at < ?", models.ImageStatusPending, olderThan).
		Limit(limit).
		Pluck("folder_id", &ids).Error
	return ids, err
}

func (r *imageRepositoryImpl) CountByStatus(ctx context.Context, folderID uuid.UUID) (map[models.ImageStatus]int64, error) {
	type row struct {
		Status models.ImageStatus
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Image{}).
		Select("status, COUNT(*) AS n").
		Where("folder_id = ?", folderID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.ImageStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// SearchByFilename ranks exact matches first, then prefix, then substring.
// Ties break on file name so results are stable across calls.
func (r *imageRepositoryImpl) SearchByFilename(ctx context.Context, folderID uuid.UUID, query string, limit int) ([]repositories.FilenameHit, error) {
	sql := `
		SELECT *, CASE
		    WHEN LOWER(file_name) = LOWER(?) THEN 0
		    WHEN LOWER(file_name) LIKE LOWER(?) THEN 1
		    ELSE 2
		END AS rank
		FROM images
		WHERE folder_id = ? AND file_name ILIKE ?
		ORDER BY rank ASC, file_name ASC
		LIMIT ?`

	prefix := escapeLike(query) + "%"
	substr := "%" + escapeLike(query) + "%"

	type hitRow struct {
		models.Image
		Rank int
	}
	var rows []hitRow
	err := r.db.WithContext(ctx).Raw(sql, query, prefix, folderID, substr, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	hits := make([]repositories.FilenameHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, repositories.FilenameHit{Image: row.Image, Rank: row.Rank})
	}
	return hits, nil
}

// SearchBySimilarity orders by cosine distance; similarity = 1 - distance.
// Rows without a vector (degraded completions) are excluded.
func (r *imageRepositoryImpl) SearchBySimilarity(ctx context.Context, folderID uuid.UUID, vec pgvector.Vector, limit int) ([]repositories.SimilarityHit, error) {
	sql := `
		SELECT *, 1 - (caption_vec <=> ?::vector) AS similarity
		FROM images
		WHERE folder_id = ? AND status = 'completed' AND caption_vec IS NOT NULL
		ORDER BY caption_vec <=> ?::vector ASC
		LIMIT ?`

	lit := vec.String()

	type hitRow struct {
		models.Image
		Similarity float64
	}
	var rows []hitRow
	err := r.db.WithContext(ctx).Raw(sql, lit, folderID, lit, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	hits := make([]repositories.SimilarityHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, repositories.SimilarityHit{Image: row.Image, Similarity: row.Similarity})
	}
	return hits, nil
}

// escapeLike neutralizes LIKE metacharacters in user input.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
