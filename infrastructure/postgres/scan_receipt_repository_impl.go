package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/domain/repositories"
)

type scanReceiptRepositoryImpl struct {
	db *gorm.DB
}

func NewScanReceiptRepository(db *gorm.DB) repositories.ScanReceiptRepository {
	return &scanReceiptRepositoryImpl{db: db}
}

func (r *scanReceiptRepositoryImpl) Create(ctx context.Context, receipt *models.ScanReceipt) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}

func (r *scanReceiptRepositoryImpl) GetLatestByFolder(ctx context.Context, folderID uuid.UUID) (*models.ScanReceipt, error) {
	var receipt models.ScanReceipt
	err := r.db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("created_at DESC").
		First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *scanReceiptRepositoryImpl) ListByFolder(ctx context.Context, folderID uuid.UUID, limit int) ([]models.ScanReceipt, error) {
	var receipts []models.ScanReceipt
	err := r.db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("created_at DESC").
		Limit(limit).
		Find(&receipts).Error
	return receipts, err
}
