package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/domain/models"
)

type ScanReceiptRepository interface {
	Create(ctx context.Context, receipt *models.ScanReceipt) error
	GetLatestByFolder(ctx context.Context, folderID uuid.UUID) (*models.ScanReceipt, error)
	ListByFolder(ctx context.Context, folderID uuid.UUID, limit int) ([]models.ScanReceipt, error)
}
