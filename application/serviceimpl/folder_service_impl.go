package serviceimpl

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/domain/dto"
	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/domain/services"
	"github.com/dekalouis/v0-drive/infrastructure/googledrive"
	"github.com/dekalouis/v0-drive/infrastructure/queue"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

const retryPageSize = 500

// DriveBrowser is the slice of the Drive client the folder service needs.
type DriveBrowser interface {
	GetFolder(ctx context.Context, cred *googledrive.Credential, folderID string) (string, error)
	ListImagesRecursive(ctx context.Context, cred *googledrive.Credential, folderID string) ([]googledrive.DriveImage, error)
}

type folderServiceImpl struct {
	drive       DriveBrowser
	queue       queue.Queue
	folderRepo  repositories.FolderRepository
	imageRepo   repositories.ImageRepository
	receiptRepo repositories.ScanReceiptRepository

	maxImagesPerFolder int
}

func NewFolderService(
	drive DriveBrowser,
	q queue.Queue,
	folderRepo repositories.FolderRepository,
	imageRepo repositories.ImageRepository,
	receiptRepo repositories.ScanReceiptRepository,
	maxImagesPerFolder int,
) services.FolderService {
	return &folderServiceImpl{
		drive:              drive,
		queue:              q,
		folderRepo:         folderRepo,
		imageRepo:          imageRepo,
		receiptRepo:        receiptRepo,
		maxImagesPerFolder: maxImagesPerFolder,
	}
}

// Ingest lists the folder up front so cap and emptiness violations fail
// the request before any row exists. A known folder is re-synced instead.
func (s *folderServiceImpl) Ingest(ctx context.Context, req *dto.IngestFolderRequest) (*dto.FolderResponse, error) {
	driveFolderID, err := googledrive.ParseFolderURL(req.FolderURL)
	if err != nil {
		return nil, err
	}

	cred := toCredential(req.Credential)
	name, err := s.drive.GetFolder(ctx, cred, driveFolderID)
	if err != nil {
		return nil, err
	}

	folder, err := s.folderRepo.GetByDriveFolderID(ctx, driveFolderID)
	if err != nil && !apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, err
	}

	if folder != nil {
		if _, err := s.syncFolder(ctx, folder, cred, "ingest"); err != nil {
			return nil, err
		}
		updated, err := s.folderRepo.GetByID(ctx, folder.ID)
		if err != nil {
			return nil, err
		}
		return dto.FolderToResponse(updated), nil
	}

	started := time.Now()
	listed, err := s.drive.ListImagesRecursive(ctx, cred, driveFolderID)
	if err != nil {
		return nil, err
	}
	listed = dedupeListing(listed)

	if len(listed) == 0 {
		return nil, apperrors.New(apperrors.KindEmptyFolder, "the folder contains no supported images")
	}
	if s.maxImagesPerFolder > 0 && len(listed) > s.maxImagesPerFolder {
		return nil, apperrors.Newf(apperrors.KindFolderCapExceeded,
			"the folder holds %d images, the limit is %d", len(listed), s.maxImagesPerFolder)
	}

	folder = &models.Folder{
		DriveFolderID: driveFolderID,
		Name:          name,
		Status:        models.FolderStatusPending,
		TotalImages:   len(listed),
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	rows := make([]*models.Image, 0, len(listed))
	for _, item := range listed {
		rows = append(rows, &models.Image{
			FolderID:     folder.ID,
			DriveFileID:  item.ID,
			FileName:     item.Name,
			MimeType:     item.MimeType,
			FileSize:     item.Size,
			ThumbnailURL: item.ThumbnailLink,
			WebViewURL:   item.WebViewLink,
			VersionToken: item.VersionToken,
			Status:       models.ImageStatusPending,
		})
	}
	if err := s.imageRepo.CreateBatch(ctx, rows); err != nil {
		return nil, err
	}

	receipt := &models.ScanReceipt{
		FolderID:    folder.ID,
		ImagesSeen:  len(listed),
		ImagesAdded: len(listed),
		DurationMs:  time.Since(started).Milliseconds(),
		Trigger:     "ingest",
	}
	if err := s.receiptRepo.Create(ctx, receipt); err != nil {
		logger.SyncError("receipt", "failed to store scan receipt", err, map[string]interface{}{
			"folder_id": folder.ID.String(),
		})
	}

	if err := s.enqueueFolderJob(ctx, folder, cred, "ingest"); err != nil {
		return nil, err
	}

	logger.API("ingest", "folder registered", map[string]interface{}{
		"folder_id":       folder.ID.String(),
		"drive_folder_id": driveFolderID,
		"images":          len(listed),
	})
	return dto.FolderToResponse(folder), nil
}

func (s *folderServiceImpl) Sync(ctx context.Context, folderID uuid.UUID, req *dto.SyncFolderRequest) (*dto.SyncResponse, error) {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var cred *googledrive.Credential
	if req != nil {
		cred = toCredential(req.Credential)
	}

	stats, err := s.syncFolder(ctx, folder, cred, "sync")
	if err != nil {
		return nil, err
	}

	updated, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	return &dto.SyncResponse{
		FolderID:        updated.ID,
		Status:          string(updated.Status),
		ImagesSeen:      stats.seen,
		ImagesAdded:     stats.added,
		ImagesRemoved:   stats.removed,
		ImagesChanged:   stats.changed,
		TotalImages:     updated.TotalImages,
		ProcessedImages: updated.ProcessedImages,
	}, nil
}

func (s *folderServiceImpl) Get(ctx context.Context, folderID uuid.UUID, offset, limit int) (*dto.FolderDetailResponse, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}

	images, imageTotal, err := s.imageRepo.ListByFolder(ctx, folderID, offset, limit)
	if err != nil {
		return nil, err
	}
	imageViews := make([]dto.ImageResponse, 0, len(images))
	for i := range images {
		imageViews = append(imageViews, dto.ImageToResponse(&images[i]))
	}

	counts, err := s.imageRepo.CountByStatus(ctx, folderID)
	if err != nil {
		return nil, err
	}
	countsByName := make(map[string]int64, len(counts))
	for status, n := range counts {
		countsByName[string(status)] = n
	}

	detail := &dto.FolderDetailResponse{
		FolderResponse: *dto.FolderToResponse(folder),
		Images:         imageViews,
		ImageTotal:     imageTotal,
		ImageCounts:    countsByName,
	}

	if receipt, err := s.receiptRepo.GetLatestByFolder(ctx, folderID); err == nil && receipt != nil {
		detail.LastScan = dto.ScanReceiptToResponse(receipt)
	}
	return detail, nil
}

func (s *folderServiceImpl) List(ctx context.Context, page, limit int) (*dto.FolderListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	folders, total, err := s.folderRepo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return dto.FoldersToListResponse(folders, total, page, limit), nil
}

// Retry re-queues failed work. A single image, one folder's failures, or
// every failed image when no scope is given.
func (s *folderServiceImpl) Retry(ctx context.Context, req *dto.RetryRequest) (*dto.RetryResponse, error) {
	var cred *googledrive.Credential
	if req != nil {
		cred = toCredential(req.Credential)
	}

	if req != nil && req.ImageID != nil {
		if req.FolderID != nil {
			return nil, apperrors.New(apperrors.KindInvalidInput, "image_id and folder_id are mutually exclusive")
		}
		return s.retryImage(ctx, *req.ImageID, cred)
	}

	var folderID *uuid.UUID
	if req != nil {
		folderID = req.FolderID
	}

	requeued, err := s.imageRepo.ResetFailedToPending(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if requeued == 0 {
		return &dto.RetryResponse{Requeued: 0}, nil
	}

	if folderID != nil {
		if err := s.requeueFolder(ctx, *folderID, cred); err != nil {
			return nil, err
		}
	} else {
		if err := s.requeueAllFolders(ctx, cred); err != nil {
			return nil, err
		}
	}

	logger.API("retry", "failed images requeued", map[string]interface{}{"count": requeued})
	return &dto.RetryResponse{Requeued: requeued}, nil
}

func (s *folderServiceImpl) retryImage(ctx context.Context, imageID uuid.UUID, cred *googledrive.Credential) (*dto.RetryResponse, error) {
	image, err := s.imageRepo.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}

	if _, err := s.imageRepo.ResetToPending(ctx, []uuid.UUID{image.ID}); err != nil {
		return nil, err
	}

	job, err := queue.NewImageJob(queue.ImagePayload{
		ImageID:     image.ID,
		FolderID:    image.FolderID,
		DriveFileID: image.DriveFileID,
		Credential:  cred,
	}, image.VersionToken, time.Now())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindQueueUnavailable, "failed to build retry job", err)
	}
	if _, err := s.queue.Enqueue(ctx, queue.QueueImages, job); err != nil {
		return nil, err
	}

	if _, err := s.folderRepo.RecomputeCounters(ctx, image.FolderID); err != nil {
		return nil, err
	}

	logger.API("retry", "image requeued", map[string]interface{}{"image_id": image.ID.String()})
	return &dto.RetryResponse{Requeued: 1}, nil
}

func (s *folderServiceImpl) requeueFolder(ctx context.Context, folderID uuid.UUID, cred *googledrive.Credential) error {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return err
	}
	if err := s.enqueueFolderJob(ctx, folder, cred, "retry"); err != nil {
		return err
	}
	_, err = s.folderRepo.RecomputeCounters(ctx, folderID)
	return err
}

func (s *folderServiceImpl) requeueAllFolders(ctx context.Context, cred *googledrive.Credential) error {
	offset := 0
	for {
		folders, total, err := s.folderRepo.List(ctx, offset, retryPageSize)
		if err != nil {
			return err
		}
		for i := range folders {
			pending, err := s.imageRepo.ListPending(ctx, folders[i].ID, 1)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				continue
			}
			if err := s.requeueFolder(ctx, folders[i].ID, cred); err != nil {
				return err
			}
		}
		offset += retryPageSize
		if int64(offset) >= total {
			return nil
		}
	}
}

func (s *folderServiceImpl) enqueueFolderJob(ctx context.Context, folder *models.Folder, cred *googledrive.Credential, trigger string) error {
	job, err := queue.NewFolderScanJob(queue.FolderScanPayload{
		FolderID:      folder.ID,
		DriveFolderID: folder.DriveFolderID,
		Trigger:       trigger,
		Credential:    cred,
	}, time.Now())
	if err != nil {
		return apperrors.Wrap(apperrors.KindQueueUnavailable, "failed to build folder job", err)
	}

	enqueued, err := s.queue.Enqueue(ctx, queue.QueueFolders, job)
	if err != nil {
		return err
	}
	if !enqueued {
		logger.API("scan", "folder job already queued", map[string]interface{}{
			"folder_id": folder.ID.String(),
		})
	}
	return nil
}

func toCredential(c *dto.Credential) *googledrive.Credential {
	if c == nil {
		return nil
	}
	return &googledrive.Credential{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}
