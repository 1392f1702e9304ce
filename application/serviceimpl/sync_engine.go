package serviceimpl

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/infrastructure/googledrive"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

type syncStats struct {
	seen    int
	added   int
	removed int
	changed int
}

// syncFolder re-lists the Drive folder and reconciles the image rows:
// unknown files become pending rows, vanished files are deleted, files
// with a new version token are reset for re-captioning. Counters and the
// folder status settle from the row counts; a folder job is queued when
// pending work remains.
func (s *folderServiceImpl) syncFolder(ctx context.Context, folder *models.Folder, cred *googledrive.Credential, trigger string) (*syncStats, error) {
	started := time.Now()

	listed, err := s.drive.ListImagesRecursive(ctx, cred, folder.DriveFolderID)
	if err != nil {
		return nil, err
	}
	listed = dedupeListing(listed)

	// An empty listing is a valid diff here: every stored row is removed
	// and the folder converges to zero images. Only ingest rejects empty
	// folders.
	if s.maxImagesPerFolder > 0 && len(listed) > s.maxImagesPerFolder {
		return nil, apperrors.Newf(apperrors.KindFolderCapExceeded,
			"the folder holds %d images, the limit is %d", len(listed), s.maxImagesPerFolder)
	}

	stats, err := s.reconcile(ctx, folder.ID, listed)
	if err != nil {
		return nil, err
	}
	stats.seen = len(listed)

	updated, err := s.folderRepo.RecomputeCounters(ctx, folder.ID)
	if err != nil {
		return nil, err
	}
	if err := s.folderRepo.TouchLastSynced(ctx, folder.ID); err != nil {
		return nil, err
	}

	receipt := &models.ScanReceipt{
		FolderID:      folder.ID,
		ImagesSeen:    stats.seen,
		ImagesAdded:   stats.added,
		ImagesRemoved: stats.removed,
		ImagesChanged: stats.changed,
		DurationMs:    time.Since(started).Milliseconds(),
		Trigger:       trigger,
	}
	if err := s.receiptRepo.Create(ctx, receipt); err != nil {
		logger.SyncError("receipt", "failed to store scan receipt", err, map[string]interface{}{
			"folder_id": folder.ID.String(),
		})
	}

	if updated.ProcessedImages < updated.TotalImages {
		if err := s.enqueueFolderJob(ctx, folder, cred, trigger); err != nil {
			return nil, err
		}
	}

	logger.Sync("scan", "folder sync finished", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"seen":      stats.seen,
		"added":     stats.added,
		"removed":   stats.removed,
		"changed":   stats.changed,
		"trigger":   trigger,
	})
	return stats, nil
}

// reconcile applies the listing to the stored rows and reports the diff.
func (s *folderServiceImpl) reconcile(ctx context.Context, folderID uuid.UUID, listed []googledrive.DriveImage) (*syncStats, error) {
	stats := &syncStats{}

	existingIDs, err := s.imageRepo.ListDriveFileIDs(ctx, folderID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	listedSet := make(map[string]bool, len(listed))

	for _, item := range listed {
		listedSet[item.ID] = true

		if !existing[item.ID] {
			img := models.Image{
				FolderID:     folderID,
				DriveFileID:  item.ID,
				FileName:     item.Name,
				MimeType:     item.MimeType,
				FileSize:     item.Size,
				ThumbnailURL: item.ThumbnailLink,
				WebViewURL:   item.WebViewLink,
				VersionToken: item.VersionToken,
				Status:       models.ImageStatusPending,
			}
			if err := s.imageRepo.Create(ctx, &img); err != nil {
				return nil, err
			}
			stats.added++
			continue
		}

		current, err := s.imageRepo.GetByDriveFileID(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if current.VersionToken != item.VersionToken {
			if err := s.imageRepo.UpdateVersion(ctx, current.ID, item.Name, item.VersionToken, item.ThumbnailLink); err != nil {
				return nil, err
			}
			if _, err := s.imageRepo.ResetToPending(ctx, []uuid.UUID{current.ID}); err != nil {
				return nil, err
			}
			stats.changed++
		}
	}

	var gone []string
	for id := range existing {
		if !listedSet[id] {
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		removed, err := s.imageRepo.DeleteByDriveFileIDs(ctx, folderID, gone)
		if err != nil {
			return nil, err
		}
		stats.removed = int(removed)
	}

	return stats, nil
}

// dedupeListing drops repeat sightings of a file, which happen when it is
// reachable through more than one subfolder.
func dedupeListing(listed []googledrive.DriveImage) []googledrive.DriveImage {
	seen := make(map[string]bool, len(listed))
	out := listed[:0]
	for _, item := range listed {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}
