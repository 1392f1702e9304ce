package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/domain/services"
	"github.com/dekalouis/v0-drive/infrastructure/queue"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

const (
	recoveryInterval     = 60 * time.Second
	stalledThreshold     = 5 * time.Minute
	stuckRowThreshold    = 5 * time.Minute
	stalePendingAge      = 10 * time.Minute
	promoteBatchLimit    = 100
	stuckRowBatchLimit   = 200
	stalePendingFolders  = 50
	nightlySweepDeadline = 30 * time.Minute
)

// RecoverySupervisor keeps the pipeline honest after crashes and
// restarts: it promotes delayed retries, reclaims jobs whose worker died
// mid-flight, resets rows stuck in processing, re-queues folders whose
// pending images lost their jobs, and runs a nightly sweep that re-syncs
// every folder against Drive.
type RecoverySupervisor struct {
	queue      queue.Queue
	folderRepo repositories.FolderRepository
	imageRepo  repositories.ImageRepository
	folders    services.FolderService

	scheduler *gocron.Scheduler
}

func NewRecoverySupervisor(
	q queue.Queue,
	folderRepo repositories.FolderRepository,
	imageRepo repositories.ImageRepository,
	folders services.FolderService,
) *RecoverySupervisor {
	return &RecoverySupervisor{
		queue:      q,
		folderRepo: folderRepo,
		imageRepo:  imageRepo,
		folders:    folders,
		scheduler:  gocron.NewScheduler(time.UTC),
	}
}

func (s *RecoverySupervisor) Start() error {
	if _, err := s.scheduler.Every(recoveryInterval).Do(s.tick); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(1).Day().At("03:00").Do(s.nightlySweep); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Recovery("start", "recovery supervisor started", map[string]interface{}{
		"interval": recoveryInterval.String(),
	})
	return nil
}

func (s *RecoverySupervisor) Stop() {
	s.scheduler.Stop()
	logger.Recovery("stop", "recovery supervisor stopped", nil)
}

func (s *RecoverySupervisor) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), recoveryInterval)
	defer cancel()

	for _, name := range []string{queue.QueueFolders, queue.QueueImages} {
		if promoted, err := s.queue.PromoteDelayed(ctx, name, promoteBatchLimit); err != nil {
			logger.RecoveryError("promote", "failed to promote delayed jobs", err, map[string]interface{}{"queue": name})
		} else if promoted > 0 {
			logger.Recovery("promote", "promoted delayed jobs", map[string]interface{}{
				"queue": name, "count": promoted,
			})
		}

		recovered, err := s.queue.RecoverStalled(ctx, name, stalledThreshold)
		if err != nil {
			logger.RecoveryError("stalled", "failed to recover stalled jobs", err, map[string]interface{}{"queue": name})
			continue
		}
		if len(recovered) > 0 {
			logger.Recovery("stalled", "reclaimed stalled jobs", map[string]interface{}{
				"queue": name, "count": len(recovered),
			})
		}
	}

	s.resetStuckRows(ctx)
	s.requeueStalePending(ctx)
}

// resetStuckRows handles rows that say processing while no worker holds
// them, which happens when a crash lands between the queue and the
// database updates. They go back to pending and get fresh jobs.
func (s *RecoverySupervisor) resetStuckRows(ctx context.Context) {
	cutoff := time.Now().Add(-stuckRowThreshold)
	stuck, err := s.imageRepo.ListStuckProcessing(ctx, cutoff, stuckRowBatchLimit)
	if err != nil {
		logger.RecoveryError("stuck_rows", "failed to list stuck images", err, nil)
		return
	}
	if len(stuck) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(stuck))
	for _, img := range stuck {
		ids = append(ids, img.ID)
	}
	if _, err := s.imageRepo.ResetToPending(ctx, ids); err != nil {
		logger.RecoveryError("stuck_rows", "failed to reset stuck images", err, nil)
		return
	}

	now := time.Now()
	requeued := 0
	for _, img := range stuck {
		job, err := queue.NewImageJob(queue.ImagePayload{
			ImageID:     img.ID,
			FolderID:    img.FolderID,
			DriveFileID: img.DriveFileID,
		}, img.VersionToken, now)
		if err != nil {
			continue
		}
		if ok, err := s.queue.Enqueue(ctx, queue.QueueImages, job); err == nil && ok {
			requeued++
		}
	}

	logger.Recovery("stuck_rows", "reset stuck images", map[string]interface{}{
		"reset": len(ids), "requeued": requeued,
	})
}

// requeueStalePending re-drains folders whose pending images have waited
// past the stale age, meaning their batch jobs were lost. Batch keys are
// member-derived, so repeated enqueues of the same set collapse.
func (s *RecoverySupervisor) requeueStalePending(ctx context.Context) {
	cutoff := time.Now().Add(-stalePendingAge)
	folderIDs, err := s.imageRepo.ListFolderIDsWithStalePending(ctx, cutoff, stalePendingFolders)
	if err != nil {
		logger.RecoveryError("stale_pending", "failed to list folders with stale pending images", err, nil)
		return
	}

	now := time.Now()
	for _, id := range folderIDs {
		folder, err := s.folderRepo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		job, err := queue.NewFolderScanJob(queue.FolderScanPayload{
			FolderID:      folder.ID,
			DriveFolderID: folder.DriveFolderID,
			Trigger:       "recovery",
		}, now)
		if err != nil {
			continue
		}
		if ok, err := s.queue.Enqueue(ctx, queue.QueueFolders, job); err == nil && ok {
			logger.Recovery("stale_pending", "re-queued folder with abandoned pending images", map[string]interface{}{
				"folder_id": folder.ID.String(),
			})
		}
	}
}

// nightlySweep re-syncs every folder against Drive so removals and
// renames eventually converge even without manual syncs. It runs without
// credentials; private folders are skipped until someone syncs them with
// a token.
func (s *RecoverySupervisor) nightlySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), nightlySweepDeadline)
	defer cancel()

	const pageSize = 100
	offset := 0
	swept := 0
	skipped := 0

	for {
		folders, total, err := s.folderRepo.List(ctx, offset, pageSize)
		if err != nil {
			logger.RecoveryError("nightly", "failed to list folders for sweep", err, nil)
			return
		}
		for i := range folders {
			f := &folders[i]
			if _, err := s.folders.Sync(ctx, f.ID, nil); err != nil {
				if apperrors.IsKind(err, apperrors.KindPermissionDenied) {
					skipped++
					continue
				}
				logger.RecoveryError("nightly", "sweep sync failed", err, map[string]interface{}{
					"folder_id": f.ID.String(),
				})
				continue
			}
			swept++
		}
		offset += pageSize
		if int64(offset) >= total {
			break
		}
	}

	logger.Recovery("nightly", "nightly sweep finished", map[string]interface{}{
		"synced": swept, "skipped": skipped,
	})
}
