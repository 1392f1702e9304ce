package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/infrastructure/googledrive"
	"github.com/dekalouis/v0-drive/infrastructure/queue"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

const (
	folderDequeueBlock = 5 * time.Second
	captionBatchSize   = 5
	pendingDrainLimit  = 10000
)

// FolderWorker consumes folder jobs: it marks the folder processing,
// drains its pending image rows into caption batches and settles the
// counters. Listing Drive and diffing rows happen upstream in the sync
// path; by the time a folder job runs the rows are already in place.
type FolderWorker struct {
	queue      queue.Queue
	folderRepo repositories.FolderRepository
	imageRepo  repositories.ImageRepository

	concurrency int

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

func NewFolderWorker(
	q queue.Queue,
	folderRepo repositories.FolderRepository,
	imageRepo repositories.ImageRepository,
	concurrency int,
) *FolderWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &FolderWorker{
		queue:       q,
		folderRepo:  folderRepo,
		imageRepo:   imageRepo,
		concurrency: concurrency,
	}
}

func (w *FolderWorker) Start() {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.run()
	}
	logger.Worker("start", "folder worker started", map[string]interface{}{
		"concurrency": w.concurrency,
	})
}

func (w *FolderWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	logger.Worker("stop", "folder worker stopped", nil)
}

func (w *FolderWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

func (w *FolderWorker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(w.ctx, queue.QueueFolders, folderDequeueBlock)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			logger.WorkerError("dequeue", "folder dequeue failed", err, nil)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.handleJob(job)
	}
}

func (w *FolderWorker) handleJob(job *queue.Job) {
	var payload queue.FolderScanPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		logger.WorkerError("drain", "corrupt folder payload", err, map[string]interface{}{"job_id": job.ID})
		w.queue.Fail(w.ctx, queue.QueueFolders, job, "corrupt payload")
		return
	}

	err := w.Process(w.ctx, payload)
	if err == nil {
		w.queue.Complete(w.ctx, queue.QueueFolders, job)
		return
	}

	if apperrors.Retryable(err) {
		w.queue.Fail(w.ctx, queue.QueueFolders, job, err.Error())
		return
	}

	// Terminal failures mark the folder and consume the job.
	msg := err.Error()
	w.folderRepo.SetStatus(w.ctx, payload.FolderID, models.FolderStatusFailed, &msg)
	job.Attempts = job.MaxAttempts - 1 // no retries for terminal outcomes
	w.queue.Fail(w.ctx, queue.QueueFolders, job, msg)
}

// Process enqueues the folder's pending images as caption batches.
func (w *FolderWorker) Process(ctx context.Context, payload queue.FolderScanPayload) error {
	folder, err := w.folderRepo.GetByID(ctx, payload.FolderID)
	if err != nil {
		return err
	}

	pending, err := w.imageRepo.ListPending(ctx, folder.ID, pendingDrainLimit)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		if err := w.folderRepo.SetStatus(ctx, folder.ID, models.FolderStatusProcessing, nil); err != nil {
			return err
		}
		if err := w.enqueueBatches(ctx, folder, pending, payload.Credential); err != nil {
			return err
		}
	}

	if _, err := w.folderRepo.RecomputeCounters(ctx, folder.ID); err != nil {
		return err
	}

	logger.Worker("drain", "folder pending images queued", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"pending":   len(pending),
		"trigger":   payload.Trigger,
	})
	return nil
}

// enqueueBatches partitions pending rows into groups of five. Batch keys
// derive from the members, so replays of the same pending set collapse.
func (w *FolderWorker) enqueueBatches(ctx context.Context, folder *models.Folder, pending []models.Image, cred *googledrive.Credential) error {
	now := time.Now()
	for start := 0; start < len(pending); start += captionBatchSize {
		end := start + captionBatchSize
		if end > len(pending) {
			end = len(pending)
		}

		items := make([]queue.ImageItem, 0, end-start)
		for _, img := range pending[start:end] {
			items = append(items, queue.ImageItem{
				ImageID:      img.ID,
				DriveFileID:  img.DriveFileID,
				VersionToken: img.VersionToken,
			})
		}

		job, err := queue.NewImageBatchJob(queue.ImageBatchPayload{
			FolderID:   folder.ID,
			Items:      items,
			Credential: cred,
		}, now)
		if err != nil {
			return err
		}
		if _, err := w.queue.Enqueue(ctx, queue.QueueImages, job); err != nil {
			return err
		}
	}
	return nil
}
