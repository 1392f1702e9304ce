package worker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/infrastructure/gemini"
	"github.com/dekalouis/v0-drive/infrastructure/googledrive"
	"github.com/dekalouis/v0-drive/infrastructure/queue"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
	"github.com/dekalouis/v0-drive/pkg/ratelimit"
)

const imageDequeueBlock = 5 * time.Second

// DriveDownloader is the slice of the Drive client the image worker needs.
type DriveDownloader interface {
	DownloadBytes(ctx context.Context, cred *googledrive.Credential, fileID string) ([]byte, error)
}

// Captioner is the slice of the Gemini client the image worker needs.
type Captioner interface {
	Caption(ctx context.Context, imageData []byte, mimeType string) (gemini.ParsedCaption, error)
	EmbedCaption(ctx context.Context, caption string, tags []string) ([]float32, error)
}

// ImageWorker consumes caption work, both single-image jobs and batches
// of five: download, caption, embed, store. The caption limiter is
// acquired once per image, before the pipeline starts, so the whole pool
// shares one quota budget.
type ImageWorker struct {
	drive      DriveDownloader
	captioner  Captioner
	queue      queue.Queue
	imageRepo  repositories.ImageRepository
	folderRepo repositories.FolderRepository
	limiter    *ratelimit.Limiter

	vectorAvailable bool
	concurrency     int

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

func NewImageWorker(
	drive DriveDownloader,
	captioner Captioner,
	q queue.Queue,
	imageRepo repositories.ImageRepository,
	folderRepo repositories.FolderRepository,
	limiter *ratelimit.Limiter,
	vectorAvailable bool,
	concurrency int,
) *ImageWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ImageWorker{
		drive:           drive,
		captioner:       captioner,
		queue:           q,
		imageRepo:       imageRepo,
		folderRepo:      folderRepo,
		limiter:         limiter,
		vectorAvailable: vectorAvailable,
		concurrency:     concurrency,
	}
}

func (w *ImageWorker) Start() {
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
	logger.Worker("start", "image worker started", map[string]interface{}{
		"concurrency":      w.concurrency,
		"vector_available": w.vectorAvailable,
	})
}

func (w *ImageWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	logger.Worker("stop", "image worker stopped", nil)
}

func (w *ImageWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

func (w *ImageWorker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(w.ctx, queue.QueueImages, imageDequeueBlock)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			logger.WorkerError("dequeue", "image dequeue failed", err, nil)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.handleJob(w.ctx, job)
	}
}

func (w *ImageWorker) handleJob(ctx context.Context, job *queue.Job) {
	stopHeartbeat := w.keepAlive(ctx, job.ID)
	outcome := w.dispatch(ctx, job)
	stopHeartbeat()

	switch outcome.kind {
	case outcomeDone:
		w.queue.Complete(ctx, queue.QueueImages, job)
	case outcomeRetry:
		retried, err := w.queue.Fail(ctx, queue.QueueImages, job, outcome.err.Error())
		if err != nil {
			logger.WorkerError("fail", "could not record job failure", err, map[string]interface{}{"job_id": job.ID})
			return
		}
		if !retried {
			// The job is out of attempts; rows left in processing would
			// otherwise be resurrected by recovery and retried forever.
			w.failExhausted(ctx, job, outcome.err)
		}
	case outcomeShortCircuit:
		// The images went back to pending; the job is consumed without
		// counting as an attempt against them.
		w.queue.Complete(ctx, queue.QueueImages, job)
	}
}

func (w *ImageWorker) dispatch(ctx context.Context, job *queue.Job) processOutcome {
	switch job.Type {
	case queue.JobTypeImageBatch:
		var payload queue.ImageBatchPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			logger.WorkerError("process", "corrupt batch payload", err, map[string]interface{}{"job_id": job.ID})
			return processOutcome{kind: outcomeRetry, err: err}
		}
		return w.ProcessBatch(ctx, payload)
	default:
		var payload queue.ImagePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			logger.WorkerError("process", "corrupt image payload", err, map[string]interface{}{"job_id": job.ID})
			return processOutcome{kind: outcomeRetry, err: err}
		}
		return w.ProcessOne(ctx, payload)
	}
}

// failExhausted settles the rows of a job whose attempts ran out. Rows
// still marked processing are failed with the terminal cause so the
// stuck-row sweep does not re-queue them forever.
func (w *ImageWorker) failExhausted(ctx context.Context, job *queue.Job, cause error) {
	var imageIDs []uuid.UUID
	var folderID uuid.UUID

	switch job.Type {
	case queue.JobTypeImageBatch:
		var payload queue.ImageBatchPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return
		}
		folderID = payload.FolderID
		for _, item := range payload.Items {
			imageIDs = append(imageIDs, item.ImageID)
		}
	default:
		var payload queue.ImagePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return
		}
		folderID = payload.FolderID
		imageIDs = append(imageIDs, payload.ImageID)
	}

	failed := 0
	for _, id := range imageIDs {
		image, err := w.imageRepo.GetByID(ctx, id)
		if err != nil || image.Status != models.ImageStatusProcessing {
			continue
		}
		if err := w.imageRepo.SetFailed(ctx, id, "retries exhausted: "+cause.Error()); err == nil {
			failed++
		}
	}
	if failed > 0 {
		w.settleProgress(ctx, folderID)
	}
	logger.WorkerError("exhausted", "job out of attempts, processing rows failed", cause, map[string]interface{}{
		"job_id": job.ID,
		"failed": failed,
	})
}

// keepAlive refreshes the job heartbeat so slow downloads are not
// reclaimed as stalled. Returns a stop function.
func (w *ImageWorker) keepAlive(ctx context.Context, jobID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.queue.Heartbeat(ctx, queue.QueueImages, jobID)
			}
		}
	}()
	return func() { close(done) }
}

type outcomeKind int

const (
	outcomeDone outcomeKind = iota
	outcomeRetry
	outcomeShortCircuit
)

type processOutcome struct {
	kind outcomeKind
	err  error
}

type memberStatus int

const (
	memberDone memberStatus = iota
	memberRetry
	memberPoison
)

// ProcessBatch fans the batch members out in parallel. A terminal
// failure on one member does not touch the others; a quota or auth
// failure would fail every member identically, so the poisoned members
// are reset to pending and the batch completes early. A transient
// failure retries the whole job, which is safe because settled members
// are skipped on replay.
func (w *ImageWorker) ProcessBatch(ctx context.Context, payload queue.ImageBatchPayload) processOutcome {
	type memberResult struct {
		status memberStatus
		err    error
	}
	results := make([]memberResult, len(payload.Items))

	var wg sync.WaitGroup
	for i, item := range payload.Items {
		wg.Add(1)
		go func(i int, imageID uuid.UUID) {
			defer wg.Done()
			status, err := w.processMember(ctx, imageID, payload.Credential)
			results[i] = memberResult{status: status, err: err}
		}(i, item.ImageID)
	}
	wg.Wait()

	var retryErr, poisonErr error
	var poisoned []uuid.UUID
	for i, res := range results {
		switch res.status {
		case memberRetry:
			if retryErr == nil {
				retryErr = res.err
			}
		case memberPoison:
			poisoned = append(poisoned, payload.Items[i].ImageID)
			if poisonErr == nil {
				poisonErr = res.err
			}
		}
	}

	if retryErr != nil {
		return processOutcome{kind: outcomeRetry, err: retryErr}
	}
	if len(poisoned) > 0 {
		w.imageRepo.ResetToPending(ctx, poisoned)
		logger.WorkerError("short_circuit", "batch poisoned, members reset", poisonErr, map[string]interface{}{
			"folder_id": payload.FolderID.String(),
			"reset":     len(poisoned),
		})
		return processOutcome{kind: outcomeShortCircuit}
	}
	return processOutcome{kind: outcomeDone}
}

// ProcessOne runs the caption pipeline for a single-image job.
func (w *ImageWorker) ProcessOne(ctx context.Context, payload queue.ImagePayload) processOutcome {
	status, err := w.processMember(ctx, payload.ImageID, payload.Credential)
	switch status {
	case memberRetry:
		return processOutcome{kind: outcomeRetry, err: err}
	case memberPoison:
		w.imageRepo.ResetToPending(ctx, []uuid.UUID{payload.ImageID})
		logger.WorkerError("short_circuit", "image reset to pending", err, map[string]interface{}{
			"image_id": payload.ImageID.String(),
		})
		return processOutcome{kind: outcomeShortCircuit}
	}
	return processOutcome{kind: outcomeDone}
}

// processMember downloads, captions, embeds and stores one image.
// Already settled rows are skipped so batch replays after a transient
// failure do not redo finished members.
func (w *ImageWorker) processMember(ctx context.Context, imageID uuid.UUID, cred *googledrive.Credential) (memberStatus, error) {
	image, err := w.imageRepo.GetByID(ctx, imageID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return memberDone, nil // removed by a sync while queued
		}
		return memberRetry, err
	}
	if image.Status == models.ImageStatusCompleted || image.Status == models.ImageStatusFailed {
		return memberDone, nil
	}

	// Reject unsupported formats before spending any download or model
	// quota on them.
	if !models.IsSupportedMimeType(image.MimeType) {
		return w.failMember(ctx, image,
			apperrors.Newf(apperrors.KindProcessingFailed, "Unsupported MIME type: %s", image.MimeType))
	}

	claimed, err := w.imageRepo.SetProcessing(ctx, image.ID)
	if err != nil {
		return memberRetry, err
	}
	if !claimed {
		return memberDone, nil // another worker owns the row
	}

	// One quota slot covers the whole pipeline for this image.
	if err := w.limiter.Acquire(ctx); err != nil {
		return memberRetry, err
	}

	data, err := w.drive.DownloadBytes(ctx, cred, image.DriveFileID)
	if err != nil {
		return w.settleMember(ctx, image, err)
	}

	parsed, err := w.captioner.Caption(ctx, data, image.MimeType)
	if err != nil {
		return w.settleMember(ctx, image, err)
	}

	var vec *pgvector.Vector
	if w.vectorAvailable {
		values, err := w.captioner.EmbedCaption(ctx, parsed.Caption, parsed.Tags)
		if err != nil {
			return w.settleMember(ctx, image, err)
		}
		v := pgvector.NewVector(values)
		vec = &v
	}

	tags := strings.Join(parsed.Tags, ",")
	if err := w.imageRepo.SetCompleted(ctx, image.ID, parsed.Caption, tags, vec); err != nil {
		return memberRetry, err
	}

	w.settleProgress(ctx, image.FolderID)
	return memberDone, nil
}

// settleMember classifies a pipeline error into the member's fate.
func (w *ImageWorker) settleMember(ctx context.Context, image *models.Image, err error) (memberStatus, error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindRateLimitExhausted || kind == apperrors.KindPermissionDenied {
		return memberPoison, err
	}
	if apperrors.Retryable(err) {
		return memberRetry, err
	}
	return w.failMember(ctx, image, err)
}

// failMember records a terminal failure. The folder counters are
// recounted but the failed row does not count as processed.
func (w *ImageWorker) failMember(ctx context.Context, image *models.Image, cause error) (memberStatus, error) {
	if dbErr := w.imageRepo.SetFailed(ctx, image.ID, cause.Error()); dbErr != nil {
		return memberRetry, dbErr
	}
	w.settleProgress(ctx, image.FolderID)
	logger.WorkerError("process", "image failed permanently", cause, map[string]interface{}{
		"image_id": image.ID.String(),
	})
	return memberDone, nil
}

// settleProgress recounts the folder from its image rows. Processed is
// the completed count; the folder flips to completed only when every
// image completed.
func (w *ImageWorker) settleProgress(ctx context.Context, folderID uuid.UUID) {
	folder, err := w.folderRepo.RecomputeCounters(ctx, folderID)
	if err != nil {
		logger.WorkerError("progress", "failed to settle folder progress", err, map[string]interface{}{
			"folder_id": folderID.String(),
		})
		return
	}
	if folder.Status == models.FolderStatusCompleted {
		logger.Worker("folder_done", "all images processed", map[string]interface{}{
			"folder_id": folder.ID.String(), "total": folder.TotalImages,
		})
	}
}
