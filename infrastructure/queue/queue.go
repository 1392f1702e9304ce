package queue

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/infrastructure/googledrive"
)

const (
	QueueFolders = "folders"
	QueueImages  = "images"

	JobTypeFolderScan = "folder_scan"
	JobTypeImage      = "image"
	JobTypeImageBatch = "image_batch"

	DefaultMaxAttempts = 3
)

// Job is one unit of queued work. The idempotency key keeps duplicate
// enqueues of the same logical work from producing duplicate jobs while
// the first one is still in flight.
type Job struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Payload        json.RawMessage `json:"payload"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"max_attempts"`
	EnqueuedAt     time.Time       `json:"enqueued_at"`
}

// FolderScanPayload asks the folder worker to drain a folder's pending
// image rows into caption batches.
type FolderScanPayload struct {
	FolderID      uuid.UUID               `json:"folder_id"`
	DriveFolderID string                  `json:"drive_folder_id"`
	Trigger       string                  `json:"trigger"` // "ingest", "sync", "retry", "recovery", "nightly"
	Credential    *googledrive.Credential `json:"credential,omitempty"`
}

// ImagePayload asks the image worker to caption and embed one image.
// Retries and recovery use it for targeted re-runs.
type ImagePayload struct {
	ImageID     uuid.UUID               `json:"image_id"`
	FolderID    uuid.UUID               `json:"folder_id"`
	DriveFileID string                  `json:"drive_file_id"`
	Credential  *googledrive.Credential `json:"credential,omitempty"`
}

// ImageItem identifies one member of a batch job.
type ImageItem struct {
	ImageID      uuid.UUID `json:"image_id"`
	DriveFileID  string    `json:"drive_file_id"`
	VersionToken string    `json:"version_token"`
}

// ImageBatchPayload asks the image worker to caption and embed a small
// group of images in parallel. A quota or auth failure on one member
// resets the poisoned members to pending instead of burning their attempts.
type ImageBatchPayload struct {
	FolderID   uuid.UUID               `json:"folder_id"`
	Items      []ImageItem             `json:"items"`
	Credential *googledrive.Credential `json:"credential,omitempty"`
}

// Counts is the queue depth snapshot exposed on the health endpoint.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Queue is a durable at-least-once job queue with bounded retries.
type Queue interface {
	// Enqueue adds a job; returns false without error when a job with the
	// same idempotency key is already pending or running.
	Enqueue(ctx context.Context, queueName string, job *Job) (bool, error)
	// Dequeue blocks up to the given duration; returns nil when idle.
	Dequeue(ctx context.Context, queueName string, block time.Duration) (*Job, error)
	Complete(ctx context.Context, queueName string, job *Job) error
	// Fail records a failure. Jobs with attempts left go to the delayed
	// set with exponential backoff; exhausted jobs land in the failed
	// list. Returns whether the job will be retried.
	Fail(ctx context.Context, queueName string, job *Job, reason string) (bool, error)
	Heartbeat(ctx context.Context, queueName string, jobID string) error
	// PromoteDelayed moves due delayed jobs back to the wait list.
	PromoteDelayed(ctx context.Context, queueName string, limit int) (int, error)
	// RecoverStalled fails active jobs whose heartbeat is older than the
	// threshold, typically after a worker crash or restart.
	RecoverStalled(ctx context.Context, queueName string, olderThan time.Duration) ([]Job, error)
	Counts(ctx context.Context, queueName string) (Counts, error)
}

// NewFolderScanJob wraps a folder scan payload in a job envelope. The
// idempotency key includes the enqueue time so repeated syncs of the same
// folder are separate jobs, but a double-submit within the same request
// collapses.
func NewFolderScanJob(payload FolderScanPayload, now time.Time) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:             uuid.NewString(),
		Type:           JobTypeFolderScan,
		IdempotencyKey: fmt.Sprintf("folder:%s:%d", payload.DriveFolderID, now.UnixMilli()),
		Payload:        data,
		MaxAttempts:    DefaultMaxAttempts,
		EnqueuedAt:     now,
	}, nil
}

// NewImageJob wraps an image payload. The key is tied to the file version
// so re-scans of an unchanged image collapse, while a changed image gets
// a fresh job.
func NewImageJob(payload ImagePayload, versionToken string, now time.Time) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:             uuid.NewString(),
		Type:           JobTypeImage,
		IdempotencyKey: fmt.Sprintf("image:%s:%s", payload.DriveFileID, versionToken),
		Payload:        data,
		MaxAttempts:    DefaultMaxAttempts,
		EnqueuedAt:     now,
	}, nil
}

// NewImageBatchJob wraps a batch payload. The key is a digest of the
// members and their version tokens, so the recovery sweep can re-enqueue
// the same pending set every tick without creating duplicate jobs.
func NewImageBatchJob(payload ImageBatchPayload, now time.Time) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		members = append(members, item.DriveFileID+":"+item.VersionToken)
	}
	sort.Strings(members)
	sum := sha256.Sum256([]byte(strings.Join(members, "|")))

	return &Job{
		ID:             uuid.NewString(),
		Type:           JobTypeImageBatch,
		IdempotencyKey: fmt.Sprintf("batch:%s:%x", payload.FolderID, sum[:12]),
		Payload:        data,
		MaxAttempts:    DefaultMaxAttempts,
		EnqueuedAt:     now,
	}, nil
}

// Backoff returns the retry delay before the given attempt number
// (1-based): 2s, 4s, 8s, doubling from there.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}
