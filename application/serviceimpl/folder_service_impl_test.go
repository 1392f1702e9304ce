package serviceimpl

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekalouis/v0-drive/domain/dto"
	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/infrastructure/googledrive"
	"github.com/dekalouis/v0-drive/infrastructure/queue"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
)

// fakeBrowser serves a canned folder name and listing.
type fakeBrowser struct {
	name     string
	nameErr  error
	images   []googledrive.DriveImage
	listErr  error
	lastCred *googledrive.Credential
}

func (f *fakeBrowser) GetFolder(ctx context.Context, cred *googledrive.Credential, folderID string) (string, error) {
	f.lastCred = cred
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return f.name, nil
}

func (f *fakeBrowser) ListImagesRecursive(ctx context.Context, cred *googledrive.Credential, folderID string) ([]googledrive.DriveImage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.images, nil
}

type memQueue struct {
	jobs map[string][]*queue.Job
	keys map[string]bool
}

func newMemQueue() *memQueue {
	return &memQueue{jobs: make(map[string][]*queue.Job), keys: make(map[string]bool)}
}

func (q *memQueue) Enqueue(ctx context.Context, name string, job *queue.Job) (bool, error) {
	if job.IdempotencyKey != "" && q.keys[job.IdempotencyKey] {
		return false, nil
	}
	q.keys[job.IdempotencyKey] = true
	q.jobs[name] = append(q.jobs[name], job)
	return true, nil
}

func (q *memQueue) Dequeue(ctx context.Context, name string, block time.Duration) (*queue.Job, error) {
	return nil, nil
}
func (q *memQueue) Complete(ctx context.Context, name string, job *queue.Job) error { return nil }
func (q *memQueue) Fail(ctx context.Context, name string, job *queue.Job, reason string) (bool, error) {
	return false, nil
}
func (q *memQueue) Heartbeat(ctx context.Context, name, jobID string) error { return nil }
func (q *memQueue) PromoteDelayed(ctx context.Context, name string, limit int) (int, error) {
	return 0, nil
}
func (q *memQueue) RecoverStalled(ctx context.Context, name string, olderThan time.Duration) ([]queue.Job, error) {
	return nil, nil
}
func (q *memQueue) Counts(ctx context.Context, name string) (queue.Counts, error) {
	return queue.Counts{}, nil
}

// svcImageRepo is a map-backed image store for service tests.
type svcImageRepo struct {
	repositories.ImageRepository

	rows    map[string]*models.Image // by drive file id
	resets  []uuid.UUID
	deleted []string
}

func newSvcImageRepo() *svcImageRepo {
	return &svcImageRepo{rows: make(map[string]*models.Image)}
}

func (r *svcImageRepo) seed(img models.Image) *models.Image {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	copied := img
	r.rows[img.DriveFileID] = &copied
	return &copied
}

func (r *svcImageRepo) Create(ctx context.Context, image *models.Image) error {
	image.ID = uuid.New()
	copied := *image
	r.rows[image.DriveFileID] = &copied
	return nil
}

func (r *svcImageRepo) CreateBatch(ctx context.Context, images []*models.Image) error {
	for _, img := range images {
		if err := r.Create(ctx, img); err != nil {
			return err
		}
	}
	return nil
}

func (r *svcImageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	for _, img := range r.rows {
		if img.ID == id {
			copied := *img
			return &copied, nil
		}
	}
	return nil, apperrors.New(apperrors.KindNotFound, "image not found")
}

func (r *svcImageRepo) GetByDriveFileID(ctx context.Context, driveFileID string) (*models.Image, error) {
	img, ok := r.rows[driveFileID]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "image not found")
	}
	copied := *img
	return &copied, nil
}

func (r *svcImageRepo) ListDriveFileIDs(ctx context.Context, folderID uuid.UUID) ([]string, error) {
	var ids []string
	for id, img := range r.rows {
		if img.FolderID == folderID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *svcImageRepo) UpdateVersion(ctx context.Context, id uuid.UUID, fileName, versionToken, thumbnailURL string) error {
	for _, img := range r.rows {
		if img.ID == id {
			img.FileName = fileName
			img.VersionToken = versionToken
			img.ThumbnailURL = thumbnailURL
		}
	}
	return nil
}

func (r *svcImageRepo) ResetToPending(ctx context.Context, ids []uuid.UUID) (int64, error) {
	for _, id := range ids {
		for _, img := range r.rows {
			if img.ID == id {
				img.Status = models.ImageStatusPending
				img.Caption = nil
				img.Tags = nil
			}
		}
	}
	r.resets = append(r.resets, ids...)
	return int64(len(ids)), nil
}

func (r *svcImageRepo) ResetFailedToPending(ctx context.Context, folderID *uuid.UUID) (int64, error) {
	var n int64
	for _, img := range r.rows {
		if img.Status != models.ImageStatusFailed {
			continue
		}
		if folderID != nil && img.FolderID != *folderID {
			continue
		}
		img.Status = models.ImageStatusPending
		img.ErrorMessage = nil
		n++
	}
	return n, nil
}

func (r *svcImageRepo) DeleteByDriveFileIDs(ctx context.Context, folderID uuid.UUID, driveFileIDs []string) (int64, error) {
	var n int64
	for _, id := range driveFileIDs {
		img, ok := r.rows[id]
		if !ok || img.Status == models.ImageStatusProcessing {
			continue
		}
		delete(r.rows, id)
		r.deleted = append(r.deleted, id)
		n++
	}
	return n, nil
}

func (r *svcImageRepo) ListByFolder(ctx context.Context, folderID uuid.UUID, offset, limit int) ([]models.Image, int64, error) {
	var images []models.Image
	for _, img := range r.rows {
		if img.FolderID == folderID {
			images = append(images, *img)
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].FileName < images[j].FileName })
	total := int64(len(images))
	if offset > len(images) {
		offset = len(images)
	}
	images = images[offset:]
	if limit > 0 && len(images) > limit {
		images = images[:limit]
	}
	return images, total, nil
}

func (r *svcImageRepo) CountByStatus(ctx context.Context, folderID uuid.UUID) (map[models.ImageStatus]int64, error) {
	counts := make(map[models.ImageStatus]int64)
	for _, img := range r.rows {
		if img.FolderID == folderID {
			counts[img.Status]++
		}
	}
	return counts, nil
}

func (r *svcImageRepo) ListPending(ctx context.Context, folderID uuid.UUID, limit int) ([]models.Image, error) {
	var pending []models.Image
	for _, img := range r.rows {
		if img.FolderID == folderID && img.Status == models.ImageStatusPending {
			pending = append(pending, *img)
		}
	}
	return pending, nil
}

// svcFolderRepo recomputes counters from the linked image repo, mirroring
// what the SQL recompute does.
type svcFolderRepo struct {
	repositories.FolderRepository

	byDriveID map[string]*models.Folder
	created   int
	images    *svcImageRepo
}

func newSvcFolderRepo(images *svcImageRepo) *svcFolderRepo {
	return &svcFolderRepo{byDriveID: make(map[string]*models.Folder), images: images}
}

func (r *svcFolderRepo) GetByDriveFolderID(ctx context.Context, driveFolderID string) (*models.Folder, error) {
	f, ok := r.byDriveID[driveFolderID]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "folder not found")
	}
	copied := *f
	return &copied, nil
}

func (r *svcFolderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Folder, error) {
	for _, f := range r.byDriveID {
		if f.ID == id {
			copied := *f
			return &copied, nil
		}
	}
	return nil, apperrors.New(apperrors.KindNotFound, "folder not found")
}

func (r *svcFolderRepo) Create(ctx context.Context, folder *models.Folder) error {
	folder.ID = uuid.New()
	copied := *folder
	r.byDriveID[folder.DriveFolderID] = &copied
	r.created++
	return nil
}

func (r *svcFolderRepo) SetStatus(ctx context.Context, id uuid.UUID, status models.FolderStatus, errorMessage *string) error {
	for _, f := range r.byDriveID {
		if f.ID == id {
			f.Status = status
			f.ErrorMessage = errorMessage
		}
	}
	return nil
}

func (r *svcFolderRepo) TouchLastSynced(ctx context.Context, id uuid.UUID) error { return nil }

func (r *svcFolderRepo) RecomputeCounters(ctx context.Context, id uuid.UUID) (*models.Folder, error) {
	var folder *models.Folder
	for _, f := range r.byDriveID {
		if f.ID == id {
			folder = f
		}
	}
	if folder == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "folder not found")
	}

	total, completed, unsettled := 0, 0, 0
	for _, img := range r.images.rows {
		if img.FolderID != id {
			continue
		}
		total++
		switch img.Status {
		case models.ImageStatusCompleted:
			completed++
		case models.ImageStatusPending, models.ImageStatusProcessing:
			unsettled++
		}
	}
	folder.TotalImages = total
	folder.ProcessedImages = completed
	switch {
	case total > 0 && completed == total:
		folder.Status = models.FolderStatusCompleted
	case unsettled > 0:
		folder.Status = models.FolderStatusProcessing
	case folder.Status == models.FolderStatusCompleted:
		folder.Status = models.FolderStatusPending
	}
	copied := *folder
	return &copied, nil
}

type receiptStore struct {
	repositories.ScanReceiptRepository

	receipts []models.ScanReceipt
}

func (r *receiptStore) Create(ctx context.Context, receipt *models.ScanReceipt) error {
	r.receipts = append(r.receipts, *receipt)
	return nil
}

func (r *receiptStore) GetLatestByFolder(ctx context.Context, folderID uuid.UUID) (*models.ScanReceipt, error) {
	for i := len(r.receipts) - 1; i >= 0; i-- {
		if r.receipts[i].FolderID == folderID {
			copied := r.receipts[i]
			return &copied, nil
		}
	}
	return nil, apperrors.New(apperrors.KindNotFound, "no scans recorded")
}

type svcFixture struct {
	browser    *fakeBrowser
	queue      *memQueue
	folderRepo *svcFolderRepo
	imageRepo  *svcImageRepo
	receipts   *receiptStore
}

func newSvcFixture(browser *fakeBrowser, maxImages int) (*svcFixture, *folderServiceImpl) {
	imgRepo := newSvcImageRepo()
	fx := &svcFixture{
		browser:    browser,
		queue:      newMemQueue(),
		folderRepo: newSvcFolderRepo(imgRepo),
		imageRepo:  imgRepo,
		receipts:   &receiptStore{},
	}
	svc := NewFolderService(fx.browser, fx.queue, fx.folderRepo, fx.imageRepo, fx.receipts, maxImages)
	return fx, svc.(*folderServiceImpl)
}

func driveFile(id, name, version string) googledrive.DriveImage {
	return googledrive.DriveImage{ID: id, Name: name, MimeType: "image/jpeg", VersionToken: version}
}

const testFolderURL = "https://drive.google.com/drive/folders/1AbC_dEf-2gHiJkLmNoPqRsTuVwXyZ34"

func TestIngestCreatesFolderWithImages(t *testing.T) {
	browser := &fakeBrowser{name: "Holiday Photos", images: []googledrive.DriveImage{
		driveFile("a", "a.jpg", "v1"),
		driveFile("b", "b.jpg", "v1"),
		driveFile("c", "c.jpg", "v1"),
	}}
	fx, svc := newSvcFixture(browser, 0)

	resp, err := svc.Ingest(context.Background(), &dto.IngestFolderRequest{FolderURL: testFolderURL})
	require.NoError(t, err)

	assert.Equal(t, "Holiday Photos", resp.Name)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, 3, resp.TotalImages)
	assert.Equal(t, 1, fx.folderRepo.created)
	assert.Len(t, fx.imageRepo.rows, 3)

	require.Len(t, fx.receipts.receipts, 1)
	assert.Equal(t, 3, fx.receipts.receipts[0].ImagesAdded)
	assert.Equal(t, "ingest", fx.receipts.receipts[0].Trigger)

	jobs := fx.queue.jobs[queue.QueueFolders]
	require.Len(t, jobs, 1)
	var payload queue.FolderScanPayload
	require.NoError(t, json.Unmarshal(jobs[0].Payload, &payload))
	assert.Equal(t, "ingest", payload.Trigger)
	assert.Equal(t, "1AbC_dEf-2gHiJkLmNoPqRsTuVwXyZ34", payload.DriveFolderID)
}

func TestIngestEmptyFolderCreatesNothing(t *testing.T) {
	fx, svc := newSvcFixture(&fakeBrowser{name: "Empty"}, 0)

	_, err := svc.Ingest(context.Background(), &dto.IngestFolderRequest{FolderURL: testFolderURL})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindEmptyFolder, apperrors.KindOf(err))
	assert.Zero(t, fx.folderRepo.created, "no folder row for an empty folder")
}

func TestIngestCapExceededCreatesNothing(t *testing.T) {
	browser := &fakeBrowser{name: "Huge", images: []googledrive.DriveImage{
		driveFile("a", "a.jpg", "v1"),
		driveFile("b", "b.jpg", "v1"),
		driveFile("c", "c.jpg", "v1"),
	}}
	fx, svc := newSvcFixture(browser, 2)

	_, err := svc.Ingest(context.Background(), &dto.IngestFolderRequest{FolderURL: testFolderURL})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindFolderCapExceeded, apperrors.KindOf(err))
	assert.Zero(t, fx.folderRepo.created)
	assert.Empty(t, fx.imageRepo.rows)
}

func TestIngestInvalidURL(t *testing.T) {
	_, svc := newSvcFixture(&fakeBrowser{}, 0)
	_, err := svc.Ingest(context.Background(), &dto.IngestFolderRequest{FolderURL: "https://example.com/x"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestIngestPermissionDenied(t *testing.T) {
	browser := &fakeBrowser{nameErr: apperrors.New(apperrors.KindPermissionDenied, "the folder was not found or is not shared")}
	_, svc := newSvcFixture(browser, 0)

	_, err := svc.Ingest(context.Background(), &dto.IngestFolderRequest{FolderURL: testFolderURL})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))
}

func TestIngestPassesCredentialThrough(t *testing.T) {
	browser := &fakeBrowser{name: "Private", images: []googledrive.DriveImage{driveFile("a", "a.jpg", "v1")}}
	fx, svc := newSvcFixture(browser, 0)

	_, err := svc.Ingest(context.Background(), &dto.IngestFolderRequest{
		FolderURL:  testFolderURL,
		Credential: &dto.Credential{AccessToken: "ya29.token"},
	})
	require.NoError(t, err)
	require.NotNil(t, browser.lastCred)
	assert.Equal(t, "ya29.token", browser.lastCred.AccessToken)

	var payload queue.FolderScanPayload
	require.NoError(t, json.Unmarshal(fx.queue.jobs[queue.QueueFolders][0].Payload, &payload))
	require.NotNil(t, payload.Credential)
	assert.Equal(t, "ya29.token", payload.Credential.AccessToken)
}

func TestReIngestSyncsInsteadOfDuplicating(t *testing.T) {
	browser := &fakeBrowser{name: "Holiday Photos", images: []googledrive.DriveImage{
		driveFile("a", "a.jpg", "v1"),
	}}
	fx, svc := newSvcFixture(browser, 0)

	_, err := svc.Ingest(context.Background(), &dto.IngestFolderRequest{FolderURL: testFolderURL})
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), &dto.IngestFolderRequest{FolderURL: testFolderURL})
	require.NoError(t, err)

	assert.Equal(t, 1, fx.folderRepo.created, "re-ingest reuses the existing folder row")
	assert.Len(t, fx.imageRepo.rows, 1, "an unchanged listing adds no rows")
	assert.Len(t, fx.receipts.receipts, 2)
	assert.Zero(t, fx.receipts.receipts[1].ImagesAdded)
}

func TestSyncReportsDiff(t *testing.T) {
	browser := &fakeBrowser{name: "Photos", images: []googledrive.DriveImage{
		driveFile("keep", "keep.jpg", "v1"),
		driveFile("changed", "changed.jpg", "v2"),
		driveFile("new", "new.jpg", "v1"),
	}}
	fx, svc := newSvcFixture(browser, 0)

	folder := &models.Folder{DriveFolderID: "1AbC_dEf-2gHiJkLmNoPqRsTuVwXyZ34", Name: "Photos"}
	require.NoError(t, fx.folderRepo.Create(context.Background(), folder))
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "keep", VersionToken: "v1", Status: models.ImageStatusCompleted})
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "changed", VersionToken: "v1", Status: models.ImageStatusCompleted})
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "gone", VersionToken: "v1", Status: models.ImageStatusCompleted})

	resp, err := svc.Sync(context.Background(), folder.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, resp.ImagesSeen)
	assert.Equal(t, 1, resp.ImagesAdded)
	assert.Equal(t, 1, resp.ImagesRemoved)
	assert.Equal(t, 1, resp.ImagesChanged)
	assert.Equal(t, 3, resp.TotalImages)
	assert.Equal(t, 1, resp.ProcessedImages, "only the untouched image is still settled")
	assert.Equal(t, "processing", resp.Status)

	assert.Equal(t, []string{"gone"}, fx.imageRepo.deleted)
	assert.Len(t, fx.queue.jobs[queue.QueueFolders], 1, "pending work queues a drain job")
}

func TestSyncRoundTripRestoresPreState(t *testing.T) {
	browser := &fakeBrowser{name: "Photos", images: []googledrive.DriveImage{
		driveFile("a", "a.jpg", "v1"),
	}}
	fx, svc := newSvcFixture(browser, 0)

	folder := &models.Folder{DriveFolderID: "1AbC_dEf-2gHiJkLmNoPqRsTuVwXyZ34"}
	require.NoError(t, fx.folderRepo.Create(context.Background(), folder))
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "a", VersionToken: "v1", Status: models.ImageStatusCompleted})

	// Drive-side add of x, then delete of x: two syncs land back where we
	// started.
	browser.images = append(browser.images, driveFile("x", "x.jpg", "v1"))
	resp, err := svc.Sync(context.Background(), folder.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ImagesAdded)
	assert.Equal(t, 2, resp.TotalImages)

	browser.images = browser.images[:1]
	resp, err = svc.Sync(context.Background(), folder.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ImagesRemoved)
	assert.Equal(t, 1, resp.TotalImages)
	assert.Equal(t, 1, resp.ProcessedImages)
	assert.Equal(t, "completed", resp.Status)
}

func TestSyncEmptiedFolderRemovesAllRows(t *testing.T) {
	browser := &fakeBrowser{name: "Photos"}
	fx, svc := newSvcFixture(browser, 0)

	folder := &models.Folder{DriveFolderID: "1AbC_dEf-2gHiJkLmNoPqRsTuVwXyZ34", Status: models.FolderStatusCompleted}
	require.NoError(t, fx.folderRepo.Create(context.Background(), folder))
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "a", VersionToken: "v1", Status: models.ImageStatusCompleted})
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "b", VersionToken: "v1", Status: models.ImageStatusCompleted})

	// Everything was deleted on the Drive side; the sync converges to an
	// empty folder instead of erroring.
	resp, err := svc.Sync(context.Background(), folder.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, resp.ImagesSeen)
	assert.Equal(t, 2, resp.ImagesRemoved)
	assert.Equal(t, 0, resp.TotalImages)
	assert.Equal(t, 0, resp.ProcessedImages)
	assert.NotEqual(t, "completed", resp.Status, "an empty folder never reads completed")
	assert.Empty(t, fx.imageRepo.rows)
	assert.Empty(t, fx.queue.jobs[queue.QueueFolders], "nothing left to drain")
}

func TestSyncLeavesProcessingRowsAlone(t *testing.T) {
	browser := &fakeBrowser{name: "Photos", images: []googledrive.DriveImage{
		driveFile("keep", "keep.jpg", "v1"),
	}}
	fx, svc := newSvcFixture(browser, 0)

	folder := &models.Folder{DriveFolderID: "1AbC_dEf-2gHiJkLmNoPqRsTuVwXyZ34"}
	require.NoError(t, fx.folderRepo.Create(context.Background(), folder))
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "keep", VersionToken: "v1", Status: models.ImageStatusCompleted})
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "busy", VersionToken: "v1", Status: models.ImageStatusProcessing})

	resp, err := svc.Sync(context.Background(), folder.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, resp.ImagesRemoved, "a row mid-pipeline is not deleted out from under its worker")
	_, err = fx.imageRepo.GetByDriveFileID(context.Background(), "busy")
	assert.NoError(t, err)
}

func TestGetReturnsImagesWithCleanedCaptions(t *testing.T) {
	fx, svc := newSvcFixture(&fakeBrowser{}, 0)

	folder := &models.Folder{DriveFolderID: "d1", Name: "Photos"}
	require.NoError(t, fx.folderRepo.Create(context.Background(), folder))
	encoded := `{"caption": "A dog on the beach"}`
	fx.imageRepo.seed(models.Image{
		FolderID: folder.ID, DriveFileID: "a", FileName: "a.jpg",
		Status: models.ImageStatusCompleted, Caption: &encoded,
	})
	fx.imageRepo.seed(models.Image{
		FolderID: folder.ID, DriveFileID: "b", FileName: "b.jpg",
		Status: models.ImageStatusPending,
	})

	detail, err := svc.Get(context.Background(), folder.ID, 0, 50)
	require.NoError(t, err)

	assert.Equal(t, int64(2), detail.ImageTotal)
	require.Len(t, detail.Images, 2)
	assert.Equal(t, "a.jpg", detail.Images[0].FileName)
	assert.Equal(t, "A dog on the beach", detail.Images[0].Caption,
		"legacy encoded captions are cleaned on read")
	assert.Equal(t, int64(1), detail.ImageCounts["completed"])
	assert.Equal(t, int64(1), detail.ImageCounts["pending"])
}

func TestGetPaginatesImages(t *testing.T) {
	fx, svc := newSvcFixture(&fakeBrowser{}, 0)

	folder := &models.Folder{DriveFolderID: "d1"}
	require.NoError(t, fx.folderRepo.Create(context.Background(), folder))
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: name, FileName: name, Status: models.ImageStatusCompleted})
	}

	detail, err := svc.Get(context.Background(), folder.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detail.ImageTotal)
	require.Len(t, detail.Images, 1)
	assert.Equal(t, "b.jpg", detail.Images[0].FileName)
}

func TestSyncUnknownFolder(t *testing.T) {
	_, svc := newSvcFixture(&fakeBrowser{}, 0)
	_, err := svc.Sync(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestRetryScopedToFolder(t *testing.T) {
	fx, svc := newSvcFixture(&fakeBrowser{}, 0)

	folder := &models.Folder{DriveFolderID: "d1"}
	require.NoError(t, fx.folderRepo.Create(context.Background(), folder))
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "f1", Status: models.ImageStatusFailed})
	fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "f2", Status: models.ImageStatusFailed})
	fx.imageRepo.seed(models.Image{FolderID: uuid.New(), DriveFileID: "other", Status: models.ImageStatusFailed})

	resp, err := svc.Retry(context.Background(), &dto.RetryRequest{FolderID: &folder.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Requeued)
	assert.Len(t, fx.queue.jobs[queue.QueueFolders], 1, "the folder drain re-batches the reset rows")

	other, _ := fx.imageRepo.GetByDriveFileID(context.Background(), "other")
	assert.Equal(t, models.ImageStatusFailed, other.Status, "other folders are untouched")
}

func TestRetrySingleImage(t *testing.T) {
	fx, svc := newSvcFixture(&fakeBrowser{}, 0)

	folder := &models.Folder{DriveFolderID: "d1"}
	require.NoError(t, fx.folderRepo.Create(context.Background(), folder))
	img := fx.imageRepo.seed(models.Image{FolderID: folder.ID, DriveFileID: "f1", VersionToken: "v2", Status: models.ImageStatusFailed})

	resp, err := svc.Retry(context.Background(), &dto.RetryRequest{ImageID: &img.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Requeued)

	jobs := fx.queue.jobs[queue.QueueImages]
	require.Len(t, jobs, 1)
	assert.Equal(t, queue.JobTypeImage, jobs[0].Type)
	assert.Contains(t, jobs[0].IdempotencyKey, "v2", "the job key is bound to the file version")

	row, _ := fx.imageRepo.GetByDriveFileID(context.Background(), "f1")
	assert.Equal(t, models.ImageStatusPending, row.Status)
}

func TestRetryImageAndFolderAreExclusive(t *testing.T) {
	_, svc := newSvcFixture(&fakeBrowser{}, 0)
	imageID, folderID := uuid.New(), uuid.New()

	_, err := svc.Retry(context.Background(), &dto.RetryRequest{ImageID: &imageID, FolderID: &folderID})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestRetryNothingFailed(t *testing.T) {
	fx, svc := newSvcFixture(&fakeBrowser{}, 0)

	resp, err := svc.Retry(context.Background(), &dto.RetryRequest{})
	require.NoError(t, err)
	assert.Zero(t, resp.Requeued)
	assert.Empty(t, fx.queue.jobs[queue.QueueImages])
	assert.Empty(t, fx.queue.jobs[queue.QueueFolders])
}
