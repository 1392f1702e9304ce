package serviceimpl

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
)

type fakeEmbedder struct {
	values []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

type searchFolderRepo struct {
	repositories.FolderRepository

	folder *models.Folder
}

func (r *searchFolderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Folder, error) {
	if r.folder == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "folder not found")
	}
	return r.folder, nil
}

type searchImageRepo struct {
	repositories.ImageRepository

	filenameHits   []repositories.FilenameHit
	similarityHits []repositories.SimilarityHit
	similarityErr  error

	filenameCalls   int
	similarityCalls int
	lastLimit       int
}

func (r *searchImageRepo) SearchByFilename(ctx context.Context, folderID uuid.UUID, query string, limit int) ([]repositories.FilenameHit, error) {
	r.filenameCalls++
	r.lastLimit = limit
	return r.filenameHits, nil
}

func (r *searchImageRepo) SearchBySimilarity(ctx context.Context, folderID uuid.UUID, vec pgvector.Vector, limit int) ([]repositories.SimilarityHit, error) {
	r.similarityCalls++
	r.lastLimit = limit
	if r.similarityErr != nil {
		return nil, r.similarityErr
	}
	return r.similarityHits, nil
}

func imageNamed(name string) models.Image {
	return models.Image{ID: uuid.New(), FileName: name, DriveFileID: "d-" + name}
}

func TestSearchQueryClassification(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantMode   string
		embedCalls int
	}{
		{"natural language goes semantic", "dog playing in the park", "semantic", 1},
		{"extension goes by filename", "IMG_2041.jpg", "filename", 0},
		{"dotted name goes by filename", "report.v2", "filename", 0},
		{"two characters go by filename", "ab", "filename", 0},
		{"three characters go semantic", "cat", "semantic", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			folderID := uuid.New()
			embedder := &fakeEmbedder{values: []float32{0.1, 0.2}}
			imgRepo := &searchImageRepo{}
			folderRepo := &searchFolderRepo{folder: &models.Folder{ID: folderID}}

			svc := NewSearchService(embedder, folderRepo, imgRepo, true)
			resp, err := svc.Search(context.Background(), folderID, tc.query, 10)

			require.NoError(t, err)
			assert.Equal(t, tc.wantMode, resp.SearchType)
			assert.Equal(t, tc.embedCalls, embedder.calls)
			assert.False(t, resp.Degraded)
		})
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	svc := NewSearchService(&fakeEmbedder{}, &searchFolderRepo{folder: &models.Folder{}}, &searchImageRepo{}, true)
	_, err := svc.Search(context.Background(), uuid.New(), "   ", 10)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestSearchUnknownFolder(t *testing.T) {
	svc := NewSearchService(&fakeEmbedder{}, &searchFolderRepo{}, &searchImageRepo{}, true)
	_, err := svc.Search(context.Background(), uuid.New(), "dogs", 10)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestSearchTopKClamped(t *testing.T) {
	folderID := uuid.New()
	imgRepo := &searchImageRepo{}
	folderRepo := &searchFolderRepo{folder: &models.Folder{ID: folderID}}
	svc := NewSearchService(&fakeEmbedder{values: []float32{0.1}}, folderRepo, imgRepo, true)

	_, err := svc.Search(context.Background(), folderID, "mountains at dawn", 500)
	require.NoError(t, err)
	assert.Equal(t, 50, imgRepo.lastLimit)

	_, err = svc.Search(context.Background(), folderID, "mountains at dawn", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, imgRepo.lastLimit)
}

func TestSearchFilenameScores(t *testing.T) {
	folderID := uuid.New()
	imgRepo := &searchImageRepo{filenameHits: []repositories.FilenameHit{
		{Image: imageNamed("report.pdf"), Rank: 0},
		{Image: imageNamed("report-2024.pdf"), Rank: 1},
		{Image: imageNamed("annual-report.pdf"), Rank: 2},
	}}
	folderRepo := &searchFolderRepo{folder: &models.Folder{ID: folderID}}
	svc := NewSearchService(&fakeEmbedder{}, folderRepo, imgRepo, true)

	resp, err := svc.Search(context.Background(), folderID, "report.pdf", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, 1.0, resp.Results[0].Score)
	assert.Equal(t, 0.8, resp.Results[1].Score)
	assert.Equal(t, 0.6, resp.Results[2].Score)
}

func TestSearchSemanticScoresRounded(t *testing.T) {
	folderID := uuid.New()
	imgRepo := &searchImageRepo{similarityHits: []repositories.SimilarityHit{
		{Image: imageNamed("a.jpg"), Similarity: 0.87654321},
	}}
	folderRepo := &searchFolderRepo{folder: &models.Folder{ID: folderID}}
	svc := NewSearchService(&fakeEmbedder{values: []float32{0.1}}, folderRepo, imgRepo, true)

	resp, err := svc.Search(context.Background(), folderID, "something scenic", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 0.877, resp.Results[0].Score)
}

func TestSearchDegradesWhenVectorUnavailable(t *testing.T) {
	folderID := uuid.New()
	embedder := &fakeEmbedder{values: []float32{0.1}}
	imgRepo := &searchImageRepo{filenameHits: []repositories.FilenameHit{
		{Image: imageNamed("dog.jpg"), Rank: 2},
	}}
	folderRepo := &searchFolderRepo{folder: &models.Folder{ID: folderID}}
	svc := NewSearchService(embedder, folderRepo, imgRepo, false)

	resp, err := svc.Search(context.Background(), folderID, "dog playing fetch", 10)
	require.NoError(t, err)
	assert.Equal(t, "filename", resp.SearchType)
	assert.True(t, resp.Degraded)
	assert.Zero(t, embedder.calls, "no embedding call when the backend is down")
	assert.Equal(t, 1, imgRepo.filenameCalls)
}

func TestSearchDegradesOnTransientEmbedFailure(t *testing.T) {
	folderID := uuid.New()
	embedder := &fakeEmbedder{err: apperrors.New(apperrors.KindTransientUpstream, "model backend unavailable")}
	imgRepo := &searchImageRepo{}
	folderRepo := &searchFolderRepo{folder: &models.Folder{ID: folderID}}
	svc := NewSearchService(embedder, folderRepo, imgRepo, true)

	resp, err := svc.Search(context.Background(), folderID, "sunset over water", 10)
	require.NoError(t, err)
	assert.Equal(t, "filename", resp.SearchType)
	assert.True(t, resp.Degraded)
	assert.Zero(t, imgRepo.similarityCalls)
}
