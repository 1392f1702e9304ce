package serviceimpl

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/dekalouis/v0-drive/domain/dto"
	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/domain/services"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

const (
	minTopK = 1
	maxTopK = 50
)

// Lexical pseudo-scores per filename match rank, so lexical and semantic
// results present on the same scale.
var rankScores = [...]float64{1.0, 0.8, 0.6}

// Embedder is the slice of the Gemini client the search service needs.
// Search-path embeddings are interactive and not rate limited.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type searchServiceImpl struct {
	embedder   Embedder
	folderRepo repositories.FolderRepository
	imageRepo  repositories.ImageRepository

	vectorAvailable bool
}

func NewSearchService(
	embedder Embedder,
	folderRepo repositories.FolderRepository,
	imageRepo repositories.ImageRepository,
	vectorAvailable bool,
) services.SearchService {
	return &searchServiceImpl{
		embedder:        embedder,
		folderRepo:      folderRepo,
		imageRepo:       imageRepo,
		vectorAvailable: vectorAvailable,
	}
}

func (s *searchServiceImpl) Search(ctx context.Context, folderID uuid.UUID, query string, topK int) (*dto.SearchResponse, error) {
	started := time.Now()

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "search query is empty")
	}

	if topK < minTopK {
		topK = minTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	if _, err := s.folderRepo.GetByID(ctx, folderID); err != nil {
		return nil, err
	}

	if isFilenameQuery(trimmed) {
		return s.searchByFilename(ctx, folderID, trimmed, topK, false, started)
	}

	if !s.vectorAvailable {
		return s.searchByFilename(ctx, folderID, trimmed, topK, true, started)
	}

	values, err := s.embedder.Embed(ctx, trimmed)
	if err != nil {
		// A transient embedding failure should not blank the search page;
		// fall back to filenames and say so.
		if apperrors.Retryable(err) || apperrors.IsKind(err, apperrors.KindRateLimitExhausted) {
			logger.SearchError("embed", "query embedding failed, falling back to filename search", err, map[string]interface{}{
				"folder_id": folderID.String(),
			})
			return s.searchByFilename(ctx, folderID, trimmed, topK, true, started)
		}
		return nil, err
	}

	hits, err := s.imageRepo.SearchBySimilarity(ctx, folderID, pgvector.NewVector(values), topK)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindVectorBackendUnavailable) {
			return s.searchByFilename(ctx, folderID, trimmed, topK, true, started)
		}
		return nil, err
	}

	results := make([]dto.SearchResult, 0, len(hits))
	for i := range hits {
		score := roundScore(hits[i].Similarity)
		results = append(results, dto.ImageToSearchResult(&hits[i].Image, score))
	}

	logger.Search("semantic", "semantic search served", map[string]interface{}{
		"folder_id": folderID.String(), "results": len(results),
	})
	return &dto.SearchResponse{
		Query:      trimmed,
		SearchType: dto.SearchTypeSemantic,
		TookMs:     time.Since(started).Milliseconds(),
		Results:    results,
	}, nil
}

func (s *searchServiceImpl) searchByFilename(ctx context.Context, folderID uuid.UUID, query string, topK int, degraded bool, started time.Time) (*dto.SearchResponse, error) {
	hits, err := s.imageRepo.SearchByFilename(ctx, folderID, query, topK)
	if err != nil {
		return nil, err
	}

	results := make([]dto.SearchResult, 0, len(hits))
	for i := range hits {
		results = append(results, dto.ImageToSearchResult(&hits[i].Image, rankScore(hits[i].Rank)))
	}

	logger.Search("filename", "filename search served", map[string]interface{}{
		"folder_id": folderID.String(), "results": len(results), "degraded": degraded,
	})
	return &dto.SearchResponse{
		Query:      query,
		SearchType: dto.SearchTypeFilename,
		Degraded:   degraded,
		TookMs:     time.Since(started).Milliseconds(),
		Results:    results,
	}, nil
}

// isFilenameQuery routes filename-looking or very short queries to the
// filename index: anything with a dot reads as a file name, and queries
// under three characters embed too poorly to be useful.
func isFilenameQuery(q string) bool {
	if strings.Contains(q, ".") {
		return true
	}
	return len([]rune(q)) < 3
}

func rankScore(rank int) float64 {
	if rank < 0 || rank >= len(rankScores) {
		return rankScores[len(rankScores)-1]
	}
	return rankScores[rank]
}

func roundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}
