package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/domain/dto"
)

// SearchService answers folder-scoped queries. Natural-language queries
// run against caption embeddings; filename-looking or very short queries
// run lexically against file names.
type SearchService interface {
	Search(ctx context.Context, folderID uuid.UUID, query string, topK int) (*dto.SearchResponse, error)
}
