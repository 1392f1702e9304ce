package dto

import "github.com/google/uuid"

// SearchResult is one hit in a search response.
type SearchResult struct {
	ImageID      uuid.UUID `json:"image_id"`
	DriveFileID  string    `json:"drive_file_id"`
	FileName     string    `json:"file_name"`
	Caption      string    `json:"caption,omitempty"`
	Tags         string    `json:"tags,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url"`
	WebViewURL   string    `json:"web_view_url"`
	Score        float64   `json:"score"`
}

// Search execution modes.
const (
	SearchTypeSemantic = "semantic"
	SearchTypeFilename = "filename"
)

// SearchResponse carries the hits plus how the query was executed.
// Degraded is set when a semantic query fell back to filename matching
// because the vector backend or the embedding quota was unavailable.
type SearchResponse struct {
	Query      string         `json:"query"`
	SearchType string         `json:"search_type"`
	Degraded   bool           `json:"degraded,omitempty"`
	TookMs     int64          `json:"took_ms"`
	Results    []SearchResult `json:"results"`
}
