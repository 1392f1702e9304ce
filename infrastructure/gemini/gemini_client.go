package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

// Client talks to the Gemini API for captioning and embeddings. Rate
// limiting is the caller's concern; the client only does the calls.
type Client struct {
	client       *genai.Client
	model        string
	embedModel   string
	embeddingDim int
}

type Config struct {
	APIKey       string
	Model        string
	EmbedModel   string
	EmbeddingDim int
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		client:       client,
		model:        cfg.Model,
		embedModel:   cfg.EmbedModel,
		embeddingDim: cfg.EmbeddingDim,
	}, nil
}

// Caption generates a structured description for the image bytes and
// parses it into caption text plus tags.
func (c *Client) Caption(ctx context.Context, imageData []byte, mimeType string) (ParsedCaption, error) {
	if len(imageData) == 0 {
		return ParsedCaption{}, apperrors.New(apperrors.KindInvalidInput, "empty image data")
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(imageData, mimeType),
		genai.NewPartFromText(captionPrompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return ParsedCaption{}, mapGeminiError(err, "caption generation")
	}

	raw := result.Text()
	if strings.TrimSpace(raw) == "" {
		return ParsedCaption{}, apperrors.New(apperrors.KindProcessingFailed, "model returned an empty caption")
	}

	parsed := ParseCaption(raw)
	if parsed.Caption == "" {
		return ParsedCaption{}, apperrors.New(apperrors.KindProcessingFailed, "could not extract a caption from the model reply")
	}

	logger.Caption("generate", "caption generated", map[string]interface{}{
		"caption_len": len(parsed.Caption),
		"tags":        len(parsed.Tags),
	})
	return parsed, nil
}

// Embed converts text into the embedding vector used for similarity
// search. Text is normalized first so the same content always embeds the
// same way regardless of incidental whitespace or case.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := NormalizeForEmbedding(text)
	if normalized == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "cannot embed empty text")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(normalized, genai.RoleUser),
	}

	result, err := c.client.Models.EmbedContent(ctx, c.embedModel, contents, nil)
	if err != nil {
		return nil, mapGeminiError(err, "embedding")
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, apperrors.New(apperrors.KindProcessingFailed, "model returned an empty embedding")
	}

	values := result.Embeddings[0].Values
	if c.embeddingDim > 0 && len(values) != c.embeddingDim {
		return nil, apperrors.Newf(apperrors.KindProcessingFailed,
			"embedding has %d dimensions, expected %d", len(values), c.embeddingDim)
	}
	return values, nil
}

// EmbedCaption embeds the searchable text for an image: the caption
// concatenated with its tags, so tag-only matches still land near the
// image in vector space.
func (c *Client) EmbedCaption(ctx context.Context, caption string, tags []string) ([]float32, error) {
	text := caption
	if len(tags) > 0 {
		text = caption + " " + strings.Join(tags, " ")
	}
	return c.Embed(ctx, text)
}

var embedWhitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeForEmbedding trims, lowercases and collapses whitespace.
func NormalizeForEmbedding(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return embedWhitespaceRe.ReplaceAllString(text, " ")
}

// mapGeminiError translates API failures into the error taxonomy. Quota
// and auth failures are terminal for the whole batch, not just one image,
// so they get their own kinds.
func mapGeminiError(err error, what string) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return apperrors.Wrap(apperrors.KindRateLimitExhausted,
				fmt.Sprintf("quota exhausted during %s", what), err)
		case apiErr.Code == 401 || apiErr.Code == 403:
			return apperrors.Wrap(apperrors.KindPermissionDenied,
				fmt.Sprintf("API key rejected during %s", what), err)
		case apiErr.Code >= 500:
			return apperrors.Wrap(apperrors.KindTransientUpstream,
				fmt.Sprintf("model backend unavailable during %s", what), err)
		case apiErr.Code == 400:
			return apperrors.Wrap(apperrors.KindProcessingFailed,
				fmt.Sprintf("model rejected the %s request", what), err)
		}
	}
	return apperrors.Wrap(apperrors.KindTransientUpstream,
		fmt.Sprintf("%s request failed", what), err)
}
