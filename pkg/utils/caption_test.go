package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanCaptionStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"caption\": \"a red bicycle leaning on a wall\"}\n```"
	assert.Equal(t, "a red bicycle leaning on a wall", CleanCaption(raw))
}

func TestCleanCaptionUnescapesEntities(t *testing.T) {
	raw := "a sign reading &quot;open late&quot; above the door"
	assert.Equal(t, `a sign reading "open late" above the door`, CleanCaption(raw))
}

func TestCleanCaptionUnwrapsJSONObject(t *testing.T) {
	raw := `{"caption": "two dogs playing in snow"}`
	assert.Equal(t, "two dogs playing in snow", CleanCaption(raw))
}

func TestCleanCaptionPassesPlainTextThrough(t *testing.T) {
	raw := "  ## Subjects\nA mountain lake at dawn.\n"
	assert.Equal(t, "## Subjects\nA mountain lake at dawn.", CleanCaption(raw))
}

func TestCleanCaptionLeavesNonCaptionJSONAlone(t *testing.T) {
	raw := `{"unrelated": 42}`
	assert.Equal(t, raw, CleanCaption(raw))
}

func TestCleanCaptionEmpty(t *testing.T) {
	assert.Equal(t, "", CleanCaption("   "))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", TruncateRunes("héllo world", 5))
	assert.Equal(t, "short", TruncateRunes("short", 50))
	assert.Equal(t, "", TruncateRunes("anything", 0))
}
