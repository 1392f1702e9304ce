package gemini

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structuredReply = `## Subjects
A golden retriever and a small child.

## Actions
The dog is catching a red frisbee mid-air.

## Setting
A grassy park on a sunny afternoon.

## Visual Attributes
Bright natural light, shallow depth of field, warm tones.

## Visible Text
none

## Notable Details
The child is wearing a yellow raincoat despite the sun.

## Search Keywords
golden retriever, dog, frisbee, park, child, yellow raincoat, sunny, grass, pet, playing`

func TestParseCaptionStructuredReply(t *testing.T) {
	parsed := ParseCaption(structuredReply)

	require.NotEmpty(t, parsed.Caption)
	assert.Contains(t, parsed.Caption, "golden retriever")
	assert.Contains(t, parsed.Caption, "grassy park")
	assert.NotContains(t, parsed.Caption, "##", "markdown headers must be stripped")
	assert.NotContains(t, parsed.Caption, "\n", "caption is flattened to one line")

	assert.Contains(t, parsed.Tags, "golden-retriever")
	assert.Contains(t, parsed.Tags, "frisbee")
	assert.Contains(t, parsed.Tags, "yellow-raincoat")
	assert.LessOrEqual(t, len(parsed.Tags), 20)
}

func TestParseCaptionSkipsNoneSections(t *testing.T) {
	parsed := ParseCaption(structuredReply)
	assert.NotContains(t, strings.ToLower(parsed.Caption), "none")
}

func TestParseCaptionCodeFencedReply(t *testing.T) {
	fenced := "```markdown\n" + structuredReply + "\n```"
	parsed := ParseCaption(fenced)
	require.NotEmpty(t, parsed.Caption)
	assert.Contains(t, parsed.Caption, "golden retriever")
}

func TestParseCaptionFallbackForUnstructuredReply(t *testing.T) {
	raw := "A quiet mountain lake at dawn with mist over the water and pine trees along the shore."
	parsed := ParseCaption(raw)

	require.NotEmpty(t, parsed.Caption)
	assert.Contains(t, parsed.Caption, "mountain lake")
	assert.NotEmpty(t, parsed.Tags)
	assert.LessOrEqual(t, len(parsed.Tags), 10)
	assert.Contains(t, parsed.Tags, "mountain")
}

func TestParseCaptionEmptyReply(t *testing.T) {
	parsed := ParseCaption("   ")
	assert.Empty(t, parsed.Caption)
	assert.Empty(t, parsed.Tags)
}

func TestParseCaptionTruncatesLongCaptions(t *testing.T) {
	long := "## Subjects\n" + strings.Repeat("a very long description ", 200) + "\n## Search Keywords\nword"
	parsed := ParseCaption(long)
	assert.LessOrEqual(t, len([]rune(parsed.Caption)), 1500)
}

func TestParseCaptionTagNormalization(t *testing.T) {
	raw := `## Subjects
Something here.

## Search Keywords
Golden Retriever, DOG, , none, this-keyword-is-way-too-long-to-be-a-useful-search-tag, park`
	parsed := ParseCaption(raw)

	assert.Contains(t, parsed.Tags, "golden-retriever")
	assert.Contains(t, parsed.Tags, "dog")
	assert.Contains(t, parsed.Tags, "park")
	assert.NotContains(t, parsed.Tags, "none")
	for _, tag := range parsed.Tags {
		assert.LessOrEqual(t, len(tag), 30)
		assert.Equal(t, strings.ToLower(tag), tag)
	}
}

func TestNormalizeForEmbedding(t *testing.T) {
	assert.Equal(t, "a red bicycle", NormalizeForEmbedding("  A   Red\n\tBicycle  "))
	assert.Equal(t, "", NormalizeForEmbedding("   "))
}
