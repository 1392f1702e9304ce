package gemini

import (
	"regexp"
	"strings"

	"github.com/dekalouis/v0-drive/pkg/utils"
)

const (
	maxCaptionLen       = 1500
	maxFallbackCaption  = 500
	maxTags             = 20
	maxTagLen           = 30
	maxFallbackTags     = 10
	subjectTagTokens    = 5
)

var (
	sectionHeaderRe = regexp.MustCompile(`(?im)^\s{0,3}#{1,6}\s*(subjects|actions|setting|visual attributes|visible text|notable details|search keywords)\s*$`)
	markdownMarksRe = regexp.MustCompile("[*_`#>]+")
	whitespaceRe    = regexp.MustCompile(`\s+`)
	wordTokenRe     = regexp.MustCompile(`[a-z]{3,15}`)
)

// ParsedCaption is the model reply broken into the pieces the pipeline
// stores: a flattened caption for embedding and display, plus tags.
type ParsedCaption struct {
	Caption string
	Tags    []string
}

// ParseCaption extracts the caption text and tags from the model reply.
// Replies that follow the prompt's section structure get proper keyword
// tags; anything else goes through a best-effort fallback so a sloppy
// reply still produces a usable row.
func ParseCaption(raw string) ParsedCaption {
	cleaned := utils.CleanCaption(raw)
	if cleaned == "" {
		return ParsedCaption{}
	}

	sections := splitSections(cleaned)
	if len(sections) == 0 {
		return fallbackParse(cleaned)
	}

	var captionParts []string
	for _, name := range []string{"subjects", "actions", "setting", "visual attributes", "visible text", "notable details"} {
		if body, ok := sections[name]; ok && body != "" && !strings.EqualFold(body, "none") {
			captionParts = append(captionParts, body)
		}
	}

	caption := stripMarkdown(strings.Join(captionParts, " "))
	caption = utils.TruncateRunes(caption, maxCaptionLen)

	tags := extractTags(sections["search keywords"], sections["subjects"])
	if caption == "" {
		return fallbackParse(cleaned)
	}
	return ParsedCaption{Caption: caption, Tags: tags}
}

// splitSections maps lowercase section names to their body text.
func splitSections(s string) map[string]string {
	locs := sectionHeaderRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil
	}

	sections := make(map[string]string, len(locs))
	for i, loc := range locs {
		name := strings.ToLower(s[loc[2]:loc[3]])
		start := loc[1]
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections[name] = strings.TrimSpace(s[start:end])
	}
	return sections
}

// extractTags builds the tag list: every keyword from the keyword line,
// topped up with the first tokens of the subjects section, deduplicated.
func extractTags(keywordLine, subjects string) []string {
	seen := make(map[string]bool)
	var tags []string

	add := func(tag string) {
		tag = normalizeTag(tag)
		if tag == "" || seen[tag] || len(tags) >= maxTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, kw := range strings.Split(keywordLine, ",") {
		add(kw)
	}

	tokens := strings.Fields(stripMarkdown(subjects))
	for i, tok := range tokens {
		if i >= subjectTagTokens {
			break
		}
		add(tok)
	}

	return tags
}

// normalizeTag lowercases, replaces inner spaces with hyphens and drops
// anything too long to be a useful tag.
func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.Trim(tag, ".,:;\"'()")
	tag = strings.ReplaceAll(tag, " ", "-")
	if tag == "" || tag == "none" || len(tag) > maxTagLen {
		return ""
	}
	return tag
}

// fallbackParse handles replies that ignored the section structure.
func fallbackParse(cleaned string) ParsedCaption {
	caption := stripMarkdown(cleaned)
	caption = utils.TruncateRunes(caption, maxFallbackCaption)

	var tags []string
	seen := make(map[string]bool)
	for _, tok := range wordTokenRe.FindAllString(strings.ToLower(caption), -1) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		tags = append(tags, tok)
		if len(tags) >= maxFallbackTags {
			break
		}
	}
	return ParsedCaption{Caption: caption, Tags: tags}
}

// stripMarkdown flattens markdown decoration and whitespace into one line.
func stripMarkdown(s string) string {
	s = markdownMarksRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
