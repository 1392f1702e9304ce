package utils

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("(?s)^```(?:json|markdown|text)?\\s*(.*?)\\s*```$")

// CleanCaption normalizes raw model output before parsing. Models
// occasionally wrap the answer in a code fence, escape quotes as HTML
// entities, or return a one-field JSON object instead of plain text.
func CleanCaption(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = html.UnescapeString(s)

	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	// Unwrap {"caption": "..."} style replies.
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			for _, key := range []string{"caption", "description", "text"} {
				if v, ok := obj[key]; ok {
					var inner string
					if err := json.Unmarshal(v, &inner); err == nil && inner != "" {
						return strings.TrimSpace(inner)
					}
				}
			}
		}
	}

	return s
}

// TruncateRunes cuts s to at most n runes, keeping valid UTF-8.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
