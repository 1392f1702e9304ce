package googledrive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekalouis/v0-drive/pkg/apperrors"
)

func TestParseFolderURL(t *testing.T) {
	const id = "1AbC_dEf-2gHiJkLmNoPqRsTuVwXyZ34"

	cases := []struct {
		name  string
		input string
	}{
		{"plain folders path", "https://drive.google.com/drive/folders/" + id},
		{"account-scoped path", "https://drive.google.com/drive/u/0/folders/" + id},
		{"second account", "https://drive.google.com/drive/u/2/folders/" + id},
		{"open with id param", "https://drive.google.com/open?id=" + id},
		{"query string ignored", "https://drive.google.com/drive/folders/" + id + "?usp=sharing"},
		{"bare folder id", id},
		{"surrounding whitespace", "  https://drive.google.com/drive/folders/" + id + "  "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFolderURL(tc.input)
			require.NoError(t, err)
			assert.Equal(t, id, got)
		})
	}
}

func TestParseFolderURLRejectsInvalid(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"wrong host", "https://example.com/drive/folders/1AbCdEfGhIjKl"},
		{"file link not folder", "https://drive.google.com/file/d/1AbCdEfGhIjKl/view"},
		{"no id in open", "https://drive.google.com/open?foo=bar"},
		{"garbage", "not a url at all %%%"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFolderURL(tc.input)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
		})
	}
}
