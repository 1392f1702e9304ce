package googledrive

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/dekalouis/v0-drive/pkg/apperrors"
)

var (
	foldersPathRe = regexp.MustCompile(`^/drive(?:/u/\d+)?/folders/([a-zA-Z0-9_-]+)$`)
	folderIDRe    = regexp.MustCompile(`^[a-zA-Z0-9_-]{10,}$`)
)

// ParseFolderURL extracts the Drive folder ID from the URL shapes users
// paste:
//
//	https://drive.google.com/drive/folders/{id}
//	https://drive.google.com/drive/u/0/folders/{id}
//	https://drive.google.com/open?id={id}
//
// A bare folder ID is also accepted.
func ParseFolderURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.New(apperrors.KindInvalidInput, "folder URL is empty")
	}

	if folderIDRe.MatchString(raw) && !strings.Contains(raw, "/") {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInvalidInput, "invalid folder URL", err)
	}

	if host := strings.ToLower(u.Host); host != "" && host != "drive.google.com" && host != "www.drive.google.com" {
		return "", apperrors.Newf(apperrors.KindInvalidInput, "not a Google Drive URL: %s", u.Host)
	}

	if m := foldersPathRe.FindStringSubmatch(u.Path); m != nil {
		return m[1], nil
	}

	if u.Path == "/open" {
		if id := u.Query().Get("id"); id != "" && folderIDRe.MatchString(id) {
			return id, nil
		}
	}

	return "", apperrors.New(apperrors.KindInvalidInput, "could not extract a folder ID from the URL")
}
