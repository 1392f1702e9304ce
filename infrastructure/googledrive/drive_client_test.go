package googledrive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/dekalouis/v0-drive/pkg/apperrors"
)

func TestMapDriveErrorTellsCredentialStateApart(t *testing.T) {
	cred := &Credential{AccessToken: "ya29.token"}

	for _, code := range []int{http.StatusForbidden, http.StatusNotFound} {
		gerr := &googleapi.Error{Code: code}

		withCred := mapDriveError(gerr, "folder", cred)
		assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(withCred))
		assert.Contains(t, withCred.Error(), "provided credential",
			"a rejected credential should be named as the reason")

		without := mapDriveError(gerr, "folder", nil)
		assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(without))
		assert.Contains(t, without.Error(), "provide a credential",
			"an anonymous denial should ask for a credential")
		assert.NotContains(t, without.Error(), "provided credential")
	}
}

func TestMapDriveErrorThrottling(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		err := mapDriveError(&googleapi.Error{Code: code}, "file download", nil)
		assert.Equal(t, apperrors.KindTransientUpstream, apperrors.KindOf(err))
		assert.True(t, apperrors.Retryable(err))
	}
}

func TestMapDriveErrorTimeout(t *testing.T) {
	err := mapDriveError(context.DeadlineExceeded, "file download", nil)
	assert.Equal(t, apperrors.KindTransientUpstream, apperrors.KindOf(err))
}

func TestDownloadThumbnailReportsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4E, 0x47})
	}))
	defer srv.Close()

	c := NewDriveClient("key", nil)
	data, contentType, err := c.DownloadThumbnail(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, data)
	assert.Equal(t, "image/png", contentType)
}

func TestDownloadThumbnailGoneURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewDriveClient("key", nil)
	_, _, err := c.DownloadThumbnail(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err),
		"an expired thumbnail URL is a miss, not an outage")
}

func TestResizeThumbnailLink(t *testing.T) {
	assert.Equal(t, "https://lh3.googleusercontent.com/abc=s400",
		resizeThumbnailLink("https://lh3.googleusercontent.com/abc=s220", 400))
	assert.Equal(t, "https://lh3.googleusercontent.com/abc=s400",
		resizeThumbnailLink("https://lh3.googleusercontent.com/abc", 400))
}
