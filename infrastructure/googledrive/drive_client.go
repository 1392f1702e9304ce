package googledrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
	"github.com/dekalouis/v0-drive/pkg/ratelimit"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"

	downloadAttempts   = 3
	downloadTimeout    = 30 * time.Second
	thumbnailTimeout   = 10 * time.Second
	minThumbnailSize   = 32
	maxThumbnailSize   = 1600
	imageListFields    = "nextPageToken, files(id, name, mimeType, size, md5Checksum, modifiedTime, thumbnailLink, webViewLink)"
	maxFoldersPerScan  = 500
)

// DriveImage is the listing view of one image file.
type DriveImage struct {
	ID            string
	Name          string
	MimeType      string
	Size          int64
	VersionToken  string // md5Checksum when present, modifiedTime otherwise
	ThumbnailLink string
	WebViewLink   string
}

// DriveClient wraps the Drive v3 API. Credentials are per-call: a nil
// Credential uses the configured API key, which reaches public folders only.
type DriveClient struct {
	apiKey     string
	limiter    *ratelimit.Limiter
	httpClient *http.Client
	thumbCache *thumbCache
}

func NewDriveClient(apiKey string, limiter *ratelimit.Limiter) *DriveClient {
	return &DriveClient{
		apiKey:     apiKey,
		limiter:    limiter,
		httpClient: &http.Client{Timeout: thumbnailTimeout},
		thumbCache: newThumbCache(),
	}
}

func (c *DriveClient) service(ctx context.Context, cred *Credential) (*drive.Service, error) {
	var opts []option.ClientOption
	if cred != nil {
		ts := oauth2.StaticTokenSource(cred.Token())
		opts = append(opts, option.WithTokenSource(ts))
	} else {
		if c.apiKey == "" {
			return nil, apperrors.New(apperrors.KindPermissionDenied,
				"no credential provided and no API key configured")
		}
		opts = append(opts, option.WithAPIKey(c.apiKey))
	}
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransientUpstream, "failed to create drive service", err)
	}
	return srv, nil
}

func (c *DriveClient) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Acquire(ctx)
}

// GetFolder resolves a folder's name and verifies access.
func (c *DriveClient) GetFolder(ctx context.Context, cred *Credential, folderID string) (string, error) {
	srv, err := c.service(ctx, cred)
	if err != nil {
		return "", err
	}
	if err := c.acquire(ctx); err != nil {
		return "", err
	}

	f, err := srv.Files.Get(folderID).
		Fields("id, name, mimeType").
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return "", mapDriveError(err, "folder", cred)
	}
	if f.MimeType != folderMimeType {
		return "", apperrors.New(apperrors.KindInvalidInput, "the ID does not point to a folder")
	}
	return f.Name, nil
}

// ListImagesRecursive walks the folder and its subfolders breadth-first,
// returning every file whose MIME type the pipeline supports. Pagination
// is handled per folder; the walk is capped to keep pathological trees
// from running away.
func (c *DriveClient) ListImagesRecursive(ctx context.Context, cred *Credential, folderID string) ([]DriveImage, error) {
	srv, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	var images []DriveImage
	queue := []string{folderID}
	visited := map[string]bool{folderID: true}
	scanned := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		scanned++
		if scanned > maxFoldersPerScan {
			logger.DriveError("list_recursive", "folder tree too deep, truncating scan", nil,
				map[string]interface{}{"root": folderID, "scanned": scanned})
			break
		}

		pageToken := ""
		for {
			if err := c.acquire(ctx); err != nil {
				return nil, err
			}

			call := srv.Files.List().
				Q(fmt.Sprintf("'%s' in parents and trashed = false", current)).
				Fields(googleapi.Field(imageListFields)).
				PageSize(1000).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}

			result, err := call.Do()
			if err != nil {
				return nil, mapDriveError(err, "folder listing", cred)
			}

			for _, f := range result.Files {
				switch {
				case f.MimeType == folderMimeType:
					if !visited[f.Id] {
						visited[f.Id] = true
						queue = append(queue, f.Id)
					}
				case models.IsSupportedMimeType(f.MimeType):
					images = append(images, DriveImage{
						ID:            f.Id,
						Name:          f.Name,
						MimeType:      f.MimeType,
						Size:          f.Size,
						VersionToken:  versionToken(f),
						ThumbnailLink: f.ThumbnailLink,
						WebViewLink:   f.WebViewLink,
					})
				}
			}

			pageToken = result.NextPageToken
			if pageToken == "" {
				break
			}
		}
	}

	return images, nil
}

// versionToken prefers the content hash; Drive omits it for some formats,
// in which case the modified time stands in.
func versionToken(f *drive.File) string {
	if f.Md5Checksum != "" {
		return f.Md5Checksum
	}
	return f.ModifiedTime
}

// DownloadBytes fetches the file content with bounded retries. After the
// media endpoint is exhausted it falls back to the large-size thumbnail,
// which often survives quota and permission quirks the media URL does not.
func (c *DriveClient) DownloadBytes(ctx context.Context, cred *Credential, fileID string) ([]byte, error) {
	srv, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		if err := c.acquire(ctx); err != nil {
			return nil, err
		}

		data, err := c.downloadOnce(ctx, srv, fileID)
		if err == nil {
			return data, nil
		}
		lastErr = err

		mapped := mapDriveError(err, "file download", cred)
		if !apperrors.Retryable(mapped) {
			return nil, mapped
		}

		if attempt < downloadAttempts {
			backoff := time.Duration(1<<uint(attempt)) * time.Second // 2s, 4s
			backoff += time.Duration(rand.Int63n(int64(time.Second)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	logger.DriveError("download", "media endpoint exhausted, trying thumbnail fallback", lastErr,
		map[string]interface{}{"file_id": fileID})

	data, thumbErr := c.downloadThumbnailFallback(ctx, cred, fileID)
	if thumbErr == nil {
		return data, nil
	}
	return nil, mapDriveError(lastErr, "file download", cred)
}

func (c *DriveClient) downloadOnce(ctx context.Context, srv *drive.Service, fileID string) ([]byte, error) {
	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	resp, err := srv.Files.Get(fileID).SupportsAllDrives(true).Context(dlCtx).Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *DriveClient) downloadThumbnailFallback(ctx context.Context, cred *Credential, fileID string) ([]byte, error) {
	url, err := c.FreshThumbnailURL(ctx, cred, fileID, maxThumbnailSize)
	if err != nil {
		return nil, err
	}
	data, _, err := c.DownloadThumbnail(ctx, url)
	return data, err
}

// FreshThumbnailURL returns a thumbnail link at the requested size.
// Drive thumbnail links expire after a few hours, so results are cached
// briefly per file and size.
func (c *DriveClient) FreshThumbnailURL(ctx context.Context, cred *Credential, fileID string, size int) (string, error) {
	if size < minThumbnailSize {
		size = minThumbnailSize
	}
	if size > maxThumbnailSize {
		size = maxThumbnailSize
	}

	cacheKey := fmt.Sprintf("%s:%d", fileID, size)
	if url, ok := c.thumbCache.get(cacheKey); ok {
		return url, nil
	}

	srv, err := c.service(ctx, cred)
	if err != nil {
		return "", err
	}
	if err := c.acquire(ctx); err != nil {
		return "", err
	}

	f, err := srv.Files.Get(fileID).
		Fields("id, thumbnailLink").
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return "", mapDriveError(err, "thumbnail lookup", cred)
	}
	if f.ThumbnailLink == "" {
		return "", apperrors.New(apperrors.KindNotFound, "file has no thumbnail")
	}

	url := resizeThumbnailLink(f.ThumbnailLink, size)
	c.thumbCache.put(cacheKey, url)
	return url, nil
}

// resizeThumbnailLink swaps the trailing =sNNN size directive.
func resizeThumbnailLink(link string, size int) string {
	if idx := strings.LastIndex(link, "=s"); idx != -1 && idx > strings.LastIndex(link, "/") {
		link = link[:idx]
	}
	return fmt.Sprintf("%s=s%d", link, size)
}

// DownloadThumbnail fetches thumbnail bytes from a previously resolved
// URL and reports the content type the upstream served.
func (c *DriveClient) DownloadThumbnail(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.KindInvalidInput, "invalid thumbnail URL", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.KindTransientUpstream, "thumbnail fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := apperrors.KindTransientUpstream
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
			kind = apperrors.KindNotFound
		}
		return nil, "", apperrors.Newf(kind, "thumbnail fetch returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.KindTransientUpstream, "thumbnail read failed", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// mapDriveError translates googleapi failures into the error taxonomy.
// 403 means the caller lacks access; 404 from Drive usually means the same
// thing for link-shared folders, so both surface as PermissionDenied. The
// message tells the caller whether a different credential might help or
// whether one is missing entirely.
func mapDriveError(err error, what string, cred *Credential) error {
	denied := func() error {
		if cred != nil {
			return apperrors.Wrap(apperrors.KindPermissionDenied,
				fmt.Sprintf("the provided credential does not grant access to the %s", what), err)
		}
		return apperrors.Wrap(apperrors.KindPermissionDenied,
			fmt.Sprintf("the %s is not shared publicly; provide a credential with access to it", what), err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusForbidden, gerr.Code == http.StatusNotFound:
			return denied()
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return apperrors.Wrap(apperrors.KindTransientUpstream,
				fmt.Sprintf("drive is throttling or unavailable for the %s", what), err)
		default:
			return apperrors.Wrap(apperrors.KindProcessingFailed,
				fmt.Sprintf("drive rejected the %s request", what), err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.KindTransientUpstream,
			fmt.Sprintf("the %s request timed out", what), err)
	}
	return apperrors.Wrap(apperrors.KindTransientUpstream,
		fmt.Sprintf("the %s request failed", what), err)
}
