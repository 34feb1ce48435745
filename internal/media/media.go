package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Uploader stores image bytes with the publishing collaborator and returns
// the opaque media reference.
type Uploader interface {
	UploadMedia(ctx context.Context, data []byte, filename, altText string) (int64, error)
}

// Resolver turns a raw image source string into an uploaded media reference.
type Resolver struct {
	uploader Uploader
	client   *http.Client
}

func NewResolver(uploader Uploader, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Resolver{
		uploader: uploader,
		client:   &http.Client{Timeout: timeout},
	}
}

var (
	drivePathPattern  = regexp.MustCompile(`drive\.google\.com/file/d/([a-zA-Z0-9_-]+)`)
	driveQueryPattern = regexp.MustCompile(`drive\.google\.com/[^?]*\?(?:.*&)?id=([a-zA-Z0-9_-]+)`)
)

// DirectURL rewrites a Drive share link to its direct-download form. Both the
// path-segment form (/file/d/<id>) and the query-parameter form (?id=<id>)
// are recognized; anything else passes through unchanged.
func DirectURL(raw string) string {
	if m := drivePathPattern.FindStringSubmatch(raw); len(m) == 2 {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	if m := driveQueryPattern.FindStringSubmatch(raw); len(m) == 2 {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	return raw
}

// Resolve downloads the image and uploads it, returning the media reference.
// Any failure here is recoverable for the row: the caller logs it and
// publishes without a featured image.
func (r *Resolver) Resolve(ctx context.Context, imageLink, displayName, articleTitle string) (int64, error) {
	directURL := DirectURL(imageLink)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
	if err != nil {
		return 0, fmt.Errorf("building image request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("downloading image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading image body: %w", err)
	}

	filename := FilenameFor(imageLink, displayName, articleTitle)

	mediaID, err := r.uploader.UploadMedia(ctx, data, filename, articleTitle)
	if err != nil {
		return 0, fmt.Errorf("uploading image: %w", err)
	}
	return mediaID, nil
}

// FilenameFor derives an upload filename. A display name from the sheet wins;
// otherwise the image link's path basename is used, query stripped. When
// neither resolves it falls back to the slugged article title, then to a
// generated name. A missing extension becomes .jpg.
func FilenameFor(imageLink, displayName, articleTitle string) string {
	name := ""

	if displayName != "" {
		name = slug.Make(displayName)
	}

	if name == "" {
		if u, err := url.Parse(imageLink); err == nil {
			name = path.Base(u.Path)
		}
		if name == "." || name == "/" {
			name = ""
		}
		if idx := strings.Index(name, "?"); idx >= 0 {
			name = name[:idx]
		}
	}

	if name == "" {
		if s := slug.Make(articleTitle); s != "" {
			name = s
		} else {
			name = "image-" + uuid.NewString()[:8]
		}
	}

	if !strings.Contains(name, ".") {
		name += ".jpg"
	}
	return name
}
