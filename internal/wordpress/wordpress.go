package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Client talks to a WordPress REST API using a static application-password
// pair sent as a basic-auth header. No token refresh flow exists.
type Client struct {
	apiURL string
	auth   string
	client *http.Client
}

func New(apiURL, username, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		auth:   base64.StdEncoding.EncodeToString([]byte(username + ":" + apiKey)),
		client: &http.Client{Timeout: timeout},
	}
}

// Post is the subset of the created-post response the pipeline uses.
type Post struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

// CreatePostRequest carries everything optional about a new post.
type CreatePostRequest struct {
	Title           string
	Content         string
	Status          string // "publish" or "future"
	CategoryID      int64
	FeaturedMediaID int64
	PublishAt       *time.Time
}

// CreatePost creates a post and returns its id and canonical link.
func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	payload := map[string]interface{}{
		"title":   req.Title,
		"content": req.Content,
		"status":  req.Status,
		"slug":    slug.Make(req.Title),
	}
	if req.CategoryID != 0 {
		payload["categories"] = []int64{req.CategoryID}
	}
	if req.FeaturedMediaID != 0 {
		payload["featured_media"] = req.FeaturedMediaID
	}
	if req.PublishAt != nil {
		payload["date"] = req.PublishAt.Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding post payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building post request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Basic "+c.auth)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("creating post %q: %w", req.Title, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("creating post %q: HTTP %d: %s", req.Title, resp.StatusCode, string(detail))
	}

	var post Post
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return nil, fmt.Errorf("decoding post response: %w", err)
	}
	return &post, nil
}

// UploadMedia uploads raw image bytes and returns the assigned media id.
// When altText is non-empty, the media item's descriptive metadata is patched
// afterwards; a metadata failure does not fail the upload.
func (c *Client) UploadMedia(ctx context.Context, data []byte, filename, altText string) (int64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("no image data to upload")
	}
	if filename == "" {
		return 0, fmt.Errorf("no filename for upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/media", bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("building media request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.auth)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	req.Header.Set("Content-Type", contentTypeFor(filename))

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("uploading media %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("uploading media %s: HTTP %d: %s", filename, resp.StatusCode, string(detail))
	}

	var media struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return 0, fmt.Errorf("decoding media response: %w", err)
	}

	if altText != "" {
		// Metadata is cosmetic; the media item exists either way.
		if err := c.updateMediaMeta(ctx, media.ID, altText); err != nil {
			log.Printf("Media %d: metadata update failed: %v", media.ID, err)
		}
	}

	return media.ID, nil
}

func (c *Client) updateMediaMeta(ctx context.Context, mediaID int64, altText string) error {
	payload, err := json.Marshal(map[string]string{
		"alt_text":    altText,
		"description": altText,
		"caption":     altText,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/media/%d", c.apiURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Basic "+c.auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func contentTypeFor(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
