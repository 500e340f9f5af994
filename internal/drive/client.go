package drive

import (
	"context"
	"fmt"
	"net/http"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Client wraps the Google Drive API for one principal's credential.
type Client struct {
	svc *drive.Service
}

// NewClient creates a Drive client over the given authenticated HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	svc, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListFiles lists files matching a Drive search query.
func (c *Client) ListFiles(ctx context.Context, query string, maxResults int64) ([]File, error) {
	if maxResults <= 0 {
		maxResults = 20
	}

	call := c.svc.Files.List().
		PageSize(maxResults).
		Fields("files(id, name, mimeType, modifiedTime, size, webViewLink)").
		Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	listed, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]File, 0, len(listed.Files))
	for _, f := range listed.Files {
		files = append(files, toFile(f))
	}
	return files, nil
}

// GetFile retrieves metadata for a single file.
func (c *Client) GetFile(ctx context.Context, id string) (*File, error) {
	f, err := c.svc.Files.Get(id).
		Fields("id, name, mimeType, modifiedTime, size, webViewLink, description").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	result := toFile(f)
	return &result, nil
}
