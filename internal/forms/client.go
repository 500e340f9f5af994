package forms

import (
	"context"
	"fmt"
	"net/http"

	drive "google.golang.org/api/drive/v3"
	forms "google.golang.org/api/forms/v1"
	"google.golang.org/api/option"
)

// formMimeType identifies Google Forms documents in Drive searches; the
// Forms API itself has no list endpoint.
const formMimeType = "application/vnd.google-apps.form"

// Client wraps the Google Forms API for one principal's credential. It
// carries a Drive service alongside the Forms service because form listing
// is only possible through a Drive query.
type Client struct {
	svc      *forms.Service
	driveSvc *drive.Service
}

// NewClient creates a Forms client over the given authenticated HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	svc, err := forms.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Forms service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service for form listing: %w", err)
	}
	return &Client{svc: svc, driveSvc: driveSvc}, nil
}

// GetForm retrieves a form's structure by id.
func (c *Client) GetForm(ctx context.Context, formID string) (*Form, error) {
	f, err := c.svc.Forms.Get(formID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get form: %w", err)
	}

	result := toForm(f)
	return &result, nil
}

// CreateForm creates a new form with the given title. The Forms API only
// accepts a title at creation; items are added through batchUpdate later.
func (c *Client) CreateForm(ctx context.Context, title string) (*Form, error) {
	if title == "" {
		return nil, fmt.Errorf("form title is required")
	}

	created, err := c.svc.Forms.Create(&forms.Form{
		Info: &forms.Info{Title: title, DocumentTitle: title},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}

	result := toForm(created)
	return &result, nil
}

// ListForms lists the user's forms through a Drive query.
func (c *Client) ListForms(ctx context.Context, maxResults int64) ([]FormSummary, error) {
	if maxResults <= 0 {
		maxResults = 20
	}

	listed, err := c.driveSvc.Files.List().
		Q(fmt.Sprintf("mimeType='%s' and trashed=false", formMimeType)).
		PageSize(maxResults).
		Fields("files(id, name, modifiedTime, webViewLink)").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	summaries := make([]FormSummary, 0, len(listed.Files))
	for _, f := range listed.Files {
		summaries = append(summaries, FormSummary{
			FormID:       f.Id,
			Title:        f.Name,
			ModifiedTime: f.ModifiedTime,
			WebViewLink:  f.WebViewLink,
		})
	}
	return summaries, nil
}

// ListResponses lists the submitted responses for a form.
func (c *Client) ListResponses(ctx context.Context, formID string) ([]Response, error) {
	listed, err := c.svc.Forms.Responses.List(formID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list form responses: %w", err)
	}

	responses := make([]Response, 0, len(listed.Responses))
	for _, r := range listed.Responses {
		responses = append(responses, toResponse(r))
	}
	return responses, nil
}
