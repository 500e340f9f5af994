package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Client wraps the Gmail API for one principal's credential. Clients are
// constructed fresh per request by the workspace factory and never shared
// across principals.
type Client struct {
	svc *gmail.Service
}

// NewClient creates a Gmail client over the given authenticated HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListMessages lists message summaries matching a Gmail search query.
func (c *Client) ListMessages(ctx context.Context, query string, maxResults int64) ([]MessageSummary, error) {
	if maxResults <= 0 {
		maxResults = 20
	}

	call := c.svc.Users.Messages.List("me").MaxResults(maxResults).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	listed, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	summaries := make([]MessageSummary, 0, len(listed.Messages))
	for _, m := range listed.Messages {
		msg, err := c.svc.Users.Messages.Get("me", m.Id).
			Format("metadata").
			MetadataHeaders("From", "To", "Subject", "Date").
			Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", m.Id, err)
		}
		summaries = append(summaries, toSummary(msg))
	}
	return summaries, nil
}

// GetMessage retrieves one message with its decoded plain-text body.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	msg, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	result := &Message{
		MessageSummary: toSummary(msg),
		Body:           extractPlainText(msg.Payload),
	}
	return result, nil
}

// SendMessage sends a plain-text email from the authenticated user.
func (c *Client) SendMessage(ctx context.Context, to, subject, body string) (*MessageSummary, error) {
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)
	sent, err := c.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return &MessageSummary{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// GetProfile returns the authenticated user's mailbox profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	p, err := c.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &Profile{
		EmailAddress:  p.EmailAddress,
		MessagesTotal: p.MessagesTotal,
		ThreadsTotal:  p.ThreadsTotal,
	}, nil
}

// extractPlainText walks a message payload for the first text/plain part.
func extractPlainText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, p := range part.Parts {
		if text := extractPlainText(p); text != "" {
			return text
		}
	}
	return ""
}
