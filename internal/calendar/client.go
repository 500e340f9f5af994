package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Client wraps the Google Calendar API for one principal's credential.
type Client struct {
	svc *calendar.Service
}

// NewClient creates a Calendar client over the given authenticated HTTP
// client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListEvents lists upcoming events on a calendar within the given window.
// A zero timeMax means one week after timeMin.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, maxResults int64) ([]Event, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	if timeMin.IsZero() {
		timeMin = time.Now()
	}
	if timeMax.IsZero() {
		timeMax = timeMin.Add(7 * 24 * time.Hour)
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	listed, err := c.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResults).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]Event, 0, len(listed.Items))
	for _, e := range listed.Items {
		events = append(events, toEvent(e))
	}
	return events, nil
}

// CreateEvent creates an event on a calendar.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*Event, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	if input.Summary == "" {
		return nil, fmt.Errorf("event summary is required")
	}

	ev := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       &calendar.EventDateTime{DateTime: input.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: input.End.Format(time.RFC3339)},
	}
	for _, attendee := range input.Attendees {
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{Email: attendee})
	}

	created, err := c.svc.Events.Insert(calendarID, ev).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	result := toEvent(created)
	return &result, nil
}
