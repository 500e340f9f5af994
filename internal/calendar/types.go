package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// Event is the view of a calendar event exposed to tools.
type Event struct {
	ID          string   `json:"id"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Start       string   `json:"start,omitempty"`
	End         string   `json:"end,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	HTMLLink    string   `json:"htmlLink,omitempty"`
}

// EventInput is the input for creating an event.
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// toEvent converts a Calendar API event to our Event type.
func toEvent(e *calendar.Event) Event {
	if e == nil {
		return Event{}
	}

	result := Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		HTMLLink:    e.HtmlLink,
	}
	if e.Start != nil {
		result.Start = e.Start.DateTime
		if result.Start == "" {
			result.Start = e.Start.Date
		}
	}
	if e.End != nil {
		result.End = e.End.DateTime
		if result.End == "" {
			result.End = e.End.Date
		}
	}
	for _, a := range e.Attendees {
		if a != nil {
			result.Attendees = append(result.Attendees, a.Email)
		}
	}
	return result
}
