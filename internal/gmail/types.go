package gmail

import (
	gmail "google.golang.org/api/gmail/v1"
)

// MessageSummary is the metadata view of a Gmail message.
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Date     string `json:"date,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// Message is a full message including its decoded plain-text body.
type Message struct {
	MessageSummary
	Body string `json:"body,omitempty"`
}

// Profile describes the authenticated user's mailbox.
type Profile struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int64  `json:"messagesTotal"`
	ThreadsTotal  int64  `json:"threadsTotal"`
}

// toSummary converts a Gmail API message to a MessageSummary.
func toSummary(msg *gmail.Message) MessageSummary {
	if msg == nil {
		return MessageSummary{}
	}

	s := MessageSummary{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				s.From = h.Value
			case "To":
				s.To = h.Value
			case "Subject":
				s.Subject = h.Value
			case "Date":
				s.Date = h.Value
			}
		}
	}
	return s
}
