// internal/models/email.go
package models

import "time"

type EmailStatus string

const (
	EmailPending      EmailStatus = "pending"
	EmailSent         EmailStatus = "sent"
	EmailFailed       EmailStatus = "failed"
	EmailBounced      EmailStatus = "bounced"
	EmailDelivered    EmailStatus = "delivered"
	EmailOpened       EmailStatus = "opened"
	EmailClicked      EmailStatus = "clicked"
	EmailUnsubscribed EmailStatus = "unsubscribed"
	EmailSpamReported EmailStatus = "spamReported"
)

func (s EmailStatus) Valid() bool {
	switch s {
	case EmailPending, EmailSent, EmailFailed, EmailBounced, EmailDelivered,
		EmailOpened, EmailClicked, EmailUnsubscribed, EmailSpamReported:
		return true
	}
	return false
}

// RetriesExhausted reports whether retries has gone past limit. Emails and
// digest batches both stop retrying at this point.
func RetriesExhausted(retries, limit int) bool {
	return retries > limit
}

// EmailMessage is an instant or digest email unit.
type EmailMessage struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	TemplateID string            `json:"templateId,omitempty"`
	Category   Category          `json:"category"`
	Variables  map[string]string `json:"variables,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Status     EmailStatus       `json:"status"`
	Error      string            `json:"error,omitempty"`
	Retries    int               `json:"retries"`
}

type CategoryEmailStats struct {
	Sent    int `json:"sent"`
	Opened  int `json:"opened"`
	Clicked int `json:"clicked"`
}

type EmailStats struct {
	TotalSent    int                             `json:"totalSent"`
	Delivered    int                             `json:"delivered"`
	Opened       int                             `json:"opened"`
	Clicked      int                             `json:"clicked"`
	Bounced      int                             `json:"bounced"`
	Unsubscribed int                             `json:"unsubscribed"`
	SpamReported int                             `json:"spamReported"`
	ByCategory   map[Category]CategoryEmailStats `json:"byCategory"`
}

// DigestEntry is one message waiting in a user's digest queue.
type DigestEntry struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ActionURL string    `json:"actionUrl,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
