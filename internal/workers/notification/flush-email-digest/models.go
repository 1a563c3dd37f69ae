// internal/workers/notification/flush-email-digest/models.go
package flushemaildigest

// Input names one user to flush now. Without a user id every due digest is
// flushed.
type Input struct {
	UserID string `json:"userId,omitempty"`
}

type Output struct {
	Flushed   int    `json:"flushed"`
	Failed    int    `json:"failed"`
	Dropped   int    `json:"dropped"`
	MessageID string `json:"messageId,omitempty"`
}
