// internal/workers/notification/record-email-status/models.go
package recordemailstatus

// Input is a delivery callback from the email transport.
type Input struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type Output struct {
	MessageID         string `json:"messageId"`
	Status            string `json:"status"`
	Retries           int    `json:"retries"`
	PermanentlyFailed bool   `json:"permanentlyFailed"`
}
