// internal/workers/notification/dispatch-notification/models.go
package dispatchnotification

type Input struct {
	RecipientID string                 `json:"recipientId"`
	Category    string                 `json:"category"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Data        map[string]interface{} `json:"data,omitempty"`
	ActionURL   string                 `json:"actionUrl,omitempty"`
	Priority    string                 `json:"priority,omitempty"`
	GroupID     string                 `json:"groupId,omitempty"`
	TemplateID  string                 `json:"templateId,omitempty"`
	Variables   map[string]string      `json:"variables,omitempty"`
}

type Output struct {
	NotificationID string            `json:"notificationId"`
	Status         string            `json:"status"` // "suppressed", "delivered", "queuedForDigest"
	Reason         string            `json:"reason,omitempty"`
	Channels       []string          `json:"channels"`
	Failures       map[string]string `json:"failures,omitempty"`
	GroupID        string            `json:"groupId,omitempty"`
	GroupSummary   string            `json:"groupSummary,omitempty"`
	EmailMessageID string            `json:"emailMessageId,omitempty"`
}
