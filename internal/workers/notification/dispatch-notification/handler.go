// internal/workers/notification/dispatch-notification/handler.go
package dispatchnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bookverse-notifications/internal/common/camunda"
	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/observability"
	"bookverse-notifications/internal/engine"
	"bookverse-notifications/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "dispatch-notification"
)

// Decider is satisfied by *engine.Engine.
type Decider interface {
	Decide(ctx context.Context, ev models.Event) (engine.Outcome, error)
}

type Handler struct {
	config  *Config
	decider Decider
	obs     *observability.Observability
	logger  logger.Logger
}

func NewHandler(config *Config, decider Decider, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		decider: decider,
		obs:     obs,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.obs.RecordJobProcessed(context.Background(), TaskType, "failed")
		camunda.FailJob(client, job, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)), h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	status := "completed"
	if err != nil {
		status = "failed"
		camunda.FailJob(client, job, err, h.logger)
	} else {
		camunda.CompleteJob(client, job, output, h.logger)
	}
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), status)
}

// Execute runs one event through the engine. Channel failures are part of
// the output; only events that cannot be evaluated fail the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	outcome, err := h.decider.Decide(ctx, toEvent(input))
	if err != nil {
		return nil, err
	}

	output := &Output{
		Status:   string(outcome.Status),
		Reason:   outcome.Reason,
		Channels: outcome.Channels,
	}
	if output.Channels == nil {
		output.Channels = []string{}
	}
	if n := outcome.Notification; n != nil {
		output.NotificationID = n.ID
		output.GroupID = n.GroupID
	}
	if outcome.Group != nil {
		output.GroupSummary = outcome.Group.Summary
	}
	if outcome.Email != nil {
		output.EmailMessageID = outcome.Email.ID
	}
	if len(outcome.Failures) > 0 {
		output.Failures = make(map[string]string, len(outcome.Failures))
		for channel, ferr := range outcome.Failures {
			output.Failures[channel] = ferr.Error()
		}
	}

	h.logger.Info("notification dispatched", map[string]interface{}{
		"recipientId":    input.RecipientID,
		"category":       input.Category,
		"status":         output.Status,
		"channels":       output.Channels,
		"notificationId": output.NotificationID,
	})
	return output, nil
}

func validateInput(input *Input) error {
	var missing []string
	if strings.TrimSpace(input.RecipientID) == "" {
		missing = append(missing, "recipientId")
	}
	if input.Category == "" {
		missing = append(missing, "category")
	}
	if input.Title == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return errors.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	if input.Priority != "" && !models.Priority(input.Priority).Valid() {
		return errors.NewValidationError(fmt.Sprintf("unknown priority %q", input.Priority))
	}
	return nil
}

func toEvent(input *Input) models.Event {
	return models.Event{
		UserID:     input.RecipientID,
		Category:   models.Category(input.Category),
		Title:      input.Title,
		Body:       input.Body,
		Data:       input.Data,
		ActionURL:  input.ActionURL,
		Priority:   models.Priority(input.Priority),
		GroupID:    input.GroupID,
		TemplateID: input.TemplateID,
		Variables:  input.Variables,
	}
}
