// internal/workers/notification/record-email-status/handler.go
package recordemailstatus

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
	"bookverse-notifications/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "record-email-status"
)

// StatusRecorder is satisfied by *emaillog.Log.
type StatusRecorder interface {
	UpdateStatus(ctx context.Context, id string, status models.EmailStatus, errMsg string) (*models.EmailMessage, error)
	PermanentlyFailed(msg *models.EmailMessage) bool
}

type Handler struct {
	config   *Config
	recorder StatusRecorder
	obs      *observability.Observability
	logger   logger.Logger
}

func NewHandler(config *Config, recorder StatusRecorder, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		recorder: recorder,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.MessageID) == "" {
		return nil, errors.NewValidationError("missing required fields: messageId")
	}
	status := models.EmailStatus(input.Status)
	if !status.Valid() {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown email status %q", input.Status))
	}

	msg, err := h.recorder.UpdateStatus(ctx, input.MessageID, status, input.Error)
	if err != nil {
		return nil, err
	}

	output := &Output{
		MessageID:         msg.ID,
		Status:            string(msg.Status),
		Retries:           msg.Retries,
		PermanentlyFailed: h.recorder.PermanentlyFailed(msg),
	}
	h.logger.Info("email status recorded", map[string]interface{}{
		"messageId": output.MessageID,
		"status":    output.Status,
		"retries":   output.Retries,
	})
	return output, nil
}
