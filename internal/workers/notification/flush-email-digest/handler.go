// internal/workers/notification/flush-email-digest/handler.go
package flushemaildigest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookverse-notifications/internal/common/camunda"
	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/observability"
	"bookverse-notifications/internal/digest"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "flush-email-digest"
)

// Flusher is satisfied by *digest.Scheduler.
type Flusher interface {
	FlushUser(ctx context.Context, userID string, force bool) (digest.FlushResult, error)
	FlushDue(ctx context.Context) (flushed, failed int, err error)
}

type Handler struct {
	config  *Config
	flusher Flusher
	obs     *observability.Observability
	logger  logger.Logger
}

func NewHandler(config *Config, flusher Flusher, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		flusher: flusher,
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
	if job.Variables != "" {
		if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
			h.obs.RecordJobProcessed(context.Background(), TaskType, "failed")
			camunda.FailJob(client, job, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)), h.logger)
			return
		}
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

// Execute flushes one user unconditionally, or sweeps every due user. A
// failed send is reported in the output: the batch stays queued and the
// scheduler's own retry budget applies, so the job itself succeeds.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.UserID == "" {
		flushed, failed, err := h.flusher.FlushDue(ctx)
		if err != nil {
			return nil, err
		}
		h.logger.Info("digest sweep finished", map[string]interface{}{
			"flushed": flushed,
			"failed":  failed,
		})
		return &Output{Flushed: flushed, Failed: failed}, nil
	}

	res, err := h.flusher.FlushUser(ctx, input.UserID, true)
	out := &Output{}
	if res.Message != nil && (res.Sent || res.Dropped) {
		out.MessageID = res.Message.ID
	}
	switch {
	case err != nil && errors.HasCode(err, errors.ErrCodeDigestSendFailed):
		out.Failed = 1
		if res.Dropped {
			out.Dropped = 1
		}
		h.logger.Warn("digest send failed", map[string]interface{}{
			"userId":  input.UserID,
			"retries": res.Retries,
			"dropped": res.Dropped,
		})
		return out, nil
	case err != nil:
		return nil, err
	case res.Sent:
		out.Flushed = 1
	}
	return out, nil
}
