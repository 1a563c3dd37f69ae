package camunda

import (
	"context"
	"fmt"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	ErrCodeParse    = "PARSE_ERROR"
	ErrCodeInternal = "INTERNAL_ERROR"
)

// CompleteJob hands output back to the workflow as job variables.
func CompleteJob(client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
}

// FailJob hands err to the shared error handler: retryable codes fail the
// job with retries left, everything else is thrown as a BPMN error.
func FailJob(client worker.JobClient, job entities.Job, err error, log logger.Logger) {
	code, _ := BPMNCode(err)
	metrics.WorkerJobsFailed.WithLabelValues(job.Type, code).Inc()
	errors.NewErrorHandler(log).HandleJobError(context.Background(), client, job, err)
}

// BPMNCode is the error code and message a failed job is thrown with.
func BPMNCode(err error) (string, string) {
	if stdErr, ok := errors.AsStandard(err); ok {
		bpmn := errors.ConvertToBPMNError(stdErr)
		if bpmn.Details != "" {
			return bpmn.Code, fmt.Sprintf("%s: %s", bpmn.Message, bpmn.Details)
		}
		return bpmn.Code, bpmn.Message
	}
	return ErrCodeInternal, err.Error()
}
