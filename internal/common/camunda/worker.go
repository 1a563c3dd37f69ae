// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"bookverse-notifications/internal/common/config"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobWorker is one open Zeebe subscription for a task type.
type JobWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker for taskType. The handler is timed into
// worker_job_duration_seconds.
func StartWorker(
	client zbc.Client,
	taskType string,
	cfg config.WorkerConfig,
	handler worker.JobHandler,
	log logger.Logger,
) *JobWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(func(jc worker.JobClient, job entities.Job) {
			start := time.Now()
			handler(jc, job)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		}).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(config.GetDuration(cfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": cfg.MaxJobsActive,
		"timeout":       cfg.Timeout,
	})

	return &JobWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

// Stop closes the subscription and waits for in-flight jobs.
func (w *JobWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
