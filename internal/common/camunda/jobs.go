package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"
	"hajj-assistant/internal/common/observability"
)

// Job outcome labels shared by prometheus and the otel meter.
const (
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSendFailed = "send_failed"
)

// Jobs reports the outcome of jobs of one task type back to the broker and
// records it. A nil observability only disables the otel instruments.
type Jobs struct {
	taskType string
	retry    *RetryConfig
	obs      *observability.Observability
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewJobs(taskType string, retry *RetryConfig, obs *observability.Observability, log logger.Logger) *Jobs {
	if retry == nil {
		retry = DefaultRetryConfig
	}
	return &Jobs{
		taskType: taskType,
		retry:    retry,
		obs:      obs,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
	}
}

// Complete sends output as the job's variables, re-sending on transient
// gateway errors.
func (j *Jobs) Complete(ctx context.Context, client worker.JobClient, job entities.Job, started time.Time, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		j.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		j.Record(ctx, started, StatusSendFailed)
		return err
	}

	err = ExecuteWithRetry(ctx, j.retry, "complete "+j.taskType, func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
	if err != nil {
		j.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		j.Record(ctx, started, StatusSendFailed)
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(j.taskType).Inc()
	j.Record(ctx, started, StatusCompleted)
	return nil
}

// Fail hands err to the error handler, which either fails the job with
// retries or throws a BPMN error.
func (j *Jobs) Fail(ctx context.Context, client worker.JobClient, job entities.Job, started time.Time, err error) {
	code := "INTERNAL_ERROR"
	if stdErr, ok := apperrors.AsStandard(err); ok {
		code = string(stdErr.Code)
	}
	j.CountFailure(ctx, started, code)
	j.errors.HandleJobError(ctx, client, job, err)
}

// CountFailure records a failed job for handlers that report the failure
// to the broker themselves.
func (j *Jobs) CountFailure(ctx context.Context, started time.Time, code string) {
	metrics.WorkerJobsFailed.WithLabelValues(j.taskType, code).Inc()
	j.Record(ctx, started, StatusFailed)
}

// Record feeds the otel job counter and duration histogram.
func (j *Jobs) Record(ctx context.Context, started time.Time, status string) {
	j.obs.RecordJobProcessed(ctx, j.taskType, status)
	j.obs.RecordJobDuration(ctx, j.taskType, time.Since(started), status)
}
