package camunda

import (
	"context"
	"fmt"
	"time"

	"hajj-assistant/internal/common/config"
	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"
	"hajj-assistant/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandlerFunc matches the Handle method of every job worker package.
type JobHandlerFunc func(client worker.JobClient, job entities.Job)

// Instrument records handler duration. Completion and failure counts are
// recorded by the handlers themselves.
func Instrument(taskType string, handler JobHandlerFunc) JobHandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		handler(client, job)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	}
}

// CheckVariables validates job variables against the activity's input
// schema and returns a SCHEMA_VALIDATION_FAILED error when they do not fit.
func CheckVariables(activity *registry.Activity, vars map[string]interface{}) error {
	res, err := activity.ValidateInput(vars)
	if err != nil {
		return apperrors.NewSchemaValidationError(err.Error())
	}
	if !res.Valid {
		return apperrors.NewSchemaValidationError(fmt.Sprintf("%s: %s", activity.TaskType, res.Summary()))
	}
	return nil
}

// ValidateVariables rejects jobs whose variables do not match the registered
// input schema before handler sees them.
func ValidateVariables(activity *registry.Activity, handler JobHandlerFunc, jobs *Jobs) JobHandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		started := time.Now()
		vars, err := job.GetVariablesAsMap()
		if err == nil {
			err = CheckVariables(activity, vars)
		} else {
			err = apperrors.NewSchemaValidationError(fmt.Sprintf("unreadable variables: %v", err))
		}
		if err != nil {
			jobs.Fail(context.Background(), client, job, started, err)
			return
		}
		handler(client, job)
	}
}

// StartWorker opens a job worker for taskType unless it is disabled. The
// returned worker is nil when nothing was opened.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandlerFunc, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(Instrument(taskType, handler))).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jw
}
