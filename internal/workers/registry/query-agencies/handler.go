// Package queryagencies runs the fixed registry queries (statistics and
// named lists) as a zeebe job worker. The statements are hand-written; no
// oracle is involved.
package queryagencies

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"hajj-assistant/internal/common/camunda"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
	"hajj-assistant/internal/workers/registry/query-agencies/queries"
)

const (
	TaskType = "query-agencies"
)

var (
	ErrQueryExecutionFailed = errors.New("QUERY_FAILED")
	ErrQueryTimeout         = errors.New("QUERY_TIMEOUT")
	ErrInvalidQueryType     = errors.New("INVALID_QUERY_TYPE")
	ErrMissingParam         = errors.New("MISSING_PARAMETER")
)

type Handler struct {
	config   *Config
	db       *sql.DB
	registry *schema.Registry
	jobs     *camunda.Jobs
	logger   logger.Logger
}

func NewHandler(config *Config, db *sql.DB, registry *schema.Registry, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		db:       db,
		registry: registry,
		jobs:     jobsFor(config, log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, started, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "QUERY_FAILED"
		retries := int32(0)
		switch {
		case errors.Is(err, ErrQueryTimeout):
			errorCode = "QUERY_TIMEOUT"
			retries = 2
		case errors.Is(err, ErrInvalidQueryType):
			errorCode = "INVALID_QUERY_TYPE"
		case errors.Is(err, ErrMissingParam):
			errorCode = "MISSING_PARAMETER"
		}
		h.failJob(ctx, client, job, started, errorCode, err.Error(), retries)
		return
	}

	_ = h.jobs.Complete(ctx, client, job, started, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	queryType := models.QueryType(input.QueryType)
	if _, exists := queries.Registry[queryType]; !exists {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQueryType, input.QueryType)
	}

	params := make(map[string]interface{})
	if input.Country != "" {
		params["country"] = input.Country
	}
	if input.Limit > 0 {
		params["limit"] = input.Limit
	}

	data, rowCount, execTime, err := queries.Execute(ctx, h.db, h.registry, queryType, params)
	if err != nil {
		if errors.Is(err, queries.ErrMissingParam) {
			return nil, fmt.Errorf("%w: %v", ErrMissingParam, err)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrQueryTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}

	return &Output{
		Data:               data,
		RowCount:           rowCount,
		QueryExecutionTime: execTime,
	}, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, started time.Time, errorCode, errorMessage string, retries int32) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})
	h.jobs.CountFailure(ctx, started, errorCode)

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
