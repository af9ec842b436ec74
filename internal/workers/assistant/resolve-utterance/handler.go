// Package resolveutterance answers one user utterance inside a stored
// session, so a BPMN process can drive the assistant turn by turn.
package resolveutterance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"hajj-assistant/internal/common/camunda"
	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/pipeline"
	"hajj-assistant/internal/session"
)

const (
	TaskType = "resolve-utterance"
)

// TurnRunner resolves a turn against stored session state.
type TurnRunner interface {
	Turn(ctx context.Context, id, text, audioTag string) (*pipeline.TurnResult, error)
}

type Handler struct {
	config   *Config
	sessions TurnRunner
	jobs     *camunda.Jobs
	logger   logger.Logger
}

func NewHandler(config *Config, sessions TurnRunner, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		sessions: sessions,
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
		h.fail(ctx, client, job, started, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, started, err)
		return
	}

	_ = h.jobs.Complete(ctx, client, job, started, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.SessionID) == "" {
		return nil, apperrors.NewInvalidInputError("sessionId is required")
	}

	res, err := h.sessions.Turn(ctx, input.SessionID, input.Text, input.AudioTag)
	if err != nil {
		if errors.Is(err, session.ErrTurnInProgress) {
			return nil, apperrors.NewSessionBusyError(input.SessionID)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError(TaskType, err)
		}
		return nil, apperrors.NewExternalServiceError("session-store", err)
	}

	return &Output{
		Response: res.Response,
		Intent:   res.Intent,
		Outcome:  res.Outcome,
		State:    res.State,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, started time.Time, err error) {
	h.jobs.Fail(ctx, client, job, started, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
