// Package classifyintent exposes language detection and intent
// classification as a job, for processes that route on the intent
// themselves.
package classifyintent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"hajj-assistant/internal/common/camunda"
	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/language"
	"hajj-assistant/internal/core/pipeline"
	"hajj-assistant/internal/core/validate"
	"hajj-assistant/internal/models"
)

const (
	TaskType = "classify-intent"
)

type Handler struct {
	config     *Config
	detector   pipeline.LanguageDetector
	classifier pipeline.IntentClassifier
	jobs       *camunda.Jobs
	logger     logger.Logger
}

func NewHandler(config *Config, detector pipeline.LanguageDetector, classifier pipeline.IntentClassifier, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		detector:   detector,
		classifier: classifier,
		jobs:       jobsFor(config, log),
		logger:     log,
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
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}
	if err := validate.Utterance(input.Text); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	state := models.NewConversationState()
	if input.State != nil {
		state = input.State.Normalized()
	}

	lang := language.Resolve(h.detector.Detect(ctx, input.Text), state.Language)
	res, err := h.classifier.Classify(ctx, models.Utterance{Text: input.Text, Language: lang, AudioTag: input.AudioTag}, state)
	if err != nil {
		if _, ok := apperrors.AsStandard(err); ok {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError(TaskType, err)
		}
		return nil, apperrors.NewExternalServiceError("intent-classifier", err)
	}

	return &Output{
		Language: lang,
		Intent:   res.Intent,
		Slots:    res.Slots,
		Source:   res.Source,
		Vague:    res.Vague,
		Miss:     res.Miss,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, started time.Time, err error) {
	h.jobs.Fail(ctx, client, job, started, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
