// Package filefraudreport files a fraud report collected outside the chat,
// for example by a web form feeding a BPMN process.
package filefraudreport

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
	"hajj-assistant/internal/core/report"
	"hajj-assistant/internal/models"
)

const (
	TaskType = "file-fraud-report"
)

// Filer stores a complete report.
type Filer interface {
	File(ctx context.Context, lang models.Language, sessionID string, answers models.ReportDraft) (*models.Report, error)
}

type Handler struct {
	config *Config
	filer  Filer
	jobs   *camunda.Jobs
	logger logger.Logger
}

func NewHandler(config *Config, filer Filer, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		filer:  filer,
		jobs:   jobsFor(config, log),
		logger: log,
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

	if err := h.jobs.Complete(ctx, client, job, started, output); err != nil {
		// the report is already stored; a retried job would file it twice
		h.logger.Warn("report stored but job not completed", map[string]interface{}{
			"referenceId": output.ReferenceID,
		})
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	lang := models.ParseLanguage(input.Language)
	if !lang.Known() {
		lang = models.LanguageEnglish
	}

	r, err := h.filer.File(ctx, lang, input.SessionID, models.ReportDraft{
		AgencyName: input.AgencyName,
		City:       input.City,
		Details:    input.Details,
		Contact:    input.Contact,
	})
	if err != nil {
		if errors.Is(err, report.ErrRejectedAnswer) {
			return nil, apperrors.NewInvalidInputError(err.Error())
		}
		if _, ok := apperrors.AsStandard(err); ok {
			return nil, err
		}
		return nil, apperrors.NewReportFailedError(err)
	}

	return &Output{
		ReferenceID:   r.ReferenceID,
		SubmittedAt:   r.SubmittedAt,
		MatchedAgency: r.MatchedAgency,
		Authorization: r.Authorization,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, started time.Time, err error) {
	h.jobs.Fail(ctx, client, job, started, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
