// Package matchagency resolves a free-text agency name against the
// registry and reports its authorization status.
package matchagency

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"hajj-assistant/internal/common/camunda"
	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/core/pipeline"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

const (
	TaskType = "match-agency"
)

type Handler struct {
	config  *Config
	matcher pipeline.AgencyMatcher
	jobs    *camunda.Jobs
	logger  logger.Logger
}

func NewHandler(config *Config, m pipeline.AgencyMatcher, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		matcher: m,
		jobs:    jobsFor(config, log),
		logger:  log,
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

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewInvalidInputError("name is required")
	}

	location := strings.TrimSpace(input.Location)
	if loc, ok := schema.LookupLocation(location); ok {
		location = loc.Canonical
	}

	res := h.matcher.Match(input.Name, matcher.MatchOptions{Location: location})

	candidates := res.Candidates
	if candidates == nil {
		candidates = []models.MatchCandidate{}
	}
	if input.Limit > 0 && len(candidates) > input.Limit {
		candidates = candidates[:input.Limit]
	}

	out := &Output{Candidates: candidates, Ambiguous: res.Ambiguous}
	best, ok := res.Best()
	switch {
	case !ok:
		out.Verdict = VerdictNoMatch
	case res.Ambiguous:
		out.Verdict = VerdictAmbiguous
	default:
		out.Best = &best
		out.Verdict = verdictOf(best.Authorization)
	}

	h.logger.Debug("agency matched", map[string]interface{}{
		"verdict":    out.Verdict,
		"candidates": len(res.Candidates),
	})
	return out, nil
}

func verdictOf(status models.AuthorizationStatus) string {
	switch status {
	case models.AuthorizationAuthorized:
		return VerdictAuthorized
	case models.AuthorizationNotAuthorized:
		return VerdictNotAuthorized
	default:
		return VerdictUnknown
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, started time.Time, err error) {
	h.jobs.Fail(ctx, client, job, started, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
