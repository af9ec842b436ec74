package pipeline

import (
	"context"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/core/conversation"
	"hajj-assistant/internal/core/report"
	"hajj-assistant/internal/models"
)

func (r *Resolver) answerReport(ctx context.Context, t *turn, answer string) (*TurnResult, error) {
	if r.deps.Reports == nil {
		return nil, apperrors.NewReportFailedError(ErrNoReportFlow)
	}
	var draft models.ReportDraft
	if t.state.Report != nil {
		draft = *t.state.Report
	}

	actx, span := r.deps.Obs.StartSpan(ctx, "turn.report_answer")
	step := r.deps.Reports.Answer(actx, t.state.PendingSlot, t.lang, draft, answer)
	span.End()
	return r.reportStep(t, step), nil
}

func (r *Resolver) confirmReport(ctx context.Context, t *turn, confirm *bool) (*TurnResult, error) {
	if r.deps.Reports == nil {
		return nil, apperrors.NewReportFailedError(ErrNoReportFlow)
	}
	var draft models.ReportDraft
	if t.state.Report != nil {
		draft = *t.state.Report
	}

	cctx, span := r.deps.Obs.StartSpan(ctx, "turn.report_confirm")
	step, err := r.deps.Reports.Confirm(cctx, t.lang, t.SessionID, draft, confirm)
	span.End()
	if err != nil {
		return nil, err
	}
	return r.reportStep(t, step), nil
}

// reportStep renders where the report flow ended up and moves the
// conversation along with it.
func (r *Resolver) reportStep(t *turn, step report.Step) *TurnResult {
	c := r.deps.Composer
	res := &TurnResult{Intent: models.IntentReportFraud, Outcome: OutcomeClarify}

	switch step.Kind {
	case report.StepAsk:
		feedback := step.Feedback
		if step.Retry && feedback == "" {
			feedback = c.ReportRetry(t.lang, step.Slot)
		}
		res.Response = c.ReportPrompt(t.lang, step.Slot, feedback)
		res.State = r.deps.Tracker.AwaitReportSlot(t.state, step.Slot, step.Draft)

	case report.StepConfirm:
		res.Response = c.ReportConfirm(t.lang, step.Draft)
		res.State = r.deps.Tracker.AwaitReportConfirm(t.state, step.Draft)

	case report.StepFiled:
		res.Response = c.ReportFiled(t.lang, step.Report.ReferenceID)
		res.State = r.deps.Tracker.Complete(t.state, models.IntentReportFraud, conversation.Memory{
			Agency:   step.Report.AgencyName,
			Location: step.Report.City,
		})
		res.Outcome = OutcomeAnswered

	default:
		res.Response = c.ReportCancelled(t.lang)
		res.State = r.deps.Tracker.Complete(t.state, models.IntentReportFraud, conversation.Memory{})
		res.Outcome = OutcomeAnswered
	}
	return res
}
