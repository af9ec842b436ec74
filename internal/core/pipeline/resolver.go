// Package pipeline resolves one conversational turn: it validates the
// utterance, detects its language, classifies it, runs the matching
// component and returns the composed payload with the next state.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"
	"hajj-assistant/internal/common/observability"
	"hajj-assistant/internal/core/composer"
	"hajj-assistant/internal/core/conversation"
	"hajj-assistant/internal/core/executor"
	"hajj-assistant/internal/core/intent"
	"hajj-assistant/internal/core/language"
	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/core/report"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/core/validate"
	"hajj-assistant/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Turn outcomes used as metric labels.
const (
	OutcomeAnswered = "answered"
	OutcomeClarify  = "clarify"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
)

var ErrNoReportFlow = errors.New("report flow not configured")

type LanguageDetector interface {
	Detect(ctx context.Context, text string) models.Language
}

type IntentClassifier interface {
	Classify(ctx context.Context, utt models.Utterance, state models.ConversationState) (intent.Result, error)
}

type AgencyMatcher interface {
	Match(fragment string, opts matcher.MatchOptions) models.MatchResult
}

// GeneralAnswerer answers questions that are not about the registry.
type GeneralAnswerer interface {
	Answer(ctx context.Context, utt models.Utterance) (string, error)
}

type QuerySynthesizer interface {
	Synthesize(ctx context.Context, utt models.Utterance, slots models.Slots) (*models.QueryPlan, error)
}

// Turn is one utterance with the state it arrives in.
type Turn struct {
	Text      string
	State     models.ConversationState
	AudioTag  string
	SessionID string
}

type TurnResult struct {
	Response models.ResponsePayload  `json:"response"`
	State    models.ConversationState `json:"state"`
	Intent   models.Intent            `json:"intent,omitempty"`
	Outcome  string                   `json:"outcome"`
}

type Config struct {
	// TurnTimeout bounds a whole turn, oracle calls and storage included.
	TurnTimeout time.Duration
}

// Deps are the components a resolver drives. Reports may be nil, in which
// case report requests fail with REPORT_FAILED. Without General every
// chitchat turn gets the fixed greeting.
type Deps struct {
	Detector    LanguageDetector
	Classifier  IntentClassifier
	Matcher     AgencyMatcher
	Synthesizer QuerySynthesizer
	Executor    executor.Runner
	Composer    *composer.Composer
	Tracker     *conversation.Tracker
	Reports     *report.Flow
	General     GeneralAnswerer
	Obs         *observability.Observability
}

type Resolver struct {
	deps   Deps
	cfg    Config
	logger logger.Logger
}

func New(deps Deps, cfg Config, log logger.Logger) *Resolver {
	if deps.Composer == nil {
		deps.Composer = composer.New(log)
	}
	if deps.Tracker == nil {
		deps.Tracker = conversation.New(conversation.DefaultConfig(), log)
	}
	return &Resolver{
		deps:   deps,
		cfg:    cfg,
		logger: log.With(map[string]interface{}{"component": "pipeline"}),
	}
}

// turn carries the per-turn context through the dispatch helpers.
type turn struct {
	Turn
	lang  models.Language
	state models.ConversationState
	utt   models.Utterance
}

// Resolve handles one utterance. It returns an error only when the caller
// abandoned the turn; every other failure is answered with an apology and
// the incoming state.
func (r *Resolver) Resolve(ctx context.Context, in Turn) (*TurnResult, error) {
	started := time.Now()
	parent := ctx

	ctx, span := r.deps.Obs.StartSpan(ctx, "turn.resolve",
		attribute.String("session.id", in.SessionID),
		attribute.String("state.kind", string(in.State.Normalized().Kind)),
	)
	defer span.End()

	if r.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TurnTimeout)
		defer cancel()
	}

	t := &turn{Turn: in, state: in.State.Normalized().Clone()}
	res, err := r.resolve(ctx, t)
	if err == nil {
		r.observe(ctx, res, time.Since(started))
		span.SetAttributes(
			attribute.String("turn.intent", string(res.Intent)),
			attribute.String("turn.outcome", res.Outcome),
		)
		return res, nil
	}

	if parent.Err() != nil {
		span.SetStatus(codes.Error, "turn abandoned")
		r.logger.Info("turn abandoned", map[string]interface{}{"sessionId": in.SessionID})
		return nil, parent.Err()
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "turn failed")
	res = r.failure(t, err)
	r.observe(ctx, res, time.Since(started))
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, t *turn) (*TurnResult, error) {
	if err := validate.Utterance(t.Text); err != nil {
		return r.invalid(t, err), nil
	}

	detected := r.detect(ctx, t.Text)
	t.lang = language.Resolve(detected, t.state.Language)
	if detected.Known() {
		t.state.Language = detected
	}
	t.utt = models.Utterance{Text: strings.TrimSpace(t.Text), Language: t.lang, AudioTag: t.AudioTag}

	cctx, span := r.deps.Obs.StartSpan(ctx, "turn.classify")
	decision, err := r.deps.Classifier.Classify(cctx, t.utt, t.state)
	span.End()
	if err != nil {
		return nil, err
	}

	r.logger.Debug("turn classified", map[string]interface{}{
		"sessionId": t.SessionID,
		"intent":    string(decision.Intent),
		"source":    decision.Source,
		"language":  string(t.lang),
	})

	switch decision.Intent {
	case models.IntentClarificationReply:
		return r.clarification(ctx, t, decision)
	case models.IntentVerifyAgency:
		if decision.Vague {
			return r.askAgencyName(t, ""), nil
		}
		return r.verify(t, decision.Slots.AgencyName, location(decision.Slots)), nil
	case models.IntentDataQuery:
		return r.dataQuery(ctx, t, t.utt, decision.Slots)
	case models.IntentReportFraud:
		if r.deps.Reports == nil {
			return nil, apperrors.NewReportFailedError(ErrNoReportFlow)
		}
		return r.reportStep(t, r.deps.Reports.Start(decision.Slots)), nil
	}

	return r.chitchat(ctx, t, decision)
}

// chitchat answers greetings from the catalogue and anything else through
// the general answerer, falling back to the greeting when it fails.
func (r *Resolver) chitchat(ctx context.Context, t *turn, d intent.Result) (*TurnResult, error) {
	payload := r.deps.Composer.Greeting(t.lang)
	if r.deps.General == nil || d.Source == intent.SourceRules {
		return r.done(t, models.IntentChitchat, payload, conversation.Memory{}), nil
	}

	gctx, span := r.deps.Obs.StartSpan(ctx, "turn.general_answer")
	answer, err := r.deps.General.Answer(gctx, t.utt)
	span.End()

	switch {
	case errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		r.logger.Warn("general answer unavailable", map[string]interface{}{
			"sessionId": t.SessionID,
			"error":     err.Error(),
		})
	default:
		payload = r.deps.Composer.GeneralAnswer(t.lang, answer)
	}
	return r.done(t, models.IntentChitchat, payload, conversation.Memory{}), nil
}

func (r *Resolver) detect(ctx context.Context, text string) models.Language {
	if r.deps.Detector == nil {
		lang, _ := language.Heuristic(text)
		return lang
	}
	ctx, span := r.deps.Obs.StartSpan(ctx, "turn.detect_language")
	defer span.End()
	return r.deps.Detector.Detect(ctx, text)
}

// clarification routes a reply to whatever the previous turn left open.
func (r *Resolver) clarification(ctx context.Context, t *turn, d intent.Result) (*TurnResult, error) {
	switch {
	case t.state.Kind == models.StateAwaitingReportConfirm:
		return r.confirmReport(ctx, t, d.Confirm)
	case t.state.PendingSlot.IsReportSlot():
		return r.answerReport(ctx, t, d.Slots.Reason)
	case t.state.Awaiting(models.SlotQueryDetail):
		return r.queryDetail(ctx, t, d.Slots)
	}
	return r.agencyReply(t, d.Slots), nil
}

// agencyReply handles the answer to "which agency did you mean?".
func (r *Resolver) agencyReply(t *turn, slots models.Slots) *TurnResult {
	candidates := t.state.Candidates
	if n := slots.Selection; n > 0 && n <= len(candidates) {
		return r.verified(t, candidates[n-1])
	}

	loc := location(slots)
	if loc != "" && slots.AgencyName == "" {
		// "the one in Jeddah"
		if picked := inLocation(candidates, loc); len(picked) == 1 {
			return r.verified(t, picked[0])
		}
	}

	switch {
	case slots.AgencyName != "":
		return r.verify(t, slots.AgencyName, loc)
	case t.state.PendingQuery != "" && loc != "":
		return r.verify(t, t.state.PendingQuery, loc)
	case len(candidates) > 0:
		return r.ambiguous(t, t.state.PendingQuery, candidates)
	}
	return r.askAgencyName(t, t.state.PendingQuery)
}

func (r *Resolver) verify(t *turn, name, loc string) *TurnResult {
	result := r.deps.Matcher.Match(name, matcher.MatchOptions{Location: loc})

	r.logger.Debug("agency matched", map[string]interface{}{
		"query":      name,
		"candidates": len(result.Candidates),
		"ambiguous":  result.Ambiguous,
	})

	best, ok := result.Best()
	switch {
	case !ok:
		return r.done(t, models.IntentVerifyAgency, r.deps.Composer.NoMatch(t.lang, name), conversation.Memory{Location: loc})
	case result.Ambiguous:
		return r.ambiguous(t, name, result.Candidates)
	}
	return r.verified(t, best)
}

func (r *Resolver) verified(t *turn, cand models.MatchCandidate) *TurnResult {
	return r.done(t, models.IntentVerifyAgency, r.deps.Composer.Verified(t.lang, cand), conversation.Memory{
		Agency:   cand.Agency.DisplayName(t.lang),
		Location: cand.Agency.City,
	})
}

func (r *Resolver) ambiguous(t *turn, name string, candidates []models.MatchCandidate) *TurnResult {
	return r.await(t, conversation.Pending{
		Slot:         models.SlotAgencyName,
		Intent:       models.IntentVerifyAgency,
		Candidates:   candidates,
		PendingQuery: name,
	}, r.deps.Composer.Ambiguous(t.lang, candidates))
}

func (r *Resolver) askAgencyName(t *turn, pending string) *TurnResult {
	return r.await(t, conversation.Pending{
		Slot:         models.SlotAgencyName,
		Intent:       models.IntentVerifyAgency,
		PendingQuery: pending,
	}, r.deps.Composer.AskAgencyName(t.lang))
}

func (r *Resolver) dataQuery(ctx context.Context, t *turn, utt models.Utterance, slots models.Slots) (*TurnResult, error) {
	sctx, span := r.deps.Obs.StartSpan(ctx, "turn.synthesize")
	plan, err := r.deps.Synthesizer.Synthesize(sctx, utt, slots)
	span.End()

	switch {
	case apperrors.HasCode(err, apperrors.ErrCodeUnresolvableQuery):
		r.logger.Info("query needs more detail", map[string]interface{}{"sessionId": t.SessionID})
		return r.await(t, conversation.Pending{
			Slot:         models.SlotQueryDetail,
			Intent:       models.IntentDataQuery,
			PendingQuery: utt.Text,
		}, r.deps.Composer.AskQueryDetail(t.lang)), nil
	case err != nil:
		return nil, err
	}

	ectx, span := r.deps.Obs.StartSpan(ctx, "turn.execute", attribute.Int("plan.filters", len(plan.Filters)))
	result, err := r.deps.Executor.Execute(ectx, plan)
	span.End()
	if err != nil {
		return nil, err
	}

	return r.done(t, models.IntentDataQuery, r.deps.Composer.Rows(t.lang, result), conversation.Memory{
		Location: location(slots),
	}), nil
}

// queryDetail retries the pending data question with the filters the
// reply adds.
func (r *Resolver) queryDetail(ctx context.Context, t *turn, slots models.Slots) (*TurnResult, error) {
	if !slots.HasQueryFilters() && !slots.ListAll {
		return r.await(t, conversation.Pending{
			Slot:         models.SlotQueryDetail,
			Intent:       models.IntentDataQuery,
			PendingQuery: t.state.PendingQuery,
		}, r.deps.Composer.AskQueryDetail(t.lang)), nil
	}
	utt := t.utt
	if t.state.PendingQuery != "" {
		utt.Text = t.state.PendingQuery + "\n" + t.utt.Text
	}
	return r.dataQuery(ctx, t, utt, slots)
}

// await leaves a question open, or starts over once the same question was
// already asked as often as allowed.
func (r *Resolver) await(t *turn, p conversation.Pending, payload models.ResponsePayload) *TurnResult {
	next, startOver := r.deps.Tracker.Await(t.state, p)
	if startOver {
		return &TurnResult{
			Response: r.deps.Composer.StartOver(t.lang),
			State:    next,
			Intent:   p.Intent,
			Outcome:  OutcomeAnswered,
		}
	}
	return &TurnResult{Response: payload, State: next, Intent: p.Intent, Outcome: OutcomeClarify}
}

func (r *Resolver) done(t *turn, in models.Intent, payload models.ResponsePayload, mem conversation.Memory) *TurnResult {
	return &TurnResult{
		Response: payload,
		State:    r.deps.Tracker.Complete(t.state, in, mem),
		Intent:   in,
		Outcome:  OutcomeAnswered,
	}
}

func (r *Resolver) invalid(t *turn, err error) *TurnResult {
	lang, _ := language.Heuristic(t.Text)
	lang = language.Resolve(lang, t.state.Language)

	problem := composer.InputInvalid
	if p, ok := validate.ProblemOf(err); ok {
		problem = composer.InputProblem(p)
	}
	r.logger.Info("utterance rejected", map[string]interface{}{
		"sessionId": t.SessionID,
		"problem":   string(problem),
	})
	return &TurnResult{
		Response: r.deps.Composer.InvalidInput(lang, problem),
		State:    t.Turn.State,
		Outcome:  OutcomeInvalid,
	}
}

// failure turns an error into the apology for the turn and leaves the
// incoming state untouched.
func (r *Resolver) failure(t *turn, err error) *TurnResult {
	lang := t.lang
	if lang == "" {
		heuristic, _ := language.Heuristic(t.Text)
		lang = language.Resolve(heuristic, t.Turn.State.Language)
	}

	code := apperrors.ErrCodeQueryFailed
	if std, ok := apperrors.AsStandard(err); ok {
		code = std.Code
	}

	fields := map[string]interface{}{
		"sessionId": t.SessionID,
		"errorCode": string(code),
		"error":     err.Error(),
	}
	if std, ok := apperrors.AsStandard(err); ok && std.Details != "" {
		fields["details"] = std.Details
	}
	r.logger.Error("turn failed", fields)
	metrics.TurnFailures.WithLabelValues(string(code)).Inc()

	payload := r.deps.Composer.QueryFailed(lang)
	if code == apperrors.ErrCodeReportFailed {
		payload = r.deps.Composer.ReportFailed(lang)
	}
	return &TurnResult{Response: payload, State: t.Turn.State, Outcome: OutcomeFailed}
}

func (r *Resolver) observe(ctx context.Context, res *TurnResult, elapsed time.Duration) {
	label := string(res.Intent)
	if label == "" {
		label = "NONE"
	}
	metrics.TurnsTotal.WithLabelValues(label, res.Outcome).Inc()
	r.deps.Obs.RecordTurn(ctx, label, res.Outcome, elapsed)
}

func inLocation(candidates []models.MatchCandidate, loc string) []models.MatchCandidate {
	want, ok := schema.LookupLocation(loc)
	if !ok {
		return nil
	}
	var out []models.MatchCandidate
	for _, c := range candidates {
		for _, place := range []string{c.Agency.City, c.Agency.Country} {
			if got, ok := schema.LookupLocation(place); ok && got.Canonical == want.Canonical {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func location(s models.Slots) string {
	if s.City != "" {
		return s.City
	}
	return s.Country
}
