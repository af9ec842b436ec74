// Package report runs the fraud-report sub-flow: four slots are collected
// over several turns, echoed back for confirmation and appended to the
// configured sinks.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/core/validate"
	"hajj-assistant/internal/models"

	"github.com/google/uuid"
)

// ErrRejectedAnswer is returned by File when a supplied answer fails the
// checks the conversation would apply.
var ErrRejectedAnswer = errors.New("report answer rejected")

type StepKind string

const (
	StepAsk       StepKind = "ask"
	StepConfirm   StepKind = "confirm"
	StepFiled     StepKind = "filed"
	StepCancelled StepKind = "cancelled"
)

// Step is what the flow wants to happen next.
type Step struct {
	Kind  StepKind
	Slot  models.SlotKind
	Draft models.ReportDraft
	// Retry is set when the previous answer was rejected and the same
	// question is asked again.
	Retry    bool
	Feedback string
	Report   *models.Report
}

// AgencyMatcher resolves a reported name against the registry.
type AgencyMatcher interface {
	Match(fragment string, opts matcher.MatchOptions) models.MatchResult
}

// Announcer is told about every filed report.
type Announcer interface {
	Notify(ctx context.Context, r models.Report) error
}

type Flow struct {
	sink      Sink
	validator AnswerValidator
	matcher   AgencyMatcher
	announcer Announcer
	now       func() time.Time
	newID     func() string
	logger    logger.Logger
}

type Option func(*Flow)

func WithValidator(v AnswerValidator) Option { return func(f *Flow) { f.validator = v } }
func WithMatcher(m AgencyMatcher) Option     { return func(f *Flow) { f.matcher = m } }
func WithAnnouncer(a Announcer) Option       { return func(f *Flow) { f.announcer = a } }
func WithClock(now func() time.Time) Option  { return func(f *Flow) { f.now = now } }
func WithIDs(newID func() string) Option     { return func(f *Flow) { f.newID = newID } }

func New(sink Sink, log logger.Logger, opts ...Option) *Flow {
	f := &Flow{
		sink:   sink,
		now:    time.Now,
		newID:  NewReferenceID,
		logger: log.With(map[string]interface{}{"component": "report"}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewReferenceID returns a short reference a reporter can quote.
func NewReferenceID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "HR-" + strings.ToUpper(id[:10])
}

// Start opens a report, keeping whatever the opening utterance already named.
func (f *Flow) Start(slots models.Slots) Step {
	draft := models.ReportDraft{
		AgencyName: strings.TrimSpace(slots.AgencyName),
		City:       slots.City,
	}
	return advance(draft)
}

func advance(d models.ReportDraft) Step {
	switch {
	case d.AgencyName == "":
		return Step{Kind: StepAsk, Slot: models.SlotReportAgency, Draft: d}
	case d.City == "":
		return Step{Kind: StepAsk, Slot: models.SlotReportCity, Draft: d}
	case d.Details == "":
		return Step{Kind: StepAsk, Slot: models.SlotReportDetails, Draft: d}
	case !d.ContactCollected:
		return Step{Kind: StepAsk, Slot: models.SlotReportContact, Draft: d}
	}
	return Step{Kind: StepConfirm, Draft: d}
}

var (
	cancelWords = foldedSet(
		"cancel", "stop", "exit", "quit", "abort",
		"إلغاء", "الغاء", "توقف", "خروج",
		"منسوخ", "بند",
	)
	skipWords = foldedSet(
		"skip", "anonymous", "no", "none",
		"تخطي", "تخطى", "تجاوز", "مجهول", "لا",
		"گمنام", "نہیں",
	)
)

func foldedSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[matcher.Fold(w)] = true
	}
	return set
}

// isCancel reports whether a short reply asks to abandon the report.
func isCancel(answer string) bool {
	tokens := strings.Fields(matcher.Fold(answer))
	if len(tokens) == 0 || len(tokens) > 3 {
		return false
	}
	for _, t := range tokens {
		if cancelWords[t] {
			return true
		}
	}
	return false
}

func isSkip(answer string) bool {
	tokens := strings.Fields(matcher.Fold(answer))
	return len(tokens) == 1 && skipWords[tokens[0]]
}

// Answer records the reply to slot and moves to the next question, the
// confirmation, or a cancellation.
func (f *Flow) Answer(ctx context.Context, slot models.SlotKind, lang models.Language, draft models.ReportDraft, answer string) Step {
	answer = strings.TrimSpace(answer)
	if isCancel(answer) {
		return Step{Kind: StepCancelled}
	}
	retry := Step{Kind: StepAsk, Slot: slot, Draft: draft, Retry: true}

	if slot == models.SlotReportContact {
		if isSkip(answer) {
			draft.Contact = ""
			draft.ContactCollected = true
			return advance(draft)
		}
		contact, kind := validate.Contact(answer)
		if kind == validate.ContactNone {
			return retry
		}
		draft.Contact = contact
		draft.ContactCollected = true
		return advance(draft)
	}

	if verdict := f.judge(ctx, slot, lang, answer); !verdict.Valid {
		retry.Feedback = verdict.Feedback
		return retry
	}

	switch slot {
	case models.SlotReportAgency:
		draft.AgencyName = answer
	case models.SlotReportCity:
		draft.City = answer
		if loc, ok := schema.LookupLocation(answer); ok {
			draft.City = loc.Canonical
		}
	case models.SlotReportDetails:
		draft.Details = answer
	}
	return advance(draft)
}

func (f *Flow) judge(ctx context.Context, slot models.SlotKind, lang models.Language, answer string) Verdict {
	local := localCheck(slot, answer)
	if f.validator == nil || utf8.RuneCountInString(answer) > maxAnswerRunes {
		return local
	}
	verdict, err := f.validator.Validate(ctx, slot, lang, answer)
	if err != nil {
		f.logger.Warn("report answer validation fell back to local checks", map[string]interface{}{
			"slot":  string(slot),
			"error": err.Error(),
		})
		return local
	}
	return verdict
}

// Confirm acts on the reply to the confirmation question. A nil confirm
// asks again. Storage failures are REPORT_FAILED errors and leave the
// draft intact for another attempt.
func (f *Flow) Confirm(ctx context.Context, lang models.Language, sessionID string, draft models.ReportDraft, confirm *bool) (Step, error) {
	switch {
	case confirm == nil:
		return Step{Kind: StepConfirm, Draft: draft, Retry: true}, nil
	case !*confirm:
		return Step{Kind: StepCancelled}, nil
	}

	r := f.build(lang, sessionID, draft)
	if err := f.sink.Append(ctx, r); err != nil {
		if errors.Is(err, context.Canceled) {
			return Step{}, err
		}
		f.logger.Error("report could not be stored", map[string]interface{}{
			"referenceId": r.ReferenceID,
			"error":       err.Error(),
		})
		return Step{}, apperrors.NewReportFailedError(err)
	}

	f.logger.Info("report filed", map[string]interface{}{
		"referenceId":   r.ReferenceID,
		"matched":       r.MatchedAgency != nil,
		"authorization": string(r.Authorization),
	})
	if f.announcer != nil {
		// the reporter already has a reference; notification errors are logged by the announcer
		_ = f.announcer.Notify(ctx, r)
	}
	return Step{Kind: StepFiled, Report: &r}, nil
}

// File runs a complete set of answers through the same checks as the
// conversation and stores the report without asking for confirmation. An
// empty contact files anonymously.
func (f *Flow) File(ctx context.Context, lang models.Language, sessionID string, answers models.ReportDraft) (*models.Report, error) {
	values := map[models.SlotKind]string{
		models.SlotReportAgency:  answers.AgencyName,
		models.SlotReportCity:    answers.City,
		models.SlotReportDetails: answers.Details,
		models.SlotReportContact: answers.Contact,
	}
	if strings.TrimSpace(answers.Contact) == "" {
		values[models.SlotReportContact] = "skip"
	}

	step := advance(models.ReportDraft{})
	for step.Kind == StepAsk {
		next := f.Answer(ctx, step.Slot, lang, step.Draft, values[step.Slot])
		if next.Kind == StepCancelled || next.Retry {
			if next.Feedback != "" {
				return nil, fmt.Errorf("%w: %s: %s", ErrRejectedAnswer, step.Slot, next.Feedback)
			}
			return nil, fmt.Errorf("%w: %s", ErrRejectedAnswer, step.Slot)
		}
		step = next
	}

	yes := true
	filed, err := f.Confirm(ctx, lang, sessionID, step.Draft, &yes)
	if err != nil {
		return nil, err
	}
	return filed.Report, nil
}

func (f *Flow) build(lang models.Language, sessionID string, d models.ReportDraft) models.Report {
	r := models.Report{
		ReferenceID: f.newID(),
		AgencyName:  d.AgencyName,
		City:        d.City,
		Details:     d.Details,
		Contact:     d.Contact,
		Language:    lang,
		SessionID:   sessionID,
		SubmittedAt: f.now().UTC(),
	}
	if f.matcher == nil {
		return r
	}
	res := f.matcher.Match(d.AgencyName, matcher.MatchOptions{Location: d.City})
	if best, ok := res.Best(); ok && !res.Ambiguous {
		agency := best.Agency
		r.MatchedAgency = &agency
		r.Authorization = agency.Authorization
	}
	return r
}
