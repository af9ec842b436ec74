package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/oracle"
	"hajj-assistant/internal/core/composer"
	"hajj-assistant/internal/core/conversation"
	"hajj-assistant/internal/core/executor"
	"hajj-assistant/internal/core/intent"
	"hajj-assistant/internal/core/language"
	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/core/report"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/core/synthesizer"
	"hajj-assistant/internal/models"
	"hajj-assistant/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

// An Arabic question no keyword rule recognizes, so classification needs
// the oracle.
const unruledArabic = "ما أفضل طريقة للسفر إلى منى"

type stubMatcher struct {
	results map[string][]models.MatchCandidate
	calls   []string
}

func (m *stubMatcher) Match(fragment string, _ matcher.MatchOptions) models.MatchResult {
	m.calls = append(m.calls, fragment)
	c := m.results[fragment]
	return models.MatchResult{Query: fragment, Candidates: c, Ambiguous: matcher.IsAmbiguous(c, 0.05)}
}

type memSink struct {
	err     error
	reports []models.Report
}

func (s *memSink) Name() string { return "mem" }

func (s *memSink) Append(_ context.Context, r models.Report) error {
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r)
	return nil
}

func candidate(a models.Agency, score float64) models.MatchCandidate {
	return models.MatchCandidate{Agency: a, Score: score, Authorization: a.Authorization}
}

func sampleAgency(t *testing.T, nameEN string) models.Agency {
	t.Helper()
	for _, a := range testutil.SampleAgencies() {
		if a.NameEN == nameEN {
			return a
		}
	}
	t.Fatalf("no sample agency %q", nameEN)
	return models.Agency{}
}

type fixture struct {
	resolver *Resolver
	composer *composer.Composer
	sink     *memSink
}

func createTestResolver(t *testing.T, o oracle.Oracle, m AgencyMatcher, cfg Config) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	db := testutil.OpenSeeded(t, testutil.SampleAgencies())
	reg := schema.Default(schema.DialectSQLite)
	sink := &memSink{}
	c := composer.New(log)

	flow := report.New(sink, log,
		report.WithMatcher(matcher.New(matcher.NewIndex(testutil.SampleAgencies()), matcher.DefaultConfig(), log)),
		report.WithClock(func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }),
		report.WithIDs(func() string { return "HR-00000000AB" }),
	)

	r := New(Deps{
		Detector:    language.NewDetector(o, log),
		Classifier:  intent.New(o, intent.Config{}, log),
		Matcher:     m,
		Synthesizer: synthesizer.New(o, reg, synthesizer.Config{RowCap: 200}, log),
		Executor:    executor.New(db.DB, executor.Config{RowCap: 200}, log),
		Composer:    c,
		Tracker:     conversation.New(conversation.DefaultConfig(), log),
		Reports:     flow,
	}, cfg, log)

	return &fixture{resolver: r, composer: c, sink: sink}
}

func resolve(t *testing.T, f *fixture, text string, state models.ConversationState) *TurnResult {
	t.Helper()
	res, err := f.resolver.Resolve(context.Background(), Turn{Text: text, State: state, SessionID: "s-1"})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func timeoutOracle() oracle.Oracle {
	return oracle.Func(func(ctx context.Context, req oracle.Request) (string, error) {
		return "", fmt.Errorf("%w: upstream took too long", oracle.ErrTimeout)
	})
}

// ==========================
// Verification
// ==========================

func TestResolve_VerifySingleMatch(t *testing.T) {
	royal := sampleAgency(t, "Royal City Travel")
	m := &stubMatcher{results: map[string][]models.MatchCandidate{
		"Royal City Travel": {candidate(royal, 0.93)},
	}}
	f := createTestResolver(t, nil, m, Config{})

	res := resolve(t, f, "Check if Royal City Travel is authorized", models.NewConversationState())

	assert.Equal(t, models.IntentVerifyAgency, res.Intent)
	assert.Equal(t, "Royal City Travel in Riyadh is an authorized Hajj agency.", res.Response.Text)
	assert.Equal(t, models.LanguageEnglish, res.Response.Language)
	assert.False(t, res.Response.Failed())
	assert.Empty(t, res.Response.FollowUpQuestion)

	assert.Equal(t, models.StateIdle, res.State.Kind)
	assert.Equal(t, 1, res.State.Turn)
	assert.Equal(t, "Royal City Travel", res.State.LastAgency)
	assert.Equal(t, "Riyadh", res.State.LastLocation)
	assert.Equal(t, models.LanguageEnglish, res.State.Language)
	assert.Equal(t, OutcomeAnswered, res.Outcome)
}

func TestResolve_VerifyAmbiguousThenSelect(t *testing.T) {
	badr := sampleAgency(t, "Al Badr Hajj Company")
	badri := sampleAgency(t, "Al Badri Tours")
	m := &stubMatcher{results: map[string][]models.MatchCandidate{
		"شركة البدر": {candidate(badr, 0.81), candidate(badri, 0.79)},
	}}
	f := createTestResolver(t, nil, m, Config{})

	first := resolve(t, f, "تحقق من شركة البدر", models.NewConversationState())

	assert.Equal(t, models.LanguageArabic, first.Response.Language)
	assert.NotEmpty(t, first.Response.FollowUpQuestion)
	assert.Contains(t, first.Response.Text, "1. ")
	assert.Contains(t, first.Response.Text, "2. ")
	assert.Equal(t, OutcomeClarify, first.Outcome)

	require.True(t, first.State.Awaiting(models.SlotAgencyName))
	assert.Len(t, first.State.Candidates, 2)
	assert.Equal(t, 1, first.State.ClarificationRounds)
	assert.Equal(t, "شركة البدر", first.State.PendingQuery)

	second := resolve(t, f, "2", first.State)

	assert.Equal(t, f.composer.Verified(models.LanguageArabic, candidate(badri, 0.79)), second.Response)
	assert.Equal(t, models.StateIdle, second.State.Kind)
	assert.Empty(t, second.State.Candidates)
	assert.Equal(t, 2, second.State.Turn)
	assert.Equal(t, "Jeddah", second.State.LastLocation)
}

func TestResolve_AmbiguousPickedByLocation(t *testing.T) {
	badr := sampleAgency(t, "Al Badr Hajj Company")
	badri := sampleAgency(t, "Al Badri Tours")
	m := &stubMatcher{results: map[string][]models.MatchCandidate{
		"شركة البدر": {candidate(badr, 0.81), candidate(badri, 0.79)},
	}}
	f := createTestResolver(t, nil, m, Config{})

	first := resolve(t, f, "تحقق من شركة البدر", models.NewConversationState())
	second := resolve(t, f, "في جدة", first.State)

	assert.Equal(t, f.composer.Verified(models.LanguageArabic, candidate(badri, 0.79)), second.Response)
	assert.True(t, second.State.IsIdle())
}

func TestResolve_ClarificationIsBounded(t *testing.T) {
	badr := sampleAgency(t, "Al Badr Hajj Company")
	badri := sampleAgency(t, "Al Badri Tours")
	ambiguous := []models.MatchCandidate{candidate(badr, 0.81), candidate(badri, 0.79)}
	m := &stubMatcher{results: map[string][]models.MatchCandidate{
		"شركة البدر": ambiguous,
		"شركة النور": ambiguous,
	}}
	f := createTestResolver(t, nil, m, Config{})

	first := resolve(t, f, "تحقق من شركة البدر", models.NewConversationState())
	require.True(t, first.State.Awaiting(models.SlotAgencyName))

	second := resolve(t, f, "شركة النور", first.State)

	assert.Equal(t, f.composer.StartOver(models.LanguageArabic), second.Response)
	assert.Equal(t, models.StateIdle, second.State.Kind)
	assert.Zero(t, second.State.ClarificationRounds)
	assert.Empty(t, second.State.Candidates)
	assert.Equal(t, models.LanguageArabic, second.State.Language)
}

func TestResolve_VerifyNoMatch(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	res := resolve(t, f, "Is Zamzam Express licensed?", models.NewConversationState())

	assert.Equal(t, f.composer.NoMatch(models.LanguageEnglish, "Zamzam Express"), res.Response)
	assert.True(t, res.State.IsIdle())
}

func TestResolve_VagueAsksForName(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	res := resolve(t, f, "which company?", models.NewConversationState())

	assert.Equal(t, f.composer.AskAgencyName(models.LanguageEnglish), res.Response)
	assert.True(t, res.State.Awaiting(models.SlotAgencyName))
	assert.Empty(t, res.State.Candidates)
}

func TestResolve_FollowUpUsesLastAgency(t *testing.T) {
	royal := sampleAgency(t, "Royal City Travel")
	m := &stubMatcher{results: map[string][]models.MatchCandidate{
		"Royal City Travel": {candidate(royal, 0.93)},
	}}
	f := createTestResolver(t, nil, m, Config{})

	first := resolve(t, f, "Check if Royal City Travel is authorized", models.NewConversationState())
	second := resolve(t, f, "is it licensed?", first.State)

	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, []string{"Royal City Travel", "Royal City Travel"}, m.calls)
}

// ==========================
// Data queries
// ==========================

func TestResolve_DataQueryZeroRows(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	res := resolve(t, f, "List Egyptian companies rated above 4", models.NewConversationState())

	assert.Equal(t, models.IntentDataQuery, res.Intent)
	assert.Equal(t, f.composer.Rows(models.LanguageEnglish, &executor.Result{}), res.Response)
	assert.Nil(t, res.Response.Table)
	assert.False(t, res.Response.Failed())
	assert.True(t, res.State.IsIdle())
	assert.Equal(t, "Egypt", res.State.LastLocation)
}

func TestResolve_DataQueryRows(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	res := resolve(t, f, "List Egyptian companies", models.NewConversationState())

	require.NotNil(t, res.Response.Table)
	require.Len(t, res.Response.Table.Rows, 1)
	assert.Contains(t, strings.Join(res.Response.Table.Rows[0], "|"), "Nile Pilgrims")
	assert.Equal(t, schema.Default(schema.DialectSQLite).ExposedColumns(), res.Response.Table.Columns)
}

func TestResolve_QueryDetailRoundTrip(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	first := resolve(t, f, "List companies", models.NewConversationState())

	assert.Equal(t, f.composer.AskQueryDetail(models.LanguageEnglish), first.Response)
	require.True(t, first.State.Awaiting(models.SlotQueryDetail))
	assert.Equal(t, "List companies", first.State.PendingQuery)

	second := resolve(t, f, "in Mecca please", first.State)

	require.NotNil(t, second.Response.Table)
	require.Len(t, second.Response.Table.Rows, 1)
	assert.Contains(t, strings.Join(second.Response.Table.Rows[0], "|"), "Al Badr Hajj Company")
	assert.True(t, second.State.IsIdle())
	assert.Equal(t, "Mecca", second.State.LastLocation)
}

// ==========================
// Failures
// ==========================

func TestResolve_OracleTimeout(t *testing.T) {
	f := createTestResolver(t, timeoutOracle(), &stubMatcher{}, Config{})

	state := models.ConversationState{
		Kind:         models.StateIdle,
		LastAgency:   "Royal City Travel",
		LastLocation: "Riyadh",
		Language:     models.LanguageArabic,
		Turn:         4,
	}
	res := resolve(t, f, unruledArabic, state)

	assert.Equal(t, f.composer.QueryFailed(models.LanguageArabic), res.Response)
	assert.Equal(t, models.FailureQueryFailed, res.Response.FailureCode)
	assert.Equal(t, models.LanguageArabic, res.Response.Language)
	assert.Equal(t, state, res.State)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestResolve_OracleTimeoutFailsOnlyThatTurn(t *testing.T) {
	f := createTestResolver(t, timeoutOracle(), &stubMatcher{}, Config{})

	// A data query with no rule slots needs the oracle.
	res := resolve(t, f, "List companies", models.NewConversationState())
	assert.Equal(t, models.FailureQueryFailed, res.Response.FailureCode)
	assert.Equal(t, models.NewConversationState(), res.State)

	// Report answers are validated locally when no validator is set.
	state := models.ConversationState{Kind: models.StateAwaitingSlot, PendingSlot: models.SlotReportCity,
		Report: &models.ReportDraft{AgencyName: "Al Noor"}, ClarificationRounds: 1, Turn: 2}
	res = resolve(t, f, "Jeddah", state)
	assert.False(t, res.Response.Failed())
	assert.Equal(t, models.SlotReportDetails, res.State.PendingSlot)
	assert.Equal(t, "Al Noor", res.State.Report.AgencyName)
}

func TestResolve_TurnTimeout(t *testing.T) {
	slow := oracle.Func(func(ctx context.Context, req oracle.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	f := createTestResolver(t, slow, &stubMatcher{}, Config{TurnTimeout: 20 * time.Millisecond})

	state := models.NewConversationState()
	res := resolve(t, f, unruledArabic, state)

	assert.Equal(t, models.FailureQueryFailed, res.Response.FailureCode)
	assert.Equal(t, models.LanguageArabic, res.Response.Language)
	assert.Equal(t, state, res.State)
}

func TestResolve_AbandonedTurn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := oracle.Func(func(context.Context, oracle.Request) (string, error) {
		cancel()
		return "", context.Canceled
	})
	f := createTestResolver(t, o, &stubMatcher{}, Config{})

	res, err := f.resolver.Resolve(ctx, Turn{Text: unruledArabic, State: models.NewConversationState()})

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestResolve_InvalidInput(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	tests := []struct {
		name    string
		text    string
		lang    models.Language
		problem composer.InputProblem
	}{
		{name: "empty", text: "   ", lang: models.LanguageEnglish, problem: composer.InputEmpty},
		{name: "too long", text: strings.Repeat("شركة ", 120), lang: models.LanguageArabic, problem: composer.InputTooLong},
		{name: "injection", text: "Royal City'; DROP TABLE agencies; --", lang: models.LanguageEnglish, problem: composer.InputInvalid},
		{name: "script", text: "<script>alert(1)</script>", lang: models.LanguageEnglish, problem: composer.InputInvalid},
	}

	state := models.ConversationState{Kind: models.StateAwaitingSlot, PendingSlot: models.SlotAgencyName, ClarificationRounds: 1, Turn: 3}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resolve(t, f, tt.text, state)
			assert.Equal(t, f.composer.InvalidInput(tt.lang, tt.problem), res.Response)
			assert.Equal(t, models.FailureInvalidInput, res.Response.FailureCode)
			assert.Equal(t, state, res.State)
			assert.Equal(t, OutcomeInvalid, res.Outcome)
		})
	}
}

// ==========================
// Chitchat
// ==========================

func TestResolve_Greeting(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	res := resolve(t, f, "السلام عليكم", models.NewConversationState())

	assert.Equal(t, models.IntentChitchat, res.Intent)
	assert.Equal(t, f.composer.Greeting(models.LanguageArabic), res.Response)
	assert.Equal(t, 1, res.State.Turn)
}

type stubAnswerer struct {
	answer string
	err    error
	seen   []models.Utterance
}

func (a *stubAnswerer) Answer(_ context.Context, utt models.Utterance) (string, error) {
	a.seen = append(a.seen, utt)
	return a.answer, a.err
}

func chitchatOracle() oracle.Oracle {
	return oracle.Func(func(ctx context.Context, req oracle.Request) (string, error) {
		return `{"intent": "CHITCHAT"}`, nil
	})
}

func TestResolve_GeneralQuestion(t *testing.T) {
	tests := []struct {
		name         string
		answerer     *stubAnswerer
		wantGreeting bool
	}{
		{"answered", &stubAnswerer{answer: "Tawaf is walking seven times around the Kaaba."}, false},
		{"answerer fails", &stubAnswerer{err: fmt.Errorf("%w: slow", oracle.ErrTimeout)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := createTestResolver(t, chitchatOracle(), &stubMatcher{}, Config{})
			f.resolver.deps.General = tt.answerer

			res := resolve(t, f, "what is tawaf?", models.NewConversationState())

			assert.Equal(t, models.IntentChitchat, res.Intent)
			assert.Equal(t, OutcomeAnswered, res.Outcome)
			require.Len(t, tt.answerer.seen, 1)
			assert.Equal(t, models.LanguageEnglish, tt.answerer.seen[0].Language)
			if tt.wantGreeting {
				assert.Equal(t, f.composer.Greeting(models.LanguageEnglish), res.Response)
				return
			}
			assert.Equal(t, "Tawaf is walking seven times around the Kaaba.", res.Response.Text)
			assert.NotEmpty(t, res.Response.FollowUpQuestion)
			assert.Empty(t, res.Response.FailureCode)
		})
	}
}

func TestResolve_RuleGreetingSkipsGeneralAnswer(t *testing.T) {
	f := createTestResolver(t, chitchatOracle(), &stubMatcher{}, Config{})
	answerer := &stubAnswerer{answer: "unused"}
	f.resolver.deps.General = answerer

	res := resolve(t, f, "hello", models.NewConversationState())

	assert.Equal(t, f.composer.Greeting(models.LanguageEnglish), res.Response)
	assert.Empty(t, answerer.seen)
}

func TestResolve_UnknownLanguageKeepsPreference(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	state := models.NewConversationState()
	state.Language = models.LanguageUrdu
	res := resolve(t, f, "123 456", state)

	assert.Equal(t, models.LanguageUrdu, res.Response.Language)
	assert.Equal(t, models.LanguageUrdu, res.State.Language)
}

// ==========================
// Fraud reports
// ==========================

func TestResolve_ReportFlow(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	state := models.NewConversationState()
	steps := []struct {
		text string
		slot models.SlotKind
	}{
		{text: "I want to report a fake agency", slot: models.SlotReportAgency},
		{text: "Al Badri Tours", slot: models.SlotReportCity},
		{text: "Jeddah", slot: models.SlotReportDetails},
		{text: "They took my deposit and vanished", slot: models.SlotReportContact},
	}
	for _, s := range steps {
		res := resolve(t, f, s.text, state)
		require.True(t, res.State.Awaiting(s.slot), "after %q: %+v", s.text, res.State)
		assert.Equal(t, models.IntentReportFraud, res.Intent)
		assert.NotEmpty(t, res.Response.FollowUpQuestion)
		state = res.State
	}

	res := resolve(t, f, "skip", state)
	require.Equal(t, models.StateAwaitingReportConfirm, res.State.Kind)
	assert.Contains(t, res.Response.Text, "Al Badri Tours")
	assert.Contains(t, res.Response.Text, "anonymous")
	state = res.State

	res = resolve(t, f, "yes", state)
	assert.Equal(t, "HR-00000000AB", res.Response.ReferenceID)
	assert.True(t, res.State.IsIdle())
	assert.Nil(t, res.State.Report)

	require.Len(t, f.sink.reports, 1)
	filed := f.sink.reports[0]
	assert.Equal(t, "Jeddah", filed.City)
	assert.Equal(t, "s-1", filed.SessionID)
	require.NotNil(t, filed.MatchedAgency)
	assert.Equal(t, models.AuthorizationNotAuthorized, filed.Authorization)
}

func TestResolve_ReportCancelled(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	first := resolve(t, f, "I want to report a scam", models.NewConversationState())
	second := resolve(t, f, "cancel", first.State)

	assert.Equal(t, f.composer.ReportCancelled(models.LanguageEnglish), second.Response)
	assert.True(t, second.State.IsIdle())
	assert.Nil(t, second.State.Report)
	assert.Empty(t, f.sink.reports)
}

func TestResolve_ReportRetryFeedback(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})

	state := models.ConversationState{Kind: models.StateAwaitingSlot, PendingSlot: models.SlotReportContact,
		Report: &models.ReportDraft{AgencyName: "Al Noor", City: "Mecca", Details: "They never issued my visa"}}
	res := resolve(t, f, "call me maybe", state)

	assert.True(t, res.State.Awaiting(models.SlotReportContact))
	assert.True(t, strings.HasPrefix(res.Response.Text, f.composer.ReportRetry(models.LanguageEnglish, models.SlotReportContact)))
}

func TestResolve_ReportSinkFailure(t *testing.T) {
	f := createTestResolver(t, nil, &stubMatcher{}, Config{})
	f.sink.err = errors.New("redis: connection refused")

	state := models.ConversationState{
		Kind:     models.StateAwaitingReportConfirm,
		Language: models.LanguageArabic,
		Report:   &models.ReportDraft{AgencyName: "شركة النصر", City: "Jeddah", Details: "أخذوا المبلغ واختفوا", ContactCollected: true},
		Turn:     7,
	}
	res := resolve(t, f, "نعم", state)

	assert.Equal(t, f.composer.ReportFailed(models.LanguageArabic), res.Response)
	assert.Equal(t, models.FailureReportFailed, res.Response.FailureCode)
	assert.Equal(t, state, res.State)
	assert.NotContains(t, res.Response.Text, "redis")
}
