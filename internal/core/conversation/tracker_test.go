package conversation

import (
	"testing"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestTracker(t *testing.T, rounds int) *Tracker {
	return New(Config{MaxClarificationRounds: rounds}, logger.NewTestLogger(t))
}

func candidates() []models.MatchCandidate {
	return []models.MatchCandidate{
		{Agency: models.Agency{NameEN: "Al Badr Hajj Company", City: "Mecca"}, Score: 0.81},
		{Agency: models.Agency{NameEN: "Al Badri Tours", City: "Jeddah"}, Score: 0.79},
	}
}

// ==========================
// Await
// ==========================

func TestAwait_FromIdle(t *testing.T) {
	tr := createTestTracker(t, 1)
	state := models.NewConversationState()
	state.Language = models.LanguageArabic

	next, startOver := tr.Await(state, Pending{Slot: models.SlotAgencyName, Intent: models.IntentVerifyAgency, Candidates: candidates()})
	require.False(t, startOver)
	assert.Equal(t, models.StateAwaitingSlot, next.Kind)
	assert.Equal(t, models.SlotAgencyName, next.PendingSlot)
	assert.Equal(t, 1, next.ClarificationRounds)
	assert.Len(t, next.Candidates, 2)
	assert.Equal(t, models.IntentVerifyAgency, next.LastIntent)
	assert.Equal(t, models.LanguageArabic, next.Language)
	assert.Equal(t, 1, next.Turn)

	assert.Equal(t, models.StateIdle, state.Kind, "input state must not change")
	assert.Zero(t, state.Turn)
}

func TestAwait_BoundedClarification(t *testing.T) {
	tests := []struct {
		name       string
		maxRounds  int
		asks       int
		wantResets bool
	}{
		{"default bound resets on the second ask", 1, 2, true},
		{"two rounds allow a second ask", 2, 2, false},
		{"two rounds reset on the third ask", 2, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := createTestTracker(t, tt.maxRounds)
			state := models.NewConversationState()
			state.Language = models.LanguageUrdu

			var startOver bool
			for i := 0; i < tt.asks; i++ {
				state, startOver = tr.Await(state, Pending{Slot: models.SlotAgencyName, Candidates: candidates()})
			}

			assert.Equal(t, tt.wantResets, startOver)
			if tt.wantResets {
				assert.Equal(t, models.StateIdle, state.Kind)
				assert.Empty(t, state.Candidates)
				assert.Zero(t, state.ClarificationRounds)
				assert.Equal(t, models.LanguageUrdu, state.Language)
			} else {
				assert.Equal(t, models.StateAwaitingSlot, state.Kind)
				assert.Equal(t, tt.asks, state.ClarificationRounds)
			}
			assert.Equal(t, tt.asks, state.Turn)
		})
	}
}

func TestAwait_DifferentSlotStartsNewRound(t *testing.T) {
	tr := createTestTracker(t, 1)
	state, _ := tr.Await(models.NewConversationState(), Pending{Slot: models.SlotAgencyName})

	next, startOver := tr.Await(state, Pending{Slot: models.SlotQueryDetail, PendingQuery: "list agencies"})
	assert.False(t, startOver)
	assert.Equal(t, models.SlotQueryDetail, next.PendingSlot)
	assert.Equal(t, 1, next.ClarificationRounds)
	assert.Equal(t, "list agencies", next.PendingQuery)
	assert.Empty(t, next.Candidates)
}

func TestAwait_ReportSlotsAreNotBounded(t *testing.T) {
	tr := createTestTracker(t, 1)
	state := models.NewConversationState()
	draft := models.ReportDraft{AgencyName: "Nasr Travel"}

	for i := 0; i < 3; i++ {
		state = tr.AwaitReportSlot(state, models.SlotReportCity, draft)
	}
	assert.Equal(t, models.StateAwaitingSlot, state.Kind)
	assert.Equal(t, models.SlotReportCity, state.PendingSlot)
	require.NotNil(t, state.Report)
	assert.Equal(t, "Nasr Travel", state.Report.AgencyName)
	assert.Equal(t, models.IntentReportFraud, state.LastIntent)
}

// ==========================
// Report confirmation, completion and reset
// ==========================

func TestAwaitReportConfirm(t *testing.T) {
	tr := createTestTracker(t, 1)
	state := tr.AwaitReportSlot(models.NewConversationState(), models.SlotReportContact, models.ReportDraft{AgencyName: "Nasr"})

	draft := models.ReportDraft{AgencyName: "Nasr", City: "Jeddah", Details: "took deposit", ContactCollected: true}
	next := tr.AwaitReportConfirm(state, draft)
	assert.Equal(t, models.StateAwaitingReportConfirm, next.Kind)
	assert.Equal(t, models.SlotNone, next.PendingSlot)
	require.NotNil(t, next.Report)
	assert.Equal(t, draft, *next.Report)

	require.NotNil(t, state.Report)
	assert.Empty(t, state.Report.City, "previous state's draft must not be shared")
}

func TestComplete(t *testing.T) {
	tr := createTestTracker(t, 1)
	state, _ := tr.Await(models.NewConversationState(), Pending{Slot: models.SlotAgencyName, Candidates: candidates()})
	state.LastLocation = "Riyadh"

	next := tr.Complete(state, models.IntentVerifyAgency, Memory{Agency: "Al Badr Hajj Company"})
	assert.True(t, next.IsIdle())
	assert.Empty(t, next.Candidates)
	assert.Zero(t, next.ClarificationRounds)
	assert.Equal(t, "Al Badr Hajj Company", next.LastAgency)
	assert.Equal(t, "Riyadh", next.LastLocation)
	assert.Equal(t, models.IntentVerifyAgency, next.LastIntent)
	assert.Equal(t, 2, next.Turn)
}

func TestReset(t *testing.T) {
	tr := createTestTracker(t, 1)
	state := models.ConversationState{
		Kind:         models.StateAwaitingReportConfirm,
		Language:     models.LanguageArabic,
		Report:       &models.ReportDraft{AgencyName: "x"},
		LastAgency:   "Royal City Travel",
		LastIntent:   models.IntentReportFraud,
		Turn:         7,
		PendingQuery: "q",
	}

	next := tr.Reset(state)
	assert.Equal(t, models.ConversationState{Kind: models.StateIdle, Language: models.LanguageArabic, Turn: 8}, next)
	assert.NotNil(t, state.Report)
}

func TestNew_DefaultBound(t *testing.T) {
	tr := New(Config{}, logger.NewTestLogger(t))
	assert.Equal(t, 1, tr.cfg.MaxClarificationRounds)
}
