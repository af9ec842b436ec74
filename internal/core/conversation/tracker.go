// Package conversation owns the transitions of models.ConversationState.
// Every method takes a state value and returns the next one; the input is
// never modified.
package conversation

import (
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"
	"hajj-assistant/internal/models"
)

type Config struct {
	// MaxClarificationRounds bounds how often the same slot is asked for in
	// a row. With 1, a second consecutive ask for the same slot resets.
	MaxClarificationRounds int
}

func DefaultConfig() Config {
	return Config{MaxClarificationRounds: 1}
}

// Pending describes the question a turn leaves open.
type Pending struct {
	Slot         models.SlotKind
	Intent       models.Intent
	Candidates   []models.MatchCandidate
	PendingQuery string
}

type Tracker struct {
	cfg    Config
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *Tracker {
	if cfg.MaxClarificationRounds <= 0 {
		cfg.MaxClarificationRounds = DefaultConfig().MaxClarificationRounds
	}
	return &Tracker{
		cfg:    cfg,
		logger: log.With(map[string]interface{}{"component": "conversation"}),
	}
}

// Await moves the conversation to AWAITING_SLOT(p.Slot). Asking again for
// the slot that is already pending counts as another clarification round;
// once the bound is reached the conversation returns to IDLE and startOver
// is true. Report slots are not bounded.
func (t *Tracker) Await(state models.ConversationState, p Pending) (next models.ConversationState, startOver bool) {
	next = state.Clone()
	next.Turn++

	rounds := 1
	if state.Awaiting(p.Slot) && !p.Slot.IsReportSlot() {
		if state.ClarificationRounds >= t.cfg.MaxClarificationRounds {
			metrics.ClarificationResets.Inc()
			t.logger.Info("clarification bound reached", map[string]interface{}{
				"slot":   string(p.Slot),
				"rounds": state.ClarificationRounds,
			})
			return t.reset(state), true
		}
		rounds = state.ClarificationRounds + 1
	}

	next.Kind = models.StateAwaitingSlot
	next.PendingSlot = p.Slot
	next.ClarificationRounds = rounds
	next.Candidates = p.Candidates
	next.PendingQuery = p.PendingQuery
	if p.Intent != "" {
		next.LastIntent = p.Intent
	}
	if !p.Slot.IsReportSlot() {
		next.Report = nil
	}
	return next, false
}

// AwaitReportSlot records the draft collected so far and asks for slot.
func (t *Tracker) AwaitReportSlot(state models.ConversationState, slot models.SlotKind, draft models.ReportDraft) models.ConversationState {
	next, _ := t.Await(state, Pending{Slot: slot, Intent: models.IntentReportFraud})
	next.Report = &draft
	return next
}

// AwaitReportConfirm holds a complete draft until the user confirms it.
func (t *Tracker) AwaitReportConfirm(state models.ConversationState, draft models.ReportDraft) models.ConversationState {
	next := state.Clone()
	next.Turn++
	next.Kind = models.StateAwaitingReportConfirm
	next.PendingSlot = models.SlotNone
	next.ClarificationRounds = 0
	next.Candidates = nil
	next.PendingQuery = ""
	next.LastIntent = models.IntentReportFraud
	next.Report = &draft
	return next
}

// Memory is what a completed turn leaves behind for follow-ups. Empty
// fields keep the previous values.
type Memory struct {
	Agency   string
	Location string
}

// Complete closes the turn and returns to IDLE.
func (t *Tracker) Complete(state models.ConversationState, intent models.Intent, mem Memory) models.ConversationState {
	next := state.Clone()
	next.Turn++
	next.Kind = models.StateIdle
	next.PendingSlot = models.SlotNone
	next.ClarificationRounds = 0
	next.Candidates = nil
	next.PendingQuery = ""
	next.Report = nil
	if intent != "" {
		next.LastIntent = intent
	}
	if mem.Agency != "" {
		next.LastAgency = mem.Agency
	}
	if mem.Location != "" {
		next.LastLocation = mem.Location
	}
	return next
}

// Reset abandons whatever is pending. Language preference and the turn
// counter survive.
func (t *Tracker) Reset(state models.ConversationState) models.ConversationState {
	return t.reset(state)
}

func (t *Tracker) reset(state models.ConversationState) models.ConversationState {
	next := models.NewConversationState()
	next.Language = state.Language
	next.Turn = state.Turn + 1
	return next
}
