// internal/models/conversation.go
package models

// StateKind is the top-level conversation state.
type StateKind string

const (
	StateIdle                  StateKind = "IDLE"
	StateAwaitingSlot          StateKind = "AWAITING_SLOT"
	StateAwaitingReportConfirm StateKind = "AWAITING_REPORT_CONFIRM"
)

// SlotKind names the piece of information a pending clarification waits for.
type SlotKind string

const (
	SlotNone          SlotKind = ""
	SlotAgencyName    SlotKind = "agency_name"
	SlotQueryDetail   SlotKind = "query_detail"
	SlotReportAgency  SlotKind = "report_agency"
	SlotReportCity    SlotKind = "report_city"
	SlotReportDetails SlotKind = "report_details"
	SlotReportContact SlotKind = "report_contact"
)

// IsReportSlot reports whether k belongs to the fraud-report sub-flow.
func (k SlotKind) IsReportSlot() bool {
	switch k {
	case SlotReportAgency, SlotReportCity, SlotReportDetails, SlotReportContact:
		return true
	}
	return false
}

// ConversationState is the per-session record carried between turns. It is a
// value: components receive a copy and return the next one.
type ConversationState struct {
	Kind                StateKind        `json:"kind"`
	PendingSlot         SlotKind         `json:"pendingSlot,omitempty"`
	ClarificationRounds int              `json:"clarificationRounds,omitempty"`
	LastIntent          Intent           `json:"lastIntent,omitempty"`
	Language            Language         `json:"language,omitempty"`
	Candidates          []MatchCandidate `json:"candidates,omitempty"`
	PendingQuery        string           `json:"pendingQuery,omitempty"`
	Report              *ReportDraft     `json:"report,omitempty"`
	LastAgency          string           `json:"lastAgency,omitempty"`
	LastLocation        string           `json:"lastLocation,omitempty"`
	Turn                int              `json:"turn"`
}

// NewConversationState returns the state of a fresh session.
func NewConversationState() ConversationState {
	return ConversationState{Kind: StateIdle}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (s ConversationState) Clone() ConversationState {
	out := s
	if s.Candidates != nil {
		out.Candidates = make([]MatchCandidate, len(s.Candidates))
		copy(out.Candidates, s.Candidates)
	}
	if s.Report != nil {
		draft := *s.Report
		out.Report = &draft
	}
	return out
}

// Normalized fills the zero value so a missing kind reads as IDLE.
func (s ConversationState) Normalized() ConversationState {
	if s.Kind == "" {
		s.Kind = StateIdle
	}
	return s
}

// IsIdle reports whether no clarification or confirmation is pending.
func (s ConversationState) IsIdle() bool {
	return s.Kind == "" || s.Kind == StateIdle
}

// Awaiting reports whether the state waits for the given slot.
func (s ConversationState) Awaiting(kind SlotKind) bool {
	return s.Kind == StateAwaitingSlot && s.PendingSlot == kind
}
