package models

import "time"

// ReportDraft accumulates fraud-report slots across turns.
type ReportDraft struct {
	AgencyName string `json:"agencyName,omitempty"`
	City       string `json:"city,omitempty"`
	Details    string `json:"details,omitempty"`
	Contact    string `json:"contact,omitempty"`
	// ContactCollected distinguishes an anonymous "skip" from a slot not yet asked.
	ContactCollected bool `json:"contactCollected,omitempty"`
}

// Report is the append-only record handed to the report sink.
type Report struct {
	ReferenceID   string              `json:"referenceId"`
	AgencyName    string              `json:"agencyName"`
	City          string              `json:"city"`
	Details       string              `json:"details"`
	Contact       string              `json:"contact,omitempty"`
	Language      Language            `json:"language"`
	SessionID     string              `json:"sessionId,omitempty"`
	MatchedAgency *Agency             `json:"matchedAgency,omitempty"`
	Authorization AuthorizationStatus `json:"authorization,omitempty"`
	SubmittedAt   time.Time           `json:"submittedAt"`
}
