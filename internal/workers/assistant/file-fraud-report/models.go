package filefraudreport

import (
	"time"

	"hajj-assistant/internal/models"
)

type Input struct {
	SessionID  string `json:"sessionId,omitempty"`
	Language   string `json:"language,omitempty"`
	AgencyName string `json:"agencyName"`
	City       string `json:"city"`
	Details    string `json:"details"`
	Contact    string `json:"contact,omitempty"`
}

type Output struct {
	ReferenceID   string                     `json:"referenceId"`
	SubmittedAt   time.Time                  `json:"submittedAt"`
	MatchedAgency *models.Agency             `json:"matchedAgency,omitempty"`
	Authorization models.AuthorizationStatus `json:"authorization,omitempty"`
}
