package matchagency

import "hajj-assistant/internal/models"

type Input struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Verdicts summarize the match for gateway routing.
const (
	VerdictAuthorized    = "authorized"
	VerdictNotAuthorized = "not_authorized"
	VerdictUnknown       = "unknown"
	VerdictAmbiguous     = "ambiguous"
	VerdictNoMatch       = "no_match"
)

type Output struct {
	Verdict    string                  `json:"verdict"`
	Best       *models.MatchCandidate  `json:"best,omitempty"`
	Candidates []models.MatchCandidate `json:"candidates"`
	Ambiguous  bool                    `json:"ambiguous"`
}
