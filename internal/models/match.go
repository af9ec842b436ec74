package models

// MatchCandidate is one registry agency scored against a name fragment.
type MatchCandidate struct {
	Agency        Agency              `json:"agency"`
	Score         float64             `json:"score"`
	Authorization AuthorizationStatus `json:"authorization"`
}

// MatchResult is the ranked output of the identity matcher.
type MatchResult struct {
	Query      string           `json:"query"`
	Candidates []MatchCandidate `json:"candidates"`
	Ambiguous  bool             `json:"ambiguous"`
}

// Best returns the top candidate, if any.
func (r MatchResult) Best() (MatchCandidate, bool) {
	if len(r.Candidates) == 0 {
		return MatchCandidate{}, false
	}
	return r.Candidates[0], true
}
