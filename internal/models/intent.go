package models

// Intent is the closed set of things a user can want in one turn.
type Intent string

const (
	IntentDataQuery          Intent = "DATA_QUERY"
	IntentVerifyAgency       Intent = "VERIFY_AGENCY"
	IntentReportFraud        Intent = "REPORT_FRAUD"
	IntentClarificationReply Intent = "CLARIFICATION_REPLY"
	IntentChitchat           Intent = "CHITCHAT"
)

// AllIntents lists the enumeration in a stable order.
var AllIntents = []Intent{
	IntentDataQuery,
	IntentVerifyAgency,
	IntentReportFraud,
	IntentClarificationReply,
	IntentChitchat,
}

// Valid reports membership in the closed enumeration.
func (i Intent) Valid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

// Slots holds values extracted from an utterance. Pointer fields are unset when absent.
type Slots struct {
	AgencyName string   `json:"agencyName,omitempty"`
	City       string   `json:"city,omitempty"`
	Country    string   `json:"country,omitempty"`
	MinRating  *float64 `json:"minRating,omitempty"`
	MaxRating  *float64 `json:"maxRating,omitempty"`
	Authorized *bool    `json:"authorized,omitempty"`
	HasEmail   bool     `json:"hasEmail,omitempty"`
	ListAll    bool     `json:"listAll,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Contact    string   `json:"contact,omitempty"`
	// Selection is the 1-based option picked in reply to a clarifying question.
	Selection int `json:"selection,omitempty"`
}

// HasQueryFilters reports whether any slot can narrow a data query.
func (s Slots) HasQueryFilters() bool {
	return s.City != "" || s.Country != "" || s.MinRating != nil || s.MaxRating != nil ||
		s.Authorized != nil || s.HasEmail || s.AgencyName != ""
}

// Utterance is the text of one turn after transcription.
type Utterance struct {
	Text     string   `json:"text"`
	Language Language `json:"language"`
	AudioTag string   `json:"audioTag,omitempty"`
}
