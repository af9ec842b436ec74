package models

// FailureCode is the machine-readable outcome attached to apology responses.
type FailureCode string

const (
	FailureNone         FailureCode = ""
	FailureQueryFailed  FailureCode = "QUERY_FAILED"
	FailureReportFailed FailureCode = "REPORT_FAILED"
	FailureInvalidInput FailureCode = "INVALID_INPUT"
)

// Table is a structured result set with explicit column order.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ResponsePayload is what a turn returns to the caller (and to speech synthesis).
type ResponsePayload struct {
	Text             string      `json:"text"`
	Language         Language    `json:"language"`
	Table            *Table      `json:"table,omitempty"`
	FollowUpQuestion string      `json:"follow_up_question,omitempty"`
	FailureCode      FailureCode `json:"failure_code,omitempty"`
	ReferenceID      string      `json:"reference_id,omitempty"`
}

// Failed reports whether the payload is an apology for a failed turn.
func (p ResponsePayload) Failed() bool {
	return p.FailureCode != FailureNone
}
