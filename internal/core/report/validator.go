package report

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/oracle"
	"hajj-assistant/internal/common/validation"
	"hajj-assistant/internal/models"
)

const (
	minNameRunes    = 2
	minDetailsRunes = 10
	maxAnswerRunes  = 500
)

// Verdict is the judgement on one report answer. Feedback is shown to the
// user when the answer is rejected and may be empty.
type Verdict struct {
	Valid    bool
	Feedback string
}

// AnswerValidator judges a report answer. Implementations return an error
// only when they could not judge at all.
type AnswerValidator interface {
	Validate(ctx context.Context, slot models.SlotKind, lang models.Language, answer string) (Verdict, error)
}

// localCheck is the length-based check used when no oracle is configured
// or the oracle fails.
func localCheck(slot models.SlotKind, answer string) Verdict {
	n := utf8.RuneCountInString(strings.TrimSpace(answer))
	if n > maxAnswerRunes {
		return Verdict{}
	}
	switch slot {
	case models.SlotReportDetails:
		return Verdict{Valid: n >= minDetailsRunes}
	default:
		return Verdict{Valid: n >= minNameRunes}
	}
}

var slotRoles = map[models.SlotKind]string{
	models.SlotReportAgency:  "agency name",
	models.SlotReportCity:    "city name",
	models.SlotReportDetails: "complaint details",
	models.SlotReportContact: "contact info",
}

var verdictSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["is_valid"],
	"properties": {
		"is_valid": {"type": "boolean"},
		"feedback": {"type": "string", "maxLength": 300}
	}
}`)

type verdictReply struct {
	IsValid  bool   `json:"is_valid"`
	Feedback string `json:"feedback"`
}

// OracleValidator asks the oracle whether an answer is usable.
type OracleValidator struct {
	oracle    oracle.Oracle
	maxTokens int
	logger    logger.Logger
}

func NewOracleValidator(o oracle.Oracle, log logger.Logger) *OracleValidator {
	return &OracleValidator{
		oracle:    o,
		maxTokens: 150,
		logger:    log.With(map[string]interface{}{"component": "report-validator"}),
	}
}

func (v *OracleValidator) Validate(ctx context.Context, slot models.SlotKind, lang models.Language, answer string) (Verdict, error) {
	reply, err := v.oracle.Complete(ctx, oracle.Request{
		System:    "You validate inputs for a Hajj fraud reporting assistant. Reply with JSON only.",
		Prompt:    buildValidationPrompt(slot, lang, answer),
		MaxTokens: v.maxTokens,
	})
	if err != nil {
		return Verdict{}, err
	}

	var decoded verdictReply
	if err := validation.DecodeReply(reply, verdictSchema, &decoded); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", oracle.ErrUnavailable, err)
	}
	feedback := strings.TrimSpace(decoded.Feedback)
	if decoded.IsValid {
		feedback = ""
	}
	return Verdict{Valid: decoded.IsValid, Feedback: feedback}, nil
}

func buildValidationPrompt(slot models.SlotKind, lang models.Language, answer string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Input type: %s", slotRoles[slot]))
	parts = append(parts, fmt.Sprintf("Input: %q", answer))
	parts = append(parts, "\nRules:")
	parts = append(parts, "1. Agency name and city: accept reasonable names, even if slightly misspelled.")
	parts = append(parts, "2. Complaint details: accept any meaningful description of the incident. Never reject a date, past or future. Check only completeness and clarity.")
	parts = append(parts, "3. Contact info: accept a valid email or phone number.")
	parts = append(parts, fmt.Sprintf("\nWrite feedback in the language with code %q, short and friendly, guiding the user.", lang))
	parts = append(parts, "Format: {\"is_valid\": true|false, \"feedback\": \"...\"}")

	return strings.Join(parts, "\n")
}
