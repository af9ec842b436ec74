// Package composer turns turn outcomes into user-facing payloads in the
// conversation's language. Payloads never carry storage errors, statements
// or prompts.
package composer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/executor"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

// InputProblem names why an utterance was rejected before classification.
type InputProblem string

const (
	InputEmpty   InputProblem = "input_empty"
	InputTooLong InputProblem = "input_too_long"
	InputInvalid InputProblem = "input_invalid"
)

type Composer struct {
	logger logger.Logger
}

func New(log logger.Logger) *Composer {
	return &Composer{logger: log.With(map[string]interface{}{"component": "composer"})}
}

func supported(lang models.Language) models.Language {
	if lang.Known() {
		return lang
	}
	return models.LanguageEnglish
}

func (c *Composer) payload(lang models.Language, body string) models.ResponsePayload {
	return models.ResponsePayload{Text: body, Language: lang}
}

// Verified states the authorization status of a single matched agency and
// names its city.
func (c *Composer) Verified(lang models.Language, cand models.MatchCandidate) models.ResponsePayload {
	lang = supported(lang)
	agency := cand.Agency

	key := msgVerifyUnknown
	switch agency.Authorization {
	case models.AuthorizationAuthorized:
		key = msgVerifyAuthorized
	case models.AuthorizationNotAuthorized:
		key = msgVerifyNot
	}

	place := ""
	if city, ok := localizedPlace(agency.City, lang); ok {
		place = substitute(text(lang, msgPlace), map[string]string{"city": city})
	}
	return c.payload(lang, substitute(text(lang, key), map[string]string{
		"name":  agency.DisplayName(lang),
		"place": place,
	}))
}

// Ambiguous lists the offered candidates, numbered from 1, and asks which
// one was meant.
func (c *Composer) Ambiguous(lang models.Language, candidates []models.MatchCandidate) models.ResponsePayload {
	lang = supported(lang)
	lines := []string{text(lang, msgAmbiguous)}
	for i, cand := range candidates {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, optionLabel(cand.Agency, lang)))
	}
	p := c.payload(lang, strings.Join(lines, "\n"))
	p.FollowUpQuestion = text(lang, msgAmbiguousQuestion)
	return p
}

func optionLabel(a models.Agency, lang models.Language) string {
	var details []string
	if a.City != "" {
		details = append(details, localPlace(a.City, lang))
	}
	if a.Country != "" && a.Country != a.City {
		details = append(details, localPlace(a.Country, lang))
	}
	if len(details) == 0 {
		return a.DisplayName(lang)
	}
	sep := ", "
	if lang.IsArabicScript() {
		sep = "، "
	}
	return a.DisplayName(lang) + " (" + strings.Join(details, sep) + ")"
}

// NoMatch reports that no registry agency scored above the threshold.
func (c *Composer) NoMatch(lang models.Language, name string) models.ResponsePayload {
	lang = supported(lang)
	return c.payload(lang, substitute(text(lang, msgNoMatch), map[string]string{"name": name}))
}

// AskAgencyName asks for the name of the agency to verify.
func (c *Composer) AskAgencyName(lang models.Language) models.ResponsePayload {
	lang = supported(lang)
	p := c.payload(lang, text(lang, msgAskAgencyName))
	p.FollowUpQuestion = p.Text
	return p
}

// AskQueryDetail asks the user to narrow a data query that yielded no safe filter.
func (c *Composer) AskQueryDetail(lang models.Language) models.ResponsePayload {
	lang = supported(lang)
	p := c.payload(lang, text(lang, msgAskQueryDetail))
	p.FollowUpQuestion = p.Text
	return p
}

// Rows summarizes a query result and attaches it as a table. An empty
// result gets the "no matches" text and no table.
func (c *Composer) Rows(lang models.Language, res *executor.Result) models.ResponsePayload {
	lang = supported(lang)
	if res == nil || len(res.Rows) == 0 {
		return c.payload(lang, text(lang, msgNoResults))
	}

	authorized := 0
	for _, a := range res.Agencies {
		if a.IsAuthorized() {
			authorized++
		}
	}
	summary := substitute(text(lang, msgResults), map[string]string{
		"count":      strconv.Itoa(len(res.Rows)),
		"authorized": strconv.Itoa(authorized),
	})
	if res.Truncated {
		summary += " " + substitute(text(lang, msgTruncated), map[string]string{"count": strconv.Itoa(len(res.Rows))})
	}

	p := c.payload(lang, summary)
	p.Table = res.Table()
	return p
}

// Stats renders registry totals.
func (c *Composer) Stats(lang models.Language, stats models.RegistryStats) models.ResponsePayload {
	lang = supported(lang)
	return c.payload(lang, substitute(text(lang, msgStats), map[string]string{
		"total":      strconv.Itoa(stats.Total),
		"authorized": strconv.Itoa(stats.Authorized),
		"countries":  strconv.Itoa(stats.Countries),
		"cities":     strconv.Itoa(stats.Cities),
	}))
}

// Greeting answers chitchat with what the assistant can do.
func (c *Composer) Greeting(lang models.Language) models.ResponsePayload {
	lang = supported(lang)
	return c.payload(lang, text(lang, msgGreeting))
}

// GeneralAnswer wraps an answer to a general Hajj question with a pointer
// back to what the assistant checks.
func (c *Composer) GeneralAnswer(lang models.Language, answer string) models.ResponsePayload {
	lang = supported(lang)
	p := c.payload(lang, strings.TrimSpace(answer))
	p.FollowUpQuestion = text(lang, msgGeneralFollowUp)
	return p
}

// StartOver is sent when a clarification could not be resolved in the
// allowed number of rounds.
func (c *Composer) StartOver(lang models.Language) models.ResponsePayload {
	lang = supported(lang)
	return c.payload(lang, text(lang, msgStartOver))
}

// QueryFailed is the apology for storage and oracle failures.
func (c *Composer) QueryFailed(lang models.Language) models.ResponsePayload {
	lang = supported(lang)
	p := c.payload(lang, text(lang, msgQueryFailed))
	p.FailureCode = models.FailureQueryFailed
	return p
}

// ReportFailed is the apology when no report sink accepted the report.
func (c *Composer) ReportFailed(lang models.Language) models.ResponsePayload {
	lang = supported(lang)
	p := c.payload(lang, text(lang, msgReportFailed))
	p.FailureCode = models.FailureReportFailed
	return p
}

// InvalidInput rejects an utterance that failed input validation.
func (c *Composer) InvalidInput(lang models.Language, problem InputProblem) models.ResponsePayload {
	lang = supported(lang)
	key := msgInputInvalid
	switch problem {
	case InputEmpty:
		key = msgInputEmpty
	case InputTooLong:
		key = msgInputTooLong
	}
	p := c.payload(lang, text(lang, key))
	p.FailureCode = models.FailureInvalidInput
	return p
}

// ReportPrompt asks for the next report slot. feedback, when set, is shown
// first and explains why the previous answer was not accepted.
func (c *Composer) ReportPrompt(lang models.Language, slot models.SlotKind, feedback string) models.ResponsePayload {
	lang = supported(lang)
	key := msgReportAgency
	switch slot {
	case models.SlotReportCity:
		key = msgReportCity
	case models.SlotReportDetails:
		key = msgReportDetails
	case models.SlotReportContact:
		key = msgReportContact
	}
	question := text(lang, key)
	body := question
	if feedback != "" {
		body = feedback + "\n" + question
	}
	p := c.payload(lang, body)
	p.FollowUpQuestion = question
	return p
}

// ReportRetry is the local feedback for a rejected report answer.
func (c *Composer) ReportRetry(lang models.Language, slot models.SlotKind) string {
	lang = supported(lang)
	if slot == models.SlotReportContact {
		return text(lang, msgReportContactRetry)
	}
	return text(lang, msgReportRetry)
}

// ReportConfirm echoes the collected report and asks for confirmation.
func (c *Composer) ReportConfirm(lang models.Language, draft models.ReportDraft) models.ResponsePayload {
	lang = supported(lang)
	contact := draft.Contact
	if contact == "" {
		contact = text(lang, msgAnonymous)
	}
	p := c.payload(lang, substitute(text(lang, msgReportConfirm), map[string]string{
		"agency":  draft.AgencyName,
		"city":    draft.City,
		"details": draft.Details,
		"contact": contact,
	}))
	p.FollowUpQuestion = text(lang, msgReportConfirmAgain)
	return p
}

// ReportFiled acknowledges a stored report with its reference.
func (c *Composer) ReportFiled(lang models.Language, ref string) models.ResponsePayload {
	lang = supported(lang)
	p := c.payload(lang, substitute(text(lang, msgReportFiled), map[string]string{"ref": ref}))
	p.ReferenceID = ref
	return p
}

func (c *Composer) ReportCancelled(lang models.Language) models.ResponsePayload {
	lang = supported(lang)
	return c.payload(lang, text(lang, msgReportCancelled))
}

// localPlace writes a known city or country in the reader's script, or
// returns name unchanged.
func localPlace(name string, lang models.Language) string {
	if local, ok := localizedPlace(name, lang); ok {
		return local
	}
	return name
}

// localizedPlace reports false when name is empty or has no spelling in the
// reader's script.
func localizedPlace(name string, lang models.Language) (string, bool) {
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	if !lang.IsArabicScript() || isArabicScript(name) {
		return name, true
	}
	loc, ok := schema.LookupLocation(name)
	if !ok {
		return "", false
	}
	var fallback string
	for _, v := range loc.Variants {
		if !isArabicScript(v) {
			continue
		}
		if fallback == "" {
			fallback = v
		}
		if lang == models.LanguageUrdu && hasUrduLetter(v) {
			return v, true
		}
	}
	return fallback, fallback != ""
}

func isArabicScript(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

func hasUrduLetter(s string) bool {
	return strings.ContainsAny(s, "ٹڈڑںےہیکگپچژ")
}
