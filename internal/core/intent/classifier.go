// Package intent decides what a turn is asking for. A pending clarification
// is tested first, then keyword rules per language, and only then the
// oracle, whose label is checked against the closed intent set.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"
	"hajj-assistant/internal/common/oracle"
	"hajj-assistant/internal/common/validation"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

// Result sources.
const (
	SourcePending = "pending"
	SourceRules   = "rules"
	SourceOracle  = "oracle"
	SourceMiss    = "miss"
)

// Result is the decision for one turn.
type Result struct {
	Intent models.Intent
	Slots  models.Slots
	Source string
	// Miss is set when the oracle's label fell outside the closed set.
	Miss bool
	// Vague is set for agency questions that name no agency.
	Vague bool
	// Confirm carries a yes/no answer to a pending report confirmation.
	Confirm *bool
}

const systemPrompt = `You label messages sent to an assistant that verifies Hajj and Umrah agencies.
Reply with one JSON object and nothing else.`

var replySchema = validation.MustCompile(`{
	"type": "object",
	"required": ["intent"],
	"properties": {
		"intent": {"type": "string", "maxLength": 40},
		"slots": {
			"type": "object",
			"properties": {
				"agency_name": {"type": "string", "maxLength": 100},
				"city": {"type": "string", "maxLength": 60},
				"country": {"type": "string", "maxLength": 60},
				"min_rating": {"type": "number", "minimum": 0, "maximum": 5},
				"max_rating": {"type": "number", "minimum": 0, "maximum": 5},
				"authorized": {"type": "boolean"},
				"list_all": {"type": "boolean"}
			}
		}
	}
}`)

type oracleReply struct {
	Intent string `json:"intent"`
	Slots  struct {
		AgencyName string   `json:"agency_name"`
		City       string   `json:"city"`
		Country    string   `json:"country"`
		MinRating  *float64 `json:"min_rating"`
		MaxRating  *float64 `json:"max_rating"`
		Authorized *bool    `json:"authorized"`
		ListAll    bool     `json:"list_all"`
	} `json:"slots"`
}

type Config struct {
	MaxTokens int
}

type Classifier struct {
	oracle oracle.Oracle
	cfg    Config
	logger logger.Logger
}

// New builds a classifier. With a nil oracle, utterances no rule recognizes
// are treated as chitchat.
func New(o oracle.Oracle, cfg Config, log logger.Logger) *Classifier {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200
	}
	return &Classifier{
		oracle: o,
		cfg:    cfg,
		logger: log.With(map[string]interface{}{"component": "intent"}),
	}
}

// Classify decides the intent of utt given the current state. Only oracle
// transport failures are returned as errors; an unusable label is recovered
// as CHITCHAT.
func (c *Classifier) Classify(ctx context.Context, utt models.Utterance, state models.ConversationState) (Result, error) {
	text := strings.TrimSpace(utt.Text)
	f := fold(text)

	if res, ok := c.pending(text, f, state); ok {
		return res, nil
	}

	if res, ok := c.rules(text, f, state); ok {
		return res, nil
	}

	if c.oracle == nil {
		return Result{Intent: models.IntentChitchat, Source: SourceRules}, nil
	}
	return c.ask(ctx, utt, state)
}

func (c *Classifier) rules(text string, f folded, state models.ConversationState) (Result, bool) {
	filters := extractFilters(text, f)

	switch {
	case reportWords.in(f):
		name := agencyName(text, reportWords, reportFiller)
		if !hasIdentity(name) {
			name = ""
		}
		return Result{
			Intent: models.IntentReportFraud,
			Slots:  models.Slots{AgencyName: name, City: filters.City},
			Source: SourceRules,
		}, true

	case dataWords.in(f) || filters.ListAll || emailWords.in(f):
		return Result{Intent: models.IntentDataQuery, Slots: filters, Source: SourceRules}, true

	case verifyWords.in(f) || (pronounWords.in(f) && state.LastAgency != "" && len(f.tokens) <= 5):
		return c.verify(text, filters, state), true

	case (filters.City != "" || filters.Country != "" || filters.MinRating != nil) &&
		state.LastIntent == models.IntentDataQuery:
		// "what about Jeddah?" after a data query
		return Result{Intent: models.IntentDataQuery, Slots: filters, Source: SourceRules}, true

	case greetingWords.in(f):
		return Result{Intent: models.IntentChitchat, Source: SourceRules}, true
	}

	if len(f.tokens) < 3 && mentionsAgency(f) {
		return Result{Intent: models.IntentVerifyAgency, Source: SourceRules, Vague: true}, true
	}
	return Result{}, false
}

func (c *Classifier) verify(text string, filters models.Slots, state models.ConversationState) Result {
	res := Result{Intent: models.IntentVerifyAgency, Source: SourceRules}
	res.Slots.City = filters.City
	res.Slots.Country = filters.Country

	name := agencyName(text)
	switch {
	case hasIdentity(name):
		res.Slots.AgencyName = name
	case state.LastAgency != "":
		res.Slots.AgencyName = state.LastAgency
		if res.Slots.City == "" {
			res.Slots.City = state.LastLocation
		}
	default:
		res.Vague = true
	}
	return res
}

func (c *Classifier) ask(ctx context.Context, utt models.Utterance, state models.ConversationState) (Result, error) {
	reply, err := c.oracle.Complete(ctx, oracle.Request{
		System:    systemPrompt,
		Prompt:    buildPrompt(utt, state),
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		c.logger.Warn("intent oracle failed", map[string]interface{}{"error": err.Error()})
		return Result{}, oracle.AsStandardError(err)
	}

	var decoded oracleReply
	if err := validation.DecodeReply(reply, replySchema, &decoded); err != nil {
		return c.miss("malformed reply", err.Error()), nil
	}

	label := models.Intent(strings.ToUpper(strings.TrimSpace(decoded.Intent)))
	if !label.Valid() || label == models.IntentClarificationReply {
		return c.miss("label outside the closed set", decoded.Intent), nil
	}

	res := Result{Intent: label, Source: SourceOracle}
	res.Slots = models.Slots{
		AgencyName: strings.TrimSpace(decoded.Slots.AgencyName),
		MinRating:  decoded.Slots.MinRating,
		MaxRating:  decoded.Slots.MaxRating,
		Authorized: decoded.Slots.Authorized,
		ListAll:    decoded.Slots.ListAll,
	}
	if loc, ok := schema.LookupLocation(decoded.Slots.City); ok && loc.Kind == schema.LocationCity {
		res.Slots.City = loc.Canonical
	}
	if loc, ok := schema.LookupLocation(decoded.Slots.Country); ok && loc.Kind == schema.LocationCountry {
		res.Slots.Country = loc.Canonical
	}

	if label == models.IntentVerifyAgency && !hasIdentity(res.Slots.AgencyName) {
		res.Slots.AgencyName = ""
		if state.LastAgency != "" {
			res.Slots.AgencyName = state.LastAgency
		} else {
			res.Vague = true
		}
	}
	return res, nil
}

func (c *Classifier) miss(reason, detail string) Result {
	metrics.ClassificationMisses.Inc()
	c.logger.Warn("CLASSIFICATION_MISS", map[string]interface{}{
		"reason": reason,
		"detail": detail,
	})
	return Result{Intent: models.IntentChitchat, Source: SourceMiss, Miss: true}
}

func buildPrompt(utt models.Utterance, state models.ConversationState) string {
	var parts []string

	parts = append(parts, "Labels:")
	parts = append(parts, "- VERIFY_AGENCY: asks whether one named agency is authorized or asks about that agency")
	parts = append(parts, "- DATA_QUERY: asks for lists, counts or details of agencies by place, rating or status")
	parts = append(parts, "- REPORT_FRAUD: wants to report a fake agency or a scam")
	parts = append(parts, "- CHITCHAT: greetings, thanks, general Hajj questions, anything else")

	parts = append(parts, "\nOptional slots: agency_name, city, country, min_rating, max_rating (0-5), authorized (true/false), list_all.")
	if state.LastAgency != "" {
		parts = append(parts, fmt.Sprintf("The previous turn was about the agency %q.", state.LastAgency))
	}

	parts = append(parts, "\nFormat: {\"intent\": \"<label>\", \"slots\": {...}}")
	parts = append(parts, fmt.Sprintf("\nMessage (%s): %s", utt.Language, utt.Text))
	parts = append(parts, "\nJSON:")

	return strings.Join(parts, "\n")
}

var agencyNouns = newLexicon(
	"agency", "company", "office", "travel", "tours",
	"وكالة", "شركة", "مكتب", "مؤسسة",
	"ایجنسی", "کمپنی", "دفتر",
)

func mentionsAgency(f folded) bool {
	return agencyNouns.in(f)
}
