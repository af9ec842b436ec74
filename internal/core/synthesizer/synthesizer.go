// Package synthesizer turns a data question into a bounded, parameterized
// QueryPlan. The oracle only proposes (field, operator, value) triples; every
// identifier in the rendered statement comes from the schema registry.
package synthesizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"
	"hajj-assistant/internal/common/oracle"
	"hajj-assistant/internal/common/validation"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

const systemPrompt = `You convert questions about a registry of Hajj and Umrah agencies into search filters.
Reply with one JSON object and nothing else. Never write SQL.`

// Filters are checked one by one after decoding, so items are left open here.
var replySchema = validation.MustCompile(`{
	"type": "object",
	"required": ["filters"],
	"properties": {
		"filters": {"type": "array", "maxItems": 16, "items": {"type": "object"}},
		"list_all": {"type": "boolean"},
		"limit": {"type": "integer", "minimum": 1}
	}
}`)

type oracleReply struct {
	Filters []map[string]interface{} `json:"filters"`
	ListAll bool                     `json:"list_all"`
	Limit   int                      `json:"limit"`
}

type Config struct {
	RowCap    int
	MaxTokens int
}

type Synthesizer struct {
	oracle   oracle.Oracle
	registry *schema.Registry
	cfg      Config
	logger   logger.Logger
}

// New builds a synthesizer. A nil oracle restricts it to rule-extracted slots.
func New(o oracle.Oracle, reg *schema.Registry, cfg Config, log logger.Logger) *Synthesizer {
	if cfg.RowCap <= 0 {
		cfg.RowCap = 200
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	return &Synthesizer{
		oracle:   o,
		registry: reg,
		cfg:      cfg,
		logger:   log.With(map[string]interface{}{"component": "synthesizer"}),
	}
}

// Synthesize builds a plan from the oracle's triples, filling missing fields
// from slots. It returns an UNRESOLVABLE_QUERY error when nothing safe is
// left and the user did not ask for everything, and an oracle error only
// when the slots cannot stand in for the failed call.
func (s *Synthesizer) Synthesize(ctx context.Context, utt models.Utterance, slots models.Slots) (*models.QueryPlan, error) {
	plan := &models.QueryPlan{
		Table:   s.registry.Table(),
		Columns: s.registry.ExposedColumns(),
		Limit:   s.cfg.RowCap,
	}

	var (
		proposed []map[string]interface{}
		listAll  = slots.ListAll
	)

	if s.oracle != nil {
		reply, err := s.ask(ctx, utt)
		var decodeErr *replyError
		switch {
		case err == nil:
			proposed = reply.Filters
			listAll = listAll || reply.ListAll
			if reply.Limit > 0 && reply.Limit < plan.Limit {
				plan.Limit = reply.Limit
			}
		case errors.Is(err, context.Canceled):
			return nil, err
		case errors.As(err, &decodeErr):
			s.logger.Warn("discarding oracle reply", map[string]interface{}{"error": err.Error()})
		case !slots.HasQueryFilters() && !slots.ListAll:
			return nil, oracle.AsStandardError(err)
		default:
			s.logger.Warn("oracle failed, using rule slots", map[string]interface{}{"error": err.Error()})
		}
	}

	v := newValidator(s.registry)
	for _, raw := range proposed {
		v.addRaw(raw)
	}
	for _, f := range slotFilters(slots) {
		v.addFromSlot(f)
	}
	plan.Filters = v.accepted
	plan.Dropped = v.dropped

	for _, d := range plan.Dropped {
		metrics.DroppedFilters.WithLabelValues(d.Reason).Inc()
		s.logger.Info("dropped filter", map[string]interface{}{
			"field":    d.Field,
			"operator": d.Operator,
			"reason":   d.Reason,
		})
	}

	if len(plan.Filters) == 0 && !listAll {
		return nil, apperrors.NewUnresolvableQueryError(fmt.Sprintf("dropped %d filters", len(plan.Dropped)))
	}

	render(s.registry, plan)

	s.logger.Debug("query plan built", map[string]interface{}{
		"filters": len(plan.Filters),
		"limit":   plan.Limit,
		"listAll": listAll,
	})
	return plan, nil
}

func (s *Synthesizer) ask(ctx context.Context, utt models.Utterance) (*oracleReply, error) {
	text, err := s.oracle.Complete(ctx, oracle.Request{
		System:    systemPrompt,
		Prompt:    s.buildPrompt(utt),
		MaxTokens: s.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var reply oracleReply
	if err := validation.DecodeReply(text, replySchema, &reply); err != nil {
		return nil, &replyError{err: err}
	}
	return &reply, nil
}

// replyError marks an oracle reply that arrived but could not be used.
type replyError struct{ err error }

func (e *replyError) Error() string { return "invalid oracle reply: " + e.err.Error() }
func (e *replyError) Unwrap() error { return e.err }

func (s *Synthesizer) buildPrompt(utt models.Utterance) string {
	var parts []string

	parts = append(parts, "Fields you may filter on:")
	for _, name := range s.registry.FieldNames() {
		f, _ := s.registry.Field(name)
		ops := make([]string, 0, 3)
		for _, op := range schema.Operators(f.Type) {
			ops = append(ops, string(op))
		}
		parts = append(parts, fmt.Sprintf("- %s (%s): %s", name, f.Type, strings.Join(ops, ", ")))
	}

	parts = append(parts, "\nRules:")
	parts = append(parts, "- ratings are numbers from 0 to 5")
	parts = append(parts, "- authorized takes true or false")
	parts = append(parts, "- in-list takes an array of strings")
	parts = append(parts, "- use English place names (Mecca, Medina, Egypt, Pakistan)")
	parts = append(parts, `- set "list_all" to true only when the user wants every agency`)

	example, _ := json.Marshal(map[string]interface{}{
		"filters":  []map[string]interface{}{{"field": "country", "operator": "equals", "value": "Egypt"}},
		"list_all": false,
	})
	parts = append(parts, "\nExample: "+string(example))
	parts = append(parts, fmt.Sprintf("\nQuestion (%s): %s", utt.Language, utt.Text))
	parts = append(parts, "\nJSON:")

	return strings.Join(parts, "\n")
}
