package synthesizer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

// Reasons recorded on dropped filters.
const (
	ReasonUnknownField       = "unknown_field"
	ReasonUnknownOperator    = "unknown_operator"
	ReasonOperatorNotAllowed = "operator_not_allowed"
	ReasonInvalidValue       = "invalid_value"
	ReasonDuplicate          = "duplicate"
	ReasonFieldUnavailable   = "field_unavailable"
)

const (
	maxValueRunes = 100
	maxListItems  = 20
	maxRating     = 5.0
)

var knownOperators = map[string]models.Operator{
	"equals":       models.OpEquals,
	"eq":           models.OpEquals,
	"=":            models.OpEquals,
	"contains":     models.OpContains,
	"like":         models.OpContains,
	"greater-than": models.OpGreaterThan,
	"greater_than": models.OpGreaterThan,
	"gt":           models.OpGreaterThan,
	">":            models.OpGreaterThan,
	"less-than":    models.OpLessThan,
	"less_than":    models.OpLessThan,
	"lt":           models.OpLessThan,
	"<":            models.OpLessThan,
	"in-list":      models.OpInList,
	"in_list":      models.OpInList,
	"in":           models.OpInList,
}

type validator struct {
	registry *schema.Registry
	accepted []models.Filter
	dropped  []models.DroppedFilter
	fields   map[string]bool // covered by the oracle
	seen     map[string]bool
}

func newValidator(reg *schema.Registry) *validator {
	return &validator{
		registry: reg,
		fields:   make(map[string]bool),
		seen:     make(map[string]bool),
	}
}

// addRaw validates one oracle-proposed triple. Nothing from it reaches the
// plan unless field, operator and value all check out.
func (v *validator) addRaw(raw map[string]interface{}) {
	fieldName, _ := raw["field"].(string)
	opName, _ := raw["operator"].(string)

	f, err := v.check(fieldName, opName, raw["value"])
	if err != "" {
		v.drop(fieldName, opName, err)
		return
	}
	v.accept(f, opName)
	v.fields[f.Field] = true
}

// addFromSlot adds a rule-extracted filter unless the oracle already covered the field.
func (v *validator) addFromSlot(f models.Filter) {
	if v.fields[f.Field] {
		return
	}
	checked, reason := v.check(f.Field, string(f.Operator), f.Value)
	if reason != "" {
		if reason == ReasonUnknownField {
			reason = ReasonFieldUnavailable
		}
		v.drop(f.Field, string(f.Operator), reason)
		return
	}
	v.accept(checked, string(f.Operator))
}

func (v *validator) accept(f models.Filter, opName string) {
	key := f.Field + "|" + string(f.Operator)
	if v.seen[key] {
		v.drop(f.Field, opName, ReasonDuplicate)
		return
	}
	v.seen[key] = true
	v.accepted = append(v.accepted, f)
}

func (v *validator) drop(field, op, reason string) {
	v.dropped = append(v.dropped, models.DroppedFilter{
		Field:    truncate(field, 40),
		Operator: truncate(op, 20),
		Reason:   reason,
	})
}

func (v *validator) check(fieldName, opName string, value interface{}) (models.Filter, string) {
	field, ok := v.registry.Field(fieldName)
	if !ok {
		return models.Filter{}, ReasonUnknownField
	}
	op, ok := knownOperators[strings.ToLower(strings.TrimSpace(opName))]
	if !ok {
		return models.Filter{}, ReasonUnknownOperator
	}
	if !v.registry.Allows(field.Name, op) {
		return models.Filter{}, ReasonOperatorNotAllowed
	}

	normalized, ok := normalizeValue(field.Type, op, value)
	if !ok {
		return models.Filter{}, ReasonInvalidValue
	}
	return models.Filter{Field: field.Name, Operator: op, Value: normalized}, ""
}

func normalizeValue(t schema.SemanticType, op models.Operator, value interface{}) (interface{}, bool) {
	switch t {
	case schema.TypeRating:
		n, ok := toFloat(value)
		if !ok || n < 0 || n > maxRating {
			return nil, false
		}
		return n, true

	case schema.TypeFlag:
		return toBool(value)

	default:
		if op == models.OpInList {
			return toStringList(value)
		}
		return toText(value)
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(value interface{}) (interface{}, bool) {
	switch b := value.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "authorized", "1":
			return true, true
		case "false", "no", "not_authorized", "0":
			return false, true
		}
	}
	return nil, false
}

func toText(value interface{}) (interface{}, bool) {
	s, ok := value.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxValueRunes {
		return nil, false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return nil, false
		}
	}
	return s, true
}

func toStringList(value interface{}) (interface{}, bool) {
	var items []interface{}
	switch l := value.(type) {
	case []interface{}:
		items = l
	case []string:
		for _, s := range l {
			items = append(items, s)
		}
	case string:
		items = []interface{}{l}
	default:
		return nil, false
	}
	if len(items) == 0 || len(items) > maxListItems {
		return nil, false
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := toText(item)
		if !ok {
			return nil, false
		}
		out = append(out, s.(string))
	}
	return out, true
}

// slotFilters expresses rule-extracted slots as filter triples.
func slotFilters(s models.Slots) []models.Filter {
	var out []models.Filter
	if s.Country != "" {
		out = append(out, models.Filter{Field: schema.FieldCountry, Operator: models.OpEquals, Value: s.Country})
	}
	if s.City != "" {
		out = append(out, models.Filter{Field: schema.FieldCity, Operator: models.OpEquals, Value: s.City})
	}
	if s.MinRating != nil {
		out = append(out, models.Filter{Field: schema.FieldRating, Operator: models.OpGreaterThan, Value: *s.MinRating})
	}
	if s.MaxRating != nil {
		out = append(out, models.Filter{Field: schema.FieldRating, Operator: models.OpLessThan, Value: *s.MaxRating})
	}
	if s.Authorized != nil {
		out = append(out, models.Filter{Field: schema.FieldAuthorized, Operator: models.OpEquals, Value: *s.Authorized})
	}
	if s.HasEmail {
		out = append(out, models.Filter{Field: schema.FieldEmail, Operator: models.OpContains, Value: "@"})
	}
	if s.AgencyName != "" {
		out = append(out, models.Filter{Field: schema.FieldName, Operator: models.OpContains, Value: s.AgencyName})
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return fmt.Sprintf("%s…", string([]rune(s)[:n]))
}
