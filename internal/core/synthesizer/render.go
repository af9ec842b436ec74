package synthesizer

import (
	"fmt"
	"strings"

	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

// likeEscape is the escape clause paired with escapeLike.
const likeEscape = ` ESCAPE '\'`

type renderer struct {
	reg  *schema.Registry
	args []interface{}
}

func (r *renderer) bind(v interface{}) string {
	r.args = append(r.args, v)
	return r.reg.Placeholder(len(r.args))
}

// render writes plan.Statement and plan.Args. Identifiers come only from the
// registry; every value is bound.
func render(reg *schema.Registry, plan *models.QueryPlan) {
	r := &renderer{reg: reg}

	var where []string
	for _, f := range plan.Filters {
		field, ok := reg.Field(f.Field)
		if !ok {
			continue
		}
		if clause := r.clause(field, f); clause != "" {
			where = append(where, clause)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(plan.Columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(plan.Table)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if order := orderBy(reg); order != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(order)
	}
	// one row past the limit tells the executor the result was truncated
	fmt.Fprintf(&sb, " LIMIT %d", plan.Limit+1)

	plan.Statement = sb.String()
	plan.Args = r.args
}

func (r *renderer) clause(field schema.Field, f models.Filter) string {
	switch field.Type {
	case schema.TypeRating:
		op := "="
		switch f.Operator {
		case models.OpGreaterThan:
			op = ">"
		case models.OpLessThan:
			op = "<"
		}
		return fmt.Sprintf("%s %s %s", r.reg.NumericExpr(field.Columns[0]), op, r.bind(f.Value))

	case schema.TypeFlag:
		want := "no"
		if b, _ := f.Value.(bool); b {
			want = "yes"
		}
		return fmt.Sprintf("LOWER(%s) = %s", field.Columns[0], r.bind(want))
	}

	var values []string
	switch v := f.Value.(type) {
	case string:
		values = []string{v}
	case []string:
		values = v
	}

	var parts []string
	for _, col := range field.Columns {
		for _, value := range values {
			parts = append(parts, r.textMatch(field.Type, col, f.Operator, value)...)
		}
	}
	return or(parts)
}

// textMatch renders one value against one column. Known places expand to
// every registry spelling, matched as substrings since the stored values
// carry district and province suffixes.
func (r *renderer) textMatch(t schema.SemanticType, col string, op models.Operator, value string) []string {
	if t == schema.TypeLocation {
		if loc, ok := schema.LookupLocation(value); ok {
			var out []string
			for _, spelling := range spellings(loc) {
				out = append(out, fmt.Sprintf("LOWER(%s) LIKE %s%s", col, r.bind("%"+escapeLike(spelling)+"%"), likeEscape))
			}
			return out
		}
	}

	lowered := strings.ToLower(value)
	if op == models.OpContains {
		return []string{fmt.Sprintf("LOWER(%s) LIKE %s%s", col, r.bind("%"+escapeLike(lowered)+"%"), likeEscape)}
	}
	return []string{fmt.Sprintf("LOWER(%s) = %s", col, r.bind(lowered))}
}

func spellings(loc schema.Location) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append([]string{strings.ToLower(loc.Canonical)}, loc.Variants...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func or(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func orderBy(reg *schema.Registry) string {
	var cols []string
	if reg.HasColumn(schema.ColAuthFlag) {
		cols = append(cols, schema.ColAuthFlag+" DESC")
	}
	if reg.HasColumn(schema.ColNameEN) {
		cols = append(cols, schema.ColNameEN)
	}
	return strings.Join(cols, ", ")
}
