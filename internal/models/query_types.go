package models

// QueryType names a fixed, hand-written registry query.
type QueryType string

const (
	QueryTypeRegistryStats      QueryType = "registry_stats"
	QueryTypeAgenciesByCountry  QueryType = "agencies_by_country"
	QueryTypeAuthorizedAgencies QueryType = "authorized_agencies"
	QueryTypeAgenciesWithEmail  QueryType = "agencies_with_email"
)

// Operator is a filter comparison the synthesizer is allowed to emit.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater-than"
	OpLessThan    Operator = "less-than"
	OpInList      Operator = "in-list"
)

// Filter is a validated (field, operator, value) triple. Value is a string,
// a float64 or a []string depending on the operator.
type Filter struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// DroppedFilter records an oracle suggestion that failed validation.
type DroppedFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Reason   string `json:"reason"`
}

// QueryPlan is a bounded, parameterized, read-only statement over the agencies relation.
// Statement contains only registry identifiers and placeholders; user-derived values live in Args.
type QueryPlan struct {
	Table     string          `json:"table"`
	Columns   []string        `json:"columns"`
	Filters   []Filter        `json:"filters"`
	Limit     int             `json:"limit"`
	Statement string          `json:"statement"`
	Args      []interface{}   `json:"args"`
	Dropped   []DroppedFilter `json:"dropped,omitempty"`
}

// HasFilter reports whether the plan carries a filter for field with op.
func (p *QueryPlan) HasFilter(field string, op Operator) bool {
	for _, f := range p.Filters {
		if f.Field == field && f.Operator == op {
			return true
		}
	}
	return false
}
