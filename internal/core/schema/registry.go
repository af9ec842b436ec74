// Package schema describes the queryable agencies relation: which columns
// exist, what they mean, which may be returned and which may be filtered.
// A Registry is immutable once built and shared by every session.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"hajj-assistant/internal/models"
)

// SemanticType drives which filter operators a field accepts.
type SemanticType string

const (
	TypeName     SemanticType = "name"
	TypeText     SemanticType = "text"
	TypeLocation SemanticType = "location"
	TypeRating   SemanticType = "rating"
	TypeFlag     SemanticType = "flag"
	TypeLink     SemanticType = "link"
)

// Dialect selects placeholder syntax and numeric casts.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Column is a physical column of the agencies relation.
type Column struct {
	Name    string
	Type    SemanticType
	Exposed bool
}

// Field is a logical filter target. A field may span several columns (the
// bilingual name pair) and is known by aliases the oracle tends to use.
type Field struct {
	Name    string
	Columns []string
	Type    SemanticType
	Aliases []string
}

var operatorsByType = map[SemanticType][]models.Operator{
	TypeName:     {models.OpEquals, models.OpContains, models.OpInList},
	TypeText:     {models.OpEquals, models.OpContains, models.OpInList},
	TypeLocation: {models.OpEquals, models.OpContains, models.OpInList},
	TypeRating:   {models.OpGreaterThan, models.OpLessThan, models.OpEquals},
	TypeFlag:     {models.OpEquals},
}

const (
	ColNameAR    = "hajj_company_ar"
	ColNameEN    = "hajj_company_en"
	ColAddress   = "formatted_address"
	ColCity      = "city"
	ColCountry   = "country"
	ColEmail     = "email"
	ColContact   = "contact_Info"
	ColRating    = "rating_reviews"
	ColAuthFlag  = "is_authorized"
	ColMapLink   = "google_maps_link"
	ColLinkValid = "link_valid"
)

// Logical field names accepted in filter triples.
const (
	FieldName       = "name"
	FieldCity       = "city"
	FieldCountry    = "country"
	FieldRating     = "rating"
	FieldAuthorized = "authorized"
	FieldEmail      = "email"
	FieldAddress    = "address"
)

// DefaultTable is the relation every plan reads.
const DefaultTable = "agencies"

func catalogueColumns() []Column {
	return []Column{
		{Name: ColNameEN, Type: TypeName, Exposed: true},
		{Name: ColNameAR, Type: TypeName, Exposed: true},
		{Name: ColAddress, Type: TypeText, Exposed: true},
		{Name: ColCity, Type: TypeLocation, Exposed: true},
		{Name: ColCountry, Type: TypeLocation, Exposed: true},
		{Name: ColEmail, Type: TypeText, Exposed: true},
		{Name: ColContact, Type: TypeText, Exposed: true},
		{Name: ColRating, Type: TypeRating, Exposed: true},
		{Name: ColAuthFlag, Type: TypeFlag, Exposed: true},
		{Name: ColMapLink, Type: TypeLink, Exposed: true},
		{Name: ColLinkValid, Type: TypeFlag, Exposed: false},
	}
}

func catalogueFields() []Field {
	return []Field{
		{Name: FieldName, Columns: []string{ColNameAR, ColNameEN}, Type: TypeName, Aliases: []string{"agency", "agency_name", "company", "company_name"}},
		{Name: FieldCity, Columns: []string{ColCity}, Type: TypeLocation},
		{Name: FieldCountry, Columns: []string{ColCountry}, Type: TypeLocation, Aliases: []string{"nationality"}},
		{Name: FieldRating, Columns: []string{ColRating}, Type: TypeRating, Aliases: []string{"rating_value", "stars", "reviews"}},
		{Name: FieldAuthorized, Columns: []string{ColAuthFlag}, Type: TypeFlag, Aliases: []string{"authorization", "licensed", "is_licensed"}},
		{Name: FieldEmail, Columns: []string{ColEmail}, Type: TypeText, Aliases: []string{"mail"}},
		{Name: FieldAddress, Columns: []string{ColAddress}, Type: TypeText, Aliases: []string{"location"}},
	}
}

// Registry is the immutable description of the agencies relation.
type Registry struct {
	table   string
	dialect Dialect
	columns []Column
	colSet  map[string]Column
	fields  map[string]Field
	lookup  map[string]string
}

// New builds a registry from explicit columns and fields. Fields whose
// columns are all missing are discarded; partially covered fields keep the
// columns that exist.
func New(table string, dialect Dialect, columns []Column, fields []Field) *Registry {
	r := &Registry{
		table:   table,
		dialect: dialect,
		colSet:  make(map[string]Column, len(columns)),
		fields:  make(map[string]Field, len(fields)),
		lookup:  make(map[string]string),
	}
	for _, c := range columns {
		r.columns = append(r.columns, c)
		r.colSet[strings.ToLower(c.Name)] = c
	}

	for _, f := range fields {
		var present []string
		for _, col := range f.Columns {
			if c, ok := r.colSet[strings.ToLower(col)]; ok {
				present = append(present, c.Name)
			}
		}
		if len(present) == 0 {
			continue
		}
		f.Columns = present
		r.fields[f.Name] = f

		r.lookup[f.Name] = f.Name
		for _, alias := range f.Aliases {
			r.lookup[strings.ToLower(alias)] = f.Name
		}
		for _, col := range present {
			r.lookup[strings.ToLower(col)] = f.Name
		}
	}
	return r
}

// Default is the full catalogue for dialect.
func Default(dialect Dialect) *Registry {
	return New(DefaultTable, dialect, catalogueColumns(), catalogueFields())
}

// Restrict keeps only the catalogue columns present in live. Missing
// columns make their fields unavailable instead of failing.
func (r *Registry) Restrict(live []string) *Registry {
	have := make(map[string]bool, len(live))
	for _, name := range live {
		have[strings.ToLower(name)] = true
	}

	var cols []Column
	for _, c := range r.columns {
		if have[strings.ToLower(c.Name)] {
			cols = append(cols, c)
		}
	}

	var fields []Field
	for _, f := range r.fields {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	return New(r.table, r.dialect, cols, fields)
}

// Load introspects the live relation and restricts the catalogue to it.
func Load(ctx context.Context, db *sql.DB, dialect Dialect) (*Registry, error) {
	var (
		query string
		args  []interface{}
	)
	switch dialect {
	case DialectPostgres:
		query = `SELECT column_name FROM information_schema.columns WHERE table_name = $1`
		args = []interface{}{DefaultTable}
	default:
		query = `SELECT name FROM pragma_table_info('agencies')`
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", DefaultTable, err)
	}
	defer rows.Close()

	var live []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		live = append(live, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, fmt.Errorf("relation %s not found", DefaultTable)
	}

	return Default(dialect).Restrict(live), nil
}

func (r *Registry) Table() string    { return r.table }
func (r *Registry) Dialect() Dialect { return r.dialect }

// ExposedColumns lists the columns a plan may return, in catalogue order.
func (r *Registry) ExposedColumns() []string {
	out := make([]string, 0, len(r.columns))
	for _, c := range r.columns {
		if c.Exposed {
			out = append(out, c.Name)
		}
	}
	return out
}

// HasColumn reports whether the live relation has the column.
func (r *Registry) HasColumn(name string) bool {
	_, ok := r.colSet[strings.ToLower(name)]
	return ok
}

// Field resolves a logical name, alias or column name to a filterable field.
func (r *Registry) Field(name string) (Field, bool) {
	canonical, ok := r.lookup[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Field{}, false
	}
	f, ok := r.fields[canonical]
	return f, ok
}

// FieldNames lists the filterable fields, sorted.
func (r *Registry) FieldNames() []string {
	out := make([]string, 0, len(r.fields))
	for name := range r.fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Allows reports whether op may be applied to the named field.
func (r *Registry) Allows(field string, op models.Operator) bool {
	f, ok := r.Field(field)
	if !ok {
		return false
	}
	for _, allowed := range operatorsByType[f.Type] {
		if allowed == op {
			return true
		}
	}
	return false
}

// Operators lists the operators accepted by a field type.
func Operators(t SemanticType) []models.Operator {
	return operatorsByType[t]
}

// Placeholder returns the n-th (1-based) bind parameter marker.
func (r *Registry) Placeholder(n int) string {
	if r.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// NumericExpr extracts the leading number of a free-text rating column.
// The postgres pattern has no parenthesized group: substring ... from
// returns the first group instead of the whole match when one exists.
func (r *Registry) NumericExpr(column string) string {
	if r.dialect == DialectPostgres {
		return fmt.Sprintf(`CAST(NULLIF(substring(%s from '[0-9]+\.?[0-9]*'), '') AS NUMERIC)`, column)
	}
	return fmt.Sprintf("CAST(%s AS REAL)", column)
}
