package queries

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

// DefaultLimit caps the list queries when the caller gives no limit.
const DefaultLimit = 100

const authorizedPredicate = "LOWER(TRIM(%s)) IN ('yes', 'y', 'true', '1')"

// RegistryStats counts agencies, authorized agencies and distinct places.
func RegistryStats(ctx context.Context, db *sql.DB, reg *schema.Registry, _ map[string]interface{}) (interface{}, int, int64, error) {
	start := time.Now()

	stats, err := Stats(ctx, db, reg)
	if err != nil {
		return nil, 0, 0, err
	}

	return stats, 1, time.Since(start).Milliseconds(), nil
}

// Stats is RegistryStats without the job bookkeeping, for the HTTP API and
// the CLI.
func Stats(ctx context.Context, db *sql.DB, reg *schema.Registry) (models.RegistryStats, error) {
	authorized := "0"
	if reg.HasColumn(schema.ColAuthFlag) {
		authorized = fmt.Sprintf("SUM(CASE WHEN "+authorizedPredicate+" THEN 1 ELSE 0 END)", schema.ColAuthFlag)
	}
	query := fmt.Sprintf(`
		SELECT COUNT(*), %s,
		       %s, %s
		FROM %s`,
		authorized,
		distinctCount(reg, schema.ColCountry),
		distinctCount(reg, schema.ColCity),
		reg.Table())

	var total int
	var auth, countries, cities sql.NullInt64
	if err := db.QueryRowContext(ctx, query).Scan(&total, &auth, &countries, &cities); err != nil {
		return models.RegistryStats{}, err
	}

	return models.RegistryStats{
		Total:      total,
		Authorized: int(auth.Int64),
		Countries:  int(countries.Int64),
		Cities:     int(cities.Int64),
	}, nil
}

func distinctCount(reg *schema.Registry, column string) string {
	if !reg.HasColumn(column) {
		return "0"
	}
	return fmt.Sprintf("COUNT(DISTINCT NULLIF(TRIM(%s), ''))", column)
}

// AgenciesByCountry lists agencies of one country. Any known spelling of the
// country matches.
func AgenciesByCountry(ctx context.Context, db *sql.DB, reg *schema.Registry, params map[string]interface{}) (interface{}, int, int64, error) {
	country, ok := params["country"].(string)
	if !ok || strings.TrimSpace(country) == "" {
		return nil, 0, 0, fmt.Errorf("%w: country", ErrMissingParam)
	}
	if !reg.HasColumn(schema.ColCountry) {
		return []models.Agency{}, 0, 0, nil
	}

	spellings := []string{strings.ToLower(strings.TrimSpace(country))}
	if loc, found := schema.LookupLocation(country); found && loc.Kind == schema.LocationCountry {
		spellings = append([]string{strings.ToLower(loc.Canonical)}, loc.Variants...)
	}

	args := make([]interface{}, 0, len(spellings))
	marks := make([]string, 0, len(spellings))
	for _, s := range spellings {
		args = append(args, s)
		marks = append(marks, reg.Placeholder(len(args)))
	}
	where := fmt.Sprintf("LOWER(TRIM(%s)) IN (%s)", schema.ColCountry, strings.Join(marks, ", "))

	return list(ctx, db, reg, where, args, limitParam(params))
}

// AuthorizedAgencies lists agencies whose authorization flag is set.
func AuthorizedAgencies(ctx context.Context, db *sql.DB, reg *schema.Registry, params map[string]interface{}) (interface{}, int, int64, error) {
	if !reg.HasColumn(schema.ColAuthFlag) {
		return []models.Agency{}, 0, 0, nil
	}
	where := fmt.Sprintf(authorizedPredicate, schema.ColAuthFlag)
	return list(ctx, db, reg, where, nil, limitParam(params))
}

// AgenciesWithEmail lists agencies that published an email address.
func AgenciesWithEmail(ctx context.Context, db *sql.DB, reg *schema.Registry, params map[string]interface{}) (interface{}, int, int64, error) {
	if !reg.HasColumn(schema.ColEmail) {
		return []models.Agency{}, 0, 0, nil
	}
	where := fmt.Sprintf("%s IS NOT NULL AND TRIM(%s) <> ''", schema.ColEmail, schema.ColEmail)
	return list(ctx, db, reg, where, nil, limitParam(params))
}

func limitParam(params map[string]interface{}) int {
	switch v := params["limit"].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return DefaultLimit
}

func list(ctx context.Context, db *sql.DB, reg *schema.Registry, where string, args []interface{}, limit int) (interface{}, int, int64, error) {
	start := time.Now()

	columns := reg.ExposedColumns()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT %d",
		strings.Join(columns, ", "), reg.Table(), where, orderColumn(reg), limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	agencies := []models.Agency{}
	for rows.Next() {
		values, err := schema.ScanStrings(rows, len(columns))
		if err != nil {
			return nil, 0, 0, err
		}
		agencies = append(agencies, schema.ToAgency(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	return agencies, len(agencies), time.Since(start).Milliseconds(), nil
}

func orderColumn(reg *schema.Registry) string {
	if reg.HasColumn(schema.ColNameEN) {
		return schema.ColNameEN
	}
	return reg.ExposedColumns()[0]
}
