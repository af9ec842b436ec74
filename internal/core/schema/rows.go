package schema

import (
	"database/sql"
	"fmt"
	"strings"

	"hajj-assistant/internal/models"
)

// ScanStrings reads the current row into n strings; NULL becomes "".
func ScanStrings(rows *sql.Rows, n int) ([]string, error) {
	raw := make([]sql.NullString, n)
	dest := make([]interface{}, n)
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan agency row: %w", err)
	}
	out := make([]string, n)
	for i, v := range raw {
		if v.Valid {
			out[i] = v.String
		}
	}
	return out, nil
}

// ToAgency maps a row of named columns onto the Agency record. Unknown
// columns are ignored.
func ToAgency(columns []string, values []string) models.Agency {
	var a models.Agency
	a.Authorization = models.AuthorizationUnknown
	for i, col := range columns {
		if i >= len(values) {
			break
		}
		v := strings.TrimSpace(values[i])
		switch strings.ToLower(col) {
		case ColNameAR:
			a.NameAR = v
		case ColNameEN:
			a.NameEN = v
		case ColAddress:
			a.Address = v
		case ColCity:
			a.City = v
		case ColCountry:
			a.Country = v
		case ColEmail:
			a.Email = v
		case strings.ToLower(ColContact):
			a.ContactInfo = v
		case ColRating:
			a.Rating = v
		case ColAuthFlag:
			a.Authorization = models.ParseAuthorization(v)
		case ColMapLink:
			a.MapLink = v
		case ColLinkValid:
			if v != "" {
				valid := v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
				a.LinkValid = &valid
			}
		}
	}
	return a
}
