// internal/models/agency.go
package models

import "strings"

// AuthorizationStatus is the tri-state licensing flag of an agency.
type AuthorizationStatus string

const (
	AuthorizationAuthorized    AuthorizationStatus = "authorized"
	AuthorizationNotAuthorized AuthorizationStatus = "not_authorized"
	AuthorizationUnknown       AuthorizationStatus = "unknown"
)

// ParseAuthorization maps the registry's is_authorized column ('Yes'/'No') to a status.
func ParseAuthorization(raw string) AuthorizationStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "1", "نعم":
		return AuthorizationAuthorized
	case "no", "n", "false", "0", "لا":
		return AuthorizationNotAuthorized
	default:
		return AuthorizationUnknown
	}
}

// Agency is one row of the agencies relation. The core never writes it.
type Agency struct {
	NameAR        string              `json:"nameAr"`
	NameEN        string              `json:"nameEn"`
	Address       string              `json:"address,omitempty"`
	City          string              `json:"city,omitempty"`
	Country       string              `json:"country,omitempty"`
	Email         string              `json:"email,omitempty"`
	ContactInfo   string              `json:"contactInfo,omitempty"`
	Rating        string              `json:"rating,omitempty"`
	Authorization AuthorizationStatus `json:"authorization"`
	MapLink       string              `json:"mapLink,omitempty"`
	LinkValid     *bool               `json:"linkValid,omitempty"`
}

// Key identifies an agency. Names alone are not unique, so the city is part of it.
func (a Agency) Key() string {
	return strings.ToLower(strings.TrimSpace(a.NameEN)) + "|" +
		strings.TrimSpace(a.NameAR) + "|" +
		strings.ToLower(strings.TrimSpace(a.City))
}

// DisplayName picks the name matching the reader's script, falling back to whichever is set.
func (a Agency) DisplayName(lang Language) string {
	if lang.IsArabicScript() && a.NameAR != "" {
		return a.NameAR
	}
	if a.NameEN != "" {
		return a.NameEN
	}
	return a.NameAR
}

// IsAuthorized reports whether the agency is known to be licensed.
func (a Agency) IsAuthorized() bool {
	return a.Authorization == AuthorizationAuthorized
}

// RegistryStats summarizes the registry for dashboards and the stats endpoint.
type RegistryStats struct {
	Total      int `json:"total"`
	Authorized int `json:"authorized"`
	Countries  int `json:"countries"`
	Cities     int `json:"cities"`
}
