package queryagencies

import "hajj-assistant/internal/models"

type Input struct {
	QueryType string `json:"queryType"`
	Country   string `json:"country,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type Output struct {
	Data               interface{} `json:"data"`
	RowCount           int         `json:"rowCount"`
	QueryExecutionTime int64       `json:"queryExecutionTime"` // milliseconds
}

type QueryType = models.QueryType

var (
	QueryTypeRegistryStats      = models.QueryTypeRegistryStats
	QueryTypeAgenciesByCountry  = models.QueryTypeAgenciesByCountry
	QueryTypeAuthorizedAgencies = models.QueryTypeAuthorizedAgencies
	QueryTypeAgenciesWithEmail  = models.QueryTypeAgenciesWithEmail
)
