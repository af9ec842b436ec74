package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

var (
	ErrMissingParam     = errors.New("missing required parameter")
	ErrUnknownQueryType = errors.New("unknown query type")
)

// QueryFunc returns: data, rowCount, executionTime (ms), error
type QueryFunc func(ctx context.Context, db *sql.DB, reg *schema.Registry, params map[string]interface{}) (interface{}, int, int64, error)

var Registry = map[models.QueryType]QueryFunc{
	models.QueryTypeRegistryStats:      RegistryStats,
	models.QueryTypeAgenciesByCountry:  AgenciesByCountry,
	models.QueryTypeAuthorizedAgencies: AuthorizedAgencies,
	models.QueryTypeAgenciesWithEmail:  AgenciesWithEmail,
}

func Execute(ctx context.Context, db *sql.DB, reg *schema.Registry, queryType models.QueryType, params map[string]interface{}) (interface{}, int, int64, error) {
	fn, exists := Registry[queryType]
	if !exists {
		return nil, 0, 0, fmt.Errorf("%w: %s", ErrUnknownQueryType, queryType)
	}
	return fn(ctx, db, reg, params)
}
