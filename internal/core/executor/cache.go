package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "hajj:query:"

// CachedExecutor serves repeated plans from redis. Cache failures fall
// through to the wrapped runner; query failures are never cached.
type CachedExecutor struct {
	next   Runner
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedExecutor(next Runner, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedExecutor {
	return &CachedExecutor{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "query-cache"}),
	}
}

func (c *CachedExecutor) Execute(ctx context.Context, plan *models.QueryPlan) (*Result, error) {
	key, err := CacheKey(plan)
	if err != nil {
		return c.next.Execute(ctx, plan)
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached Result
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return &cached, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("query cache read failed", map[string]interface{}{"error": err.Error()})
	}

	result, err := c.next.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(result); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("query cache write failed", map[string]interface{}{"error": setErr.Error()})
		}
	}
	return result, nil
}

// CacheKey hashes the statement, its arguments and its limit.
func CacheKey(plan *models.QueryPlan) (string, error) {
	payload, err := json.Marshal(struct {
		Statement string        `json:"s"`
		Args      []interface{} `json:"a"`
		Limit     int           `json:"l"`
	}{plan.Statement, plan.Args, plan.Limit})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}
