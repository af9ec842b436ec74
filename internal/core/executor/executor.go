// Package executor runs validated query plans against the read-only agency
// store. It bounds every call by a timeout and a row cap, classifies
// failures and never retries.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

// Runner is anything that turns a plan into rows.
type Runner interface {
	Execute(ctx context.Context, plan *models.QueryPlan) (*Result, error)
}

// Result is a bounded, fully read result set.
type Result struct {
	Columns   []string        `json:"columns"`
	Rows      [][]string      `json:"rows"`
	Agencies  []models.Agency `json:"agencies"`
	Truncated bool            `json:"truncated"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// Table returns the rows as a response table.
func (r *Result) Table() *models.Table {
	return &models.Table{Columns: r.Columns, Rows: r.Rows}
}

type Config struct {
	Timeout time.Duration
	RowCap  int
}

type Executor struct {
	db     *sql.DB
	cfg    Config
	logger logger.Logger
}

func New(db *sql.DB, cfg Config, log logger.Logger) *Executor {
	if cfg.RowCap <= 0 {
		cfg.RowCap = 200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Executor{
		db:     db,
		cfg:    cfg,
		logger: log.With(map[string]interface{}{"component": "executor"}),
	}
}

// Execute runs the plan. Failures are QUERY_FAILED errors carrying a cause;
// a cancelled caller gets its context error back.
func (e *Executor) Execute(ctx context.Context, plan *models.QueryPlan) (*Result, error) {
	if err := CheckPlan(plan); err != nil {
		e.logger.Error("rejected query plan", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewQueryFailedError(apperrors.CauseMalformedPlan, err)
	}

	limit := plan.Limit
	if limit <= 0 || limit > e.cfg.RowCap {
		limit = e.cfg.RowCap
	}

	qctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := e.run(qctx, plan, limit)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		cause := Classify(qctx, err)
		e.logger.Error("query failed", map[string]interface{}{
			"cause":   string(cause),
			"error":   err.Error(),
			"elapsed": time.Since(start).String(),
		})
		return nil, apperrors.NewQueryFailedError(cause, err)
	}
	result.Elapsed = time.Since(start)

	metrics.QueryRowsReturned.Observe(float64(len(result.Rows)))
	e.logger.Debug("query executed", map[string]interface{}{
		"rows":      len(result.Rows),
		"truncated": result.Truncated,
		"elapsed":   result.Elapsed.String(),
	})
	return result, nil
}

func (e *Executor) run(ctx context.Context, plan *models.QueryPlan, limit int) (*Result, error) {
	rows, err := e.db.QueryContext(ctx, plan.Statement, plan.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: cols, Rows: [][]string{}}
	for rows.Next() {
		if len(result.Rows) == limit {
			result.Truncated = true
			break
		}
		values, err := schema.ScanStrings(rows, len(cols))
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, values)
		result.Agencies = append(result.Agencies, schema.ToAgency(cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
