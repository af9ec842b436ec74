package executor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"hajj-assistant/internal/models"
)

var (
	ErrNotSelect        = errors.New("statement is not a SELECT")
	ErrStackedStatement = errors.New("statement contains a separator or comment")
	ErrWriteKeyword     = errors.New("statement contains a write keyword")
	ErrNoColumns        = errors.New("plan lists no explicit columns")
)

var writeKeywords = regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|CREATE|EXEC|EXECUTE|TRUNCATE|GRANT|REVOKE|REPLACE|MERGE|ATTACH|DETACH|PRAGMA|VACUUM)\b`)

// CheckPlan rejects anything but a single read-only SELECT with explicit
// columns. It runs before storage is touched.
func CheckPlan(plan *models.QueryPlan) error {
	if plan == nil {
		return errors.New("nil plan")
	}
	if len(plan.Columns) == 0 {
		return ErrNoColumns
	}
	for _, c := range plan.Columns {
		if strings.TrimSpace(c) == "" || strings.Contains(c, "*") {
			return ErrNoColumns
		}
	}
	return CheckStatement(plan.Statement)
}

// CheckStatement applies the read-only guard to a raw statement.
func CheckStatement(stmt string) error {
	s := strings.TrimSpace(stmt)
	if !strings.HasPrefix(strings.ToUpper(s), "SELECT ") {
		return ErrNotSelect
	}
	if strings.Contains(s, ";") || strings.Contains(s, "--") || strings.Contains(s, "/*") {
		return ErrStackedStatement
	}
	if m := writeKeywords.FindString(s); m != "" {
		return fmt.Errorf("%w: %s", ErrWriteKeyword, strings.ToUpper(m))
	}
	return nil
}
