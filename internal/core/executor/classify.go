package executor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	apperrors "hajj-assistant/internal/common/errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Classify maps a storage error onto a query failure cause. ctx is the
// query's own context, so an expired deadline reads as a timeout whatever
// the driver reported.
func Classify(ctx context.Context, err error) apperrors.QueryCause {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.CauseTimeout
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "57014":
			return apperrors.CauseTimeout
		case pqErr.Code.Class() == "42", pqErr.Code.Class() == "22", pqErr.Code == "25006":
			return apperrors.CauseMalformedPlan
		default:
			return apperrors.CauseConnection
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_ERROR, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_RANGE:
			return apperrors.CauseMalformedPlan
		case sqlite3.SQLITE_INTERRUPT:
			return apperrors.CauseTimeout
		default:
			return apperrors.CauseConnection
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.CauseTimeout
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return apperrors.CauseConnection
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"syntax error", "no such column", "no such table", "does not exist", "readonly database", "converting argument"} {
		if strings.Contains(msg, marker) {
			return apperrors.CauseMalformedPlan
		}
	}
	return apperrors.CauseConnection
}
