package report

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hajj-assistant/internal/common/config"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"
	"hajj-assistant/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNoSinkAccepted = errors.New("NO_SINK_ACCEPTED")
	ErrInvalidName    = errors.New("INVALID_SINK_NAME")
)

// Sink stores fraud reports. Sinks only ever append.
type Sink interface {
	Name() string
	Append(ctx context.Context, r models.Report) error
}

// ==========================
// Redis stream
// ==========================

// StreamSink appends each report to a capped redis stream.
type StreamSink struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamSink(rdb redis.Cmdable, stream string, maxLen int64) *StreamSink {
	if stream == "" {
		stream = "hajj:reports"
	}
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &StreamSink{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Name() string { return "redis" }

func (s *StreamSink) Append(ctx context.Context, r models.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: []interface{}{"reference_id", r.ReferenceID, "report", string(payload)},
	}).Err()
}

// ==========================
// SQL table
// ==========================

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// SQLSink inserts reports into a complaints table on a writable handle.
type SQLSink struct {
	db     *sql.DB
	driver string
	table  string
}

func NewSQLSink(db *sql.DB, driver, table string) (*SQLSink, error) {
	if table == "" {
		table = "complaints"
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	return &SQLSink{db: db, driver: driver, table: table}, nil
}

func (s *SQLSink) Name() string { return "sql" }

// EnsureTable creates the complaints table when it does not exist.
func (s *SQLSink) EnsureTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	reference_id TEXT PRIMARY KEY,
	agency_name TEXT NOT NULL,
	city TEXT,
	complaint_text TEXT NOT NULL,
	contact_info TEXT,
	language TEXT,
	session_id TEXT,
	matched_agency TEXT,
	authorization_status TEXT,
	submitted_at TEXT NOT NULL
)`, s.table)
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *SQLSink) Append(ctx context.Context, r models.Report) error {
	cols := []string{
		"reference_id", "agency_name", "city", "complaint_text", "contact_info",
		"language", "session_id", "matched_agency", "authorization_status", "submitted_at",
	}
	matched := ""
	if r.MatchedAgency != nil {
		matched = r.MatchedAgency.Key()
	}
	args := []interface{}{
		r.ReferenceID, r.AgencyName, r.City, r.Details, r.Contact,
		string(r.Language), r.SessionID, matched, string(r.Authorization),
		r.SubmittedAt.UTC().Format(time.RFC3339),
	}

	marks := make([]string, len(cols))
	for i := range cols {
		if s.driver == config.DriverPostgres {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = "?"
		}
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	_, err := s.db.ExecContext(ctx, stmt, args...)
	return err
}

// ==========================
// Elasticsearch index
// ==========================

// IndexSink indexes reports for operators, one document per reference ID.
type IndexSink struct {
	client *elasticsearch.Client
	index  string
}

func NewIndexSink(client *elasticsearch.Client, index string) *IndexSink {
	if index == "" {
		index = "hajj-fraud-reports"
	}
	return &IndexSink{client: client, index: index}
}

func (s *IndexSink) Name() string { return "elasticsearch" }

func (s *IndexSink) Append(ctx context.Context, r models.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(r.ReferenceID),
		s.client.Index.WithOpType("create"),
	)
	if err != nil {
		return fmt.Errorf("index report: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index report: %s", res.Status())
	}
	return nil
}

// ==========================
// Fan-out
// ==========================

// MultiSink appends to every configured sink. The report counts as filed
// when at least one sink accepted it.
type MultiSink struct {
	sinks  []Sink
	logger logger.Logger
}

func NewMultiSink(log logger.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: log.With(map[string]interface{}{"component": "report-sink"})}
}

func (m *MultiSink) Name() string { return "multi" }

func (m *MultiSink) Append(ctx context.Context, r models.Report) error {
	var errs []error
	accepted := 0
	for _, s := range m.sinks {
		if err := s.Append(ctx, r); err != nil {
			metrics.ReportsFiled.WithLabelValues(s.Name(), "error").Inc()
			m.logger.Error("report sink failed", map[string]interface{}{
				"sink":        s.Name(),
				"referenceId": r.ReferenceID,
				"error":       err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		metrics.ReportsFiled.WithLabelValues(s.Name(), "ok").Inc()
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("%w: %v", ErrNoSinkAccepted, errors.Join(errs...))
	}
	return nil
}
