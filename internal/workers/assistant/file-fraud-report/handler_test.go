package filefraudreport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/core/report"
	"hajj-assistant/internal/models"
	"hajj-assistant/internal/testutil"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func createTestHandler(t *testing.T) (*Handler, *miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := createTestLogger(t)
	flow := report.New(report.NewStreamSink(rdb, "reports", 1000), log,
		report.WithMatcher(matcher.New(matcher.NewIndex(testutil.SampleAgencies()), matcher.DefaultConfig(), log)),
		report.WithClock(func() time.Time { return fixedNow }),
		report.WithIDs(func() string { return "HR-0A1B2C3D4E" }),
	)
	return NewHandler(createTestConfig(), flow, log), mr, rdb
}

func validInput() *Input {
	return &Input{
		SessionID:  "form-42",
		Language:   "ar",
		AgencyName: "شركة البدري",
		City:       "جدة",
		Details:    "أخذوا مني عربون خمسة آلاف ريال ولم يردوا بعدها",
		Contact:    "pilgrim@example.com",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_FilesReport(t *testing.T) {
	handler, _, rdb := createTestHandler(t)

	out, err := handler.Execute(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "HR-0A1B2C3D4E", out.ReferenceID)
	assert.True(t, out.SubmittedAt.Equal(fixedNow))
	require.NotNil(t, out.MatchedAgency)
	assert.Equal(t, "Al Badri Tours", out.MatchedAgency.NameEN)
	assert.Equal(t, models.AuthorizationNotAuthorized, out.Authorization)

	entries, err := rdb.XRange(context.Background(), "reports", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var stored models.Report
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["report"].(string)), &stored))
	assert.Equal(t, "Jeddah", stored.City)
	assert.Equal(t, models.LanguageArabic, stored.Language)
	assert.Equal(t, "form-42", stored.SessionID)
	assert.Equal(t, "pilgrim@example.com", stored.Contact)
}

func TestHandler_Execute_AnonymousAndDefaultLanguage(t *testing.T) {
	handler, _, rdb := createTestHandler(t)
	in := validInput()
	in.Contact = ""
	in.Language = ""

	_, err := handler.Execute(context.Background(), in)
	require.NoError(t, err)

	entries, err := rdb.XRange(context.Background(), "reports", "-", "+").Result()
	require.NoError(t, err)
	var stored models.Report
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["report"].(string)), &stored))
	assert.Empty(t, stored.Contact)
	assert.Equal(t, models.LanguageEnglish, stored.Language)
}

// ==========================
// Error Tests
// ==========================

func TestHandler_Execute_RejectedAnswers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{name: "missing agency", mutate: func(in *Input) { in.AgencyName = "" }},
		{name: "details too short", mutate: func(in *Input) { in.Details = "scam" }},
		{name: "unusable contact", mutate: func(in *Input) { in.Contact = "call me maybe" }},
		{name: "cancel word", mutate: func(in *Input) { in.City = "cancel" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mr, _ := createTestHandler(t)
			in := validInput()
			tt.mutate(in)

			out, err := handler.Execute(context.Background(), in)
			assert.Nil(t, out)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput), "got %v", err)
			assert.False(t, mr.Exists("reports"))
		})
	}
}

func TestHandler_Execute_SinkDown(t *testing.T) {
	handler, mr, _ := createTestHandler(t)
	mr.Close()

	_, err := handler.Execute(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeReportFailed))

	stdErr, _ := apperrors.AsStandard(err)
	assert.True(t, stdErr.Retryable)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler, _, _ := createTestHandler(t)
	_, err := handler.Execute(context.Background(), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}
