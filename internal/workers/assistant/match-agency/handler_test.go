package matchagency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/models"
	"hajj-assistant/internal/testutil"
)

// ==========================
// Test Helper Functions
// ==========================

type stubMatcher struct {
	result models.MatchResult
	opts   []matcher.MatchOptions
}

func (s *stubMatcher) Match(fragment string, opts matcher.MatchOptions) models.MatchResult {
	s.opts = append(s.opts, opts)
	res := s.result
	res.Query = fragment
	return res
}

func createTestConfig() *Config {
	return &Config{Timeout: time.Second}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func candidate(name string, score float64, status models.AuthorizationStatus) models.MatchCandidate {
	return models.MatchCandidate{Agency: models.Agency{NameEN: name, Authorization: status}, Score: score, Authorization: status}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Verdicts(t *testing.T) {
	tests := []struct {
		name        string
		result      models.MatchResult
		wantVerdict string
		wantBest    string
	}{
		{
			name:        "authorized",
			result:      models.MatchResult{Candidates: []models.MatchCandidate{candidate("Royal City Travel", 0.93, models.AuthorizationAuthorized)}},
			wantVerdict: VerdictAuthorized,
			wantBest:    "Royal City Travel",
		},
		{
			name:        "not authorized",
			result:      models.MatchResult{Candidates: []models.MatchCandidate{candidate("Al Badri Tours", 0.9, models.AuthorizationNotAuthorized)}},
			wantVerdict: VerdictNotAuthorized,
			wantBest:    "Al Badri Tours",
		},
		{
			name:        "unknown flag",
			result:      models.MatchResult{Candidates: []models.MatchCandidate{candidate("Medina Gate", 1, models.AuthorizationUnknown)}},
			wantVerdict: VerdictUnknown,
			wantBest:    "Medina Gate",
		},
		{
			name: "ambiguous",
			result: models.MatchResult{Ambiguous: true, Candidates: []models.MatchCandidate{
				candidate("Al Badr Hajj Company", 0.81, models.AuthorizationAuthorized),
				candidate("Al Badri Tours", 0.79, models.AuthorizationNotAuthorized),
			}},
			wantVerdict: VerdictAmbiguous,
		},
		{
			name:        "no match",
			result:      models.MatchResult{},
			wantVerdict: VerdictNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(createTestConfig(), &stubMatcher{result: tt.result}, createTestLogger(t))

			out, err := handler.Execute(context.Background(), &Input{Name: "anything"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerdict, out.Verdict)
			assert.NotNil(t, out.Candidates)
			if tt.wantBest == "" {
				assert.Nil(t, out.Best)
				return
			}
			require.NotNil(t, out.Best)
			assert.Equal(t, tt.wantBest, out.Best.Agency.NameEN)
		})
	}
}

func TestHandler_Execute_LocationAndLimit(t *testing.T) {
	m := &stubMatcher{result: models.MatchResult{Ambiguous: true, Candidates: []models.MatchCandidate{
		candidate("A", 0.9, models.AuthorizationAuthorized),
		candidate("B", 0.89, models.AuthorizationAuthorized),
		candidate("C", 0.7, models.AuthorizationAuthorized),
	}}}
	handler := NewHandler(createTestConfig(), m, createTestLogger(t))

	out, err := handler.Execute(context.Background(), &Input{Name: "x", Location: "جدة", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out.Candidates, 2)
	require.Len(t, m.opts, 1)
	assert.Equal(t, "Jeddah", m.opts[0].Location)
}

func TestHandler_Execute_RealIndex(t *testing.T) {
	log := createTestLogger(t)
	m := matcher.New(matcher.NewIndex(testutil.SampleAgencies()), matcher.DefaultConfig(), log)
	handler := NewHandler(createTestConfig(), m, log)

	out, err := handler.Execute(context.Background(), &Input{Name: "Royal City Travel"})
	require.NoError(t, err)
	require.NotNil(t, out.Best)
	assert.Equal(t, "Riyadh", out.Best.Agency.City)
	assert.Equal(t, VerdictAuthorized, out.Verdict)

	out, err = handler.Execute(context.Background(), &Input{Name: "Zamzam"})
	require.NoError(t, err)
	assert.Equal(t, VerdictNoMatch, out.Verdict)
}

// ==========================
// Error Tests
// ==========================

func TestHandler_Execute_MissingName(t *testing.T) {
	handler := NewHandler(createTestConfig(), &stubMatcher{}, createTestLogger(t))

	for _, in := range []*Input{nil, {}, {Name: "   "}} {
		_, err := handler.Execute(context.Background(), in)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	}
}
