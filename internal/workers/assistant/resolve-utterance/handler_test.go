package resolveutterance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/pipeline"
	"hajj-assistant/internal/models"
	"hajj-assistant/internal/session"
)

// ==========================
// Test Helper Functions
// ==========================

type stubSessions struct {
	result *pipeline.TurnResult
	err    error
	calls  []string
}

func (s *stubSessions) Turn(_ context.Context, id, text, audioTag string) (*pipeline.TurnResult, error) {
	s.calls = append(s.calls, fmt.Sprintf("%s|%s|%s", id, text, audioTag))
	return s.result, s.err
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	state := models.NewConversationState()
	state.Turn = 1
	state.LastAgency = "Royal City Travel"
	sessions := &stubSessions{result: &pipeline.TurnResult{
		Response: models.ResponsePayload{Text: "Royal City Travel in Riyadh is an authorized Hajj agency.", Language: models.LanguageEnglish},
		State:    state,
		Intent:   models.IntentVerifyAgency,
		Outcome:  pipeline.OutcomeAnswered,
	}}
	handler := NewHandler(createTestConfig(), sessions, createTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{SessionID: "s-1", Text: "Is Royal City Travel licensed?", AudioTag: "clip-7"})
	require.NoError(t, err)

	assert.Equal(t, []string{"s-1|Is Royal City Travel licensed?|clip-7"}, sessions.calls)
	assert.Equal(t, models.IntentVerifyAgency, output.Intent)
	assert.Equal(t, pipeline.OutcomeAnswered, output.Outcome)
	assert.Equal(t, "Royal City Travel", output.State.LastAgency)
	assert.Contains(t, output.Response.Text, "authorized")
}

func TestHandler_Execute_ApologyIsNotAJobFailure(t *testing.T) {
	sessions := &stubSessions{result: &pipeline.TurnResult{
		Response: models.ResponsePayload{Text: "sorry", FailureCode: models.FailureQueryFailed},
		Outcome:  pipeline.OutcomeFailed,
	}}
	handler := NewHandler(createTestConfig(), sessions, createTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{SessionID: "s-1", Text: "List companies in Mecca"})
	require.NoError(t, err)
	assert.True(t, output.Response.Failed())
}

// ==========================
// Error Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		err      error
		wantCode apperrors.ErrorCode
	}{
		{name: "nil input", input: nil, wantCode: apperrors.ErrCodeInvalidInput},
		{name: "missing session", input: &Input{Text: "hello"}, wantCode: apperrors.ErrCodeInvalidInput},
		{name: "turn in flight", input: &Input{SessionID: "s-1", Text: "hello"}, err: fmt.Errorf("%w: session s-1", session.ErrTurnInProgress), wantCode: apperrors.ErrCodeSessionBusy},
		{name: "deadline", input: &Input{SessionID: "s-1", Text: "hello"}, err: context.DeadlineExceeded, wantCode: apperrors.ErrCodeTimeout},
		{name: "store down", input: &Input{SessionID: "s-1", Text: "hello"}, err: errors.New("dial tcp: connection refused"), wantCode: apperrors.ErrCodeExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(createTestConfig(), &stubSessions{err: tt.err}, createTestLogger(t))

			output, err := handler.Execute(context.Background(), tt.input)
			assert.Nil(t, output)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestHandler_SessionBusyIsRetryable(t *testing.T) {
	handler := NewHandler(createTestConfig(), &stubSessions{err: session.ErrTurnInProgress}, createTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{SessionID: "s-1", Text: "hello"})
	stdErr, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, 1, apperrors.ConvertToBPMNError(stdErr).Retries)
}
