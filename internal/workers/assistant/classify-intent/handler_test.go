package classifyintent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/oracle"
	"hajj-assistant/internal/core/intent"
	"hajj-assistant/internal/core/language"
	"hajj-assistant/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func createTestHandler(t *testing.T, o oracle.Oracle) *Handler {
	log := createTestLogger(t)
	return NewHandler(createTestConfig(), language.NewDetector(o, log), intent.New(o, intent.Config{}, log), log)
}

type failingClassifier struct{ err error }

func (f failingClassifier) Classify(context.Context, models.Utterance, models.ConversationState) (intent.Result, error) {
	return intent.Result{}, f.err
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Rules(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantLang   models.Language
		wantIntent models.Intent
		check      func(t *testing.T, out *Output)
	}{
		{
			name:       "verify in english",
			text:       "Check if Royal City Travel is authorized",
			wantLang:   models.LanguageEnglish,
			wantIntent: models.IntentVerifyAgency,
			check: func(t *testing.T, out *Output) {
				assert.Equal(t, "Royal City Travel", out.Slots.AgencyName)
			},
		},
		{
			name:       "data query in english",
			text:       "List Egyptian companies rated above 4",
			wantLang:   models.LanguageEnglish,
			wantIntent: models.IntentDataQuery,
			check: func(t *testing.T, out *Output) {
				assert.Equal(t, "Egypt", out.Slots.Country)
				require.NotNil(t, out.Slots.MinRating)
				assert.Equal(t, 4.0, *out.Slots.MinRating)
			},
		},
		{
			name:       "vague agency question",
			text:       "which company?",
			wantLang:   models.LanguageEnglish,
			wantIntent: models.IntentVerifyAgency,
			check: func(t *testing.T, out *Output) {
				assert.True(t, out.Vague)
			},
		},
		{
			name:       "report in english",
			text:       "I want to report a scam",
			wantLang:   models.LanguageEnglish,
			wantIntent: models.IntentReportFraud,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t, nil)

			out, err := handler.Execute(context.Background(), &Input{Text: tt.text})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLang, out.Language)
			assert.Equal(t, tt.wantIntent, out.Intent)
			assert.Equal(t, intent.SourceRules, out.Source)
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}

func TestHandler_Execute_UsesConversationState(t *testing.T) {
	handler := createTestHandler(t, nil)
	state := models.NewConversationState()
	state.Kind = models.StateAwaitingSlot
	state.PendingSlot = models.SlotAgencyName
	state.PendingQuery = "شركة البدر"
	state.Candidates = []models.MatchCandidate{
		{Agency: models.Agency{NameEN: "Al Badr Hajj Company", NameAR: "شركة البدر للحج"}, Score: 0.81},
		{Agency: models.Agency{NameEN: "Al Badri Tours", NameAR: "شركة البدري"}, Score: 0.79},
	}
	state.Language = models.LanguageArabic

	out, err := handler.Execute(context.Background(), &Input{Text: "2", State: &state})
	require.NoError(t, err)
	assert.Equal(t, models.IntentClarificationReply, out.Intent)
	assert.Equal(t, 2, out.Slots.Selection)
	assert.Equal(t, models.LanguageArabic, out.Language, "digits alone keep the session language")
}

// ==========================
// Error Tests
// ==========================

func TestHandler_Execute_InvalidInput(t *testing.T) {
	handler := createTestHandler(t, nil)

	for _, text := range []string{"", "   ", "'; DROP TABLE agencies; --"} {
		_, err := handler.Execute(context.Background(), &Input{Text: text})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput), "text %q", text)
	}

	_, err := handler.Execute(context.Background(), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}

func TestHandler_Execute_ClassifierErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode apperrors.ErrorCode
	}{
		{name: "oracle timeout keeps its code", err: apperrors.NewOracleTimeoutError(errors.New("slow")), wantCode: apperrors.ErrCodeOracleTimeout},
		{name: "deadline", err: context.DeadlineExceeded, wantCode: apperrors.ErrCodeTimeout},
		{name: "other", err: errors.New("boom"), wantCode: apperrors.ErrCodeExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := createTestLogger(t)
			handler := NewHandler(createTestConfig(), language.NewDetector(nil, log), failingClassifier{err: tt.err}, log)

			_, err := handler.Execute(context.Background(), &Input{Text: "ما أفضل طريقة للسفر إلى منى"})
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}
