package language

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/oracle"
	"hajj-assistant/internal/models"

	"github.com/stretchr/testify/assert"
)

func countingOracle(reply string, err error, calls *int) oracle.Oracle {
	return oracle.Func(func(ctx context.Context, req oracle.Request) (string, error) {
		*calls++
		return reply, err
	})
}

func TestDetect_ScriptHeuristics(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Language
	}{
		{"english", "Check if Royal City Travel is authorized", models.LanguageEnglish},
		{"arabic", "تحقق من شركة البدر", models.LanguageArabic},
		{"arabic with diacritics", "هَلْ الشَّرِكَةُ مُعْتَمَدَةٌ؟", models.LanguageArabic},
		{"urdu marker word", "کیا یہ ایجنسی منظور شدہ ہے", models.LanguageUrdu},
		{"urdu letter", "البدر ٹریول", models.LanguageUrdu},
		{"arabic with latin name", "هل Royal City معتمدة", models.LanguageArabic},
		{"digits only", "12345 ???", models.LanguageUnknown},
		{"empty", "", models.LanguageUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			d := NewDetector(countingOracle("en", nil, &calls), logger.NewTestLogger(t))

			assert.Equal(t, tt.want, d.Detect(context.Background(), tt.text))
			assert.Zero(t, calls, "heuristics resolve without the oracle")
		})
	}
}

func TestDetect_RomanUrduAsksOracle(t *testing.T) {
	calls := 0
	d := NewDetector(countingOracle(" UR\n", nil, &calls), logger.NewTestLogger(t))

	got := d.Detect(context.Background(), "Al Badr travels authorized hai kya")

	assert.Equal(t, models.LanguageUrdu, got)
	assert.Equal(t, 1, calls)
}

func TestDetect_OracleFailureIsUnknown(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"timeout", "", oracle.ErrTimeout},
		{"unavailable", "", errors.New("down")},
		{"out of set", "fr", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			d := NewDetector(countingOracle(tt.reply, tt.err, &calls), logger.NewTestLogger(t))
			assert.Equal(t, models.LanguageUnknown, d.Detect(context.Background(), "yeh agency kaun si hai"))
		})
	}
}

func TestDetect_ArabicScriptNeverEnglish(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("ابتثجحخدذرسشصضطظعغفقكلمنهويءآأإةىٹڈڑںےabcdefghijklmnop 0123456789؟!.")
	arabicOnly := []rune("ابتثجحخدذرسشصضطظعغفقكلمنهوي")

	calls := 0
	d := NewDetector(countingOracle("en", nil, &calls), logger.NewTestLogger(t))

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(30)
		text := make([]rune, 0, n+1)
		for j := 0; j < n; j++ {
			text = append(text, alphabet[rng.Intn(len(alphabet))])
		}
		text = append(text, arabicOnly[rng.Intn(len(arabicOnly))])

		got := d.Detect(context.Background(), string(text))
		assert.NotEqual(t, models.LanguageEnglish, got, "input %q", string(text))
		assert.True(t, got.IsArabicScript(), "input %q", string(text))
	}
	assert.Zero(t, calls)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, models.LanguageArabic, Resolve(models.LanguageArabic, models.LanguageEnglish))
	assert.Equal(t, models.LanguageUrdu, Resolve(models.LanguageUnknown, models.LanguageUrdu))
	assert.Equal(t, models.LanguageEnglish, Resolve(models.LanguageUnknown, ""))
}
