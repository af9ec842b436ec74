package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtterance(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		problem Problem
	}{
		{"english question", "Is Royal City Travel authorized?", ""},
		{"arabic", "تحقق من شركة البدر", ""},
		{"vocalized arabic", "هَلْ شَرِكَةُ البَدْرِ مُعْتَمَدَةٌ؟", ""},
		{"urdu", "کیا البدر ٹریولز منظور شدہ ہے؟", ""},
		{"rating with symbols", "agencies rated > 4.5", ""},
		{"empty", "", ProblemEmpty},
		{"whitespace", "  \n\t ", ProblemEmpty},
		{"too long", strings.Repeat("a", MaxInputRunes+1), ProblemTooLong},
		{"long arabic within limit", strings.Repeat("ب", MaxInputRunes), ""},
		{"sql comment", "x';-- ", ProblemInvalid},
		{"block comment", "royal /* hi */ city", ProblemInvalid},
		{"drop", "Royal City; drop table agencies", ProblemInvalid},
		{"script", "<script>alert(1)</script>", ProblemInvalid},
		{"javascript url", "javascript:alert(1)", ProblemInvalid},
		{"mostly symbols", "!!!???***", ProblemInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Utterance(tt.text)
			if tt.problem == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			problem, ok := ProblemOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.problem, problem)
		})
	}
}

func TestProblemOf_OtherErrors(t *testing.T) {
	_, ok := ProblemOf(errors.New("boom"))
	assert.False(t, ok)
}

func TestContact(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		kind ContactKind
	}{
		{"Pilgrim@Example.com", "pilgrim@example.com", ContactEmail},
		{" +966 55 123 4567 ", "+966 55 123 4567", ContactPhone},
		{"٠٥٥١٢٣٤٥٦٧", "0551234567", ContactPhone},
		{"call me", "", ContactNone},
		{"12", "", ContactNone},
		{"a@b", "", ContactNone},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, kind := Contact(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, kind)
		})
	}
}
