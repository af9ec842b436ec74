package composer

import (
	"strings"
	"testing"
	"unicode"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/executor"
	"hajj-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var languages = []models.Language{models.LanguageEnglish, models.LanguageArabic, models.LanguageUrdu}

func createTestComposer(t *testing.T) *Composer {
	return New(logger.NewTestLogger(t))
}

func hasLatinLetter(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

func royalCity() models.MatchCandidate {
	return models.MatchCandidate{
		Agency: models.Agency{
			NameEN:        "Royal City Travel",
			NameAR:        "رويال سيتي للسفر",
			City:          "Riyadh",
			Country:       "Saudi Arabia",
			Authorization: models.AuthorizationAuthorized,
		},
		Score:         0.93,
		Authorization: models.AuthorizationAuthorized,
	}
}

// ==========================
// Catalogue
// ==========================

func TestCatalogue_Complete(t *testing.T) {
	english := catalogue[models.LanguageEnglish]
	for _, lang := range languages {
		msgs := catalogue[lang]
		for key := range english {
			assert.NotEmpty(t, msgs[key], "%s missing %s", lang, key)
		}
	}
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars map[string]string
		want string
	}{
		{"plain", "hello", nil, "hello"},
		{"one", "Ref {{ref}}.", map[string]string{"ref": "R-1"}, "Ref R-1."},
		{"spaces", "{{ name }} ok", map[string]string{"name": "x"}, "x ok"},
		{"unknown kept", "{{a}} {{b}}", map[string]string{"a": "1"}, "1 {{b}}"},
		{"unterminated", "{{a", map[string]string{"a": "1"}, "{{a"},
		{"value with braces", "{{a}}", map[string]string{"a": "{{a}}"}, "{{a}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substitute(tt.tmpl, tt.vars))
		})
	}
}

// ==========================
// Verify outcomes
// ==========================

func TestVerified(t *testing.T) {
	c := createTestComposer(t)

	p := c.Verified(models.LanguageEnglish, royalCity())
	assert.Equal(t, "Royal City Travel in Riyadh is an authorized Hajj agency.", p.Text)
	assert.Equal(t, models.LanguageEnglish, p.Language)
	assert.False(t, p.Failed())
	assert.Nil(t, p.Table)

	p = c.Verified(models.LanguageArabic, royalCity())
	assert.Equal(t, "رويال سيتي للسفر في الرياض شركة حج معتمدة.", p.Text)

	p = c.Verified(models.LanguageUrdu, royalCity())
	assert.Contains(t, p.Text, "ریاض")
	assert.Contains(t, p.Text, "منظور شدہ")
}

func TestVerified_Status(t *testing.T) {
	c := createTestComposer(t)
	cand := royalCity()

	cand.Agency.Authorization = models.AuthorizationNotAuthorized
	assert.Contains(t, c.Verified(models.LanguageEnglish, cand).Text, "NOT an authorized")
	assert.Contains(t, c.Verified(models.LanguageArabic, cand).Text, "ليست")

	cand.Agency.Authorization = models.AuthorizationUnknown
	assert.Contains(t, c.Verified(models.LanguageEnglish, cand).Text, "not recorded")

	cand.Agency.City = ""
	assert.Equal(t,
		"Royal City Travel is in the registry, but its authorization status is not recorded. Please check with the Ministry of Hajj before paying.",
		c.Verified(models.LanguageEnglish, cand).Text)
}

func TestVerified_PlaceInReaderScript(t *testing.T) {
	c := createTestComposer(t)
	nile := models.MatchCandidate{
		Agency: models.Agency{
			NameEN:        "Nile Pilgrims",
			NameAR:        "حجاج النيل",
			City:          "Cairo",
			Country:       "Egypt",
			Authorization: models.AuthorizationAuthorized,
		},
		Score:         0.95,
		Authorization: models.AuthorizationAuthorized,
	}

	assert.Equal(t, "حجاج النيل في القاهرة شركة حج معتمدة.", c.Verified(models.LanguageArabic, nile).Text)
	assert.Contains(t, c.Verified(models.LanguageUrdu, nile).Text, "قاہرہ")

	// no Arabic spelling known: the place is left out rather than shown in Latin
	nile.Agency.City = "Springfield"
	p := c.Verified(models.LanguageArabic, nile)
	assert.Equal(t, "حجاج النيل شركة حج معتمدة.", p.Text)
	assert.False(t, hasLatinLetter(p.Text))

	assert.Contains(t, c.Verified(models.LanguageEnglish, nile).Text, "in Springfield")
}

func TestVerified_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	c := createTestComposer(t)
	p := c.Verified(models.LanguageUnknown, royalCity())
	assert.Equal(t, models.LanguageEnglish, p.Language)
	assert.True(t, strings.HasPrefix(p.Text, "Royal City Travel"))
}

func TestAmbiguous(t *testing.T) {
	c := createTestComposer(t)
	candidates := []models.MatchCandidate{
		{Agency: models.Agency{NameEN: "Al Badr Hajj Company", NameAR: "شركة البدر للحج", City: "Mecca"}, Score: 0.81},
		{Agency: models.Agency{NameEN: "Al Badri Tours", NameAR: "شركة البدري", City: "Jeddah"}, Score: 0.79},
	}

	p := c.Ambiguous(models.LanguageArabic, candidates)
	lines := strings.Split(p.Text, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1. شركة البدر للحج (مكة)", lines[1])
	assert.Equal(t, "2. شركة البدري (جدة)", lines[2])
	assert.Equal(t, "أي واحدة تقصد؟ أرسل رقمها.", p.FollowUpQuestion)
	assert.False(t, hasLatinLetter(p.Text+p.FollowUpQuestion))

	p = c.Ambiguous(models.LanguageEnglish, candidates)
	assert.Contains(t, p.Text, "1. Al Badr Hajj Company (Mecca)")
	assert.NotEmpty(t, p.FollowUpQuestion)
}

func TestNoMatchAndQuestions(t *testing.T) {
	c := createTestComposer(t)

	p := c.NoMatch(models.LanguageEnglish, "Zamzam Towers")
	assert.Contains(t, p.Text, `"Zamzam Towers"`)
	assert.Empty(t, p.FollowUpQuestion)

	for _, lang := range languages {
		assert.NotEmpty(t, c.AskAgencyName(lang).FollowUpQuestion)
		assert.NotEmpty(t, c.AskQueryDetail(lang).FollowUpQuestion)
	}
}

// ==========================
// Data query outcomes
// ==========================

func TestRows(t *testing.T) {
	c := createTestComposer(t)
	res := &executor.Result{
		Columns: []string{"hajj_company_en", "city", "is_authorized"},
		Rows: [][]string{
			{"Royal City Travel", "Riyadh", "Yes"},
			{"Al Badri Tours", "Jeddah", "No"},
		},
		Agencies: []models.Agency{
			{NameEN: "Royal City Travel", Authorization: models.AuthorizationAuthorized},
			{NameEN: "Al Badri Tours", Authorization: models.AuthorizationNotAuthorized},
		},
	}

	p := c.Rows(models.LanguageEnglish, res)
	assert.Equal(t, "Found 2 matching agencies (1 authorized).", p.Text)
	require.NotNil(t, p.Table)
	assert.Equal(t, res.Columns, p.Table.Columns)
	assert.Len(t, p.Table.Rows, 2)

	res.Truncated = true
	p = c.Rows(models.LanguageEnglish, res)
	assert.Contains(t, p.Text, "Only the first 2 are shown.")
}

func TestRows_Empty(t *testing.T) {
	c := createTestComposer(t)

	for _, lang := range languages {
		p := c.Rows(lang, &executor.Result{Columns: []string{"city"}})
		assert.Nil(t, p.Table, lang)
		assert.Equal(t, text(lang, msgNoResults), p.Text)
		assert.False(t, p.Failed())
	}
	assert.Nil(t, c.Rows(models.LanguageEnglish, nil).Table)
}

func TestStats(t *testing.T) {
	c := createTestComposer(t)
	p := c.Stats(models.LanguageEnglish, models.RegistryStats{Total: 6, Authorized: 3, Countries: 3, Cities: 6})
	assert.Equal(t, "The registry lists 6 agencies, 3 of them authorized, in 3 countries and 6 cities.", p.Text)
}

// ==========================
// Failures
// ==========================

func TestFailures(t *testing.T) {
	c := createTestComposer(t)

	for _, lang := range languages {
		p := c.QueryFailed(lang)
		assert.Equal(t, models.FailureQueryFailed, p.FailureCode)
		assert.Equal(t, lang, p.Language)
		assert.NotContains(t, strings.ToLower(p.Text), "sql")
		assert.NotContains(t, strings.ToLower(p.Text), "timeout")

		assert.Equal(t, models.FailureReportFailed, c.ReportFailed(lang).FailureCode)
	}

	assert.False(t, hasLatinLetter(c.QueryFailed(models.LanguageArabic).Text))
	assert.False(t, hasLatinLetter(c.QueryFailed(models.LanguageUrdu).Text))
}

func TestInvalidInput(t *testing.T) {
	c := createTestComposer(t)

	tests := []struct {
		problem InputProblem
		want    string
	}{
		{InputEmpty, "Please enter a question."},
		{InputTooLong, "Your question is too long (max 500 characters)."},
		{InputInvalid, "Invalid characters were detected in your question."},
	}
	for _, tt := range tests {
		p := c.InvalidInput(models.LanguageEnglish, tt.problem)
		assert.Equal(t, tt.want, p.Text)
		assert.Equal(t, models.FailureInvalidInput, p.FailureCode)
	}
}

// ==========================
// Report flow
// ==========================

func TestReportMessages(t *testing.T) {
	c := createTestComposer(t)

	p := c.ReportPrompt(models.LanguageEnglish, models.SlotReportCity, "")
	assert.Equal(t, "In which city is the agency located?", p.Text)
	assert.Equal(t, p.Text, p.FollowUpQuestion)

	p = c.ReportPrompt(models.LanguageEnglish, models.SlotReportContact, "That does not look like an email.")
	assert.True(t, strings.HasPrefix(p.Text, "That does not look like an email.\n"))
	assert.Contains(t, p.FollowUpQuestion, "skip")

	p = c.ReportConfirm(models.LanguageArabic, models.ReportDraft{AgencyName: "شركة النصر", City: "جدة", Details: "أخذوا المال"})
	assert.Contains(t, p.Text, "الشركة: شركة النصر")
	assert.Contains(t, p.Text, "التواصل: مجهول")
	assert.NotEmpty(t, p.FollowUpQuestion)

	p = c.ReportFiled(models.LanguageEnglish, "HR-1234")
	assert.Equal(t, "HR-1234", p.ReferenceID)
	assert.Contains(t, p.Text, "HR-1234")

	assert.NotEmpty(t, c.ReportCancelled(models.LanguageUrdu).Text)
}

func TestLocalPlace(t *testing.T) {
	assert.Equal(t, "Mecca", localPlace("Mecca", models.LanguageEnglish))
	assert.Equal(t, "مكة", localPlace("Mecca", models.LanguageArabic))
	assert.Equal(t, "مکہ", localPlace("Mecca", models.LanguageUrdu))
	assert.Equal(t, "پاکستان", localPlace("Pakistan", models.LanguageUrdu))
	assert.Equal(t, "Springfield", localPlace("Springfield", models.LanguageArabic))
	assert.Equal(t, "لاهور", localPlace("Lahore", models.LanguageArabic))
	assert.Equal(t, "لاہور", localPlace("Lahore", models.LanguageUrdu))
	assert.Equal(t, "كراتشي", localPlace("Karachi", models.LanguageArabic))
	assert.Equal(t, "جدة", localPlace("جدة", models.LanguageArabic))

	_, ok := localizedPlace("", models.LanguageArabic)
	assert.False(t, ok)
}

func TestGreeting_DoesNotAnswerASalutation(t *testing.T) {
	c := createTestComposer(t)
	for _, lang := range languages {
		assert.False(t, strings.HasPrefix(c.Greeting(lang).Text, "وعليكم"), "%s greeting", lang)
	}
	assert.True(t, strings.HasPrefix(c.Greeting(models.LanguageArabic).Text, "مرحباً"))
}

func TestGeneralAnswer(t *testing.T) {
	c := createTestComposer(t)
	for _, lang := range languages {
		p := c.GeneralAnswer(lang, "  answer text \n")
		assert.Equal(t, "answer text", p.Text)
		assert.Equal(t, lang, p.Language)
		assert.NotEmpty(t, p.FollowUpQuestion)
		assert.False(t, p.Failed())
	}
	assert.Equal(t, models.LanguageEnglish, c.GeneralAnswer(models.LanguageUnknown, "x").Language)
}
