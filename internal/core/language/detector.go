// Package language classifies an utterance as Arabic, Urdu or English.
package language

import (
	"context"
	"strings"
	"unicode"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/oracle"
	"hajj-assistant/internal/models"
)

// Letters that occur in Urdu but not in Arabic.
const urduOnlyLetters = "ٹڈڑںےۓھہ"

var urduMarkers = map[string]bool{
	"ہے": true, "ہیں": true, "کیا": true, "میں": true, "نہیں": true, "کی": true,
	"کے": true, "کا": true, "یہ": true, "وہ": true, "کو": true, "سے": true,
	"اور": true, "بھی": true, "کون": true, "کہاں": true,
}

// Roman-Urdu words make Latin text inconclusive.
var romanUrduMarkers = map[string]bool{
	"hai": true, "hain": true, "kya": true, "nahi": true, "nahin": true, "mein": true,
	"ka": true, "ki": true, "ke": true, "ko": true, "aur": true, "kaun": true,
	"kahan": true, "yeh": true, "woh": true, "bhai": true, "batao": true,
}

const oracleSystem = `You identify the language of a short message from a Hajj pilgrim.
Answer with exactly one code: ar, ur or en. No other text.`

// Detector runs the script heuristics and asks the oracle only when they
// cannot decide.
type Detector struct {
	oracle oracle.Oracle
	logger logger.Logger
}

func NewDetector(o oracle.Oracle, log logger.Logger) *Detector {
	return &Detector{
		oracle: o,
		logger: log.With(map[string]interface{}{"component": "language"}),
	}
}

// Detect never fails: anything it cannot decide is Unknown.
func (d *Detector) Detect(ctx context.Context, text string) models.Language {
	lang, conclusive := Heuristic(text)
	if conclusive || d.oracle == nil {
		return lang
	}

	reply, err := d.oracle.Complete(ctx, oracle.Request{
		System:    oracleSystem,
		Prompt:    text,
		MaxTokens: 4,
	})
	if err != nil {
		d.logger.Debug("language oracle failed", map[string]interface{}{"error": err.Error()})
		return models.LanguageUnknown
	}

	guess := models.ParseLanguage(strings.ToLower(strings.Trim(strings.TrimSpace(reply), ".\"'`")))
	if !guess.Known() {
		return models.LanguageUnknown
	}
	return guess
}

// Heuristic classifies by script. The second result is false when only the
// oracle could decide, in which case the first result is Unknown.
func Heuristic(text string) (models.Language, bool) {
	var arabicLetters, latinLetters int
	hasUrduLetter := false

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r):
			arabicLetters++
			if strings.ContainsRune(urduOnlyLetters, r) {
				hasUrduLetter = true
			}
		case unicode.Is(unicode.Latin, r) && unicode.IsLetter(r):
			latinLetters++
		}
	}

	if arabicLetters > 0 {
		if hasUrduLetter || hasMarker(text, urduMarkers) {
			return models.LanguageUrdu, true
		}
		return models.LanguageArabic, true
	}

	if latinLetters == 0 {
		return models.LanguageUnknown, true
	}

	if hasMarker(strings.ToLower(text), romanUrduMarkers) {
		return models.LanguageUnknown, false
	}
	return models.LanguageEnglish, true
}

func hasMarker(text string, markers map[string]bool) bool {
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r)
	}) {
		if markers[w] {
			return true
		}
	}
	return false
}

// Resolve picks the language a reply is written in: the detected one, else
// the session preference, else English.
func Resolve(detected, prior models.Language) models.Language {
	if detected.Known() {
		return detected
	}
	if prior.Known() {
		return prior
	}
	return models.LanguageEnglish
}
