package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Generic words and honorifics that carry no identity. Stored pre-normalized.
var genericWords = map[string]bool{}

func init() {
	for _, w := range []string{
		"الحاج", "حاج", "الشيخ", "شيخ", "حاجی", "شیخ",
		"haji", "hajji", "alhaj", "alhajj", "sheikh", "shaikh", "sheik", "shaykh", "mr", "dr",
		"شركة", "وكالة", "مؤسسة", "مكتب", "مجموعة", "للحج", "والعمرة", "الحج", "العمرة", "للسياحة", "والسفر", "السفر",
		"کمپنی", "ایجنسی", "ٹریولز",
		"agency", "agencies", "travel", "travels", "tours", "tour", "tourism", "company", "co", "ltd", "llc",
		"est", "establishment", "group", "hajj", "umrah", "and", "the", "for", "services", "service",
	} {
		genericWords[normalizeText(w)] = true
	}
}

var letterVariants = map[rune]rune{
	'أ': 'ا', 'إ': 'ا', 'آ': 'ا', 'ٱ': 'ا',
	'ة': 'ه', 'ہ': 'ه', 'ۃ': 'ه', 'ھ': 'ه',
	'ى': 'ي', 'ی': 'ي', 'ئ': 'ي', 'ے': 'ي',
	'ؤ': 'و',
	'ک': 'ك',
}

// normalizeText folds case, strips diacritics and harakat, maps Arabic-Indic
// digits and letter variants, and turns punctuation into spaces.
func normalizeText(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = cases.Fold().String(s)

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '٠' && r <= '٩':
			sb.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹':
			sb.WriteRune('0' + (r - '۰'))
		case r == 'ـ':
			// tatweel
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if v, ok := letterVariants[r]; ok {
				r = v
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Tokens normalizes s and drops generic words. When every token is generic
// the unfiltered tokens are kept so a name like "Travel Agency" still matches.
func Tokens(s string) []string {
	all := strings.Fields(normalizeText(s))
	kept := make([]string, 0, len(all))
	for _, tok := range all {
		if !genericWords[tok] {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		return all
	}
	return kept
}

// Normalize is the canonical form used for comparison.
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}

// script reports which scripts the text uses.
func script(s string) (arabic, latin bool) {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.Is(unicode.Arabic, r) {
			arabic = true
		} else if unicode.Is(unicode.Latin, r) {
			latin = true
		}
	}
	return arabic, latin
}

// Fold applies the comparison normalization without dropping any word.
func Fold(s string) string {
	return normalizeText(s)
}

// IsGeneric reports whether a folded token carries no identity.
func IsGeneric(token string) bool {
	return genericWords[token]
}
