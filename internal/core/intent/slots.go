package intent

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

const number = `(\d+(?:\.\d+)?)`

var (
	minRatingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:\b(?:above|over|more than|greater than|higher than|at least|rated)\b|>=?)\s*` + number),
		regexp.MustCompile(`(?:أكثر من|اكثر من|فوق|أعلى من|اعلى من|لا يقل عن)\s*` + number),
		regexp.MustCompile(number + `\s*(?:\+|stars? (?:and|or) (?:above|more|up))`),
		regexp.MustCompile(number + `\s*(?:سے زیادہ|سے اوپر|سے بہتر)`),
	}
	maxRatingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:\b(?:below|under|less than|lower than|at most)\b|<=?)\s*` + number),
		regexp.MustCompile(`(?:أقل من|اقل من|تحت|دون)\s*` + number),
		regexp.MustCompile(number + `\s*سے کم`),
	}
)

// asciiDigits lowercases text and rewrites Arabic-Indic digits and the
// Arabic decimal separator so numbers can be parsed.
func asciiDigits(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r == '٫':
			return '.'
		}
		return unicode.ToLower(r)
	}, text)
}

func firstRating(text string, patterns []*regexp.Regexp) *float64 {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v < 0 || v > 5 {
			continue
		}
		return &v
	}
	return nil
}

// extractFilters fills the slots a data query can be narrowed by.
func extractFilters(text string, f folded) models.Slots {
	var s models.Slots

	for _, loc := range schema.FindLocations(text) {
		switch loc.Kind {
		case schema.LocationCity:
			if s.City == "" {
				s.City = loc.Canonical
			}
		case schema.LocationCountry:
			if s.Country == "" {
				s.Country = loc.Canonical
			}
		}
	}

	numeric := asciiDigits(text)
	s.MinRating = firstRating(numeric, minRatingPatterns)
	s.MaxRating = firstRating(numeric, maxRatingPatterns)

	switch {
	case unauthorizedWords.in(f):
		no := false
		s.Authorized = &no
	case authorizedWords.in(f):
		yes := true
		s.Authorized = &yes
	}

	s.HasEmail = emailWords.in(f)
	s.ListAll = listAllWords.in(f)
	return s
}

// agencyName returns what is left of the utterance once question words,
// verification verbs and prepositional place mentions are removed, along
// with any word in extra. Original spelling is preserved.
func agencyName(text string, extra ...lexicon) string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&' && !unicode.Is(unicode.Mn, r)
	})

	type word struct {
		orig   string
		folded string
	}
	words := make([]word, 0, len(raw))
	for _, w := range raw {
		fw := matcher.Fold(w)
		if fw == "" {
			continue
		}
		words = append(words, word{orig: w, folded: fw})
	}

	drop := make([]bool, len(words))
	for i, w := range words {
		if stopWords.has(w.folded) || anyHas(extra, w.folded) {
			drop[i] = true
			continue
		}
		if !isPlace(w.folded) {
			continue
		}
		if _, attached := stripParticle(w.folded); attached {
			drop[i] = true
		}
		if i > 0 && prepositions.has(words[i-1].folded) {
			drop[i], drop[i-1] = true, true
		}
		if i+1 < len(words) && prepositions.has(words[i+1].folded) {
			drop[i], drop[i+1] = true, true
		}
	}

	var kept []string
	for i, w := range words {
		if !drop[i] {
			kept = append(kept, w.orig)
		}
	}
	return strings.Join(kept, " ")
}

func anyHas(lexicons []lexicon, tok string) bool {
	for _, l := range lexicons {
		if l.has(tok) {
			return true
		}
	}
	return false
}

var foldedPlaces = func() map[string]bool {
	m := make(map[string]bool)
	for _, loc := range schema.Locations {
		m[matcher.Fold(loc.Canonical)] = true
		for _, v := range loc.Variants {
			m[matcher.Fold(v)] = true
		}
	}
	return m
}()

func isPlace(tok string) bool {
	if foldedPlaces[tok] {
		return true
	}
	rest, ok := stripParticle(tok)
	return ok && foldedPlaces[rest]
}

// hasIdentity reports whether a candidate name has at least one word that
// is not a generic agency term.
func hasIdentity(name string) bool {
	for _, tok := range strings.Fields(matcher.Fold(name)) {
		if !matcher.IsGeneric(tok) && !stopWords.has(tok) && !pronounWords.has(tok) {
			return true
		}
	}
	return false
}
