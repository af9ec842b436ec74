// Package validate screens raw user text before it reaches the classifier
// or the report flow.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxInputRunes = 500
	// maxSpecialRatio is the share of symbol characters above which input
	// is rejected.
	maxSpecialRatio = 0.3
)

var ErrInvalidInput = errors.New("INVALID_INPUT")

// Problem is the reason an utterance was rejected.
type Problem string

const (
	ProblemEmpty   Problem = "input_empty"
	ProblemTooLong Problem = "input_too_long"
	ProblemInvalid Problem = "input_invalid"
)

// Error is returned for rejected input. It unwraps to ErrInvalidInput.
type Error struct {
	Problem Problem
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Problem)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrInvalidInput, e.Problem, e.Detail)
}

func (e *Error) Unwrap() error { return ErrInvalidInput }

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`;\s*--`),
	regexp.MustCompile(`(?s)/\*.*?\*/`),
	regexp.MustCompile(`(?i)\bDROP\b`),
	regexp.MustCompile(`(?i)\bDELETE\b`),
	regexp.MustCompile(`(?i)\bINSERT\b`),
	regexp.MustCompile(`(?i)\bUPDATE\b`),
	regexp.MustCompile(`(?i)\bEXEC\b`),
	regexp.MustCompile(`(?i)\bTRUNCATE\b`),
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
}

// Utterance returns nil when text may be processed.
func Utterance(text string) error {
	if strings.TrimSpace(text) == "" {
		return &Error{Problem: ProblemEmpty}
	}
	if n := utf8.RuneCountInString(text); n > MaxInputRunes {
		return &Error{Problem: ProblemTooLong, Detail: fmt.Sprintf("%d runes", n)}
	}
	for _, re := range dangerousPatterns {
		if re.MatchString(text) {
			return &Error{Problem: ProblemInvalid, Detail: "pattern " + re.String()}
		}
	}
	if ratio := specialRatio(text); ratio > maxSpecialRatio {
		return &Error{Problem: ProblemInvalid, Detail: fmt.Sprintf("special characters %.0f%%", ratio*100)}
	}
	return nil
}

// ProblemOf extracts the rejection reason from err.
func ProblemOf(err error) (Problem, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Problem, true
	}
	return "", false
}

// specialRatio counts runes that are neither letters, digits, combining
// marks nor whitespace. Harakat are marks, so vocalized Arabic passes.
func specialRatio(text string) float64 {
	total, special := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || unicode.IsSpace(r) {
			continue
		}
		special++
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 \-()]{6,18}[0-9]$`)
)

// ContactKind classifies a reporter contact.
type ContactKind string

const (
	ContactNone  ContactKind = ""
	ContactEmail ContactKind = "email"
	ContactPhone ContactKind = "phone"
)

// Contact recognizes an email address or a phone number. Arabic-Indic
// digits are accepted and returned as ASCII.
func Contact(raw string) (string, ContactKind) {
	s := strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, raw))

	switch {
	case emailRegex.MatchString(s):
		return strings.ToLower(s), ContactEmail
	case phoneRegex.MatchString(s):
		return s, ContactPhone
	}
	return "", ContactNone
}
