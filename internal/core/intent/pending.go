package intent

import (
	"regexp"
	"strconv"
	"strings"

	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/models"
)

var selectionPattern = regexp.MustCompile(`^\D{0,16}?(\d{1,2})\D{0,8}$`)

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"الاول": 1, "الثاني": 2, "الثالث": 3, "الرابع": 4, "الخامس": 5,
	"الاولي": 1, "الثانيه": 2, "الثالثه": 3, "الرابعه": 4, "الخامسه": 5,
	"پهلا": 1, "دوسرا": 2, "تيسرا": 3, "چوتها": 4, "پانچواں": 5,
}

// candidateNameScore is how close a reply must be to an offered name to
// count as picking it.
const candidateNameScore = 0.8

// pending interprets the utterance as the answer to an open question. It
// returns false when the user moved on to something else.
func (c *Classifier) pending(text string, f folded, state models.ConversationState) (Result, bool) {
	reply := Result{Intent: models.IntentClarificationReply, Source: SourcePending}

	switch state.Kind {
	case models.StateAwaitingReportConfirm:
		switch {
		case noWords.in(f):
			no := false
			reply.Confirm = &no
		case yesWords.in(f):
			yes := true
			reply.Confirm = &yes
		}
		return reply, true

	case models.StateAwaitingSlot:
	default:
		return Result{}, false
	}

	if state.PendingSlot.IsReportSlot() {
		reply.Slots.Reason = text
		return reply, true
	}
	if text == "" || reportWords.in(f) {
		return Result{}, false
	}

	switch state.PendingSlot {
	case models.SlotAgencyName:
		if n := selection(text, f, len(state.Candidates)); n > 0 {
			reply.Slots.Selection = n
			return reply, true
		}
		if n := pickByName(text, state.Candidates); n > 0 {
			reply.Slots.Selection = n
			return reply, true
		}
		if dataWords.in(f) {
			return Result{}, false
		}
		filters := extractFilters(text, f)
		reply.Slots.City = filters.City
		if name := agencyName(text); hasIdentity(name) {
			reply.Slots.AgencyName = name
		}
		return reply, true

	case models.SlotQueryDetail:
		reply.Slots = extractFilters(text, f)
		return reply, true
	}
	return Result{}, false
}

// selection reads "2", "option 2", "٢" or "the second one" as a 1-based
// choice among n options.
func selection(text string, f folded, n int) int {
	if n == 0 {
		return 0
	}
	if m := selectionPattern.FindStringSubmatch(asciiDigits(strings.TrimSpace(text))); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v >= 1 && v <= n {
			return v
		}
	}
	if len(f.tokens) > 4 {
		return 0
	}
	for _, tok := range f.tokens {
		if v, ok := ordinals[tok]; ok && v <= n {
			return v
		}
	}
	return 0
}

// pickByName returns the 1-based index of the single offered candidate the
// reply names, or 0.
func pickByName(text string, candidates []models.MatchCandidate) int {
	query := matcher.Tokens(text)
	best, bestScore, tied := 0, 0.0, false
	for i, c := range candidates {
		score := matcher.Similarity(query, matcher.Tokens(c.Agency.NameEN))
		if ar := matcher.Similarity(query, matcher.Tokens(c.Agency.NameAR)); ar > score {
			score = ar
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = i+1, score, false
		case score == bestScore:
			tied = true
		}
	}
	if bestScore < candidateNameScore || tied {
		return 0
	}
	return best
}
