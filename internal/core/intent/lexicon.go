package intent

import (
	"strings"

	"hajj-assistant/internal/core/matcher"
)

// arabicParticles may be glued to the front of an Arabic word.
var arabicParticles = []string{"و", "ب", "ف", "ل"}

// folded is an utterance after matcher folding, kept both as tokens and as
// a space-padded string for phrase lookups.
type folded struct {
	tokens []string
	padded string
}

func fold(text string) folded {
	f := matcher.Fold(text)
	return folded{tokens: strings.Fields(f), padded: " " + f + " "}
}

// lexicon is a set of folded words and phrases.
type lexicon struct {
	words   map[string]bool
	phrases []string
}

func newLexicon(entries ...string) lexicon {
	l := lexicon{words: make(map[string]bool)}
	for _, e := range entries {
		f := matcher.Fold(e)
		if f == "" {
			continue
		}
		if strings.Contains(f, " ") {
			l.phrases = append(l.phrases, " "+f+" ")
		} else {
			l.words[f] = true
		}
	}
	return l
}

func (l lexicon) in(f folded) bool {
	for _, tok := range f.tokens {
		if l.has(tok) {
			return true
		}
	}
	for _, p := range l.phrases {
		if strings.Contains(f.padded, p) {
			return true
		}
	}
	return false
}

// has matches one folded token, allowing a single attached particle.
func (l lexicon) has(tok string) bool {
	if l.words[tok] {
		return true
	}
	if rest, ok := stripParticle(tok); ok {
		return l.words[rest]
	}
	return false
}

func stripParticle(tok string) (string, bool) {
	for _, p := range arabicParticles {
		if strings.HasPrefix(tok, p) && len([]rune(tok)) > 2 {
			return strings.TrimPrefix(tok, p), true
		}
	}
	return "", false
}

var (
	reportWords = newLexicon(
		"report", "fraud", "fraudulent", "fake", "scam", "scammed", "scammer", "cheated", "complaint", "complain",
		"بلاغ", "ابلاغ", "أبلغ", "احتيال", "نصب", "نصاب", "مزيف", "مزيفة", "وهمي", "وهمية", "شكوى", "اشتكي",
		"شکایت", "دھوکہ", "دھوکا", "فراڈ", "جعلی", "رپورٹ",
	)

	dataWords = newLexicon(
		"list", "show", "how many", "count", "which agencies", "which companies", "agencies", "companies", "offices",
		"rated", "rating", "ratings", "top",
		"اعرض", "أعرض", "قائمة", "كم", "جميع", "الشركات", "شركات", "الوكالات", "وكالات", "مكاتب", "تقييم",
		"فہرست", "دکھائیں", "کتنی", "کتنے", "تمام", "کمپنیاں", "ایجنسیاں", "ریٹنگ",
	)

	verifyWords = newLexicon(
		"verify", "check", "authorized", "authorised", "licensed", "legit", "legitimate", "approved", "official",
		"registered", "genuine", "trustworthy", "trusted",
		"تحقق", "تأكد", "معتمد", "معتمدة", "مرخص", "مرخصة", "رسمي", "رسمية", "موثوق", "موثوقة", "مسجل", "مسجلة",
		"تصدیق", "منظور", "مستند", "لائسنس", "چیک",
	)

	greetingWords = newLexicon(
		"hello", "hi", "hey", "thanks", "thank you", "salam", "salaam", "assalamu alaikum", "good morning",
		"good evening", "bye", "who are you", "help",
		"مرحبا", "السلام عليكم", "اهلا", "أهلا", "شكرا", "صباح الخير", "مساء الخير", "من انت",
		"السلام علیکم", "شکریہ", "آداب", "خدا حافظ",
	)

	pronounWords = newLexicon(
		"it", "they", "them", "this", "that", "this one", "that one", "same",
		"هي", "هو", "هذه", "هذا", "ذلك", "تلك", "نفسها",
		"یہ", "وہ", "اس", "اسی",
	)

	unauthorizedWords = newLexicon(
		"unauthorized", "unauthorised", "unlicensed", "not authorized", "not authorised", "not licensed",
		"غير معتمد", "غير معتمدة", "غير مرخص", "غير مرخصة", "غير رسمية",
		"غیر منظور", "غیر مستند",
	)

	authorizedWords = newLexicon(
		"authorized", "authorised", "licensed", "approved", "official",
		"معتمد", "معتمدة", "مرخص", "مرخصة", "رسمية", "المعتمدة",
		"منظور", "مستند",
	)

	emailWords = newLexicon("email", "e-mail", "emails", "البريد", "بريد", "ايميل", "إيميل", "ای میل", "ایمیل")

	listAllWords = newLexicon(
		"all agencies", "all companies", "every agency", "list all", "show all", "all of them", "how many agencies",
		"how many companies",
		"جميع الشركات", "كل الشركات", "جميع الوكالات", "كل الوكالات", "كم عدد الشركات", "كم شركة",
		"تمام کمپنیاں", "تمام ایجنسیاں", "سب کمپنیاں", "کتنی کمپنیاں",
	)

	yesWords = newLexicon(
		"yes", "y", "yeah", "yep", "sure", "confirm", "confirmed", "ok", "okay", "submit", "correct",
		"نعم", "ايوه", "أيوه", "اكيد", "أكيد", "موافق", "تمام", "صحيح", "أرسل", "ارسل",
		"ہاں", "جی", "جی ہاں", "ٹھیک", "درست",
	)

	noWords = newLexicon(
		"no", "n", "nope", "cancel", "stop", "don't", "dont",
		"لا", "إلغاء", "الغاء", "كلا",
		"نہیں", "منسوخ",
	)

	// Words that never belong to an agency name.
	stopWords = newLexicon(
		"is", "are", "was", "the", "a", "an", "if", "whether", "please", "can", "could", "you", "tell", "me",
		"about", "i", "want", "to", "know", "do", "does", "it", "this", "that", "of", "or", "not", "status",
		"verify", "check", "authorized", "authorised", "licensed", "legit", "legitimate", "approved", "official",
		"registered", "genuine", "trustworthy", "trusted", "real", "agency's", "name",
		"هل", "تحقق", "تأكد", "من", "عن", "معتمد", "معتمدة", "مرخص", "مرخصة", "رسمي", "رسمية", "موثوق", "موثوقة",
		"مسجل", "مسجلة", "أريد", "اريد", "ابي", "ممكن", "لو", "سمحت", "هذه", "هذا", "حالة", "اسم",
		"کیا", "یہ", "ہے", "ہیں", "تصدیق", "کریں", "کرو", "منظور", "شدہ", "مستند", "کی", "کے", "کا", "چیک",
		"براہ", "کرم", "بتائیں", "نام",
	)

	// Verbs and particles around a report request.
	reportFiller = newLexicon(
		"file", "submit", "make", "against", "lodge", "agency", "about",
		"تقديم", "ضد", "اقدم", "أقدم", "عمل",
		"خلاف", "درج", "کرنا", "کرانا", "چاہتا", "چاہتی", "ہوں",
	)

	prepositions = newLexicon("in", "at", "from", "based", "في", "فى", "من", "ب", "میں", "سے")
)
