package models

// Language is the detected or preferred language of a conversation.
type Language string

const (
	LanguageArabic  Language = "ar"
	LanguageUrdu    Language = "ur"
	LanguageEnglish Language = "en"
	LanguageUnknown Language = "unknown"
)

// IsArabicScript is true for languages written in the Arabic script.
func (l Language) IsArabicScript() bool {
	return l == LanguageArabic || l == LanguageUrdu
}

// Known reports whether l is one of the supported languages.
func (l Language) Known() bool {
	switch l {
	case LanguageArabic, LanguageUrdu, LanguageEnglish:
		return true
	}
	return false
}

// ParseLanguage accepts codes and a few common names; anything else is Unknown.
func ParseLanguage(s string) Language {
	switch s {
	case "ar", "arabic", "Arabic", "العربية":
		return LanguageArabic
	case "ur", "urdu", "Urdu", "اردو":
		return LanguageUrdu
	case "en", "english", "English":
		return LanguageEnglish
	}
	return LanguageUnknown
}
