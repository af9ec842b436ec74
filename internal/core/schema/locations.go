package schema

import (
	"sort"
	"strings"
	"unicode"
)

// LocationKind tells whether a place filters the city or the country column.
type LocationKind string

const (
	LocationCity    LocationKind = "city"
	LocationCountry LocationKind = "country"
)

// Location is a place with the spellings found in the registry and in
// user questions.
type Location struct {
	Canonical string
	Kind      LocationKind
	Variants  []string
}

// Locations is the synonym table used for slot extraction and rendering.
var Locations = []Location{
	{Canonical: "Mecca", Kind: LocationCity, Variants: []string{"مكة", "مكه", "mecca", "makkah", "makka", "مکہ"}},
	{Canonical: "Medina", Kind: LocationCity, Variants: []string{"المدينة", "المدينه", "medina", "madinah", "madina", "مدینہ"}},
	{Canonical: "Riyadh", Kind: LocationCity, Variants: []string{"الرياض", "riyadh", "ar riyadh", "ریاض"}},
	{Canonical: "Jeddah", Kind: LocationCity, Variants: []string{"جدة", "جده", "jeddah", "jedda", "jiddah", "جدہ"}},
	{Canonical: "Taif", Kind: LocationCity, Variants: []string{"الطائف", "taif", "at taif", "طائف"}},
	{Canonical: "Dammam", Kind: LocationCity, Variants: []string{"الدمام", "dammam", "دمام"}},
	{Canonical: "Cairo", Kind: LocationCity, Variants: []string{"القاهرة", "القاهره", "cairo", "قاہرہ"}},
	{Canonical: "Alexandria", Kind: LocationCity, Variants: []string{"الإسكندرية", "الاسكندرية", "alexandria", "اسکندریہ"}},
	{Canonical: "Lahore", Kind: LocationCity, Variants: []string{"لاهور", "lahore", "لاہور"}},
	{Canonical: "Karachi", Kind: LocationCity, Variants: []string{"كراتشي", "karachi", "کراچی"}},
	{Canonical: "Islamabad", Kind: LocationCity, Variants: []string{"اسلام آباد", "إسلام آباد", "islamabad"}},
	{Canonical: "Dhaka", Kind: LocationCity, Variants: []string{"دكا", "dhaka", "ڈھاکہ"}},
	{Canonical: "Jakarta", Kind: LocationCity, Variants: []string{"جاكرتا", "jakarta", "جکارتہ"}},
	{Canonical: "Saudi Arabia", Kind: LocationCountry, Variants: []string{"السعودية", "المملكة", "saudi", "ksa", "سعودی"}},
	{Canonical: "Pakistan", Kind: LocationCountry, Variants: []string{"باكستان", "پاکستان", "pakistan", "pakistani"}},
	{Canonical: "Egypt", Kind: LocationCountry, Variants: []string{"مصر", "مصرية", "مصري", "المصرية", "egypt", "egyptian", "misr"}},
	{Canonical: "Indonesia", Kind: LocationCountry, Variants: []string{"إندونيسيا", "اندونيسيا", "indonesia", "indonesian", "انڈونیشیا"}},
	{Canonical: "India", Kind: LocationCountry, Variants: []string{"الهند", "india", "indian", "بھارت", "ہندوستان"}},
	{Canonical: "Bangladesh", Kind: LocationCountry, Variants: []string{"بنغلاديش", "bangladesh", "bangladeshi", "بنگلہ دیش"}},
}

// LookupLocation resolves a canonical name or any variant.
func LookupLocation(name string) (Location, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Location{}, false
	}
	for _, loc := range Locations {
		if strings.ToLower(loc.Canonical) == needle {
			return loc, true
		}
		for _, v := range loc.Variants {
			if v == needle {
				return loc, true
			}
		}
	}
	return Location{}, false
}

// FindLocations returns the locations mentioned in text, longest variant
// first so "ar riyadh" wins over "riyadh".
func FindLocations(text string) []Location {
	lower := " " + strings.ToLower(text) + " "

	type hit struct {
		loc Location
		pos int
	}
	var hits []hit
	seen := map[string]bool{}
	for _, loc := range Locations {
		variants := append([]string(nil), loc.Variants...)
		sort.Slice(variants, func(i, j int) bool { return len(variants[i]) > len(variants[j]) })
		for _, v := range variants {
			if pos := indexWord(lower, v); pos >= 0 && !seen[loc.Canonical] {
				seen[loc.Canonical] = true
				hits = append(hits, hit{loc: loc, pos: pos})
				break
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]Location, len(hits))
	for i, h := range hits {
		out[i] = h.loc
	}
	return out
}

// indexWord finds v in s at a word boundary. Arabic variants may carry a
// leading conjunction or preposition letter (و، ب، ف، ل).
func indexWord(s, v string) int {
	from := 0
	for {
		i := strings.Index(s[from:], v)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(v)
		if boundaryBefore(s[:i]) && boundaryAfter(s[end:]) {
			return i
		}
		from = i + 1
		if from >= len(s) {
			return -1
		}
	}
}

func boundaryBefore(prefix string) bool {
	if prefix == "" {
		return true
	}
	r := []rune(prefix)
	last := r[len(r)-1]
	if !isWordRune(last) {
		return true
	}
	// single attached Arabic particle
	if strings.ContainsRune("وبفل", last) && (len(r) == 1 || !isWordRune(r[len(r)-2])) {
		return true
	}
	return false
}

func boundaryAfter(suffix string) bool {
	if suffix == "" {
		return true
	}
	return !isWordRune([]rune(suffix)[0])
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
