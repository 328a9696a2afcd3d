// Package intent turns free-text weather queries into structured
// {location, date, activity} fields. It contains only pure string and date
// transforms: the Normalizer (this file) and the regex Heuristic Parser
// (heuristic.go). Absence is always signalled by the empty string, never by
// an error, so callers can chain fallbacks without branching on failure modes.
package intent

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"raincheck/internal/types"
)

// frenchMonths maps lowercase French month names (accented and plain
// spellings) to their month number.
var frenchMonths = map[string]time.Month{
	"janvier":   time.January,
	"février":   time.February,
	"fevrier":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"août":      time.August,
	"aout":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"décembre":  time.December,
	"decembre":  time.December,
}

// monthAlternation is the regex alternation of every known month spelling,
// built once at init.
var monthAlternation = func() string {
	names := make([]string, 0, len(frenchMonths))
	for name := range frenchMonths {
		names = append(names, name)
	}
	return strings.Join(names, "|")
}()

// activityNouns is the fixed vocabulary of leading activity words stripped
// from location strings.
var activityNouns = []string{"vacances", "rando", "plage", "mariage", "sport"}

// candidateStopwords are lowercase words skipped during capitalized-sequence
// scanning: activity nouns, articles, and pronouns that commonly open a
// sentence with a capital letter.
var candidateStopwords = map[string]struct{}{
	"vacances": {}, "rando": {}, "plage": {}, "mariage": {}, "sport": {},
	"extérieur": {}, "exterieur": {}, "week-end": {}, "weekend": {},
	"le": {}, "la": {}, "les": {}, "un": {}, "une": {}, "des": {},
	"je": {}, "tu": {}, "il": {}, "elle": {}, "on": {}, "nous": {}, "vous": {},
	"mon": {}, "ma": {}, "mes": {}, "et": {}, "ou": {}, "pour": {}, "avec": {},
	"demain": {}, "bonjour": {},
}

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yearPattern    = regexp.MustCompile(`^\d{4}$`)

	// trailingDatePattern matches a "le <day> <month> [<year>]" fragment at the
	// end of a location string.
	trailingDatePattern = regexp.MustCompile(`(?i)\s*\ble\s+\d{1,2}(?:er)?\s+(?:` + monthAlternation + `)(?:\s+\d{4})?\s*$`)

	// prepositionPattern captures everything after a standalone "à"/"a".
	prepositionPattern = regexp.MustCompile(`(?i)(?:^|\s)[àa]\s+(\S.*)$`)

	// leadingActivityPattern strips a leading activity noun plus separators.
	leadingActivityPattern = regexp.MustCompile(`(?i)^(?:` + strings.Join(activityNouns, "|") + `)\b[\s,:-]*`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// genericDateLayouts are tried in order by NormalizeDateISO for inputs that
// are not already calendar-day ISO strings.
var genericDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"2 January 2006",
	"Jan 2, 2006",
}

// ToISODate truncates a timestamp to calendar-day granularity in UTC.
func ToISODate(t time.Time) string {
	return t.UTC().Format(types.ISODateLayout)
}

// NormalizeDateISO coerces s to "YYYY-MM-DD". Inputs already in that shape are
// returned unchanged (so the function is idempotent); other inputs go through
// generic date parsing and are re-rendered in UTC. The empty string is the
// failure signal; no error is ever raised.
func NormalizeDateISO(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if isoDatePattern.MatchString(s) {
		// Shape matches; reject impossible dates like 2025-13-45.
		if _, err := time.Parse(types.ISODateLayout, s); err != nil {
			return ""
		}
		return s
	}
	for _, layout := range genericDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ToISODate(t)
		}
	}
	return ""
}

// SanitizeLocation cleans a location string extracted from free text:
//  1. strips a trailing "le <day> <month> [<year>]" date fragment,
//  2. prefers the substring following a standalone "à"/"a" if one is found,
//  3. strips a fixed set of leading activity nouns,
//  4. collapses whitespace and trims trailing punctuation.
//
// Returns the empty string when nothing usable remains.
func SanitizeLocation(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = trailingDatePattern.ReplaceAllString(s, "")

	if m := prepositionPattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	s = leadingActivityPattern.ReplaceAllString(s, "")

	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ",.;:!? ")
	return s
}

// ExtractCandidateLocation scans the query for capitalized word sequences,
// skipping month names, 4-digit years, and a small stopword set, and returns
// the first remaining sequence. Used as a geocoding fallback when no location
// was parsed from the query.
func ExtractCandidateLocation(query string) string {
	var current []string
	flush := func() string {
		if len(current) == 0 {
			return ""
		}
		return strings.Join(current, " ")
	}

	for _, raw := range strings.Fields(query) {
		word := strings.Trim(raw, ",.;:!?()\"'")
		if word == "" || !startsUpper(word) || skipCandidate(word) {
			if c := flush(); c != "" {
				return c
			}
			current = current[:0]
			continue
		}
		current = append(current, word)
	}
	return flush()
}

// datePhrasePattern matches a "le <day> <month> [<year>]" fragment anywhere
// in a string, not only at the end.
var datePhrasePattern = regexp.MustCompile(`(?i)\ble\s+\d{1,2}(?:er)?\s+(?:` + monthAlternation + `)(?:\s+\d{4})?\b`)

// noiseWords are dropped wholesale by StripQueryNoise: standalone
// prepositions, articles, and the activity vocabulary.
var noiseWords = map[string]struct{}{
	"à": {}, "a": {}, "au": {}, "aux": {}, "en": {}, "de": {}, "du": {},
	"le": {}, "la": {}, "les": {}, "un": {}, "une": {}, "des": {}, "pour": {},
	"vacances": {}, "rando": {}, "plage": {}, "mariage": {}, "sport": {},
	"extérieur": {}, "exterieur": {},
}

// bareNumberPattern matches tokens that are nothing but digits.
var bareNumberPattern = regexp.MustCompile(`^\d+$`)

// StripQueryNoise aggressively reduces a raw query to the words that might
// name a place: date phrases, month names, activity words, standalone
// prepositions, articles, and bare numbers are all removed. It is the
// last-resort input for geocoding when every cleaner extraction failed.
func StripQueryNoise(query string) string {
	query = datePhrasePattern.ReplaceAllString(query, " ")

	var kept []string
	for _, raw := range strings.Fields(query) {
		word := strings.Trim(raw, ",.;:!?()\"'")
		if word == "" {
			continue
		}
		lower := strings.ToLower(word)
		if _, ok := noiseWords[lower]; ok {
			continue
		}
		if _, ok := frenchMonths[lower]; ok {
			continue
		}
		if bareNumberPattern.MatchString(word) {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// startsUpper reports whether the first rune of word is an uppercase letter.
// Works on accented capitals (É, À) as well as ASCII.
func startsUpper(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

// skipCandidate reports whether a capitalized word should be ignored during
// candidate-location scanning.
func skipCandidate(word string) bool {
	lower := strings.ToLower(word)
	if _, ok := frenchMonths[lower]; ok {
		return true
	}
	if _, ok := candidateStopwords[lower]; ok {
		return true
	}
	return yearPattern.MatchString(word)
}
