package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"raincheck/internal/types"
)

var (
	// activityPattern matches the fixed activity vocabulary anywhere in the
	// query, case-insensitive.
	activityPattern = regexp.MustCompile(`(?i)\b(vacances|rando|plage|mariage|sport|extérieur|exterieur)\b`)

	// heuristicLocationPattern captures the text between a standalone "à"/"a"
	// and the next standalone "le" (or end of string).
	heuristicLocationPattern = regexp.MustCompile(`(?i)(?:^|\s)[àa]\s+(.+?)(?:\s+le\b.*)?$`)

	// heuristicDatePattern matches "le <day> <French month> [<year>]".
	heuristicDatePattern = regexp.MustCompile(`(?i)\ble\s+(\d{1,2})(?:er)?\s+(\p{L}+)(?:\s+(\d{4}))?`)
)

// ParseHeuristic extracts whichever of location, date, and activity it can
// find in the query using regular expressions only. Missing fields are left
// empty, never defaulted. It is the fallback used when the AI parser is
// unavailable or returned a partial intent.
//
// Date handling: when no year is stated, the current year is assumed and the
// date rolls forward one year only if the result would be strictly before
// today, so "le 10 octobre" always resolves to the next future occurrence.
// An explicitly stated year is honored as-is, even in the past.
func ParseHeuristic(query string, now time.Time) types.ParsedIntent {
	var out types.ParsedIntent

	if m := activityPattern.FindStringSubmatch(query); m != nil {
		out.Activity = strings.ToLower(m[1])
	}

	if m := heuristicLocationPattern.FindStringSubmatch(query); m != nil {
		loc := SanitizeLocation(m[1])
		if loc != "" {
			out.Location = loc
		}
	}

	if m := heuristicDatePattern.FindStringSubmatch(query); m != nil {
		if date, ok := resolveHeuristicDate(m, now); ok {
			out.DateISO = ToISODate(date)
		}
	}

	return out
}

// resolveHeuristicDate builds a concrete date from the day/month/year capture
// groups, applying the forward-rollover rule for yearless dates.
func resolveHeuristicDate(m []string, now time.Time) (time.Time, bool) {
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}

	month, ok := frenchMonths[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}

	explicitYear := m[3] != ""
	year := now.UTC().Year()
	if explicitYear {
		year, err = strconv.Atoi(m[3])
		if err != nil {
			return time.Time{}, false
		}
	}

	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if !explicitYear {
		today := now.UTC().Truncate(24 * time.Hour)
		if date.Before(today) {
			date = date.AddDate(1, 0, 0)
		}
	}
	return date, true
}
