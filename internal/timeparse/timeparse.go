// Package timeparse extracts an absolute instant from free text.
//
// Patterns are tried in a fixed priority order and the first pattern whose
// regex matches and whose numeric groups are valid wins. A match with an
// out-of-range group (hour 25, minute 70) skips that pattern and evaluation
// continues down the same order. The order is load-bearing: a bare "15:30"
// beats a later "tomorrow at 18:00" in the same message.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type extractor func(groups []string, now time.Time) (time.Time, bool)

type pattern struct {
	re      *regexp.Regexp
	extract extractor
}

var patterns = []pattern{
	// 1. bare HH:MM → today, rolled to tomorrow if already past
	{regexp.MustCompile(`(\d{1,2}):(\d{2})`), extractTimeOnly},
	// 2. in N hours|minutes → now + offset
	{regexp.MustCompile(`(?i)in\s+(\d+)\s+(hours?|hrs?|minutes?|mins?)`), extractRelative},
	// 3. DD.MM.YYYY HH:MM → exact instant, no rollover
	{regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})\s+(\d{1,2}):(\d{2})`), extractFullDate},
	// 4. tomorrow at HH:MM
	{regexp.MustCompile(`(?i)tomorrow\s+at\s+(\d{1,2}):(\d{2})`), extractTomorrow},
	// 5. today at HH:MM → rolled to tomorrow if already past
	{regexp.MustCompile(`(?i)today\s+at\s+(\d{1,2}):(\d{2})`), extractToday},
}

var stopWords = []string{
	"tomorrow", "today", "in", "at", "on",
	"hours", "hour", "hrs", "hr",
	"minutes", "minute", "mins", "min",
}

var stopWordRes = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(stopWords))
	for i, w := range stopWords {
		out[i] = regexp.MustCompile(`(?i)\b` + w + `\b`)
	}
	return out
}()

// Parse extracts the first time expression from text. It returns the text
// with the expression and stop words stripped, and the resolved instant.
// When nothing matches, ok is false and the cleaned text still has stop
// words removed.
func Parse(text string, now time.Time) (desc string, at time.Time, ok bool) {
	desc = strings.TrimSpace(text)
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		t, valid := p.extract(m[1:], now)
		if !valid {
			continue
		}
		at = t
		ok = true
		desc = p.re.ReplaceAllString(text, "")
		break
	}
	desc = stripStopWords(desc)
	return desc, at, ok
}

func stripStopWords(s string) string {
	for _, re := range stopWordRes {
		s = re.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

func atoiAll(groups []string) ([]int, bool) {
	out := make([]int, len(groups))
	for i, g := range groups {
		n, err := strconv.Atoi(g)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func validClock(hour, minute int) bool {
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

func extractTimeOnly(groups []string, now time.Time) (time.Time, bool) {
	n, ok := atoiAll(groups)
	if !ok || !validClock(n[0], n[1]) {
		return time.Time{}, false
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), n[0], n[1], 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}

func extractRelative(groups []string, now time.Time) (time.Time, bool) {
	amount, err := strconv.Atoi(groups[0])
	if err != nil {
		return time.Time{}, false
	}
	unit := strings.ToLower(groups[1])
	if strings.HasPrefix(unit, "h") {
		return now.Add(time.Duration(amount) * time.Hour), true
	}
	return now.Add(time.Duration(amount) * time.Minute), true
}

func extractFullDate(groups []string, now time.Time) (time.Time, bool) {
	n, ok := atoiAll(groups)
	if !ok || !validClock(n[3], n[4]) {
		return time.Time{}, false
	}
	day, month, year := n[0], n[1], n[2]
	if month < 1 || month > 12 || day < 1 || day > daysIn(month, year) {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, n[3], n[4], 0, 0, now.Location()), true
}

func extractTomorrow(groups []string, now time.Time) (time.Time, bool) {
	n, ok := atoiAll(groups)
	if !ok || !validClock(n[0], n[1]) {
		return time.Time{}, false
	}
	t := now.AddDate(0, 0, 1)
	return time.Date(t.Year(), t.Month(), t.Day(), n[0], n[1], 0, 0, now.Location()), true
}

func extractToday(groups []string, now time.Time) (time.Time, bool) {
	return extractTimeOnly(groups, now)
}

func daysIn(month, year int) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
