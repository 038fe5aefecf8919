package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timestampFunc is a pure attempt at parsing one timestamp format. It
// returns ok=false rather than an error so the chain can simply try the
// next one; "now" anchors relative-time and year-less formats.
type timestampFunc func(s string, now time.Time) (time.Time, bool)

// timestampChain tries formats in order; the first match wins. Adding a
// format a chat client uses is a one-line addition to this slice.
var timestampChain = []timestampFunc{
	parseRFC3339,
	parseDateTimeMinute,
	parseMonthDay,
	parseClockTime,
	parseUnixSeconds,
	parseRelative,
}

// ParseTimestamp runs s through the chain and reports the first match.
func ParseTimestamp(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, fn := range timestampChain {
		if t, ok := fn(s, now); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseRFC3339(s string, now time.Time) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDateTimeMinute(s string, now time.Time) (time.Time, bool) {
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location()); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func parseMonthDay(s string, now time.Time) (time.Time, bool) {
	for _, layout := range []string{"Jan 2, 2006", "Jan 2"} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			if !strings.Contains(layout, "2006") {
				t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
			}
			return t, true
		}
	}
	return time.Time{}, false
}

func parseClockTime(s string, now time.Time) (time.Time, bool) {
	for _, layout := range []string{"3:04:05 PM", "3:04 PM"} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location()), true
		}
	}
	return time.Time{}, false
}

func parseUnixSeconds(s string, now time.Time) (time.Time, bool) {
	if !regexp.MustCompile(`^\d{9,13}$`).MatchString(s) {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	if len(s) >= 12 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}

var relativeRe = regexp.MustCompile(`(?i)^(\d+)\s*(second|minute|hour|day|week|month|year)s?\s+ago$`)

func parseRelative(s string, now time.Time) (time.Time, bool) {
	m := relativeRe.FindStringSubmatch(s)
	if m == nil {
		if strings.EqualFold(s, "just now") {
			return now, true
		}
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	switch strings.ToLower(m[2]) {
	case "second":
		return now.Add(-time.Duration(n) * time.Second), true
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}
