package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	fromRe  = regexp.MustCompile(`(?i)\bfrom:(\S+)`)
	inRe    = regexp.MustCompile(`(?i)\bin:(\S+)`)
	sinceRe = regexp.MustCompile(`(?i)\bsince:(\S+)`)
	untilRe = regexp.MustCompile(`(?i)\buntil:(\S+)`)
	lastRe  = regexp.MustCompile(`(?i)\blast\s+(\d+)\s*(day|hour|week|month)s?\b`)
)

// Parse extracts from:/in:/since:/until:/"last N <unit>" structured hints
// from raw, leaving the remainder as free-text query terms. now anchors
// relative windows ("last N days").
func Parse(raw string, now time.Time, topK int) Request {
	req := Request{RawQuery: raw, TopK: topK}
	text := raw

	if m := fromRe.FindStringSubmatch(text); m != nil {
		req.Filters.From = m[1]
		text = fromRe.ReplaceAllString(text, "")
	}
	if m := inRe.FindStringSubmatch(text); m != nil {
		req.Filters.In = m[1]
		text = inRe.ReplaceAllString(text, "")
	}
	if m := sinceRe.FindStringSubmatch(text); m != nil {
		if t, ok := parseDateHint(m[1], now); ok {
			req.Filters.Since = &t
		}
		text = sinceRe.ReplaceAllString(text, "")
	}
	if m := untilRe.FindStringSubmatch(text); m != nil {
		if t, ok := parseDateHint(m[1], now); ok {
			req.Filters.Until = &t
		}
		text = untilRe.ReplaceAllString(text, "")
	}
	if m := lastRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			since := subtractUnit(now, n, strings.ToLower(m[2]))
			req.Filters.Since = &since
		}
		text = lastRe.ReplaceAllString(text, "")
	}

	req.Text = strings.Join(strings.Fields(text), " ")
	if req.TopK <= 0 {
		req.TopK = 20
	}
	return req
}

func parseDateHint(s string, now time.Time) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "Jan 2, 2006", "Jan 2"} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			if !strings.Contains(layout, "2006") {
				t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
			}
			return t, true
		}
	}
	return time.Time{}, false
}

func subtractUnit(now time.Time, n int, unit string) time.Time {
	switch unit {
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour)
	case "day":
		return now.AddDate(0, 0, -n)
	case "week":
		return now.AddDate(0, 0, -7*n)
	case "month":
		return now.AddDate(0, -n, 0)
	}
	return now
}
