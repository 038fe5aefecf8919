package parser

import (
	"testing"
	"time"
)

func TestParseTimestampChain(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-07-29T10:00:00Z", time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)},
		{"2026-07-28 08:30", time.Date(2026, 7, 28, 8, 30, 0, 0, time.UTC)},
		{"3 hours ago", now.Add(-3 * time.Hour)},
		{"2 days ago", now.AddDate(0, 0, -2)},
	}
	for _, c := range cases {
		got, ok := ParseTimestamp(c.in, now)
		if !ok {
			t.Fatalf("expected %q to parse", c.in)
		}
		if !got.Equal(c.want) {
			t.Fatalf("%q: expected %v, got %v", c.in, c.want, got)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	if _, ok := ParseTimestamp("not a timestamp at all", time.Now()); ok {
		t.Fatalf("expected garbage input to fail parsing")
	}
	if _, ok := ParseTimestamp("", time.Now()); ok {
		t.Fatalf("expected empty input to fail parsing")
	}
}

func TestParseUnixSeconds(t *testing.T) {
	got, ok := ParseTimestamp("1700000000", time.Now())
	if !ok {
		t.Fatalf("expected unix seconds to parse")
	}
	if got.Unix() != 1700000000 {
		t.Fatalf("expected unix 1700000000, got %d", got.Unix())
	}
}
