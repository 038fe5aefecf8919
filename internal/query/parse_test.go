package query

import (
	"testing"
	"time"
)

func TestParseExtractsStructuredHints(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	req := Parse("deploy status from:alice in:engineering last 3 days", now, 10)

	if req.Text != "deploy status" {
		t.Fatalf("expected stripped text, got %q", req.Text)
	}
	if req.Filters.From != "alice" {
		t.Fatalf("expected from alice, got %q", req.Filters.From)
	}
	if req.Filters.In != "engineering" {
		t.Fatalf("expected in engineering, got %q", req.Filters.In)
	}
	if req.Filters.Since == nil || !req.Filters.Since.Equal(now.AddDate(0, 0, -3)) {
		t.Fatalf("expected since 3 days ago, got %v", req.Filters.Since)
	}
}

func TestParseDefaultsTopK(t *testing.T) {
	req := Parse("hello", time.Now(), 0)
	if req.TopK != 20 {
		t.Fatalf("expected default top-k 20, got %d", req.TopK)
	}
}

func TestParseSinceUntilDates(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	req := Parse("incidents since:2026-07-01 until:2026-07-15", now, 5)
	if req.Filters.Since == nil || req.Filters.Since.Day() != 1 {
		t.Fatalf("expected since day 1, got %v", req.Filters.Since)
	}
	if req.Filters.Until == nil || req.Filters.Until.Day() != 15 {
		t.Fatalf("expected until day 15, got %v", req.Filters.Until)
	}
}
