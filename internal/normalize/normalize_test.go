package normalize

import (
	"testing"
	"time"

	"github.com/kimjune01/slunk/internal/parser"
)

func TestNormalizeCleansWhitespaceAndExtractsMentions(t *testing.T) {
	raw := parser.RawMessage{
		Sender:   "alice",
		Body:     "hey  @bob\r\ncan you review @carol's PR?\t\n\n\nthanks",
		Kind:     parser.KindUser,
		ParsedAt: time.Date(2026, 7, 30, 9, 15, 12, 0, time.UTC),
	}
	got, ok := Normalize("chan-1", raw, 0)
	if !ok {
		t.Fatalf("expected message to be kept")
	}
	if got.Body != "hey @bob\ncan you review @carol's PR?\n\nthanks" {
		t.Fatalf("unexpected normalized body: %q", got.Body)
	}
	if len(got.Mentions) != 2 || got.Mentions[0] != "bob" || got.Mentions[1] != "carol" {
		t.Fatalf("unexpected mentions: %v", got.Mentions)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := parser.RawMessage{Sender: "alice", Body: "  hello   world  ", Kind: parser.KindUser}
	first, _ := Normalize("chan-1", raw, 0)

	raw2 := raw
	raw2.Body = first.Body
	second, _ := Normalize("chan-1", raw2, 0)

	if first.Body != second.Body || first.ContentHash != second.ContentHash {
		t.Fatalf("normalize is not idempotent: %+v vs %+v", first, second)
	}
}

func TestNormalizeDropsShortSystemNoise(t *testing.T) {
	raw := parser.RawMessage{Sender: "system", Body: "joined", Kind: parser.KindSystem}
	_, ok := Normalize("chan-1", raw, 0)
	if ok {
		t.Fatalf("expected short system message to be dropped")
	}

	raw2 := parser.RawMessage{Sender: "system", Body: "has joined the channel via SSO redirect", Kind: parser.KindSystem}
	_, ok2 := Normalize("chan-1", raw2, 0)
	if ok2 {
		t.Fatalf("expected join-pattern system message to be dropped")
	}
}

func TestNormalizeTruncatesBeforeHashing(t *testing.T) {
	raw := parser.RawMessage{Sender: "alice", Body: "abcdefghijklmnopqrstuvwxyz", Kind: parser.KindUser}
	first, _ := Normalize("chan-1", raw, 10)
	if first.Body != "abcdefghij…" {
		t.Fatalf("expected truncated body, got %q", first.Body)
	}
	if !first.Truncated {
		t.Fatalf("expected Truncated flag set")
	}

	// Re-ingesting the identical over-long message must hash identically.
	second, _ := Normalize("chan-1", raw, 10)
	if first.ContentHash != second.ContentHash {
		t.Fatalf("expected stable hash for repeated over-long message")
	}
}

func TestContentHashEquivalence(t *testing.T) {
	bucket := time.Date(2026, 7, 30, 9, 15, 0, 0, time.UTC)
	h1 := ContentHash("alice", bucket, "hello world")
	h2 := ContentHash("alice", bucket, "HELLO WORLD")
	if h1 != h2 {
		t.Fatalf("expected case-fold equivalence in hash input")
	}
	h3 := ContentHash("alice", bucket.Add(time.Hour), "hello world")
	if h1 == h3 {
		t.Fatalf("expected different bucket to change hash")
	}
}

func TestExtractMentionsDeduplicatesInOrder(t *testing.T) {
	got := ExtractMentions("@bob hi @alice and @bob again")
	if len(got) != 2 || got[0] != "bob" || got[1] != "alice" {
		t.Fatalf("unexpected mentions: %v", got)
	}
}
