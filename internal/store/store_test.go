package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kimjune01/slunk/internal/normalize"
	"github.com/kimjune01/slunk/internal/parser"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), Options{
		Path:         filepath.Join(dir, "slunk.db"),
		WriteCacheMB: 8,
		MmapMB:       16,
		VectorMetric: "cosine",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertMessageDedupAndReactionMerge(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	wsID, err := s.EnsureWorkspace(ctx, "acme")
	if err != nil {
		t.Fatalf("EnsureWorkspace: %v", err)
	}
	chID, err := s.EnsureChannel(ctx, wsID, "general", parser.ChannelTypeChannel, "")
	if err != nil {
		t.Fatalf("EnsureChannel: %v", err)
	}

	raw := parser.RawMessage{Sender: "alice", Body: "hello team", Kind: parser.KindUser, ParsedAt: time.Date(2026, 7, 30, 9, 15, 0, 0, time.UTC)}
	norm, ok := normalize.Normalize(chID, raw, 0)
	if !ok {
		t.Fatalf("expected message kept")
	}

	id1, outcome1, err := s.UpsertMessage(ctx, chID, norm, raw.ParsedAt)
	if err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}
	if outcome1 != OutcomeNew {
		t.Fatalf("expected new outcome, got %s", outcome1)
	}

	// Re-ingesting the identical snapshot is a no-op.
	id2, outcome2, err := s.UpsertMessage(ctx, chID, norm, raw.ParsedAt)
	if err != nil {
		t.Fatalf("UpsertMessage (replay): %v", err)
	}
	if id2 != id1 || outcome2 != OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome with same id, got %s/%s", id2, outcome2)
	}

	// Adding a reaction is detected and merged, but does not bump version
	// or mark the message for re-embedding.
	norm.Reactions = map[string]int{"👍": 2}
	id3, outcome3, err := s.UpsertMessage(ctx, chID, norm, raw.ParsedAt)
	if err != nil {
		t.Fatalf("UpsertMessage (reaction): %v", err)
	}
	if id3 != id1 || outcome3 != OutcomeReactionsUpdated {
		t.Fatalf("expected reactions_updated outcome, got %s", outcome3)
	}

	msg, err := s.GetMessage(ctx, id1)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if msg.Version != 1 {
		t.Fatalf("expected version to stay at 1 after reaction update, got %d", msg.Version)
	}

	// Editing the body keeps the same identity but bumps version and
	// re-marks the message for embedding.
	if err := s.MarkEmbedded(ctx, id1, []float32{1, 0, 0}, norm.ContentHash); err != nil {
		t.Fatalf("MarkEmbedded: %v", err)
	}
	norm.Body = "hello team, updated"
	norm.ContentHash = normalize.ContentHash(norm.Sender, norm.TsBucket, "hello team, updated")
	id4, outcome4, err := s.UpsertMessage(ctx, chID, norm, raw.ParsedAt)
	if err != nil {
		t.Fatalf("UpsertMessage (edit): %v", err)
	}
	if id4 != id1 || outcome4 != OutcomeUpdated {
		t.Fatalf("expected updated outcome, got %s", outcome4)
	}

	edited, err := s.GetMessage(ctx, id1)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if edited.Version != 2 {
		t.Fatalf("expected version 2 after edit, got %d", edited.Version)
	}
	if edited.Body != "hello team, updated" {
		t.Fatalf("expected body to be rewritten, got %q", edited.Body)
	}

	hits, err := s.NearestNeighbors(ctx, []string{chID}, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("NearestNeighbors: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected the stale embedding to be cleared on edit, got %+v", hits)
	}
}

func TestLexicalSearchFindsBody(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	wsID, _ := s.EnsureWorkspace(ctx, "acme")
	chID, _ := s.EnsureChannel(ctx, wsID, "general", parser.ChannelTypeChannel, "")

	raw := parser.RawMessage{Sender: "alice", Body: "deploy the search pipeline today", Kind: parser.KindUser, ParsedAt: time.Now()}
	norm, _ := normalize.Normalize(chID, raw, 0)
	if _, _, err := s.UpsertMessage(ctx, chID, norm, raw.ParsedAt); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}

	hits, err := s.LexicalSearch(ctx, []string{chID}, "pipeline", 10)
	if err != nil {
		t.Fatalf("LexicalSearch: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 lexical hit, got %d", len(hits))
	}
}

func TestNearestNeighborsRanksByDistance(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	wsID, _ := s.EnsureWorkspace(ctx, "acme")
	chID, _ := s.EnsureChannel(ctx, wsID, "general", parser.ChannelTypeChannel, "")

	raw1 := parser.RawMessage{Sender: "alice", Body: "first message", Kind: parser.KindUser, ParsedAt: time.Now()}
	norm1, _ := normalize.Normalize(chID, raw1, 0)
	id1, _, _ := s.UpsertMessage(ctx, chID, norm1, raw1.ParsedAt)

	raw2 := parser.RawMessage{Sender: "bob", Body: "second message", Kind: parser.KindUser, ParsedAt: time.Now()}
	norm2, _ := normalize.Normalize(chID, raw2, 0)
	id2, _, _ := s.UpsertMessage(ctx, chID, norm2, raw2.ParsedAt)

	if err := s.MarkEmbedded(ctx, id1, []float32{1, 0, 0}, norm1.ContentHash); err != nil {
		t.Fatalf("MarkEmbedded: %v", err)
	}
	if err := s.MarkEmbedded(ctx, id2, []float32{0, 1, 0}, norm2.ContentHash); err != nil {
		t.Fatalf("MarkEmbedded: %v", err)
	}

	hits, err := s.NearestNeighbors(ctx, nil, []float32{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("NearestNeighbors: %v", err)
	}
	if len(hits) != 2 || hits[0].MessageID != id1 {
		t.Fatalf("expected id1 closest, got %+v", hits)
	}
}
