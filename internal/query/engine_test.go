package query

import (
	"context"
	"testing"
	"time"

	"github.com/kimjune01/slunk/internal/store"
)

type fakeQueryStore struct {
	lex      []store.LexicalHit
	vec      []store.VectorHit
	messages map[string]store.Message
	channels []store.ChannelInfo
}

func (f *fakeQueryStore) LexicalSearch(ctx context.Context, channelIDs []string, query string, topK int) ([]store.LexicalHit, error) {
	return f.lex, nil
}

func (f *fakeQueryStore) NearestNeighbors(ctx context.Context, channelIDs []string, query []float32, topK int) ([]store.VectorHit, error) {
	return f.vec, nil
}

func (f *fakeQueryStore) GetMessage(ctx context.Context, id string) (store.Message, error) {
	return f.messages[id], nil
}

func (f *fakeQueryStore) ListChannels(ctx context.Context) ([]store.ChannelInfo, error) {
	return f.channels, nil
}

func (f *fakeQueryStore) ListByFilter(ctx context.Context, channelIDs []string, sender string, since, until *time.Time, topK int) ([]store.Message, error) {
	var out []store.Message
	for _, m := range f.messages {
		if sender != "" && m.Sender != sender {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

type fakeQueryEmbedder struct{}

func (fakeQueryEmbedder) Embed(ctx context.Context, contentHashes []string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func TestSearchFusesLexicalAndVectorHits(t *testing.T) {
	st := &fakeQueryStore{
		lex: []store.LexicalHit{{MessageID: "m1", Rank: 0.1}, {MessageID: "m2", Rank: 0.5}},
		vec: []store.VectorHit{{MessageID: "m2", Distance: 0.1}, {MessageID: "m1", Distance: 0.4}},
		messages: map[string]store.Message{
			"m1": {ID: "m1", Sender: "alice", Body: "deploy pipeline", TsSource: time.Now()},
			"m2": {ID: "m2", Sender: "bob", Body: "deploy failed", TsSource: time.Now()},
		},
	}
	eng := New(st, fakeQueryEmbedder{}, Weights{Semantic: 0.6, Lexical: 0.4}, 0)

	req := Parse("deploy", time.Now(), 10)
	results, err := eng.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestSearchRejectsEmptyQueryText(t *testing.T) {
	st := &fakeQueryStore{}
	eng := New(st, fakeQueryEmbedder{}, Weights{}, 0)
	req := Parse("", time.Now(), 10)
	_, err := eng.Search(context.Background(), req)
	if err == nil {
		t.Fatalf("expected error for a query with no text and no filters")
	}
}

func TestSearchEmptyTextWithFiltersSkipsRankingBranches(t *testing.T) {
	st := &fakeQueryStore{
		messages: map[string]store.Message{
			"m1": {ID: "m1", Sender: "alice", Body: "deploy", TsSource: time.Now()},
			"m2": {ID: "m2", Sender: "bob", Body: "deploy", TsSource: time.Now()},
		},
	}
	eng := New(st, fakeQueryEmbedder{}, Weights{Semantic: 0.6, Lexical: 0.4}, 0)
	req := Parse("from:alice", time.Now(), 10)
	if req.Text != "" {
		t.Fatalf("expected stripped text to be empty, got %q", req.Text)
	}
	results, err := eng.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Sender != "alice" {
		t.Fatalf("expected only alice's message via the filter predicate, got %+v", results)
	}
}

func TestSearchTieBreaksByRecencyThenID(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	st := &fakeQueryStore{
		// Equal rank/distance for both hits forces a fused-score tie.
		lex: []store.LexicalHit{{MessageID: "m2", Rank: 0.3}, {MessageID: "m1", Rank: 0.3}},
		vec: []store.VectorHit{{MessageID: "m2", Distance: 0.2}, {MessageID: "m1", Distance: 0.2}},
		messages: map[string]store.Message{
			"m1": {ID: "m1", Sender: "alice", Body: "deploy pipeline", TsSource: older},
			"m2": {ID: "m2", Sender: "bob", Body: "deploy pipeline", TsSource: newer},
		},
	}
	eng := New(st, fakeQueryEmbedder{}, Weights{Semantic: 0.6, Lexical: 0.4}, 0)
	req := Parse("deploy pipeline", time.Now(), 10)
	results, err := eng.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 tied results, got %d", len(results))
	}
	if results[0].MessageID != "m2" {
		t.Fatalf("expected the more recent message first on a fused-score tie, got %s", results[0].MessageID)
	}
}

func TestSearchFiltersBySender(t *testing.T) {
	st := &fakeQueryStore{
		lex: []store.LexicalHit{{MessageID: "m1", Rank: 0.1}, {MessageID: "m2", Rank: 0.2}},
		messages: map[string]store.Message{
			"m1": {ID: "m1", Sender: "alice", Body: "deploy", TsSource: time.Now()},
			"m2": {ID: "m2", Sender: "bob", Body: "deploy", TsSource: time.Now()},
		},
	}
	eng := New(st, fakeQueryEmbedder{}, Weights{Semantic: 0.6, Lexical: 0.4}, 0)
	req := Parse("deploy from:alice", time.Now(), 10)
	results, err := eng.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Sender != "alice" {
			t.Fatalf("expected only alice's messages, got %s", r.Sender)
		}
	}
}
