package tools

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kimjune01/slunk/internal/query"
	"github.com/kimjune01/slunk/internal/resource"
	"github.com/kimjune01/slunk/internal/store"
)

type fakeEngineStore struct {
	lex      []store.LexicalHit
	messages map[string]store.Message
}

func (f *fakeEngineStore) LexicalSearch(ctx context.Context, channelIDs []string, q string, topK int) ([]store.LexicalHit, error) {
	return f.lex, nil
}
func (f *fakeEngineStore) NearestNeighbors(ctx context.Context, channelIDs []string, q []float32, topK int) ([]store.VectorHit, error) {
	return nil, nil
}
func (f *fakeEngineStore) GetMessage(ctx context.Context, id string) (store.Message, error) {
	return f.messages[id], nil
}
func (f *fakeEngineStore) ListChannels(ctx context.Context) ([]store.ChannelInfo, error) {
	return []store.ChannelInfo{{ID: "ch-1", Name: "general", MessageCount: 2}}, nil
}
func (f *fakeEngineStore) ListByFilter(ctx context.Context, channelIDs []string, sender string, since, until *time.Time, topK int) ([]store.Message, error) {
	var out []store.Message
	for _, m := range f.messages {
		out = append(out, m)
	}
	return out, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, hashes []string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeToolStore struct{}

func (fakeToolStore) ListChannels(ctx context.Context) ([]store.ChannelInfo, error) {
	return []store.ChannelInfo{{ID: "ch-1", Name: "general", MessageCount: 2}}, nil
}
func (fakeToolStore) GetStats(ctx context.Context) (store.Stats, error) {
	return store.Stats{WorkspaceCount: 1, ChannelCount: 1, MessageCount: 2}, nil
}

func newTestServer() *Server {
	es := &fakeEngineStore{
		lex: []store.LexicalHit{{MessageID: "m1", Rank: 0.1}},
		messages: map[string]store.Message{
			"m1": {ID: "m1", ChannelID: "ch-1", Sender: "alice", Body: "deploy status", TsSource: time.Now()},
		},
	}
	engine := query.New(es, fakeEmbedder{}, query.Weights{Semantic: 0.6, Lexical: 0.4}, 0)
	mon := resource.New(resource.Options{MaxInFlight: 10})
	return New(engine, fakeToolStore{}, mon, zerolog.New(io.Discard), "test")
}

func TestHandleSearchMessagesReturnsResults(t *testing.T) {
	s := newTestServer()
	_, out, err := s.handleSearchMessages(context.Background(), nil, SearchMessagesInput{Query: "deploy"})
	if err != nil {
		t.Fatalf("handleSearchMessages: %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out.Results))
	}
}

func TestHandleSearchMessagesRejectsEmptyQuery(t *testing.T) {
	s := newTestServer()
	res, _, err := s.handleSearchMessages(context.Background(), nil, SearchMessagesInput{Query: ""})
	if err != nil {
		t.Fatalf("handler should not return a Go error: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatalf("expected an IsError result for empty query")
	}
}

func TestHandleGetStatsReturnsCounts(t *testing.T) {
	s := newTestServer()
	_, out, err := s.handleGetStats(context.Background(), nil, GetStatsInput{})
	if err != nil {
		t.Fatalf("handleGetStats: %v", err)
	}
	if out.MessageCount != 2 {
		t.Fatalf("expected message count 2, got %d", out.MessageCount)
	}
}

func TestHandleGetChannelsListsChannels(t *testing.T) {
	s := newTestServer()
	_, out, err := s.handleGetChannels(context.Background(), nil, GetChannelsInput{})
	if err != nil {
		t.Fatalf("handleGetChannels: %v", err)
	}
	if len(out.Channels) != 1 || out.Channels[0].Name != "general" {
		t.Fatalf("unexpected channels: %+v", out.Channels)
	}
}

func TestHandleDiscoverPatternsCountsSenders(t *testing.T) {
	s := newTestServer()
	_, out, err := s.handleDiscoverPatterns(context.Background(), nil, DiscoverPatternsInput{Query: "deploy"})
	if err != nil {
		t.Fatalf("handleDiscoverPatterns: %v", err)
	}
	if len(out.TopSenders) != 1 || out.TopSenders[0].Sender != "alice" {
		t.Fatalf("unexpected senders: %+v", out.TopSenders)
	}
}
