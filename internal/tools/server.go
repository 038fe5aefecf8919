// Package tools implements the tool surface (C8): the MCP tool methods
// search_messages, search_conversations, get_channels, get_stats, and
// discover_patterns, served over the official modelcontextprotocol/go-sdk
// stdio transport. Grounded on the teacher's own use of that SDK as an
// MCP client (internal/mcpclient.go); here the same SDK is wired as the
// server side instead.
package tools

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/kimjune01/slunk/internal/metrics"
	"github.com/kimjune01/slunk/internal/query"
	"github.com/kimjune01/slunk/internal/resource"
	"github.com/kimjune01/slunk/internal/slunkerr"
	"github.com/kimjune01/slunk/internal/store"
)

// domain error codes, prefixed onto the text of a tool error result (see
// toolError); the SDK itself owns protocol-level codes (-32601, -32602,
// -32603).
const (
	codeBusy            = 1001
	codeTimeout         = 1002
	codeBackendNotReady = 1003
)

const toolDeadline = 30 * time.Second

// Store is the subset of *store.Store the tool surface needs directly
// (beyond what it reaches through Engine).
type Store interface {
	ListChannels(ctx context.Context) ([]store.ChannelInfo, error)
	GetStats(ctx context.Context) (store.Stats, error)
}

// Server wires C8's tool methods onto an MCP server instance.
type Server struct {
	mcp     *mcp.Server
	engine  *query.Engine
	st      Store
	monitor *resource.Monitor
	log     zerolog.Logger
}

// New builds the MCP server and registers every tool.
func New(engine *query.Engine, st Store, monitor *resource.Monitor, log zerolog.Logger, version string) *Server {
	s := &Server{
		mcp:     mcp.NewServer(&mcp.Implementation{Name: "slunk", Version: version}, nil),
		engine:  engine,
		st:      st,
		monitor: monitor,
		log:     log,
	}
	s.registerTools()
	return s
}

// Run serves tool calls over stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_messages",
		Description: "Search captured chat messages with hybrid lexical + semantic ranking. Supports from:, in:, since:, until:, and last N days/hours/weeks/months hints.",
	}, s.handleSearchMessages)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_conversations",
		Description: "Search messages and group results by (channel, day).",
	}, s.handleSearchConversations)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_channels",
		Description: "List every known workspace/channel with its message count.",
	}, s.handleGetChannels)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_stats",
		Description: "Report aggregate store counts: workspaces, channels, messages, pending embeddings.",
	}, s.handleGetStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "discover_patterns",
		Description: "Surface the most frequent senders among messages matching a query.",
	}, s.handleDiscoverPatterns)
}

// SearchMessagesInput is search_messages' parameter shape.
type SearchMessagesInput struct {
	Query string `json:"query" jsonschema:"the natural-language search query, may include from:/in:/since:/until: hints"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of results to return, default 20"`
}

// SearchMessagesOutput is search_messages' result shape.
type SearchMessagesOutput struct {
	Results []MessageResult `json:"results"`
}

// MessageResult is one scored message returned to a caller.
type MessageResult struct {
	MessageID string    `json:"message_id"`
	ChannelID string    `json:"channel_id"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

func (s *Server) handleSearchMessages(ctx context.Context, req *mcp.CallToolRequest, in SearchMessagesInput) (*mcp.CallToolResult, SearchMessagesOutput, error) {
	release, err := s.monitor.Acquire()
	if err != nil {
		return toolError(err)
	}
	defer release()

	metrics.ToolCallsTotal.WithLabelValues("search_messages", "attempted").Inc()

	ctx, cancel := context.WithTimeout(ctx, toolDeadline)
	defer cancel()

	if in.Query == "" {
		return toolError(slunkerr.New(slunkerr.KindInvalidInput, "query must not be empty"))
	}

	parsed := query.Parse(in.Query, time.Now(), in.TopK)
	results, err := s.engine.Search(ctx, parsed)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues("search_messages", "error").Inc()
		return toolError(err)
	}

	out := SearchMessagesOutput{Results: make([]MessageResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, MessageResult{
			MessageID: r.MessageID,
			ChannelID: r.ChannelID,
			Sender:    r.Sender,
			Body:      r.Body,
			Timestamp: r.TsSource,
			Score:     r.Score,
		})
	}
	metrics.ToolCallsTotal.WithLabelValues("search_messages", "ok").Inc()
	return nil, out, nil
}

// SearchConversationsInput mirrors SearchMessagesInput.
type SearchConversationsInput struct {
	Query string `json:"query" jsonschema:"the natural-language search query"`
	TopK  int    `json:"top_k,omitempty"`
}

// ConversationGroup is one (channel, day) bucket of matched messages.
type ConversationGroup struct {
	ChannelID string          `json:"channel_id"`
	Day       string          `json:"day"`
	Messages  []MessageResult `json:"messages"`
}

// SearchConversationsOutput groups search_messages results by channel/day.
type SearchConversationsOutput struct {
	Groups []ConversationGroup `json:"groups"`
}

func (s *Server) handleSearchConversations(ctx context.Context, req *mcp.CallToolRequest, in SearchConversationsInput) (*mcp.CallToolResult, SearchConversationsOutput, error) {
	release, err := s.monitor.Acquire()
	if err != nil {
		return toolError(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, toolDeadline)
	defer cancel()

	if in.Query == "" {
		return toolError(slunkerr.New(slunkerr.KindInvalidInput, "query must not be empty"))
	}

	parsed := query.Parse(in.Query, time.Now(), in.TopK)
	results, err := s.engine.Search(ctx, parsed)
	if err != nil {
		return toolError(err)
	}

	groups := map[string]*ConversationGroup{}
	var order []string
	for _, r := range results {
		day := r.TsSource.Format("2006-01-02")
		key := r.ChannelID + "|" + day
		g, ok := groups[key]
		if !ok {
			g = &ConversationGroup{ChannelID: r.ChannelID, Day: day}
			groups[key] = g
			order = append(order, key)
		}
		g.Messages = append(g.Messages, MessageResult{
			MessageID: r.MessageID, ChannelID: r.ChannelID, Sender: r.Sender,
			Body: r.Body, Timestamp: r.TsSource, Score: r.Score,
		})
	}

	out := SearchConversationsOutput{Groups: make([]ConversationGroup, 0, len(order))}
	for _, key := range order {
		out.Groups = append(out.Groups, *groups[key])
	}
	return nil, out, nil
}

// GetChannelsInput takes no parameters.
type GetChannelsInput struct{}

// ChannelSummary is one channel's metadata.
type ChannelSummary struct {
	ID           string `json:"id"`
	WorkspaceID  string `json:"workspace_id"`
	Name         string `json:"name"`
	ChannelType  string `json:"channel_type"`
	MessageCount int    `json:"message_count"`
}

// GetChannelsOutput lists every known channel.
type GetChannelsOutput struct {
	Channels []ChannelSummary `json:"channels"`
}

func (s *Server) handleGetChannels(ctx context.Context, req *mcp.CallToolRequest, in GetChannelsInput) (*mcp.CallToolResult, GetChannelsOutput, error) {
	release, err := s.monitor.Acquire()
	if err != nil {
		return toolError(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, toolDeadline)
	defer cancel()

	channels, err := s.st.ListChannels(ctx)
	if err != nil {
		return toolError(err)
	}
	out := GetChannelsOutput{Channels: make([]ChannelSummary, 0, len(channels))}
	for _, c := range channels {
		out.Channels = append(out.Channels, ChannelSummary{
			ID: c.ID, WorkspaceID: c.WorkspaceID, Name: c.Name,
			ChannelType: c.ChannelType, MessageCount: c.MessageCount,
		})
	}
	return nil, out, nil
}

// GetStatsInput takes no parameters.
type GetStatsInput struct{}

// GetStatsOutput reports aggregate store counts.
type GetStatsOutput struct {
	WorkspaceCount int `json:"workspace_count"`
	ChannelCount   int `json:"channel_count"`
	MessageCount   int `json:"message_count"`
	PendingEmbeds  int `json:"pending_embeds"`
}

func (s *Server) handleGetStats(ctx context.Context, req *mcp.CallToolRequest, in GetStatsInput) (*mcp.CallToolResult, GetStatsOutput, error) {
	release, err := s.monitor.Acquire()
	if err != nil {
		return toolError(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, toolDeadline)
	defer cancel()

	stats, err := s.st.GetStats(ctx)
	if err != nil {
		return toolError(err)
	}
	return nil, GetStatsOutput{
		WorkspaceCount: stats.WorkspaceCount,
		ChannelCount:   stats.ChannelCount,
		MessageCount:   stats.MessageCount,
		PendingEmbeds:  stats.PendingEmbeds,
	}, nil
}

// DiscoverPatternsInput takes a query to search for recurring senders.
type DiscoverPatternsInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SenderFrequency is one sender's hit count within a discover_patterns call.
type SenderFrequency struct {
	Sender string `json:"sender"`
	Count  int    `json:"count"`
}

// DiscoverPatternsOutput surfaces the most frequent senders among matches.
type DiscoverPatternsOutput struct {
	TopSenders []SenderFrequency `json:"top_senders"`
}

func (s *Server) handleDiscoverPatterns(ctx context.Context, req *mcp.CallToolRequest, in DiscoverPatternsInput) (*mcp.CallToolResult, DiscoverPatternsOutput, error) {
	release, err := s.monitor.Acquire()
	if err != nil {
		return toolError(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, toolDeadline)
	defer cancel()

	if in.Query == "" {
		return toolError(slunkerr.New(slunkerr.KindInvalidInput, "query must not be empty"))
	}

	parsed := query.Parse(in.Query, time.Now(), in.TopK)
	results, err := s.engine.Search(ctx, parsed)
	if err != nil {
		return toolError(err)
	}

	counts := map[string]int{}
	var order []string
	for _, r := range results {
		if counts[r.Sender] == 0 {
			order = append(order, r.Sender)
		}
		counts[r.Sender]++
	}
	out := DiscoverPatternsOutput{TopSenders: make([]SenderFrequency, 0, len(order))}
	for _, sender := range order {
		out.TopSenders = append(out.TopSenders, SenderFrequency{Sender: sender, Count: counts[sender]})
	}
	sort.SliceStable(out.TopSenders, func(i, j int) bool {
		return out.TopSenders[i].Count > out.TopSenders[j].Count
	})
	return nil, out, nil
}

// toolError maps a slunkerr.Error (or any error) to an MCP tool-level
// error result. The domain error code (1001 busy, 1002 timeout, 1003
// backend-not-ready) is prefixed onto the text content since CallToolResult
// carries no separate machine-readable error-data field the way a
// protocol-level JSON-RPC error would.
func toolError[T any](err error) (*mcp.CallToolResult, T, error) {
	var zero T
	var se *slunkerr.Error
	code := codeBackendNotReady
	if errors.As(err, &se) {
		switch se.Kind {
		case slunkerr.KindBusy:
			code = codeBusy
		case slunkerr.KindTimeout:
			code = codeTimeout
		case slunkerr.KindInvalidInput:
			code = 0
		}
	}

	text := err.Error()
	if code != 0 {
		text = errorCodePrefix(code) + text
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, zero, nil
}

func errorCodePrefix(code int) string {
	switch code {
	case codeBusy:
		return "[1001 busy] "
	case codeTimeout:
		return "[1002 timeout] "
	default:
		return "[1003 backend_not_ready] "
	}
}
