// Package parser walks an accessibility tree (internal/accessibility/tree)
// rooted at a chat client's conversation pane and turns it into a
// structured ConversationSnapshot: ordered messages with stable identity,
// ready for normalization and ingestion.
package parser

import "time"

// Kind classifies a captured message. It is a closed tagged variant,
// dispatched by value rather than subclassed.
type Kind string

const (
	KindUser   Kind = "user"
	KindBot    Kind = "bot"
	KindSystem Kind = "system"
)

// ChannelType distinguishes a regular channel pane from a thread-reply pane.
type ChannelType string

const (
	ChannelTypeChannel ChannelType = "channel"
	ChannelTypeThread   ChannelType = "thread"
)

// RawMessage is one row extracted from the accessibility tree before
// normalization. Timestamps here are best-effort: ParsedAt is set only
// when the timestamp chain matched something.
type RawMessage struct {
	ElementPath   string // not set by Walk; dedup keys on sender, ts bucket and content hash instead
	Sender        string
	RawTimestamp  string
	ParsedAt      time.Time
	HasParsedTime bool
	Body          string
	Kind          Kind
	Mentions      []string
	Reactions     map[string]int
	Attachments   []string
	ThreadParentID string
}

// ConversationSnapshot is everything the parser extracted from one walk of
// one pane.
type ConversationSnapshot struct {
	Workspace      string
	Channel        string
	ChannelType    ChannelType
	ThreadParentID string
	CapturedAt     time.Time
	Messages       []RawMessage
}
