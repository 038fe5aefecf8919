// Package query implements the query engine (C7): natural-language query
// parsing plus a lexical + vector hybrid search over the store. The
// candidate fan-out / union-by-id / deterministic-sort shape follows the
// teacher's internal/rag/retrieve package (candidates.go, fusion.go),
// adapted from Reciprocal Rank Fusion over ranks to the specification's
// explicit weighted-score fusion.
package query

import "time"

// Filters are the structured hints parse.go extracts from a query string.
type Filters struct {
	From  string     // sender handle, from "from:<handle>"
	In    string     // channel name, from "in:<channel>"
	Since *time.Time // lower bound, from "since:<date>" or "last N ..."
	Until *time.Time // upper bound, from "until:<date>"
}

// Request is one parsed query ready for execution.
type Request struct {
	RawQuery   string
	Text       string // query text with structured hints stripped
	Filters    Filters
	ChannelIDs []string // resolved from Filters.In, empty means "all channels"
	TopK       int
}

// Weights controls the fusion formula's relative weighting of the
// semantic and lexical branches: w_sem*(1-d_norm) + w_lex*lex_norm.
type Weights struct {
	Semantic float64
	Lexical  float64
}

// Result is one ranked hit returned to a caller.
type Result struct {
	MessageID string
	ChannelID string
	Sender    string
	Body      string
	TsSource  time.Time
	Score     float64
	SemScore  float64
	LexScore  float64
}
