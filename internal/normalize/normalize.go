// Package normalize cleans raw captured message text and derives the
// dedup identity (content hash, dedup key) the store uses to recognize a
// message it has already ingested. Grounded on the teacher's
// internal/rag/ingest preprocessing pipeline, generalized from document
// text to chat messages (mentions, reactions, ts_bucket).
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/kimjune01/slunk/internal/parser"
)

var (
	whitespaceRe = regexp.MustCompile(`(?m)[\t\x0b\x0c\r ]+`)
	lineEdgeRe   = regexp.MustCompile(` *\n *`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	mentionRe    = regexp.MustCompile(`@([A-Za-z0-9_.\-]+)`)
	joinLeaveRe  = regexp.MustCompile(`(?i)^(has joined|has left|joined the channel|left the channel)`)
)

// TsBucket is the granularity content hashing buckets message timestamps
// to, so that client-side clock jitter of a few seconds doesn't defeat
// dedup. Resolves an open question from the design notes: bucketing to
// the minute tolerates realistic UI timestamp precision (most clients
// only expose minute-resolution timestamps anyway) while still
// separating genuinely distinct messages sent a while apart.
const TsBucket = time.Minute

// NormalizedMessage is a RawMessage after whitespace cleanup, mention
// extraction, and hash computation — the unit C6 writes to the store.
type NormalizedMessage struct {
	Sender       string
	TsBucket     time.Time
	Body         string
	Kind         parser.Kind
	Mentions     []string
	Reactions    map[string]int
	Attachments  []string
	ContentHash  string
	DedupKey     DedupKey
	Truncated    bool
}

// DedupKey identifies a message for dedup purposes, scoped to a channel.
type DedupKey struct {
	ChannelID   string
	Sender      string
	TsBucket    time.Time
	ContentHash string
}

// whitespace collapses horizontal whitespace, drops it at the start and
// end of each line, normalizes newlines, and trims the result. It is
// idempotent: normalizing twice yields the same string as normalizing once.
func whitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = lineEdgeRe.ReplaceAllString(s, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ExtractMentions returns the distinct @mention handles in s, in first-seen
// order.
func ExtractMentions(s string) []string {
	matches := mentionRe.FindAllStringSubmatch(s, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		handle := m[1]
		if !seen[handle] {
			seen[handle] = true
			out = append(out, handle)
		}
	}
	return out
}

// isShortSystemNoise reports whether a system-kind message is the kind of
// join/leave chatter §4.3 says to drop at normalization time: short
// (<10 chars) or matching a join/leave pattern.
func isShortSystemNoise(kind parser.Kind, body string) bool {
	if kind != parser.KindSystem {
		return false
	}
	if len(strings.TrimSpace(body)) < 10 {
		return true
	}
	return joinLeaveRe.MatchString(strings.TrimSpace(body))
}

// Normalize cleans raw and computes its hash/dedup key, or returns
// ok=false if raw should be dropped entirely (short system noise).
// maxValueChars truncates over-long bodies with a trailing ellipsis
// before hashing, so re-ingesting the same over-long message is
// idempotent.
func Normalize(channelID string, raw parser.RawMessage, maxValueChars int) (NormalizedMessage, bool) {
	body := whitespace(raw.Body)
	if isShortSystemNoise(raw.Kind, body) {
		return NormalizedMessage{}, false
	}

	truncated := false
	if maxValueChars > 0 && len(body) > maxValueChars {
		body = body[:maxValueChars] + "…"
		truncated = true
	}

	bucket := raw.ParsedAt.Truncate(TsBucket)

	hash := ContentHash(raw.Sender, bucket, body)

	return NormalizedMessage{
		Sender:      raw.Sender,
		TsBucket:    bucket,
		Body:        body,
		Kind:        raw.Kind,
		Mentions:    ExtractMentions(body),
		Reactions:   raw.Reactions,
		Attachments: raw.Attachments,
		ContentHash: hash,
		DedupKey: DedupKey{
			ChannelID:   channelID,
			Sender:      raw.Sender,
			TsBucket:    bucket,
			ContentHash: hash,
		},
		Truncated: truncated,
	}, true
}
