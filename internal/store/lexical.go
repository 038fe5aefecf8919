package store

import (
	"context"
	"time"

	"github.com/kimjune01/slunk/internal/slunkerr"
)

// LexicalHit is one FTS5 match with its BM25-derived rank (lower is
// better, matching SQLite's `rank` convention), normalized to [0,1] by
// the caller before fusion.
type LexicalHit struct {
	MessageID string
	Rank      float64
}

// LexicalSearch runs an FTS5 MATCH query against message bodies, scoped
// to channelIDs if non-empty.
func (s *Store) LexicalSearch(ctx context.Context, channelIDs []string, query string, topK int) ([]LexicalHit, error) {
	q := `
		SELECT m.id, bm25(messages_fts) AS rank
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		WHERE messages_fts MATCH ?`
	args := []any{query}
	if len(channelIDs) > 0 {
		q += " AND m.channel_id IN (" + placeholders(len(channelIDs)) + ")"
		for _, id := range channelIDs {
			args = append(args, id)
		}
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, topK)

	rows, err := s.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "lexical search")
	}
	defer rows.Close()

	var out []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.MessageID, &h.Rank); err != nil {
			return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "scan lexical hit")
		}
		out = append(out, h)
	}
	return out, nil
}

// GetMessage loads one message row by id, used to hydrate search results.
func (s *Store) GetMessage(ctx context.Context, id string) (Message, error) {
	var m Message
	var ts int64
	var pending int
	err := s.read.QueryRowContext(ctx,
		`SELECT id, channel_id, sender, kind, body, ts_source, content_hash, version, embedding_pending FROM messages WHERE id = ?`,
		id).Scan(&m.ID, &m.ChannelID, &m.Sender, &m.Kind, &m.Body, &ts, &m.ContentHash, &m.Version, &pending)
	if err != nil {
		return Message{}, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "get message")
	}
	m.TsSource = unixTime(ts)
	m.EmbeddingPending = pending != 0
	return m, nil
}

// ListByFilter returns messages matching the given predicate, ordered by
// ts_source desc (most recent first), for the filters-only search path
// where there is no query text to rank by lexical/vector score. sender,
// since, and until are applied only when non-zero/non-empty.
func (s *Store) ListByFilter(ctx context.Context, channelIDs []string, sender string, since, until *time.Time, topK int) ([]Message, error) {
	q := `SELECT id, channel_id, sender, kind, body, ts_source, content_hash, version, embedding_pending FROM messages WHERE 1=1`
	var args []any
	if len(channelIDs) > 0 {
		q += " AND channel_id IN (" + placeholders(len(channelIDs)) + ")"
		for _, id := range channelIDs {
			args = append(args, id)
		}
	}
	if sender != "" {
		q += " AND sender = ?"
		args = append(args, sender)
	}
	if since != nil {
		q += " AND ts_source >= ?"
		args = append(args, since.Unix())
	}
	if until != nil {
		q += " AND ts_source <= ?"
		args = append(args, until.Unix())
	}
	q += " ORDER BY ts_source DESC, id ASC LIMIT ?"
	args = append(args, topK)

	rows, err := s.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "list by filter")
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var ts int64
		var pending int
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.Sender, &m.Kind, &m.Body, &ts, &m.ContentHash, &m.Version, &pending); err != nil {
			return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "scan filtered message")
		}
		m.TsSource = unixTime(ts)
		m.EmbeddingPending = pending != 0
		out = append(out, m)
	}
	return out, nil
}

// ChannelInfo is one row of channel metadata for get_channels.
type ChannelInfo struct {
	ID           string
	WorkspaceID  string
	Name         string
	ChannelType  string
	MessageCount int
}

// ListChannels returns every known channel with its message count.
func (s *Store) ListChannels(ctx context.Context) ([]ChannelInfo, error) {
	rows, err := s.read.QueryContext(ctx, `
		SELECT c.id, c.workspace_id, c.name, c.channel_type, COUNT(m.id)
		FROM channels c
		LEFT JOIN messages m ON m.channel_id = c.id
		GROUP BY c.id
		ORDER BY c.name`)
	if err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "list channels")
	}
	defer rows.Close()

	var out []ChannelInfo
	for rows.Next() {
		var c ChannelInfo
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.ChannelType, &c.MessageCount); err != nil {
			return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "scan channel")
		}
		out = append(out, c)
	}
	return out, nil
}

// Stats summarizes store-wide counts for get_stats.
type Stats struct {
	WorkspaceCount int
	ChannelCount   int
	MessageCount   int
	PendingEmbeds  int
}

// GetStats computes aggregate counts across the store.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspaces`).Scan(&st.WorkspaceCount); err != nil {
		return Stats{}, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "count workspaces")
	}
	if err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&st.ChannelCount); err != nil {
		return Stats{}, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "count channels")
	}
	if err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.MessageCount); err != nil {
		return Stats{}, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "count messages")
	}
	if err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE embedding_pending = 1`).Scan(&st.PendingEmbeds); err != nil {
		return Stats{}, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "count pending embeds")
	}
	return st, nil
}
