package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kimjune01/slunk/internal/normalize"
	"github.com/kimjune01/slunk/internal/parser"
	"github.com/kimjune01/slunk/internal/slunkerr"
)

// Outcome reports what UpsertMessage did with one normalized message, the
// four outcomes the ingestion coordinator counts and reports.
type Outcome string

const (
	OutcomeNew              Outcome = "new"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeUpdated          Outcome = "updated"
	OutcomeReactionsUpdated Outcome = "reactions_updated"
)

// Message is a stored row as read back by query/lookup paths.
type Message struct {
	ID              string
	ChannelID       string
	Sender          string
	Kind            string
	Body            string
	TsSource        time.Time
	ContentHash     string
	Version         int
	EmbeddingPending bool
}

// EnsureWorkspace returns the id of the workspace named name, creating it
// if absent.
func (s *Store) EnsureWorkspace(ctx context.Context, name string) (string, error) {
	var id string
	err := s.write.QueryRowContext(ctx, `SELECT id FROM workspaces WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "lookup workspace")
	}
	id = uuid.NewString()
	_, err = s.write.ExecContext(ctx,
		`INSERT INTO workspaces(id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().Unix())
	if err != nil {
		return "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "insert workspace")
	}
	return id, nil
}

// EnsureChannel returns the id of a channel in workspaceID, creating it if
// absent. A channel's identity is (workspace_id, name, channel_type), so a
// channel and its same-named thread pane never collide. threadParentID is
// "" for a regular channel.
func (s *Store) EnsureChannel(ctx context.Context, workspaceID, name string, channelType parser.ChannelType, threadParentID string) (string, error) {
	var id string
	err := s.write.QueryRowContext(ctx,
		`SELECT id FROM channels WHERE workspace_id = ? AND name = ? AND channel_type = ?`,
		workspaceID, name, string(channelType)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "lookup channel")
	}
	id = uuid.NewString()
	_, err = s.write.ExecContext(ctx,
		`INSERT INTO channels(id, workspace_id, name, channel_type, thread_parent_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, workspaceID, name, string(channelType), nullIfEmpty(threadParentID), time.Now().Unix())
	if err != nil {
		return "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "insert channel")
	}
	return id, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// UpsertMessage applies one normalized message to the store inside a
// single transaction: identity lookup by (channel_id, sender, ts_bucket) —
// content_hash is deliberately excluded from the identity lookup, since an
// edited message keeps the same identity but changes its hash — then
// insert / edit / reaction-merge / no-op as appropriate. tsSource is the
// message's original (unbucketed) timestamp.
func (s *Store) UpsertMessage(ctx context.Context, channelID string, msg normalize.NormalizedMessage, tsSource time.Time) (string, Outcome, error) {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "begin transaction")
	}
	defer tx.Rollback()

	var existingID, existingHash string
	var existingVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT id, content_hash, version FROM messages WHERE channel_id = ? AND sender = ? AND ts_bucket = ?`,
		channelID, msg.Sender, msg.TsBucket.Unix()).Scan(&existingID, &existingHash, &existingVersion)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id := uuid.NewString()
		now := time.Now().Unix()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages(id, channel_id, sender, kind, body, ts_source, ts_bucket, content_hash, version, embedding_pending, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, 1, ?, ?)`,
			id, channelID, msg.Sender, string(msg.Kind), msg.Body, tsSource.Unix(), msg.TsBucket.Unix(), msg.ContentHash, now, now)
		if err != nil {
			return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "insert message")
		}
		if err := writeSideTables(ctx, tx, id, msg); err != nil {
			return "", "", err
		}
		if err := tx.Commit(); err != nil {
			return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "commit insert")
		}
		return id, OutcomeNew, nil

	case err != nil:
		return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "dedup lookup")
	}

	// A row already exists with this identity. A changed content_hash means
	// the body was edited; only a reaction change can explain a difference
	// when the hash is unchanged.
	if existingHash != msg.ContentHash {
		now := time.Now().Unix()
		newVersion := existingVersion + 1
		_, err = tx.ExecContext(ctx,
			`UPDATE messages SET body = ?, content_hash = ?, version = ?, embedding_pending = 1, updated_at = ? WHERE id = ?`,
			msg.Body, msg.ContentHash, newVersion, now, existingID)
		if err != nil {
			return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "update edited message")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE message_id = ?`, existingID); err != nil {
			return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "clear stale embedding")
		}
		if err := mergeReactions(ctx, tx, existingID, msg.Reactions); err != nil {
			return "", "", err
		}
		if err := tx.Commit(); err != nil {
			return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "commit edit")
		}
		return existingID, OutcomeUpdated, nil
	}

	changed, err := reactionsChanged(ctx, tx, existingID, msg.Reactions)
	if err != nil {
		return "", "", err
	}
	if !changed {
		if err := tx.Commit(); err != nil {
			return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "commit no-op")
		}
		return existingID, OutcomeDuplicate, nil
	}

	if err := mergeReactions(ctx, tx, existingID, msg.Reactions); err != nil {
		return "", "", err
	}
	// Reaction-only changes do not bump version or touch embedding_pending:
	// the edit law (version+1, re-embed) belongs to a content_hash change.
	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET updated_at = ? WHERE id = ?`, time.Now().Unix(), existingID); err != nil {
		return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "touch reaction update")
	}
	if err := tx.Commit(); err != nil {
		return "", "", slunkerr.Wrap(slunkerr.KindStoreTransient, err, "commit reaction update")
	}
	return existingID, OutcomeReactionsUpdated, nil
}

func writeSideTables(ctx context.Context, tx *sql.Tx, messageID string, msg normalize.NormalizedMessage) error {
	for handle := range uniqueStrings(msg.Mentions) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO mentions(message_id, handle) VALUES (?, ?)`, messageID, handle); err != nil {
			return slunkerr.Wrap(slunkerr.KindStoreTransient, err, "insert mention")
		}
	}
	for i, name := range msg.Attachments {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO attachments(message_id, name, position) VALUES (?, ?, ?)`, messageID, name, i); err != nil {
			return slunkerr.Wrap(slunkerr.KindStoreTransient, err, "insert attachment")
		}
	}
	for emoji, count := range msg.Reactions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reactions(message_id, emoji, count) VALUES (?, ?, ?)`, messageID, emoji, count); err != nil {
			return slunkerr.Wrap(slunkerr.KindStoreTransient, err, "insert reaction")
		}
	}
	return nil
}

func uniqueStrings(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}

func reactionsChanged(ctx context.Context, tx *sql.Tx, messageID string, next map[string]int) (bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT emoji, count FROM reactions WHERE message_id = ?`, messageID)
	if err != nil {
		return false, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "read reactions")
	}
	defer rows.Close()

	existing := map[string]int{}
	for rows.Next() {
		var emoji string
		var count int
		if err := rows.Scan(&emoji, &count); err != nil {
			return false, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "scan reaction")
		}
		existing[emoji] = count
	}
	if len(existing) != len(next) {
		return true, nil
	}
	for emoji, count := range next {
		if existing[emoji] != count {
			return true, nil
		}
	}
	return false, nil
}

// mergeReactions replaces the stored reaction counts with next. A count
// that drops to zero (an emoji with no remaining reactors) is deleted
// rather than stored as zero: the decision recorded for the "reaction
// count decrease" open question is to let the observed state win outright
// rather than try to reconstruct a removal history we never captured.
func mergeReactions(ctx context.Context, tx *sql.Tx, messageID string, next map[string]int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE message_id = ?`, messageID); err != nil {
		return slunkerr.Wrap(slunkerr.KindStoreTransient, err, "clear reactions")
	}
	for emoji, count := range next {
		if count <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reactions(message_id, emoji, count) VALUES (?, ?, ?)`, messageID, emoji, count); err != nil {
			return slunkerr.Wrap(slunkerr.KindStoreTransient, err, fmt.Sprintf("insert reaction %q", emoji))
		}
	}
	return nil
}

// PendingEmbeddings returns up to limit message ids/bodies still awaiting
// an embedding, for the sweeper to retry.
func (s *Store) PendingEmbeddings(ctx context.Context, limit int) ([]Message, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, channel_id, sender, kind, body, ts_source, content_hash, version, embedding_pending
		 FROM messages WHERE embedding_pending = 1 LIMIT ?`, limit)
	if err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "query pending embeddings")
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var ts int64
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.Sender, &m.Kind, &m.Body, &ts, &m.ContentHash, &m.Version, &m.EmbeddingPending); err != nil {
			return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "scan pending embedding")
		}
		m.TsSource = time.Unix(ts, 0)
		out = append(out, m)
	}
	return out, nil
}

// MarkEmbedded stores a message's vector and clears its pending flag.
func (s *Store) MarkEmbedded(ctx context.Context, messageID string, vector []float32, contentHash string) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return slunkerr.Wrap(slunkerr.KindStoreTransient, err, "begin embed transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings(message_id, dim, vector, content_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		messageID, len(vector), encodeVector(vector), contentHash, time.Now().Unix()); err != nil {
		return slunkerr.Wrap(slunkerr.KindStoreTransient, err, "insert embedding")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET embedding_pending = 0 WHERE id = ?`, messageID); err != nil {
		return slunkerr.Wrap(slunkerr.KindStoreTransient, err, "clear embedding_pending")
	}
	if err := tx.Commit(); err != nil {
		return slunkerr.Wrap(slunkerr.KindStoreTransient, err, "commit embed")
	}
	return nil
}
