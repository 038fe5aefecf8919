// Package ingest implements the ingestion coordinator (C6): the single
// writer that turns a parser.ConversationSnapshot into store rows,
// dedup'd and embedded. Grounded on the teacher's internal/rag/service
// pipeline shape (stage-timed steps, functional Option construction),
// generalized from document ingestion to chat snapshots and rewired onto
// Prometheus/OTel instead of the teacher's pluggable Metrics interface.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kimjune01/slunk/internal/embed"
	"github.com/kimjune01/slunk/internal/metrics"
	"github.com/kimjune01/slunk/internal/normalize"
	"github.com/kimjune01/slunk/internal/parser"
	"github.com/kimjune01/slunk/internal/slunkerr"
	"github.com/kimjune01/slunk/internal/store"
)

// Store is the subset of *store.Store the coordinator needs, narrowed so
// tests can supply a fake.
type Store interface {
	EnsureWorkspace(ctx context.Context, name string) (string, error)
	EnsureChannel(ctx context.Context, workspaceID, name string, channelType parser.ChannelType, threadParentID string) (string, error)
	UpsertMessage(ctx context.Context, channelID string, msg normalize.NormalizedMessage, tsSource time.Time) (string, store.Outcome, error)
	MarkEmbedded(ctx context.Context, messageID string, vector []float32, contentHash string) error
}

// Embedder is the subset of *embed.Gateway the coordinator needs.
type Embedder interface {
	Embed(ctx context.Context, contentHashes []string, texts []string) ([][]float32, error)
}

// Options configures Coordinator construction.
type Options struct {
	MaxValueChars     int
	EmbedQueueHighWater int
}

// Coordinator is the single-writer ingestion pipeline: one instance per
// process, called from the monitor loop with each new snapshot.
type Coordinator struct {
	store    Store
	embedder Embedder
	tracer   trace.Tracer
	log      zerolog.Logger
	opt      Options

	pendingGauge func(n int)
}

// New constructs a Coordinator.
func New(st Store, embedder Embedder, tracer trace.Tracer, log zerolog.Logger, opt Options) *Coordinator {
	if opt.MaxValueChars <= 0 {
		opt.MaxValueChars = 1_000_000
	}
	if opt.EmbedQueueHighWater <= 0 {
		opt.EmbedQueueHighWater = 500
	}
	return &Coordinator{store: st, embedder: embedder, tracer: tracer, log: log, opt: opt}
}

// Result summarizes one IngestSnapshot call.
type Result struct {
	Outcomes map[store.Outcome]int
}

// IngestSnapshot writes every message in snap to the store: one
// transaction per message (inside Store.UpsertMessage), so a snapshot's
// messages are not committed together and an error mid-snapshot leaves the
// earlier messages written. Embedding writes happen in a separate pass
// after the message rows commit, and a failed embed just leaves
// embedding_pending set rather than failing the whole snapshot.
func (c *Coordinator) IngestSnapshot(ctx context.Context, snap parser.ConversationSnapshot) (Result, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "ingest.snapshot",
		trace.WithAttributes(
			attribute.String("channel", snap.Channel),
			attribute.String("workspace", snap.Workspace),
			attribute.Int("message_count", len(snap.Messages)),
		))
	defer span.End()

	wsID, err := c.store.EnsureWorkspace(ctx, snap.Workspace)
	if err != nil {
		return Result{}, err
	}
	chID, err := c.store.EnsureChannel(ctx, wsID, snap.Channel, snap.ChannelType, snap.ThreadParentID)
	if err != nil {
		return Result{}, err
	}

	res := Result{Outcomes: map[store.Outcome]int{}}
	var toEmbed []pendingEmbed

	for _, raw := range snap.Messages {
		_, childSpan := c.tracer.Start(ctx, "ingest.message")

		norm, ok := normalize.Normalize(chID, raw, c.opt.MaxValueChars)
		if !ok {
			childSpan.End()
			continue
		}

		id, outcome, err := c.store.UpsertMessage(ctx, chID, norm, raw.ParsedAt)
		childSpan.SetAttributes(attribute.String("outcome", string(outcome)))
		childSpan.End()
		if err != nil {
			metrics.IngestOutcomesTotal.WithLabelValues("error").Inc()
			return res, err
		}

		res.Outcomes[outcome]++
		metrics.IngestOutcomesTotal.WithLabelValues(string(outcome)).Inc()

		if outcome == store.OutcomeNew || outcome == store.OutcomeUpdated {
			toEmbed = append(toEmbed, pendingEmbed{id: id, hash: norm.ContentHash, body: norm.Body})
		}
	}

	if len(toEmbed) > c.opt.EmbedQueueHighWater {
		// Back-pressure: text-only ingestion already committed above; skip
		// embedding this pass and let the sweeper pick these up later.
		c.log.Warn().Int("pending", len(toEmbed)).Msg("embed queue over high water mark, deferring to sweeper")
	} else {
		c.embedBatch(ctx, toEmbed)
	}

	metrics.IngestStageDuration.WithLabelValues("snapshot").Observe(time.Since(start).Seconds())
	return res, nil
}

type pendingEmbed struct {
	id   string
	hash string
	body string
}

func (c *Coordinator) embedBatch(ctx context.Context, pending []pendingEmbed) {
	if len(pending) == 0 {
		return
	}
	hashes := make([]string, len(pending))
	texts := make([]string, len(pending))
	for i, p := range pending {
		hashes[i] = p.hash
		texts[i] = p.body
	}

	vectors, err := c.embedder.Embed(ctx, hashes, texts)
	if err != nil {
		// Embedding_pending stays true; the sweeper will retry. Every
		// embed error, a dimension mismatch included, ends here and is
		// not returned to the caller; only EmbedFailure-kind errors are
		// logged.
		var e *slunkerr.Error
		if errors.As(err, &e) && e.Kind == slunkerr.KindEmbedFailure {
			c.log.Error().Err(err).Int("count", len(pending)).Msg("embedding failed, left pending for sweeper")
		}
		return
	}

	for i, p := range pending {
		if err := c.store.MarkEmbedded(ctx, p.id, vectors[i], p.hash); err != nil {
			c.log.Error().Err(err).Str("message_id", p.id).Msg("failed to persist embedding")
		}
	}
}
