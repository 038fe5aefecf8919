package ingest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/kimjune01/slunk/internal/metrics"
	"github.com/kimjune01/slunk/internal/store"
)

// SweeperStore is the subset of *store.Store the background sweeper needs.
type SweeperStore interface {
	PendingEmbeddings(ctx context.Context, limit int) ([]store.Message, error)
	MarkEmbedded(ctx context.Context, messageID string, vector []float32, contentHash string) error
}

// Sweeper retries messages left with embedding_pending=true after a
// transient embed failure, with exponential backoff per pass and
// unbounded passes across the process lifetime.
type Sweeper struct {
	store    SweeperStore
	embedder Embedder
	log      zerolog.Logger
	interval time.Duration
	batch    int
}

// NewSweeper constructs a Sweeper. interval is the fixed tick between
// passes, whether or not anything is pending; batch caps how many pending
// messages one pass attempts.
func NewSweeper(st SweeperStore, embedder Embedder, log zerolog.Logger, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &Sweeper{store: st, embedder: embedder, log: log, interval: interval, batch: batch}
}

// Run loops until ctx is canceled, sweeping pending embeddings each pass.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	pending, err := s.store.PendingEmbeddings(ctx, s.batch)
	if err != nil {
		s.log.Error().Err(err).Msg("sweeper: failed to list pending embeddings")
		return
	}
	metrics.EmbedPendingGauge.Set(float64(len(pending)))
	if len(pending) == 0 {
		return
	}

	bo := newSweepBackoff()
	hashes := make([]string, len(pending))
	texts := make([]string, len(pending))
	for i, m := range pending {
		hashes[i] = m.ContentHash
		texts[i] = m.Body
	}

	var vectors [][]float32
	var embedErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.NextBackOff()):
			}
		}
		vectors, embedErr = s.embedder.Embed(ctx, hashes, texts)
		if embedErr == nil {
			break
		}
	}
	if embedErr != nil {
		s.log.Warn().Err(embedErr).Int("count", len(pending)).Msg("sweeper: embedding still failing, retrying next pass")
		return
	}

	for i, m := range pending {
		if err := s.store.MarkEmbedded(ctx, m.ID, vectors[i], m.ContentHash); err != nil {
			s.log.Error().Err(err).Str("message_id", m.ID).Msg("sweeper: failed to persist embedding")
		}
	}
}

// newSweepBackoff builds the same 100ms-doubling retry policy the
// embedding gateway uses for a single call, reused here across a sweep
// pass's attempts.
func newSweepBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.1
	return b
}
