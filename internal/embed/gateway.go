// Package embed wraps an external embedding encoder (the pure
// encode(text) -> vector[D] function the specification treats as
// external) with batching, an in-process content-hash cache, and
// transient-error retry. Grounded on the teacher's internal/embedding
// HTTP client, generalized from a single-shot HTTP call into a gateway
// with caching and backoff.
package embed

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kimjune01/slunk/internal/slunkerr"
)

// Encoder is the external encoder boundary: given non-empty texts, it
// returns one vector per input, in order.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures Gateway construction.
type Options struct {
	Dimension  int
	BatchSize  int
	CacheSize  int
}

// Gateway is the process-wide embedding entry point: C6 and C7 call
// Embed, never the raw Encoder.
type Gateway struct {
	encoder   Encoder
	dimension int
	batchSize int
	cache     *lruCache
}

// New constructs a Gateway. encoder is typically an HTTP-backed Encoder;
// tests use a fake.
func New(encoder Encoder, opt Options) *Gateway {
	if opt.BatchSize <= 0 {
		opt.BatchSize = 16
	}
	if opt.CacheSize <= 0 {
		opt.CacheSize = 1000
	}
	return &Gateway{
		encoder:   encoder,
		dimension: opt.Dimension,
		batchSize: opt.BatchSize,
		cache:     newLRUCache(opt.CacheSize),
	}
}

// Embed encodes texts, keyed externally by contentHashes of equal length,
// batching up to the configured batch size and serving repeats from
// cache. Order of the returned slice matches texts/contentHashes.
func (g *Gateway) Embed(ctx context.Context, contentHashes []string, texts []string) ([][]float32, error) {
	if len(texts) != len(contentHashes) {
		return nil, slunkerr.New(slunkerr.KindInvalidInput, "content hashes and texts must be the same length")
	}
	if len(texts) == 0 {
		return nil, slunkerr.New(slunkerr.KindInvalidInput, "no texts to embed")
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, slunkerr.New(slunkerr.KindInvalidInput, "cannot embed empty or whitespace-only text")
		}
		if v, ok := g.cache.get(contentHashes[i]); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	for start := 0; start < len(missTexts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch := missTexts[start:end]
		vectors, err := g.encodeWithRetry(ctx, batch)
		if err != nil {
			return nil, err
		}
		for j, v := range vectors {
			if g.dimension > 0 && len(v) != g.dimension {
				return nil, slunkerr.New(slunkerr.KindEmbedFailure,
					"encoder returned a vector of the wrong dimension",
					"check embedding_dim matches the configured encoder model")
			}
			idx := missIdx[start+j]
			out[idx] = v
			g.cache.put(contentHashes[idx], v)
		}
	}

	return out, nil
}

// newEmbedBackoff builds the shared retry policy: 100ms initial interval,
// doubling, the same shape C6's sweeper uses for failed embeds.
func newEmbedBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.1
	return b
}

// encodeWithRetry wraps a single encoder call in the shared retry policy,
// capped at 3 attempts.
func (g *Gateway) encodeWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	bo := newEmbedBackoff()
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(bo.NextBackOff()):
			}
		}
		vectors, err := g.encoder.Encode(ctx, texts)
		if err != nil {
			lastErr = err
			continue
		}
		if len(vectors) != len(texts) {
			lastErr = slunkerr.New(slunkerr.KindEmbedFailure, "encoder returned a mismatched vector count")
			continue
		}
		return vectors, nil
	}
	return nil, slunkerr.Wrap(slunkerr.KindEmbedFailure, lastErr, "encoder failed after retries")
}
