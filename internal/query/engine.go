package query

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kimjune01/slunk/internal/metrics"
	"github.com/kimjune01/slunk/internal/slunkerr"
	"github.com/kimjune01/slunk/internal/store"
)

// Store is the subset of *store.Store the engine needs, narrowed for
// testability.
type Store interface {
	LexicalSearch(ctx context.Context, channelIDs []string, query string, topK int) ([]store.LexicalHit, error)
	NearestNeighbors(ctx context.Context, channelIDs []string, query []float32, topK int) ([]store.VectorHit, error)
	GetMessage(ctx context.Context, id string) (store.Message, error)
	ListChannels(ctx context.Context) ([]store.ChannelInfo, error)
	ListByFilter(ctx context.Context, channelIDs []string, sender string, since, until *time.Time, topK int) ([]store.Message, error)
}

// Embedder is the subset of *embed.Gateway the engine needs to embed the
// query text for the vector branch.
type Embedder interface {
	Embed(ctx context.Context, contentHashes []string, texts []string) ([][]float32, error)
}

// Engine executes parsed Requests against the store's lexical and vector
// branches and fuses the results.
type Engine struct {
	store    Store
	embedder Embedder
	weights  Weights
	deadline time.Duration
}

// New constructs an Engine. deadline bounds each Search call; the
// specification's default is 30s.
func New(st Store, embedder Embedder, weights Weights, deadline time.Duration) *Engine {
	if weights.Semantic == 0 && weights.Lexical == 0 {
		weights = Weights{Semantic: 0.6, Lexical: 0.4}
	}
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &Engine{store: st, embedder: embedder, weights: weights, deadline: deadline}
}

// Search runs req's lexical and vector branches concurrently, fuses them,
// and returns up to req.TopK results ordered by fused score.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	start := time.Now()
	defer func() {
		metrics.QueryStageDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	channelIDs := req.ChannelIDs
	if req.Filters.In != "" && len(channelIDs) == 0 {
		resolved, err := e.resolveChannelByName(ctx, req.Filters.In)
		if err != nil {
			return nil, err
		}
		channelIDs = resolved
	}

	if req.Text == "" {
		if !hasFilters(req.Filters) {
			return nil, slunkerr.New(slunkerr.KindInvalidInput, "query text is empty after stripping structured hints")
		}
		// Empty text with non-empty filters: skip the lexical/vector
		// branches entirely and serve the filter predicate directly,
		// ordered by recency.
		msgs, err := e.store.ListByFilter(ctx, channelIDs, req.Filters.From, req.Filters.Since, req.Filters.Until, req.TopK)
		if err != nil {
			return nil, err
		}
		results := make([]Result, 0, len(msgs))
		for _, msg := range msgs {
			results = append(results, Result{
				MessageID: msg.ID,
				ChannelID: msg.ChannelID,
				Sender:    msg.Sender,
				Body:      msg.Body,
				TsSource:  msg.TsSource,
			})
		}
		metrics.QueryResultsTotal.Add(float64(len(results)))
		return results, nil
	}

	var lexHits []store.LexicalHit
	var vecHits []store.VectorHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stageStart := time.Now()
		hits, err := e.store.LexicalSearch(gctx, channelIDs, req.Text, req.TopK*3)
		metrics.QueryStageDuration.WithLabelValues("lexical").Observe(time.Since(stageStart).Seconds())
		if err != nil {
			return err
		}
		lexHits = hits
		return nil
	})
	g.Go(func() error {
		stageStart := time.Now()
		vectors, err := e.embedder.Embed(gctx, []string{queryHash(req.Text)}, []string{req.Text})
		if err != nil {
			return err
		}
		hits, err := e.store.NearestNeighbors(gctx, channelIDs, vectors[0], req.TopK*3)
		metrics.QueryStageDuration.WithLabelValues("vector").Observe(time.Since(stageStart).Seconds())
		if err != nil {
			return err
		}
		vecHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, slunkerr.Wrap(slunkerr.KindTimeout, err, "query exceeded its deadline")
		}
		return nil, err
	}

	fused := fuse(lexHits, vecHits, e.weights)

	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		msg, err := e.store.GetMessage(ctx, f.id)
		if err != nil {
			continue
		}
		if req.Filters.From != "" && msg.Sender != req.Filters.From {
			continue
		}
		if req.Filters.Since != nil && msg.TsSource.Before(*req.Filters.Since) {
			continue
		}
		if req.Filters.Until != nil && msg.TsSource.After(*req.Filters.Until) {
			continue
		}
		results = append(results, Result{
			MessageID: msg.ID,
			ChannelID: msg.ChannelID,
			Sender:    msg.Sender,
			Body:      msg.Body,
			TsSource:  msg.TsSource,
			Score:     f.fused,
			SemScore:  f.semScore,
			LexScore:  f.lexScore,
		})
	}

	// Final order: fused score desc, ties broken by ts_source desc (most
	// recent first), then message id asc for full determinism. ts_source
	// is only known after hydration above, so this sort happens here
	// rather than inside fuse.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].TsSource.Equal(results[j].TsSource) {
			return results[i].TsSource.After(results[j].TsSource)
		}
		return results[i].MessageID < results[j].MessageID
	})
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}

	metrics.QueryResultsTotal.Add(float64(len(results)))
	return results, nil
}

// hasFilters reports whether any structured filter was extracted from the
// query, used to distinguish a genuinely empty query from a filters-only
// one.
func hasFilters(f Filters) bool {
	return f.From != "" || f.In != "" || f.Since != nil || f.Until != nil
}

func (e *Engine) resolveChannelByName(ctx context.Context, name string) ([]string, error) {
	channels, err := e.store.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range channels {
		if c.Name == name {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// queryHash keys the embedder's cache for ad hoc query text: query strings
// aren't message content hashes, so the raw text itself is a fine cache
// key here.
func queryHash(text string) string { return "query:" + text }

type fusedHit struct {
	id       string
	fused    float64
	semScore float64
	lexScore float64
}

// fuse computes w_sem*(1-d_norm) + w_lex*lex_norm over the union of
// lexical and vector hits, sorted by fused score desc, tie-broken by
// message id asc. This ordering is provisional: Search re-sorts the
// hydrated results by (score desc, ts_source desc, id asc) once message
// rows are loaded, since ids here don't carry timestamps yet.
func fuse(lex []store.LexicalHit, vec []store.VectorHit, w Weights) []fusedHit {
	lexNorm := normalizeLexical(lex)
	semNorm := normalizeVector(vec)

	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, h := range lex {
		add(h.MessageID)
	}
	for _, h := range vec {
		add(h.MessageID)
	}

	out := make([]fusedHit, 0, len(ids))
	for _, id := range ids {
		sem := semNorm[id]
		lx := lexNorm[id]
		out = append(out, fusedHit{
			id:       id,
			fused:    w.Semantic*sem + w.Lexical*lx,
			semScore: sem,
			lexScore: lx,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].fused != out[j].fused {
			return out[i].fused > out[j].fused
		}
		return out[i].id < out[j].id
	})
	return out
}

// normalizeLexical maps raw BM25 ranks (lower is better, unbounded) onto
// [0,1] where 1 is best, via min-max normalization over this result set.
func normalizeLexical(hits []store.LexicalHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	min, max := hits[0].Rank, hits[0].Rank
	for _, h := range hits {
		if h.Rank < min {
			min = h.Rank
		}
		if h.Rank > max {
			max = h.Rank
		}
	}
	spread := max - min
	for _, h := range hits {
		if spread == 0 {
			out[h.MessageID] = 1
			continue
		}
		out[h.MessageID] = 1 - (h.Rank-min)/spread
	}
	return out
}

// normalizeVector turns a distance metric (lower is closer) into a
// [0,1] similarity score 1-d_norm, per the fusion formula's d_norm term.
func normalizeVector(hits []store.VectorHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	maxDist := hits[0].Distance
	for _, h := range hits {
		if h.Distance > maxDist {
			maxDist = h.Distance
		}
	}
	for _, h := range hits {
		dNorm := 0.0
		if maxDist > 0 {
			dNorm = h.Distance / maxDist
		}
		out[h.MessageID] = 1 - dNorm
	}
	return out
}
