// Package app wires components C1-C8 from a loaded Config into one
// process-wide App with explicit Init -> Run -> Shutdown lifecycle,
// mirroring the teacher's services.go composition root.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kimjune01/slunk/internal/accessibility/tree"
	"github.com/kimjune01/slunk/internal/config"
	"github.com/kimjune01/slunk/internal/embed"
	"github.com/kimjune01/slunk/internal/ingest"
	"github.com/kimjune01/slunk/internal/observability"
	"github.com/kimjune01/slunk/internal/parser"
	"github.com/kimjune01/slunk/internal/query"
	"github.com/kimjune01/slunk/internal/resource"
	"github.com/kimjune01/slunk/internal/store"
	"github.com/kimjune01/slunk/internal/tools"
)

// App holds every long-lived component, wired once at New and stopped
// once at Shutdown.
type App struct {
	cfg config.Config

	store       *store.Store
	embedGW     *embed.Gateway
	coordinator *ingest.Coordinator
	sweeper     *ingest.Sweeper
	engine      *query.Engine
	monitor     *resource.Monitor
	toolServer  *tools.Server
	tree        tree.Tree

	shutdownTracing func(context.Context) error
}

// New builds every component from cfg. encoder and observerTree are the
// two external collaborators the specification doesn't own: the
// embedding model and the accessibility backend.
func New(ctx context.Context, cfg config.Config, encoder embed.Encoder, observerTree tree.Tree) (*App, error) {
	log := observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(ctx, "dev", os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	st, err := store.Open(ctx, store.Options{
		Path:         cfg.DBPath,
		WriteCacheMB: cfg.WriteCacheMB,
		MmapMB:       cfg.MmapMB,
		VectorMetric: cfg.VectorMetric,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	gw := embed.New(encoder, embed.Options{
		Dimension: cfg.EmbeddingDim,
		BatchSize: cfg.EmbeddingBatch,
		CacheSize: 2000,
	})

	tracer := observability.Tracer()
	coordinator := ingest.New(st, gw, tracer, log, ingest.Options{
		MaxValueChars:       cfg.MaxValueChars,
		EmbedQueueHighWater: cfg.EmbedQueueHighWater,
	})
	sweeper := ingest.NewSweeper(st, gw, log, 30*time.Second, 50)

	engine := query.New(st, gw, query.Weights{
		Semantic: cfg.QueryWeights.Semantic,
		Lexical:  cfg.QueryWeights.Lexical,
	}, time.Duration(cfg.Deadlines.QueryMS)*time.Millisecond)

	monitor := resource.New(resource.Options{MaxInFlight: 50})

	toolServer := tools.New(engine, st, monitor, log, "0.1.0")

	return &App{
		cfg:             cfg,
		store:           st,
		embedGW:         gw,
		coordinator:     coordinator,
		sweeper:         sweeper,
		engine:          engine,
		monitor:         monitor,
		toolServer:      toolServer,
		tree:            observerTree,
		shutdownTracing: shutdownTracing,
	}, nil
}

// RunMCP serves the MCP tool surface over stdio until ctx is canceled.
// The sweeper runs alongside it so embeddings deferred under back-pressure
// still complete.
func (a *App) RunMCP(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { a.sweeper.Run(ctx); return nil })
	g.Go(func() error { return a.toolServer.Run(ctx) })
	return g.Wait()
}

// RunMonitor runs the observer loop: walk the accessibility tree on each
// tick, ingest the resulting snapshot, repeat until ctx is canceled. This
// realizes the "cooperative scheduler" of the design notes as goroutines
// plus context cancellation.
func (a *App) RunMonitor(ctx context.Context, tickInterval time.Duration) error {
	if tickInterval <= 0 {
		tickInterval = 5 * time.Second
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { a.sweeper.Run(ctx); return nil })
	g.Go(func() error {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := a.observeOnce(ctx); err != nil {
					continue
				}
			}
		}
	})
	return g.Wait()
}

func (a *App) observeOnce(ctx context.Context) error {
	snap, err := parser.Walk(ctx, a.tree, time.Now())
	if err != nil {
		return err
	}
	_, err = a.coordinator.IngestSnapshot(ctx, snap)
	return err
}

// Shutdown flushes the tracer and closes the accessibility tree and the
// store. Background loops stop when the context given to RunMCP or
// RunMonitor is canceled, not here.
func (a *App) Shutdown(ctx context.Context) error {
	if a.shutdownTracing != nil {
		_ = a.shutdownTracing(ctx)
	}
	if a.tree != nil {
		_ = a.tree.Close()
	}
	return a.store.Close()
}
