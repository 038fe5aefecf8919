// Command slunkd is the single binary that runs slunk. It starts either as
// an MCP stdio server or as a foreground accessibility-tree monitor; both
// modes share one app.App built from the same config.Config.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kimjune01/slunk/internal/accessibility/cdp"
	"github.com/kimjune01/slunk/internal/accessibility/tree"
	"github.com/kimjune01/slunk/internal/app"
	"github.com/kimjune01/slunk/internal/config"
	"github.com/kimjune01/slunk/internal/embed"
)

func main() {
	mcpFlag := flag.Bool("mcp", false, "run as an MCP stdio server")
	watchFlag := flag.Bool("watch", false, "run the foreground accessibility-tree monitor")
	tickSeconds := flag.Int("tick-seconds", 5, "monitor poll interval in seconds")
	cdpRemoteURL := flag.String("cdp-remote-url", "", "ws:// DevTools endpoint of a running Chromium chat client; launches a local headless instance when empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("slunkd: config: %v", err)
	}

	mcpMode := *mcpFlag || cfg.MCPMode
	watchMode := *watchFlag
	if !mcpMode && !watchMode {
		fmt.Fprintln(os.Stderr, "slunkd: pass --mcp (or set MCP_MODE=1) to serve MCP tools, or --watch to run the accessibility-tree monitor")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	encoder := buildEncoder()

	var observerTree tree.Tree
	if watchMode {
		remote := strings.TrimSpace(*cdpRemoteURL)
		if remote == "" {
			remote = strings.TrimSpace(os.Getenv("SLUNK_CDP_REMOTE_URL"))
		}
		adapter, err := cdp.New(ctx, cdp.Options{
			RemoteURL:    remote,
			Bounds:       tree.Bounds{MaxChildren: cfg.MaxChildren, MaxValue: cfg.MaxValueChars},
			ReadDeadline: time.Duration(cfg.Deadlines.TreeReadMS) * time.Millisecond,
		})
		if err != nil {
			log.Fatalf("slunkd: connect accessibility tree: %v", err)
		}
		observerTree = adapter
	}

	a, err := app.New(ctx, cfg, encoder, observerTree)
	if err != nil {
		log.Fatalf("slunkd: init: %v", err)
	}

	runErr := make(chan error, 1)
	go func() {
		if watchMode {
			runErr <- a.RunMonitor(ctx, time.Duration(*tickSeconds)*time.Second)
			return
		}
		runErr <- a.RunMCP(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil {
			log.Printf("slunkd: run: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Printf("slunkd: shutdown: %v", err)
	}
}

// buildEncoder wires the embedding HTTP client from environment variables,
// matching the other external collaborators (DB path, log path) that
// config.Load resolves with defaults.
func buildEncoder() embed.Encoder {
	baseURL := strings.TrimSpace(os.Getenv("SLUNK_EMBED_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	path := strings.TrimSpace(os.Getenv("SLUNK_EMBED_PATH"))
	if path == "" {
		path = "/v1/embeddings"
	}
	model := strings.TrimSpace(os.Getenv("SLUNK_EMBED_MODEL"))
	if model == "" {
		model = "nomic-embed-text"
	}
	return &embed.HTTPEncoder{
		BaseURL: baseURL,
		Path:    path,
		Model:   model,
		APIKey:  strings.TrimSpace(os.Getenv("SLUNK_EMBED_API_KEY")),
	}
}
