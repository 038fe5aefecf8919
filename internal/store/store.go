// Package store implements the durable message store (C4): a single
// SQLite database under the user's app-data directory, migrated with
// goose, written through a single-writer connection pool and read through
// a separate multi-reader pool, per WAL semantics. Grounded on the
// pack's leapmux-leapmux internal/hub/db package, generalized from a
// generic hub store to messages/reactions/mentions/embeddings.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/kimjune01/slunk/internal/slunkerr"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Options configures Open. Cache/mmap sizes and the vector metric come
// straight from internal/config.Config.
type Options struct {
	Path         string
	WriteCacheMB int
	MmapMB       int
	VectorMetric string // "cosine" or "l2"
}

// Store owns the database connections and the background maintenance
// loop. It is a process-wide singleton with explicit Open/Close.
type Store struct {
	write        *sql.DB
	read         *sql.DB
	vectorMetric string

	stopMaintenance context.CancelFunc
	maintenanceDone chan struct{}
}

// Open opens (creating if absent) the SQLite database at opt.Path,
// applies PRAGMA tuning, runs pending goose migrations, and starts the
// background maintenance loop (ANALYZE / incremental_vacuum).
func Open(ctx context.Context, opt Options) (*Store, error) {
	if opt.Path == "" {
		return nil, slunkerr.New(slunkerr.KindStoreFatal, "store path is empty")
	}
	if opt.VectorMetric == "" {
		opt.VectorMetric = "cosine"
	}

	write, err := sql.Open("sqlite", opt.Path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindStoreFatal, err, "open write connection")
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", opt.Path+"?_pragma=busy_timeout(5000)&mode=ro")
	if err != nil {
		_ = write.Close()
		return nil, slunkerr.Wrap(slunkerr.KindStoreFatal, err, "open read pool")
	}
	read.SetMaxOpenConns(4)

	if err := tune(write, opt); err != nil {
		_ = write.Close()
		_ = read.Close()
		return nil, err
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = write.Close()
		_ = read.Close()
		return nil, slunkerr.Wrap(slunkerr.KindStoreFatal, err, "set goose dialect")
	}
	if err := goose.Up(write, "migrations"); err != nil {
		_ = write.Close()
		_ = read.Close()
		return nil, slunkerr.Wrap(slunkerr.KindStoreFatal, err, "apply migrations")
	}

	s := &Store{write: write, read: read, vectorMetric: opt.VectorMetric}

	maintCtx, cancel := context.WithCancel(context.Background())
	s.stopMaintenance = cancel
	s.maintenanceDone = make(chan struct{})
	go s.runMaintenance(maintCtx)

	return s, nil
}

func tune(db *sql.DB, opt Options) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA auto_vacuum=INCREMENTAL",
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheKB(opt.WriteCacheMB)),
		fmt.Sprintf("PRAGMA mmap_size=%d", int64(opt.MmapMB)*1024*1024),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return slunkerr.Wrap(slunkerr.KindStoreFatal, err, fmt.Sprintf("apply pragma %q", p))
		}
	}
	return nil
}

func unixTime(sec int64) time.Time { return time.Unix(sec, 0) }

// cacheKB converts a MB cache budget to the negative-KB form SQLite's
// cache_size pragma expects (negative means "size in KB, not pages").
func cacheKB(mb int) int {
	if mb <= 0 {
		mb = 64
	}
	return mb * 1024
}

// runMaintenance runs ANALYZE and incremental_vacuum at most once per day
// from a single background goroutine, per §4.4.
func (s *Store) runMaintenance(ctx context.Context) {
	defer close(s.maintenanceDone)
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.write.ExecContext(ctx, "ANALYZE")
			_, _ = s.write.ExecContext(ctx, "PRAGMA incremental_vacuum")
		}
	}
}

// Close stops the maintenance loop and closes both connection pools.
func (s *Store) Close() error {
	s.stopMaintenance()
	<-s.maintenanceDone
	werr := s.write.Close()
	rerr := s.read.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
