// Package config loads Slunk's runtime configuration from environment
// variables (optionally backed by a .env file), matching the fields named
// in the specification's External Interfaces section.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// QueryWeights holds the hybrid-fusion weights for the lexical and semantic
// branches. They need not sum to 1; the query engine applies them as
// given, without normalizing them.
type QueryWeights struct {
	Semantic float64
	Lexical  float64
}

// Deadlines holds per-operation timeout budgets in milliseconds.
type Deadlines struct {
	TreeReadMS int
	QueryMS    int
	EmbedMS    int
}

// Config is the fully-resolved runtime configuration for a Slunk process.
type Config struct {
	DBPath             string
	EmbeddingDim       int
	EmbeddingBatch     int
	MaxChildren        int
	MaxValueChars      int
	WriteCacheMB       int
	MmapMB             int
	QueryWeights       QueryWeights
	Deadlines          Deadlines
	EmbedQueueHighWater int
	LogPath            string
	LogLevel           string
	VectorMetric       string // cosine|l2
	OTLPEndpoint       string // loaded from SLUNK_OTLP_ENDPOINT; tracing setup does not read it
	MCPMode            bool
}

// defaults mirror the literal defaults named in the specification.
func defaults() Config {
	return Config{
		EmbeddingDim:        768,
		EmbeddingBatch:      16,
		MaxChildren:         1000,
		MaxValueChars:       1_000_000,
		WriteCacheMB:        64,
		MmapMB:              256,
		QueryWeights:        QueryWeights{Semantic: 0.6, Lexical: 0.4},
		Deadlines:           Deadlines{TreeReadMS: 2000, QueryMS: 30000, EmbedMS: 10000},
		EmbedQueueHighWater: 500,
		LogLevel:            "info",
		VectorMetric:        "cosine",
	}
}

// Load reads configuration from the environment, optionally overridden by a
// .env file in the working directory (as the teacher's loader does via
// godotenv.Overload). Unset values fall back to defaults().
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := defaults()

	if v := strings.TrimSpace(os.Getenv("SLUNK_DB_PATH")); v != "" {
		cfg.DBPath = v
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.DBPath = filepath.Join(dir, "slunk", "slunk.db")
	}

	intEnv(&cfg.EmbeddingDim, "SLUNK_EMBEDDING_DIM")
	intEnv(&cfg.EmbeddingBatch, "SLUNK_EMBEDDING_BATCH")
	intEnv(&cfg.MaxChildren, "SLUNK_MAX_CHILDREN")
	intEnv(&cfg.MaxValueChars, "SLUNK_MAX_VALUE_CHARS")
	intEnv(&cfg.WriteCacheMB, "SLUNK_WRITE_CACHE_MB")
	intEnv(&cfg.MmapMB, "SLUNK_MMAP_MB")
	intEnv(&cfg.EmbedQueueHighWater, "SLUNK_EMBED_QUEUE_HIGH_WATER")
	intEnv(&cfg.Deadlines.TreeReadMS, "SLUNK_DEADLINE_TREE_READ_MS")
	intEnv(&cfg.Deadlines.QueryMS, "SLUNK_DEADLINE_QUERY_MS")
	intEnv(&cfg.Deadlines.EmbedMS, "SLUNK_DEADLINE_EMBED_MS")

	floatEnv(&cfg.QueryWeights.Semantic, "SLUNK_QUERY_WEIGHT_SEMANTIC")
	floatEnv(&cfg.QueryWeights.Lexical, "SLUNK_QUERY_WEIGHT_LEXICAL")

	if v := strings.TrimSpace(os.Getenv("SLUNK_LOG_PATH")); v != "" {
		cfg.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("SLUNK_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("SLUNK_VECTOR_METRIC")); v != "" {
		cfg.VectorMetric = strings.ToLower(v)
	}
	cfg.OTLPEndpoint = strings.TrimSpace(os.Getenv("SLUNK_OTLP_ENDPOINT"))

	if v := strings.TrimSpace(os.Getenv("MCP_MODE")); v != "" {
		cfg.MCPMode = v == "1" || strings.EqualFold(v, "true")
	}

	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("config: embedding_dim must be > 0")
	}
	return cfg, nil
}

func intEnv(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func floatEnv(dst *float64, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}
