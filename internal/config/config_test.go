package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"SLUNK_DB_PATH", "SLUNK_EMBEDDING_DIM", "SLUNK_QUERY_WEIGHT_SEMANTIC",
	} {
		os.Unsetenv(key)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EmbeddingBatch != 16 {
		t.Fatalf("expected default batch 16, got %d", cfg.EmbeddingBatch)
	}
	if cfg.MaxChildren != 1000 {
		t.Fatalf("expected default max children 1000, got %d", cfg.MaxChildren)
	}
	if cfg.QueryWeights.Semantic != 0.6 || cfg.QueryWeights.Lexical != 0.4 {
		t.Fatalf("unexpected default query weights: %+v", cfg.QueryWeights)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("SLUNK_EMBEDDING_DIM", "384")
	defer os.Unsetenv("SLUNK_EMBEDDING_DIM")
	os.Setenv("SLUNK_MAX_CHILDREN", "50")
	defer os.Unsetenv("SLUNK_MAX_CHILDREN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EmbeddingDim != 384 {
		t.Fatalf("expected overridden dim 384, got %d", cfg.EmbeddingDim)
	}
	if cfg.MaxChildren != 50 {
		t.Fatalf("expected overridden max children 50, got %d", cfg.MaxChildren)
	}
}

func TestLoadRejectsZeroDimension(t *testing.T) {
	os.Setenv("SLUNK_EMBEDDING_DIM", "0")
	defer os.Unsetenv("SLUNK_EMBEDDING_DIM")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero embedding dimension")
	}
}
