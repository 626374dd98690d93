// Package testsupport provides shared constructors for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"easel/internal/blobstore"
	"easel/internal/config"
	"easel/internal/ledger"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Replicate.APIToken = "r8_test"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.BlobDir = filepath.Join(base, "blobs")
	cfg.Paths.IngestDir = filepath.Join(base, "ingest")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithVariations overrides the generation fallback order on the test config.
func WithVariations(variations ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Generation.Variations = variations
	}
}

// MustOpenStore opens the ledger for the supplied config and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close ledger: %v", err)
		}
	})
	return store
}

// MustOpenBlobStore opens the blob store for the supplied config.
func MustOpenBlobStore(t testing.TB, cfg *config.Config) *blobstore.Store {
	t.Helper()
	store, err := blobstore.Open(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	return store
}
