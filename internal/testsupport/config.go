package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"sorter/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The single watch root ("inbox") exists; categories route images and docs.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Watch.Paths = []string{filepath.Join(base, "inbox")}
	cfgVal.Categories = []config.Category{
		{Name: "images", Extensions: []string{"jpg", "png"}},
		{Name: "docs", Extensions: []string{"pdf"}},
	}
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, root := range builder.cfg.Watch.Paths {
		if err := os.MkdirAll(root, 0o755); err != nil {
			t.Fatalf("mkdir watch root %s: %v", root, err)
		}
	}
	return builder.cfg
}

// WithWatchRoots replaces the watch roots with the named directories under
// the test base directory.
func WithWatchRoots(names ...string) ConfigOption {
	return func(b *configBuilder) {
		roots := make([]string, 0, len(names))
		for _, name := range names {
			roots = append(roots, filepath.Join(b.baseDir, name))
		}
		b.cfg.Watch.Paths = roots
	}
}

// WithCategories replaces the category list.
func WithCategories(categories ...config.Category) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Categories = categories
	}
}

// WithConflictPolicy sets relocate.on_conflict.
func WithConflictPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Relocate.OnConflict = policy
	}
}

// WithBackend selects the watch backend.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watch.Backend = backend
	}
}

// WithHistory enables the history database.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// Root returns the first watch root.
func Root(cfg *config.Config) string {
	return cfg.Watch.Paths[0]
}
