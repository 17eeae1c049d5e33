package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sorter/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWatchCapacity(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"a", "a/b", "c"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	limitFile := filepath.Join(t.TempDir(), "max_user_watches")

	cases := []struct {
		name   string
		limit  string
		passed bool
	}{
		{"under limit", "8192\n", true},
		{"over limit", "2\n", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := os.WriteFile(limitFile, []byte(tc.limit), 0o644); err != nil {
				t.Fatal(err)
			}
			result := checkWatchCapacity(context.Background(), []string{root}, limitFile)
			if result.Passed != tc.passed {
				t.Fatalf("passed = %v, detail %q", result.Passed, result.Detail)
			}
		})
	}

	missing := checkWatchCapacity(context.Background(), []string{root}, filepath.Join(t.TempDir(), "absent"))
	if !missing.Passed || !strings.Contains(missing.Detail, "4 directories") {
		t.Fatalf("unknown limit must pass with a count, got %+v", missing)
	}
}

func TestRunAll(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Watch.Paths = []string{filepath.Join(base, "inbox"), filepath.Join(base, "missing")}
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	for _, dir := range []string{cfg.Watch.Paths[0], cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	failed := Failed(results)
	if len(failed) != 1 || !strings.Contains(failed[0].Name, "missing") {
		t.Fatalf("expected only the missing root to fail, got %+v", failed)
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("nil config yields no results")
	}
}
