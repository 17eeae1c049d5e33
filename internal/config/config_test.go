package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"sorter/internal/config"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingDefaultConfigFailsWithoutWatchPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error without watch paths")
	}
	if !strings.Contains(err.Error(), "watch.paths") || !strings.Contains(err.Error(), "sorter config init") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadTOMLExpandsPathsAndNormalizes(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.LogLevelEnv, "")

	path := writeConfig(t, "sorter.toml", `
[watch]
paths = ["~/Downloads", "~/Downloads/", "  "]

[[categories]]
name = " images "
extensions = [".JPG", "png"]

[[categories]]
name = "docs"
extensions = ["pdf"]

[logging]
level = "DEBUG"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution %q (exists=%v)", resolved, exists)
	}
	wantPaths := []string{filepath.Join(tempHome, "Downloads")}
	if !reflect.DeepEqual(cfg.Watch.Paths, wantPaths) {
		t.Fatalf("watch paths = %v, want %v", cfg.Watch.Paths, wantPaths)
	}
	if cfg.Watch.Backend != "fsnotify" || !cfg.Watch.Recursive {
		t.Fatalf("unexpected watch defaults %+v", cfg.Watch)
	}
	if cfg.Categories[0].Name != "images" {
		t.Fatalf("category name not trimmed: %q", cfg.Categories[0].Name)
	}
	if !reflect.DeepEqual(cfg.Categories[0].Extensions, []string{"jpg", "png"}) {
		t.Fatalf("extensions not normalized: %v", cfg.Categories[0].Extensions)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.Relocate.OnConflict != "rename" || cfg.Relocate.CrossDevice != "fail" {
		t.Fatalf("unexpected relocate defaults %+v", cfg.Relocate)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "sorter") {
		t.Fatalf("unexpected state dir %q", cfg.Paths.StateDir)
	}
	if cfg.History.Enabled {
		t.Fatal("history must be disabled by default")
	}

	ws, overrides, err := cfg.WatchSet()
	if err != nil {
		t.Fatalf("WatchSet: %v", err)
	}
	if len(overrides) != 0 {
		t.Fatalf("unexpected overrides %v", overrides)
	}
	if category, ok := ws.Lookup("jpg"); !ok || category != "images" {
		t.Fatalf("jpg -> %q (%v)", category, ok)
	}
}

func TestLoadNormalizesCategoryNamesToNFC(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	decomposed := "Re\u0301sume\u0301s"
	path := writeConfig(t, "sorter.toml", `
[watch]
paths = ["/srv/inbox"]

[[categories]]
name = "`+decomposed+`"
extensions = ["pdf"]
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Categories[0].Name; got != "R\u00e9sum\u00e9s" {
		t.Fatalf("expected NFC name, got %q", got)
	}
}

func TestLoadLegacyYAML(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := writeConfig(t, "config.yaml", `
config:
  watch:
    - ~/inbox
    - /data/inbox
  file-types:
    images: [jpg, png]
    docs: [pdf]
    vector: [PNG]
`)
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected file to exist")
	}
	wantPaths := []string{filepath.Join(tempHome, "inbox"), "/data/inbox"}
	if !reflect.DeepEqual(cfg.Watch.Paths, wantPaths) {
		t.Fatalf("watch paths = %v, want %v", cfg.Watch.Paths, wantPaths)
	}
	names := make([]string, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		names = append(names, c.Name)
	}
	if !reflect.DeepEqual(names, []string{"images", "docs", "vector"}) {
		t.Fatalf("category order not preserved: %v", names)
	}

	ws, overrides, err := cfg.WatchSet()
	if err != nil {
		t.Fatalf("WatchSet: %v", err)
	}
	if category, _ := ws.Lookup("png"); category != "vector" {
		t.Fatalf("expected last category to win, got %q", category)
	}
	if len(overrides) != 1 || overrides[0].Previous != "images" {
		t.Fatalf("expected one override from images, got %v", overrides)
	}
}

func TestLoadLegacyYAMLRequiresConfigKey(t *testing.T) {
	path := writeConfig(t, "config.yml", "watch: [/data]\n")
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "config") {
		t.Fatalf("expected missing config mapping error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	base := `
[watch]
paths = ["/srv/inbox"]
`
	images := `
[[categories]]
name = "images"
extensions = ["jpg"]
`
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no categories", base, "categories"},
		{"bad category name", base + "[[categories]]\nname = \"a/b\"\nextensions = [\"jpg\"]\n", "categories[0].name"},
		{"no extensions", base + "[[categories]]\nname = \"x\"\nextensions = []\n", "at least one extension"},
		{"blank extension", base + "[[categories]]\nname = \"x\"\nextensions = [\".\"]\n", "is empty"},
		{"bad backend", strings.Replace(base, "[watch]", "[watch]\nbackend = \"poll\"", 1) + images, "watch.backend"},
		{"bad policy", base + images + "[relocate]\non_conflict = \"skip\"\n", "relocate.on_conflict"},
		{"bad cross device", base + images + "[relocate]\ncross_device = \"link\"\n", "relocate.cross_device"},
		{"bad format", base + images + "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"bad level", base + images + "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"negative retention", base + images + "[logging]\nretention_days = -1\n", "retention_days"},
		{"unknown key", base + images + "[watch2]\nx = 1\n", "watch2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv(config.LogLevelEnv, "")
			path := writeConfig(t, "sorter.toml", tc.body)
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLogLevelEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.LogLevelEnv, "warn")
	path := writeConfig(t, "sorter.toml", `
[watch]
paths = ["/srv/inbox"]
[[categories]]
name = "images"
extensions = ["jpg"]
[logging]
level = "debug"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env override, got %q", cfg.Logging.Level)
	}
}

func TestResolveFallsBackToProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.LogLevelEnv, "")
	project := t.TempDir()
	t.Chdir(project)
	body := "[watch]\npaths = [\"/srv/inbox\"]\n[[categories]]\nname = \"images\"\nextensions = [\"jpg\"]\n"
	if err := os.WriteFile(filepath.Join(project, "sorter.toml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	_, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || filepath.Base(resolved) != "sorter.toml" {
		t.Fatalf("expected project config, got %q (exists=%v)", resolved, exists)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.LogLevelEnv, "")
	path := filepath.Join(tempHome, ".config", "sorter", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config must load: %v", err)
	}
	if len(cfg.Categories) == 0 || len(cfg.Watch.Paths) != 1 {
		t.Fatalf("unexpected sample contents %+v", cfg)
	}
	if _, overrides, err := cfg.WatchSet(); err != nil || len(overrides) != 0 {
		t.Fatalf("sample watch set: %v overrides=%v", err, overrides)
	}
}

func TestEnsureDirectoriesAndDerivedPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
	if cfg.LockPath() != filepath.Join(base, "state", "sorter.lock") {
		t.Fatalf("lock path %q", cfg.LockPath())
	}
	if cfg.SocketPath() != filepath.Join(base, "state", "sorter.sock") {
		t.Fatalf("socket path %q", cfg.SocketPath())
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	cfg := config.Default()
	cfg.Watch.Paths = []string{"/srv/inbox"}
	cfg.Categories = []config.Category{{Name: "images", Extensions: []string{"jpg"}}}

	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if !reflect.DeepEqual(decoded.Categories, cfg.Categories) || decoded.Watch.Paths[0] != "/srv/inbox" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}
