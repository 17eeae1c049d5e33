package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"sorter/internal/watchset"
)

//go:embed sample_config.toml
var sampleConfig string

// Watch selects the directories to watch and the notification backend.
type Watch struct {
	Paths     []string `toml:"paths"`
	Backend   string   `toml:"backend"`
	Recursive bool     `toml:"recursive"`
}

// Category maps a set of extensions onto a subdirectory name.
type Category struct {
	Name       string   `toml:"name"`
	Extensions []string `toml:"extensions"`
}

// Relocate controls how files are moved into their category directory.
type Relocate struct {
	OnConflict  string `toml:"on_conflict"`
	CrossDevice string `toml:"cross_device"`
}

// Paths contains directories the agent writes its own state into.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// History toggles the relocation history database.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for sorter.
//
// Configuration sections by subsystem:
//   - Watch: roots, backend, recursion
//   - Categories: ordered extension rules; later entries win on duplicates
//   - Relocate: collision and cross-device policies
//   - Paths: state and log directories
//   - Logging: log format, level, and retention
//   - History: optional SQLite relocation history
type Config struct {
	Watch      Watch      `toml:"watch"`
	Categories []Category `toml:"categories"`
	Relocate   Relocate   `toml:"relocate"`
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"logging"`
	History    History    `toml:"history"`
}

const (
	defaultConfigPath = "~/.config/sorter/config.toml"
	projectConfigName = "sorter.toml"
	legacyConfigName  = "config.yaml"
)

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Files ending in .yaml or .yml are read in the
// legacy document format.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := decode(file, resolvedPath, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(r io.Reader, path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(r, cfg)
	default:
		decoder := toml.NewDecoder(r)
		decoder.DisallowUnknownFields()
		err := decoder.Decode(cfg)
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			keys := make([]string, 0, len(strict.Errors))
			for _, decodeErr := range strict.Errors {
				keys = append(keys, strings.Join(decodeErr.Key(), "."))
			}
			return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
		return err
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	candidates := []string{defaultPath}
	for _, name := range []string{projectConfigName, legacyConfigName} {
		projectPath, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		candidates = append(candidates, projectPath)
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WatchSet compiles the watch roots and category rules. Overrides list
// extensions claimed by more than one category.
func (c *Config) WatchSet() (*watchset.WatchSet, []watchset.Override, error) {
	categories := make([]watchset.Category, 0, len(c.Categories))
	for _, category := range c.Categories {
		categories = append(categories, watchset.Category{Name: category.Name, Extensions: category.Extensions})
	}
	return watchset.New(c.Watch.Paths, categories)
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "sorter.lock")
}

// SocketPath is the status socket of a running agent.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "sorter.sock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	encoder := toml.NewEncoder(w)
	encoder.SetArraysMultiline(true)
	return encoder.Encode(c)
}
