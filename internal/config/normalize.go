package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"sorter/internal/watchset"
)

// LogLevelEnv overrides logging.level when set.
const LogLevelEnv = "SORTER_LOG_LEVEL"

func (c *Config) normalize() error {
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeCategories()
	c.normalizeRelocate()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeWatch() error {
	paths := make([]string, 0, len(c.Watch.Paths))
	seen := make(map[string]struct{}, len(c.Watch.Paths))
	for i, raw := range c.Watch.Paths {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("watch.paths[%d]: %w", i, err)
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		paths = append(paths, expanded)
	}
	c.Watch.Paths = paths
	c.Watch.Backend = strings.ToLower(strings.TrimSpace(c.Watch.Backend))
	if c.Watch.Backend == "" {
		c.Watch.Backend = defaultBackend
	}
	return nil
}

// normalizeCategories trims names into NFC so a category typed on macOS and
// one typed on Linux land in the same directory.
func (c *Config) normalizeCategories() {
	for i := range c.Categories {
		c.Categories[i].Name = norm.NFC.String(strings.TrimSpace(c.Categories[i].Name))
		exts := make([]string, 0, len(c.Categories[i].Extensions))
		for _, ext := range c.Categories[i].Extensions {
			exts = append(exts, watchset.NormalizeExtension(ext))
		}
		c.Categories[i].Extensions = exts
	}
}

func (c *Config) normalizeRelocate() {
	c.Relocate.OnConflict = strings.ToLower(strings.TrimSpace(c.Relocate.OnConflict))
	if c.Relocate.OnConflict == "" {
		c.Relocate.OnConflict = Default().Relocate.OnConflict
	}
	c.Relocate.CrossDevice = strings.ToLower(strings.TrimSpace(c.Relocate.CrossDevice))
	if c.Relocate.CrossDevice == "" {
		c.Relocate.CrossDevice = Default().Relocate.CrossDevice
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if value, ok := os.LookupEnv(LogLevelEnv); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
