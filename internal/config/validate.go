package config

import (
	"errors"
	"fmt"

	"sorter/internal/relocate"
	"sorter/internal/watchset"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateCategories(); err != nil {
		return err
	}
	if err := c.validateRelocate(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateWatch() error {
	if len(c.Watch.Paths) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("watch.paths must list at least one directory. Edit %s (create with 'sorter config init')", defaultPath)
	}
	switch c.Watch.Backend {
	case "fsnotify", "notify":
	default:
		return fmt.Errorf("watch.backend must be \"fsnotify\" or \"notify\", got %q", c.Watch.Backend)
	}
	return nil
}

func (c *Config) validateCategories() error {
	if len(c.Categories) == 0 {
		return errors.New("at least one [[categories]] entry is required")
	}
	for i, category := range c.Categories {
		if err := watchset.ValidateCategoryName(category.Name); err != nil {
			return fmt.Errorf("categories[%d].name: %w", i, err)
		}
		if len(category.Extensions) == 0 {
			return fmt.Errorf("categories[%d] (%s) must list at least one extension", i, category.Name)
		}
		for j, ext := range category.Extensions {
			if ext == "" {
				return fmt.Errorf("categories[%d].extensions[%d] is empty", i, j)
			}
		}
	}
	return nil
}

func (c *Config) validateRelocate() error {
	if !relocate.ValidConflictPolicy(c.Relocate.OnConflict) {
		return fmt.Errorf("relocate.on_conflict must be one of rename, error, overwrite; got %q", c.Relocate.OnConflict)
	}
	if !relocate.ValidCrossDeviceMode(c.Relocate.CrossDevice) {
		return fmt.Errorf("relocate.cross_device must be \"fail\" or \"copy\", got %q", c.Relocate.CrossDevice)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error; got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
