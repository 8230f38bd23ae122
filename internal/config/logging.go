package config

import "mosregress/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // console, json
	File       string          `yaml:"file"`       // optional JSON log file
	DebugMode  bool            `yaml:"debug_mode"` // debug level plus simulator audit trail
	Categories map[string]bool `yaml:"categories"` // per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Options converts the section into logger options. verbose forces debug level.
func (c *LoggingConfig) Options(verbose bool) logging.Options {
	level := c.Level
	if verbose {
		level = "debug"
	}
	return logging.Options{
		Level:      level,
		Format:     c.Format,
		File:       c.File,
		DebugMode:  c.DebugMode,
		Categories: c.Categories,
	}
}
