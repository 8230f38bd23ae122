package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when --config is not given. It is optional.
const DefaultConfigPath = "mosregress.yaml"

// Config holds all mosregress configuration.
type Config struct {
	Simulator  SimulatorConfig  `yaml:"simulator"`
	Paths      PathsConfig      `yaml:"paths"`
	Regression RegressionConfig `yaml:"regression"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SimulatorConfig configures the ngspice invocation.
type SimulatorConfig struct {
	Binary       string `yaml:"binary"`
	MinVersion   int    `yaml:"min_version"`
	Timeout      string `yaml:"timeout"` // per invocation, empty = unbounded
	ModelLibrary string `yaml:"model_library"`
	Corner       string `yaml:"corner"`
	TemplateDir  string `yaml:"template_dir"` // overrides embedded decks
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	DataDir string `yaml:"data_dir"` // root holding the measured workbooks
	WorkDir string `yaml:"work_dir"` // suite roots are created here
}

// RegressionConfig holds the pass criteria and pool sizing.
type RegressionConfig struct {
	PassThreshold        float64  `yaml:"pass_threshold"`
	ClampBeforeThreshold bool     `yaml:"clamp_before_threshold"`
	CurrentFloor         float64  `yaml:"current_floor"`
	Workers              int      `yaml:"workers"` // 0 = CPU count
	CheckpointEvery      int      `yaml:"checkpoint_every"`
	Suites               []string `yaml:"suites"`  // empty = all
	Devices              []string `yaml:"devices"` // empty = all
}

// OutputConfig toggles the optional artifacts.
type OutputConfig struct {
	Plots     bool `yaml:"plots"`
	ResultsDB bool `yaml:"results_db"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			Binary:       "ngspice",
			MinVersion:   38,
			ModelLibrary: "../../../design.ngspice",
			Corner:       "typical",
		},
		Paths: PathsConfig{
			DataDir: "../../180MCU_SPICE_DATA",
			WorkDir: ".",
		},
		Regression: RegressionConfig{
			PassThreshold: 100,
			CurrentFloor:  5e-12,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if bin := os.Getenv("MOSREGRESS_SIMULATOR"); bin != "" {
		c.Simulator.Binary = bin
	}
	if dir := os.Getenv("MOSREGRESS_DATA_DIR"); dir != "" {
		c.Paths.DataDir = dir
	}
	if dir := os.Getenv("MOSREGRESS_WORK_DIR"); dir != "" {
		c.Paths.WorkDir = dir
	}
	if w := os.Getenv("MOSREGRESS_WORKERS"); w != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(w)); err == nil && n > 0 {
			c.Regression.Workers = n
		}
	}
	if lvl := os.Getenv("MOSREGRESS_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// GetSimulatorTimeout returns the per-invocation timeout. Zero means none.
func (c *Config) GetSimulatorTimeout() time.Duration {
	if strings.TrimSpace(c.Simulator.Timeout) == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Simulator.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetWorkers returns the worker pool size, defaulting to the CPU count.
func (c *Config) GetWorkers() int {
	if c.Regression.Workers > 0 {
		return c.Regression.Workers
	}
	return runtime.NumCPU()
}

// ValidLogLevels lists the accepted logging.level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Simulator.Binary) == "" {
		return fmt.Errorf("simulator binary not configured (set simulator.binary or MOSREGRESS_SIMULATOR)")
	}
	if c.Simulator.MinVersion < 0 {
		return fmt.Errorf("invalid simulator.min_version: %d", c.Simulator.MinVersion)
	}
	if c.Simulator.Timeout != "" {
		if _, err := time.ParseDuration(c.Simulator.Timeout); err != nil {
			return fmt.Errorf("invalid simulator.timeout %q: %w", c.Simulator.Timeout, err)
		}
	}
	if c.Regression.PassThreshold <= 0 {
		return fmt.Errorf("regression.pass_threshold must be positive, got %g", c.Regression.PassThreshold)
	}
	if c.Regression.CurrentFloor < 0 {
		return fmt.Errorf("regression.current_floor must not be negative, got %g", c.Regression.CurrentFloor)
	}
	if c.Regression.Workers < 0 {
		return fmt.Errorf("regression.workers must not be negative, got %d", c.Regression.Workers)
	}
	if c.Regression.CheckpointEvery < 0 {
		return fmt.Errorf("regression.checkpoint_every must not be negative, got %d", c.Regression.CheckpointEvery)
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if strings.EqualFold(c.Logging.Level, l) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	return nil
}

// SuiteEnabled reports whether a suite id passes the regression.suites filter.
func (c *Config) SuiteEnabled(id string) bool {
	return filterAllows(c.Regression.Suites, id)
}

// DeviceEnabled reports whether a device passes the regression.devices filter.
func (c *Config) DeviceEnabled(name string) bool {
	return filterAllows(c.Regression.Devices, name)
}

func filterAllows(list []string, name string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
