package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vango-dev/cells/internal/errors"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "cellctl.yaml"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "cells"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "cellctl"
)

// Aggregate kinds accepted in a scenario.
const (
	KindSum     = "sum"
	KindAverage = "average"
)

// Config represents the complete cellctl.yaml configuration.
type Config struct {
	// Log contains logging configuration.
	Log LogConfig `yaml:"log,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `yaml:"tracing,omitempty"`

	// Scenario describes the cells built and driven by 'cellctl run'.
	Scenario ScenarioConfig `yaml:"scenario,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is text or json.
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled prints the collected metrics when a command finishes.
	Enabled bool `yaml:"enabled,omitempty"`

	// Namespace is the metrics namespace.
	Namespace string `yaml:"namespace,omitempty"`

	// Subsystem is the metrics subsystem.
	Subsystem string `yaml:"subsystem,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled writes spans to stdout.
	Enabled bool `yaml:"enabled,omitempty"`

	// TracerName is the tracer name.
	TracerName string `yaml:"tracerName,omitempty"`
}

// ScenarioConfig lists the cells of a scenario and the steps applied to them.
type ScenarioConfig struct {
	Cells      []CellSpec      `yaml:"cells,omitempty"`
	Aggregates []AggregateSpec `yaml:"aggregates,omitempty"`
	Steps      []Step          `yaml:"steps,omitempty"`
}

// CellSpec declares a number cell with an optional clamp.
type CellSpec struct {
	Name  string   `yaml:"name"`
	Value float64  `yaml:"value"`
	Min   *float64 `yaml:"min,omitempty"`
	Max   *float64 `yaml:"max,omitempty"`
}

// AggregateSpec declares a sum or average over earlier cells or aggregates.
type AggregateSpec struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Sources []string `yaml:"sources"`
}

// Step is one action: either set a value or re-notify a cell.
type Step struct {
	Set    string  `yaml:"set,omitempty"`
	Value  float64 `yaml:"value,omitempty"`
	Update string  `yaml:"update,omitempty"`
}

// Target returns the name of the cell the step acts on.
func (s Step) Target() string {
	if s.Set != "" {
		return s.Set
	}
	return s.Update
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads the configuration from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile loads the configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("C042").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("C041").Wrap(err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("C041").
			WithDetail("Failed to parse " + path + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOptional loads the configuration from dir, falling back to defaults
// when there is no configuration file.
func LoadOptional(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if errors.CodeOf(err) == "C042" {
		return New(), nil
	}
	return cfg, err
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("C041").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("C041").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from, or "".
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for missing fields.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, ok := parseLevel(c.Log.Level); !ok {
		return invalid("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format must be text or json; got %q", c.Log.Format)
	}
	return c.Scenario.validate()
}

func (s ScenarioConfig) validate() error {
	known := make(map[string]bool)

	for i, cs := range s.Cells {
		if cs.Name == "" {
			return invalid("scenario.cells[%d] has no name", i)
		}
		if known[cs.Name] {
			return invalid("scenario.cells[%d]: duplicate name %q", i, cs.Name)
		}
		if cs.Min != nil && cs.Max != nil && *cs.Min > *cs.Max {
			return invalid("scenario.cells[%d]: min %v is above max %v", i, *cs.Min, *cs.Max)
		}
		known[cs.Name] = true
	}

	for i, as := range s.Aggregates {
		if as.Name == "" {
			return invalid("scenario.aggregates[%d] has no name", i)
		}
		if known[as.Name] {
			return invalid("scenario.aggregates[%d]: duplicate name %q", i, as.Name)
		}
		if as.Kind != KindSum && as.Kind != KindAverage {
			return invalid("scenario.aggregates[%d]: kind must be sum or average; got %q", i, as.Kind)
		}
		if len(as.Sources) == 0 {
			return invalid("scenario.aggregates[%d]: no sources", i)
		}
		for _, src := range as.Sources {
			if !known[src] {
				return invalid("scenario.aggregates[%d]: unknown source %q", i, src)
			}
		}
		known[as.Name] = true
	}

	for i, st := range s.Steps {
		if (st.Set == "") == (st.Update == "") {
			return invalid("scenario.steps[%d]: exactly one of set or update is required", i)
		}
		if !known[st.Target()] {
			return invalid("scenario.steps[%d]: unknown cell %q", i, st.Target())
		}
	}
	return nil
}

// Names returns every cell and aggregate name in declaration order.
func (s ScenarioConfig) Names() []string {
	names := make([]string, 0, len(s.Cells)+len(s.Aggregates))
	for _, cs := range s.Cells {
		names = append(names, cs.Name)
	}
	for _, as := range s.Aggregates {
		names = append(names, as.Name)
	}
	return names
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	levels := []string{"debug", "info", "warn", "error"}
	i := slices.Index(levels, strings.ToLower(s))
	if i < 0 {
		return slog.LevelInfo, false
	}
	return []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}[i], true
}

func invalid(format string, args ...any) error {
	return errors.New("C040").WithDetail(fmt.Sprintf(format, args...))
}
