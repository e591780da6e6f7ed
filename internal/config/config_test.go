package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/cells/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q, want %q", cfg.Metrics.Namespace, DefaultNamespace)
	}
	if cfg.Tracing.TracerName != DefaultTracerName {
		t.Errorf("Tracing.TracerName = %q, want %q", cfg.Tracing.TracerName, DefaultTracerName)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if err == nil {
		t.Fatal("Expected error for missing config")
	}
	if errors.CodeOf(err) != "C042" {
		t.Errorf("missing config code = %q, want C042", errors.CodeOf(err))
	}

	configYAML := `
log:
  level: debug
  format: json
metrics:
  enabled: true
  subsystem: demo
scenario:
  cells:
    - name: a
      value: 2
    - name: b
      value: 3
      max: 10
  aggregates:
    - name: total
      kind: sum
      sources: [a, b]
  steps:
    - set: total
      value: 11
    - update: a
`
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Subsystem != "demo" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	// Defaults still apply to unset fields
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q, want default", cfg.Metrics.Namespace)
	}
	if len(cfg.Scenario.Cells) != 2 || cfg.Scenario.Cells[1].Max == nil || *cfg.Scenario.Cells[1].Max != 10 {
		t.Errorf("Scenario.Cells = %+v", cfg.Scenario.Cells)
	}
	if cfg.Scenario.Cells[0].Min != nil {
		t.Error("unset min should stay nil")
	}
	if len(cfg.Scenario.Steps) != 2 || cfg.Scenario.Steps[1].Target() != "a" {
		t.Errorf("Scenario.Steps = %+v", cfg.Scenario.Steps)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("log: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.CodeOf(err) != "C041" {
		t.Errorf("code = %q, want C041", errors.CodeOf(err))
	}
}

func TestLoadOptional(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOptional() error = %v", err)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("expected defaults, got %+v", cfg.Log)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	max := 5.0
	cfg := New()
	cfg.Scenario.Cells = []CellSpec{{Name: "x", Value: 1, Max: &max}}

	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(loaded.Scenario.Cells) != 1 || *loaded.Scenario.Cells[0].Max != 5 {
		t.Errorf("round trip lost the scenario: %+v", loaded.Scenario)
	}
}

func TestValidate(t *testing.T) {
	one, two := 1.0, 2.0

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"unnamed cell", func(c *Config) {
			c.Scenario.Cells = []CellSpec{{Value: 1}}
		}, "has no name"},
		{"duplicate cell", func(c *Config) {
			c.Scenario.Cells = []CellSpec{{Name: "a"}, {Name: "a"}}
		}, "duplicate"},
		{"min above max", func(c *Config) {
			c.Scenario.Cells = []CellSpec{{Name: "a", Min: &two, Max: &one}}
		}, "min"},
		{"bad kind", func(c *Config) {
			c.Scenario.Cells = []CellSpec{{Name: "a"}}
			c.Scenario.Aggregates = []AggregateSpec{{Name: "t", Kind: "median", Sources: []string{"a"}}}
		}, "kind"},
		{"unknown source", func(c *Config) {
			c.Scenario.Aggregates = []AggregateSpec{{Name: "t", Kind: KindSum, Sources: []string{"ghost"}}}
		}, "unknown source"},
		{"empty step", func(c *Config) {
			c.Scenario.Cells = []CellSpec{{Name: "a"}}
			c.Scenario.Steps = []Step{{}}
		}, "exactly one"},
		{"unknown step target", func(c *Config) {
			c.Scenario.Steps = []Step{{Update: "ghost"}}
		}, "unknown cell"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if errors.CodeOf(err) != "C040" {
				t.Errorf("code = %q, want C040", errors.CodeOf(err))
			}
			var e *errors.Error
			if !asError(err, &e) || !strings.Contains(e.Detail, tt.wantErr) {
				t.Errorf("detail %q should mention %q", e.Detail, tt.wantErr)
			}
		})
	}
}

func TestScenarioNames(t *testing.T) {
	s := ScenarioConfig{
		Cells:      []CellSpec{{Name: "a"}, {Name: "b"}},
		Aggregates: []AggregateSpec{{Name: "t"}},
	}
	got := s.Names()
	if strings.Join(got, ",") != "a,b,t" {
		t.Errorf("Names() = %v", got)
	}
}

func asError(err error, target **errors.Error) bool {
	e, ok := err.(*errors.Error)
	if ok {
		*target = e
	}
	return ok
}
