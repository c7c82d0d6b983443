package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/dshills/nodeflow/pkg/execution"
	"github.com/dshills/nodeflow/pkg/schedule"
)

// configFileName is the settings file inside the config directory
const configFileName = "config.yaml"

// Config is the contents of config.yaml
type Config struct {
	LogLevel  string           `yaml:"log_level"`
	LogFormat string           `yaml:"log_format"`
	Engine    EngineConfig     `yaml:"engine"`
	Files     FilesConfig      `yaml:"files"`
	HTTP      HTTPConfig       `yaml:"http"`
	Screen    ScreenConfig     `yaml:"screen"`
	Tracing   TracingConfig    `yaml:"tracing"`
	Schedules []schedule.Entry `yaml:"schedules,omitempty"`
}

// EngineConfig bounds the work of every run
type EngineConfig struct {
	MaxEvalDepth      int  `yaml:"max_eval_depth"`
	MaxLoopIterations int  `yaml:"max_loop_iterations"`
	PollIntervalMS    int  `yaml:"poll_interval_ms"`
	MaxSteps          int  `yaml:"max_steps"`
	PersistVariables  bool `yaml:"persist_variables"`
}

// FilesConfig confines FileRead and FileWrite nodes
type FilesConfig struct {
	// Root, when set, is the only directory file nodes may touch
	Root string `yaml:"root,omitempty"`
}

// HTTPConfig configures HTTPRequest nodes
type HTTPConfig struct {
	TimeoutMS int `yaml:"timeout_ms"`
	// Credential names a keyring entry sent as a bearer token
	Credential string `yaml:"credential,omitempty"`
}

// ScreenConfig selects the image served as the display
type ScreenConfig struct {
	Image string `yaml:"image,omitempty"`
}

// TracingConfig enables OTLP span export
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// DefaultConfig returns the settings used for keys missing from config.yaml
func DefaultConfig() Config {
	limits := execution.DefaultLimits()
	return Config{
		LogLevel:  "warn",
		LogFormat: "text",
		Engine: EngineConfig{
			MaxEvalDepth:      limits.MaxDepth,
			MaxLoopIterations: limits.MaxLoopIterations,
			PollIntervalMS:    int(limits.PollInterval / time.Millisecond),
		},
		HTTP:    HTTPConfig{TimeoutMS: 30000},
		Tracing: TracingConfig{Endpoint: "http://localhost:4318"},
	}
}

// LoadConfig reads config.yaml from dir and fills missing keys from
// DefaultConfig. A missing file yields the defaults.
func LoadConfig(dir string) (Config, error) {
	defaults := DefaultConfig()

	data, err := os.ReadFile(filepath.Join(dir, configFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", configFileName, err)
	}
	if err := mergo.Merge(&loaded, defaults); err != nil {
		return Config{}, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return loaded, nil
}

// writeDefaultConfig creates config.yaml unless it already exists
func writeDefaultConfig(dir string) error {
	path := filepath.Join(dir, configFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat config: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

// Limits converts the engine settings to run limits
func (c Config) Limits() execution.Limits {
	return execution.Limits{
		MaxDepth:          c.Engine.MaxEvalDepth,
		MaxLoopIterations: c.Engine.MaxLoopIterations,
		PollInterval:      time.Duration(c.Engine.PollIntervalMS) * time.Millisecond,
		MaxSteps:          c.Engine.MaxSteps,
	}
}

// NewLogger builds the slog logger described by the config. Debug forces
// the debug level.
func (c Config) NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := parseLevel(c.LogLevel)
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
