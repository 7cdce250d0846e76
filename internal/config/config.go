// Package config loads the conv command's settings: defaults, then an
// optional YAML file, then CONV_* environment variables. Flags are applied
// by the command on top and re-validated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/internal/logging"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultConcurrency = 4
	defaultRetries     = 3
	defaultTimeout     = 2 * time.Minute
)

// CLITool exposes an external program to the model.
type CLITool struct {
	Name        string `yaml:"name"`
	Program     string `yaml:"program"`
	Description string `yaml:"description"`
}

// Config controls how the command builds its backend, driver and listeners.
type Config struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	Temperature     *float64      `yaml:"temperature"`
	ReasoningEffort string        `yaml:"reasoning_effort"`
	Concurrency     int           `yaml:"concurrency"`
	Retries         int           `yaml:"retries"`
	Timeout         time.Duration `yaml:"timeout"`
	ContextBudget   int           `yaml:"context_budget"`
	TranscriptDB    string        `yaml:"transcript_db"`
	DumpDir         string        `yaml:"dump_dir"`
	CacheDir        string        `yaml:"cache_dir"`
	Workspace       string        `yaml:"workspace"`
	WorkspaceWrite  bool          `yaml:"workspace_write"`
	LogLevel        string        `yaml:"log_level"`
	CLITools        []CLITool     `yaml:"cli_tools"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Provider:        ProviderOpenAI,
		ReasoningEffort: string(conv.EffortMedium),
		Concurrency:     defaultConcurrency,
		Retries:         defaultRetries,
		Timeout:         defaultTimeout,
		LogLevel:        "info",
	}
}

// Load builds the configuration. path may be empty, in which case CONV_CONFIG
// is consulted; no file at all is fine.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONV_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("CONV_PROVIDER", &c.Provider)
	str("CONV_MODEL", &c.Model)
	str("CONV_REASONING_EFFORT", &c.ReasoningEffort)
	str("CONV_TRANSCRIPT_DB", &c.TranscriptDB)
	str("CONV_DUMP_DIR", &c.DumpDir)
	str("CONV_CACHE_DIR", &c.CacheDir)
	str("CONV_WORKSPACE", &c.Workspace)
	str("CONV_LOG_LEVEL", &c.LogLevel)

	if err := num("CONV_CONCURRENCY", &c.Concurrency); err != nil {
		return err
	}
	if err := num("CONV_CONTEXT_BUDGET", &c.ContextBudget); err != nil {
		return err
	}
	if v, ok := lookup("CONV_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse CONV_TEMPERATURE: %w", err)
		}
		c.Temperature = &f
	}
	if v, ok := lookup("CONV_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CONV_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v, ok := lookup("CONV_CLI_TOOLS"); ok && v != "" {
		c.CLITools = ParseCLITools(v)
	}
	return nil
}

// ParseCLITools parses a comma-separated list of "name=program" or bare
// "program" entries.
func ParseCLITools(s string) []CLITool {
	var out []CLITool
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, program, ok := strings.Cut(item, "=")
		if !ok {
			program = name
		}
		out = append(out, CLITool{Name: strings.TrimSpace(name), Program: strings.TrimSpace(program)})
	}
	return out
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("provider must be %s or %s, got %q", ProviderOpenAI, ProviderAnthropic, c.Provider)
	}
	if _, err := conv.ParseReasoningEffort(c.ReasoningEffort); err != nil {
		return err
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be within [0, 2], got %v", *c.Temperature)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be > 0, got %d", c.Concurrency)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative: %d", c.Retries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative: %s", c.Timeout)
	}
	if c.ContextBudget < 0 {
		return fmt.Errorf("context_budget cannot be negative: %d", c.ContextBudget)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, t := range c.CLITools {
		if t.Name == "" || t.Program == "" {
			return fmt.Errorf("cli tool needs a name and a program: %+v", t)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate cli tool %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}
