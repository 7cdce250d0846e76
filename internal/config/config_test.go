package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/go-conv/internal/config"
)

// clearEnv blanks every CONV_* variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "CONV_") {
			t.Setenv(k, "")
		}
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "conv.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != config.ProviderOpenAI || cfg.Concurrency != 4 || cfg.Retries != 3 || cfg.Timeout != 2*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Temperature != nil {
		t.Fatalf("temperature should be unset, got %v", *cfg.Temperature)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, `
provider: anthropic
model: claude-test
temperature: 0.3
concurrency: 2
timeout: 30s
cli_tools:
  - name: git
    program: git
    description: Run git.
`)
	t.Setenv("CONV_MODEL", "claude-env")
	t.Setenv("CONV_CONCURRENCY", "8")

	cfg, err := config.Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("provider: %q", cfg.Provider)
	}
	if cfg.Model != "claude-env" {
		t.Errorf("env should override file model, got %q", cfg.Model)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("concurrency: %d", cfg.Concurrency)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.3 {
		t.Errorf("temperature: %v", cfg.Temperature)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout: %s", cfg.Timeout)
	}
	if len(cfg.CLITools) != 1 || cfg.CLITools[0].Description != "Run git." {
		t.Errorf("cli tools: %+v", cfg.CLITools)
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONV_CONFIG", writeFile(t, "model: from-env-path\n"))
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "from-env-path" {
		t.Fatalf("model: %q", cfg.Model)
	}
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load(writeFile(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Concurrency != 4 {
		t.Fatalf("concurrency: %d", cfg.Concurrency)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{"unknown key", "modle: x\n", nil, "modle"},
		{"bad provider", "provider: gemini\n", nil, "provider"},
		{"bad effort", "", map[string]string{"CONV_REASONING_EFFORT": "extreme"}, "extreme"},
		{"bad temperature", "", map[string]string{"CONV_TEMPERATURE": "hot"}, "CONV_TEMPERATURE"},
		{"temperature range", "temperature: 3\n", nil, "temperature"},
		{"zero concurrency", "", map[string]string{"CONV_CONCURRENCY": "0"}, "concurrency"},
		{"bad timeout", "", map[string]string{"CONV_TIMEOUT": "soon"}, "CONV_TIMEOUT"},
		{"bad log level", "log_level: loud\n", nil, "loud"},
		{"duplicate cli tool", "", map[string]string{"CONV_CLI_TOOLS": "git,git"}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			p := ""
			if tt.file != "" {
				p = writeFile(t, tt.file)
			}
			_, err := config.Load(p)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestParseCLITools(t *testing.T) {
	got := config.ParseCLITools(" git , search=rg,, ls=ls ")
	want := []config.CLITool{
		{Name: "git", Program: "git"},
		{Name: "search", Program: "rg"},
		{Name: "ls", Program: "ls"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}
