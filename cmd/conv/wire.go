package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/petasbytes/go-conv/backend"
	anthropicbackend "github.com/petasbytes/go-conv/backend/anthropic"
	openaibackend "github.com/petasbytes/go-conv/backend/openai"
	"github.com/petasbytes/go-conv/driver"
	"github.com/petasbytes/go-conv/internal/config"
	"github.com/petasbytes/go-conv/internal/telemetry"
	"github.com/petasbytes/go-conv/internal/transcript"
	"github.com/petasbytes/go-conv/listener"
	"github.com/petasbytes/go-conv/tools"
)

const (
	queueSize    = 64
	closeTimeout = 5 * time.Second
	retryBase    = 500 * time.Millisecond
	retryMax     = 8 * time.Second
)

// app holds everything assembled from the configuration.
type app struct {
	driver  *driver.Driver
	tools   *tools.Set
	closers []func(context.Context) error
	log     *slog.Logger
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	// Reverse order: queues drain before the stores behind them close.
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("shutdown", "error", err)
		}
	}
}

func defaultModel(provider string) string {
	if provider == config.ProviderAnthropic {
		return string(anthropicbackend.DefaultModel)
	}
	return openaibackend.DefaultModel
}

// newBackend builds the provider adapter and its decorators, innermost first:
// per-attempt timeout, retry, optional disk cache, optional context window.
func newBackend(cfg config.Config, log *slog.Logger) (backend.Backend, error) {
	var b backend.Backend
	switch cfg.Provider {
	case config.ProviderAnthropic:
		b = anthropicbackend.New()
	default:
		b = openaibackend.New()
	}

	b = backend.WithTimeout(b, cfg.Timeout)
	b = backend.Retry(b, backend.RetryConfig{
		MaxAttempts: cfg.Retries + 1,
		Backoff:     backend.ExponentialBackoff(retryBase, retryMax),
	})
	if cfg.CacheDir != "" {
		m, err := backend.Memoize(b, cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		b = m
	}
	return backend.Window(b, cfg.ContextBudget, log), nil
}

func newTools(cfg config.Config) (*tools.Set, error) {
	var ts []tools.Tool
	for _, t := range cfg.CLITools {
		ts = append(ts, tools.NewCLI(t.Name, t.Program, t.Description))
	}
	if cfg.Workspace != "" {
		ws, err := tools.Workspace(cfg.Workspace, cfg.WorkspaceWrite)
		if err != nil {
			return nil, err
		}
		ts = append(ts, ws...)
	}
	return tools.NewSet(ts...)
}

// assemble wires backend, tools, listeners and the driver. The console
// listener is attached only when the conversation is interactive.
func assemble(ctx context.Context, cfg config.Config, log *slog.Logger, interactive bool, stdout io.Writer) (*app, error) {
	a := &app{log: log}

	b, err := newBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	if a.tools, err = newTools(cfg); err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}

	ls := []listener.Listener{telemetry.NewListener()}
	if interactive {
		ls = append(ls, listener.NewConsole(stdout))
	}
	if cfg.DumpDir != "" {
		dump, err := listener.NewDump(cfg.DumpDir, log)
		if err != nil {
			return nil, err
		}
		ls = append(ls, dump)
	}
	if cfg.TranscriptDB != "" {
		store, err := transcript.Open(ctx, cfg.TranscriptDB, log)
		if err != nil {
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		q := listener.NewQueue(store, queueSize, log)
		a.closers = append(a.closers, q.Close)
		ls = append(ls, q)
	}

	a.driver = driver.New(b,
		driver.WithGate(driver.NewGate(cfg.Concurrency)),
		driver.WithListeners(ls...),
		driver.WithLogger(log),
		driver.WithEvents(telemetry.Emit),
	)
	log.Debug("assembled",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"tools", a.tools.Len(),
		"listeners", len(ls),
	)
	return a, nil
}
