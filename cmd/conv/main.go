// Command conv talks to a chat model from the terminal. With a prompt
// argument it asks once and prints the reply; otherwise it runs an
// interactive conversation on stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/driver"
	"github.com/petasbytes/go-conv/internal/config"
	"github.com/petasbytes/go-conv/internal/logging"
	"github.com/petasbytes/go-conv/memory"
)

type flags struct {
	config   string
	provider string
	model    string
	system   string
	snapshot string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "YAML config file (default $CONV_CONFIG)")
	flag.StringVar(&f.provider, "provider", "", "backend provider: openai or anthropic")
	flag.StringVar(&f.model, "model", "", "model name (default depends on provider)")
	flag.StringVar(&f.system, "system", "", "system prompt for new conversations")
	flag.StringVar(&f.snapshot, "snapshot", "", "JSON file to resume from and save the conversation to")
	flag.Parse()

	// Set up graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, strings.Join(flag.Args(), " "), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags, prompt string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if f.provider != "" {
		cfg.Provider = f.provider
	}
	if f.model != "" {
		cfg.Model = f.model
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel(cfg.Provider)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, level)

	a, err := assemble(ctx, cfg, log, prompt == "", stdout)
	if err != nil {
		return err
	}
	defer a.close()

	opts, err := conversationOptions(cfg, a)
	if err != nil {
		return err
	}

	if prompt != "" {
		return oneshot(ctx, a.driver, cfg.Model, f, prompt, opts, stdout)
	}
	return interactive(ctx, a.driver, cfg.Model, f, opts, stdin, stdout, log)
}

// conversationOptions are the settings applied to every new or resumed conversation.
func conversationOptions(cfg config.Config, a *app) ([]conv.Option, error) {
	effort, err := conv.ParseReasoningEffort(cfg.ReasoningEffort)
	if err != nil {
		return nil, err
	}
	opts := []conv.Option{conv.WithReasoningEffort(effort)}
	if cfg.Temperature != nil {
		opts = append(opts, conv.WithTemperature(*cfg.Temperature))
	}
	if a.tools.Len() > 0 {
		opts = append(opts, conv.WithTools(a.tools))
	}
	return opts, nil
}

func initial(system, user string) []conv.Message {
	var msgs []conv.Message
	if system != "" {
		msgs = append(msgs, conv.System(system))
	}
	return append(msgs, conv.User(user))
}

// oneshot asks a single question and prints the reply. With --snapshot the
// question continues the saved conversation and the result is saved back.
func oneshot(ctx context.Context, d *driver.Driver, model string, f flags, prompt string, opts []conv.Option, stdout io.Writer) error {
	var (
		reply string
		final *conv.Conversation
	)
	capture := func(_ context.Context, c *conv.Conversation, r conv.Reply) (*conv.Conversation, error) {
		reply, _ = r.Payload.(string)
		final = c
		return nil, nil
	}
	opts = append(opts, conv.WithHandler(capture))

	c, err := resume(f.snapshot, opts)
	if err != nil {
		return err
	}
	if c != nil {
		c = c.Respond(prompt)
	} else if c, err = conv.New(model, initial(f.system, prompt), opts...); err != nil {
		return err
	}

	last, err := d.Run(ctx, c)
	if final == nil {
		final = last
	}
	if serr := save(f.snapshot, final); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return err
	}
	if reply == "" {
		return errors.New("conversation ended without a reply")
	}
	fmt.Fprintln(stdout, reply)
	return nil
}

// interactive runs one conversation whose handlers read the next user line
// from stdin. EOF or a signal ends it.
func interactive(ctx context.Context, d *driver.Driver, model string, f flags, opts []conv.Option, stdin io.Reader, stdout io.Writer, log *slog.Logger) error {
	lines := readLines(ctx, stdin)
	next := func(ctx context.Context) (string, bool) {
		fmt.Fprint(stdout, "\u001b[94mYou\u001b[0m: ")
		select {
		case <-ctx.Done():
			return "", false
		case l, ok := <-lines:
			return l, ok
		}
	}
	onReply := func(ctx context.Context, c *conv.Conversation, _ conv.Reply) (*conv.Conversation, error) {
		line, ok := next(ctx)
		if !ok {
			return nil, nil
		}
		return c.Respond(line), nil
	}
	onFailure := func(ctx context.Context, c *conv.Conversation, reason conv.FinishReason, _ conv.Message) (*conv.Conversation, error) {
		log.Warn("reply ended early", "conv_id", c.ID(), "finish_reason", reason)
		line, ok := next(ctx)
		if !ok {
			return nil, nil
		}
		return c.Respond(line), nil
	}
	onInvalid := func(_ context.Context, c *conv.Conversation, err error) (*conv.Conversation, error) {
		log.Warn("invalid structured output", "conv_id", c.ID(), "error", err)
		return nil, nil
	}
	opts = append(opts,
		conv.WithHandler(onReply),
		conv.WithFailureHandler(onFailure),
		conv.WithInvalidOutputHandler(onInvalid),
	)

	c, err := resume(f.snapshot, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Chat with the model (Ctrl-C to quit)")
	first, ok := next(ctx)
	if !ok {
		return nil
	}
	if c != nil {
		c = c.Respond(first)
	} else if c, err = conv.New(model, initial(f.system, first), opts...); err != nil {
		return err
	}

	final, err := d.Run(ctx, c)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stdout, "\nExiting...")
		err = nil
	}
	if serr := save(f.snapshot, final); serr != nil && err == nil {
		err = serr
	}
	return err
}

func resume(path string, opts []conv.Option) (*conv.Conversation, error) {
	if path == "" {
		return nil, nil
	}
	c, err := memory.Load(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return c, nil
}

func save(path string, c *conv.Conversation) error {
	if path == "" || c == nil {
		return nil
	}
	if err := memory.Save(path, c); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// readLines feeds stdin lines into a channel, closed on EOF.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
