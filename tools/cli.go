package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CLIError reports a non-zero exit from a CLI tool.
type CLIError struct {
	Program  string
	ExitCode int
	Stderr   string
}

func (e *CLIError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Program, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// CLIInput is the argument shape of every CLI tool.
type CLIInput struct {
	CommandArguments []string `json:"command_arguments" jsonschema_description:"Arguments passed to the program, without the program name itself."`
}

// maxCLIOutput caps the stdout returned to the model.
const maxCLIOutput = 64 * 1024

// NewCLI exposes program as a tool named name. The model supplies only the
// arguments; the program itself is fixed.
func NewCLI(name, program, description string) Tool {
	if description == "" {
		description = fmt.Sprintf("Run the %s command line program with the given arguments and return its standard output.", program)
	}
	return New(Definition{
		Name:        name,
		Description: description,
		InputSchema: GenerateSchema[CLIInput](),
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in CLIInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			return RunCLI(ctx, program, in.CommandArguments...)
		},
	})
}

// RunCLI runs program with args and returns its stdout. Arguments wrapped in
// matching quotes are unquoted first.
func RunCLI(ctx context.Context, program string, args ...string) (string, error) {
	argv := make([]string, 0, len(args))
	for i, a := range args {
		// Models frequently repeat the program name as the first argument.
		if i == 0 && a == program {
			continue
		}
		argv = append(argv, unquote(a))
	}

	cmd := exec.CommandContext(ctx, program, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &CLIError{Program: program, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("run %s: %w", program, err)
	}

	out := stdout.String()
	if len(out) > maxCLIOutput {
		out = out[:maxCLIOutput] + "\n[truncated]"
	}
	return out, nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		if s[0] == '"' {
			if u, err := strconv.Unquote(s); err == nil {
				return u
			}
		}
		return s[1 : len(s)-1]
	}
	return s
}
