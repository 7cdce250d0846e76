package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/petasbytes/go-conv/internal/fsops"
	"github.com/petasbytes/go-conv/internal/safety"
)

type ReadFileInput struct {
	Path   string `json:"path" jsonschema_description:"Relative file path."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"Line offset (0-based) to start reading from."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum lines to return from offset (default 200)."`
}

type ListFilesInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"Optional relative path to list files from (defaults to the workspace root)."`
}

type WriteFileInput struct {
	Path    string `json:"path" jsonschema_description:"Relative file path. Parent directories are created."`
	Content string `json:"content" jsonschema_description:"Full new file content."`
}

const (
	defaultReadFileLimit = 200
	maxLineRunes         = 2000
	overallRuneCap       = 12_000
	truncationSentinel   = "-- truncated; use offset/limit to fetch more --\n"
)

// Workspace returns file tools confined to root: read_file and list_files,
// plus write_file when writable is set. Sandbox violations are reported to
// the model as JSON error bodies.
func Workspace(root string, writable bool) ([]Tool, error) {
	sb, err := safety.NewSandbox(root, "")
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	ts := []Tool{
		New(Definition{
			Name:        "read_file",
			Description: "Read the contents of a file addressed by a relative file path within the workspace. Directory paths and unsafe paths are rejected.",
			InputSchema: GenerateSchema[ReadFileInput](),
			Function: func(_ context.Context, input json.RawMessage) (string, error) {
				return readFile(sb, input)
			},
		}),
		New(Definition{
			Name:        "list_files",
			Description: "List names of files in a directory within the workspace (non-recursive). Directories end with a slash.",
			InputSchema: GenerateSchema[ListFilesInput](),
			Function: func(_ context.Context, input json.RawMessage) (string, error) {
				return listFiles(sb, input)
			},
		}),
	}
	if writable {
		ts = append(ts, New(Definition{
			Name:        "write_file",
			Description: "Create or overwrite a file within the workspace with the given content.",
			InputSchema: GenerateSchema[WriteFileInput](),
			Function: func(_ context.Context, input json.RawMessage) (string, error) {
				var in WriteFileInput
				if err := json.Unmarshal(input, &in); err != nil {
					return "", err
				}
				if err := fsops.WriteFile(sb, in.Path, in.Content); err != nil {
					return "", err
				}
				return fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path), nil
			},
		}))
	}
	return ts, nil
}

// readFile pages through a file by line. When not everything is returned a
// trailing sentinel tells the model to ask for more.
func readFile(sb *safety.Sandbox, input json.RawMessage) (string, error) {
	var in ReadFileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	content, err := fsops.ReadFile(sb, in.Path)
	if err != nil {
		return "", err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultReadFileLimit
	}
	offset := max(in.Offset, 0)

	lines := strings.Split(content, "\n")
	offset = min(offset, len(lines))
	end := min(offset+limit, len(lines))

	truncated := end < len(lines)
	for i := offset; i < end; i++ {
		if clamped, did := clampRunes(lines[i], maxLineRunes); did {
			lines[i] = clamped
			truncated = true
		}
	}

	out := strings.Join(lines[offset:end], "\n")
	if clamped, did := clampRunes(out, overallRuneCap); did {
		out = clamped
		truncated = true
	}

	if truncated {
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += truncationSentinel
	}
	return out, nil
}

func listFiles(sb *safety.Sandbox, input json.RawMessage) (string, error) {
	var in ListFilesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	raw, err := fsops.ListFiles(sb, in.Path)
	if err != nil {
		return "", err
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return "", err
	}
	sort.Strings(names)
	b, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// clampRunes cuts s to at most n runes.
func clampRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
