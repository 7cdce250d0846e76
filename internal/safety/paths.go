// Package safety provides helpers for sandboxed file access.
package safety

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ToolError is a machine-readable error body for surfacing back to the model as JSON.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string to keep tool result payloads small.
func (e ToolError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

const (
	CodeOutsideSandbox = "ERR_PATH_OUTSIDE_SANDBOX"
	CodeDeniedRead     = "ERR_DENIED_READ"
	CodeDeniedWrite    = "ERR_DENIED_WRITE"
	CodeNotAFile       = "ERR_NOT_A_FILE"
)

// deniedDirs are never readable or writable, relative to a root.
var deniedDirs = []string{".git", ".conv"}

// deniedWriteNames may be read but never written, at any depth.
var deniedWriteNames = []string{"go.mod", "go.sum"}

// Sandbox holds resolved absolute roots for read and write operations.
type Sandbox struct {
	ReadRoot  string
	WriteRoot string
}

// NewSandbox resolves absolute sandbox roots. An empty readRoot means the
// working directory; an empty writeRoot means readRoot.
func NewSandbox(readRoot, writeRoot string) (*Sandbox, error) {
	if readRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		readRoot = cwd
	}
	if writeRoot == "" {
		writeRoot = readRoot
	}

	readRoot, err := filepath.Abs(readRoot)
	if err != nil {
		return nil, fmt.Errorf("abs(readRoot): %w", err)
	}
	writeRoot, err = filepath.Abs(writeRoot)
	if err != nil {
		return nil, fmt.Errorf("abs(writeRoot): %w", err)
	}

	// Resolve symlinks where possible so boundary checks are reliable.
	// A root that does not exist yet is kept as-is.
	if r, err := filepath.EvalSymlinks(readRoot); err == nil {
		readRoot = r
	}
	if w, err := filepath.EvalSymlinks(writeRoot); err == nil {
		writeRoot = w
	}
	return &Sandbox{ReadRoot: readRoot, WriteRoot: writeRoot}, nil
}

// ValidateRead resolves relPath under the read root.
func (s *Sandbox) ValidateRead(relPath string) (string, error) {
	abs, rel, err := resolve(s.ReadRoot, relPath)
	if err != nil {
		return "", err
	}
	if underDenied(rel) {
		return "", ToolError{Code: CodeDeniedRead, Message: "reads under .git/ or .conv/ are not allowed"}
	}
	return abs, nil
}

// ValidateWrite resolves relPath under the write root. On top of the read
// denylist it refuses module files at any depth.
func (s *Sandbox) ValidateWrite(relPath string) (string, error) {
	abs, rel, err := resolve(s.WriteRoot, relPath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", ToolError{Code: CodeDeniedWrite, Message: "cannot write to the sandbox root"}
	}
	if underDenied(rel) {
		return "", ToolError{Code: CodeDeniedWrite, Message: "writes under .git/ or .conv/ are not allowed"}
	}
	base := filepath.Base(rel)
	for _, n := range deniedWriteNames {
		if base == n {
			return "", ToolError{Code: CodeDeniedWrite, Message: n + " is read-only"}
		}
	}
	return abs, nil
}

// resolve joins relPath to absRoot and returns the absolute candidate plus
// its slash-separated form relative to the root. It rejects absolute inputs,
// parent traversal and symlink escapes.
func resolve(absRoot, relPath string) (string, string, error) {
	if filepath.IsAbs(relPath) {
		return "", "", ToolError{Code: CodeOutsideSandbox, Message: "absolute paths are not allowed"}
	}

	cleaned := filepath.Clean(relPath)
	candidate := filepath.Join(absRoot, cleaned)

	// Best-effort symlink resolution: the whole candidate if it exists,
	// otherwise its parent, so a symlinked parent cannot hide an escape.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else if resolvedParent, err := filepath.EvalSymlinks(filepath.Dir(candidate)); err == nil {
		candidate = filepath.Join(resolvedParent, filepath.Base(candidate))
	}

	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", "", ToolError{Code: CodeOutsideSandbox, Message: "requested path resolves outside the sandbox root"}
	}
	return candidate, filepath.ToSlash(rel), nil
}

func underDenied(rel string) bool {
	for _, d := range deniedDirs {
		if rel == d || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	return false
}
