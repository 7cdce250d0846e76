package fsops_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/petasbytes/go-conv/internal/fsops"
	"github.com/petasbytes/go-conv/internal/safety"
)

func setupSandbox(t *testing.T) *safety.Sandbox {
	t.Helper()
	sb, err := safety.NewSandbox(t.TempDir(), "")
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	return sb
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("prepare: %v", err)
	}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var te safety.ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ToolError, got %T: %v", err, err)
	}
	if te.Code != code {
		t.Fatalf("unexpected code: %s", te.Code)
	}
}

func TestReadFile_HappyPath(t *testing.T) {
	sb := setupSandbox(t)
	want := "hello world"
	mustWrite(t, filepath.Join(sb.ReadRoot, "a.txt"), want)

	got, err := fsops.ReadFile(sb, "a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != want {
		t.Fatalf("content mismatch: got %q want %q", got, want)
	}
}

func TestReadFile_DirectoryIsNotAFile(t *testing.T) {
	sb := setupSandbox(t)
	if err := os.MkdirAll(filepath.Join(sb.ReadRoot, "sub"), 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	_, err := fsops.ReadFile(sb, "sub")
	wantCode(t, err, safety.CodeNotAFile)
}

func TestReadFile_Missing(t *testing.T) {
	sb := setupSandbox(t)
	_, err := fsops.ReadFile(sb, "nope.txt")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestListFiles_JSONAndSuffixes(t *testing.T) {
	sb := setupSandbox(t)
	for _, name := range []string{"a.txt", "b.txt"} {
		mustWrite(t, filepath.Join(sb.ReadRoot, name), "x")
	}
	if err := os.MkdirAll(filepath.Join(sb.ReadRoot, "sub"), 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	raw, err := fsops.ListFiles(sb, "")
	if err != nil {
		t.Fatalf("ListFiles(\"\"): %v", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := map[string]bool{}
	for _, n := range names {
		got[n] = true
	}
	for _, want := range []string{"a.txt", "b.txt", "sub/"} {
		if !got[want] {
			t.Fatalf("missing entry %q in %v", want, names)
		}
	}

	raw2, err := fsops.ListFiles(sb, "sub")
	if err != nil {
		t.Fatalf("ListFiles(sub): %v", err)
	}
	if raw2 != "[]" {
		t.Fatalf("expected empty subdir list, got %s", raw2)
	}
}

func TestWriteFile_HappyPathNested(t *testing.T) {
	sb := setupSandbox(t)
	if err := fsops.WriteFile(sb, filepath.Join("nested", "dir", "out.txt"), "hello"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(sb.WriteRoot, "nested", "dir", "out.txt"))
	if err != nil {
		t.Fatalf("verify read: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("content mismatch: got %q", string(b))
	}
}

func TestErrorPropagation(t *testing.T) {
	sb := setupSandbox(t)
	mustWrite(t, filepath.Join(sb.ReadRoot, ".conv", "events.jsonl"), "{}")

	_, err := fsops.ReadFile(sb, ".conv/events.jsonl")
	wantCode(t, err, safety.CodeDeniedRead)

	_, err = fsops.ListFiles(sb, "../")
	wantCode(t, err, safety.CodeOutsideSandbox)

	err = fsops.WriteFile(sb, ".git/HEAD", "ref: refs/heads/main\n")
	wantCode(t, err, safety.CodeDeniedWrite)
}
