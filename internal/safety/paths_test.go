package safety_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/petasbytes/go-conv/internal/safety"
)

func newSandbox(t *testing.T) (*safety.Sandbox, string) {
	t.Helper()
	root := t.TempDir()
	sb, err := safety.NewSandbox(root, "")
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	return sb, sb.ReadRoot
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	var te safety.ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ToolError, got %T: %v", err, err)
	}
	if te.Code != code {
		t.Fatalf("expected code %s, got %s", code, te.Code)
	}
}

func TestNewSandbox_WriteDefaultsToRead(t *testing.T) {
	sb, root := newSandbox(t)
	if sb.WriteRoot != root {
		t.Fatalf("write root: got %q want %q", sb.WriteRoot, root)
	}
}

func TestValidateRead_BasicRejections(t *testing.T) {
	sb, _ := newSandbox(t)

	abs, err := filepath.Abs(".")
	if err != nil {
		t.Skipf("cannot compute absolute path: %v", err)
	}
	_, err = sb.ValidateRead(abs)
	wantCode(t, err, safety.CodeOutsideSandbox)

	_, err = sb.ValidateRead("../../x")
	wantCode(t, err, safety.CodeOutsideSandbox)
}

func TestValidateRead_Denylist(t *testing.T) {
	sb, root := newSandbox(t)
	_ = os.Mkdir(filepath.Join(root, ".conv"), 0o755)
	_ = os.Mkdir(filepath.Join(root, ".git"), 0o755)

	for _, p := range []string{".conv/events.jsonl", ".git/HEAD", ".git", "sub/../.git/config"} {
		_, err := sb.ValidateRead(p)
		wantCode(t, err, safety.CodeDeniedRead)
	}
	if _, err := sb.ValidateRead(".gitignore"); err != nil {
		t.Fatalf(".gitignore should be readable: %v", err)
	}
	if _, err := sb.ValidateRead("go.mod"); err != nil {
		t.Fatalf("go.mod should be readable: %v", err)
	}
}

func TestValidateWrite_Denylist(t *testing.T) {
	sb, root := newSandbox(t)
	_ = os.Mkdir(filepath.Join(root, ".git"), 0o755)
	_ = os.MkdirAll(filepath.Join(root, ".conv", "sub"), 0o755)

	cases := []struct {
		name string
		rel  string
	}{
		{"git head", ".git/HEAD"},
		{"conv events", ".conv/events.jsonl"},
		{"conv subdir", ".conv/sub/state.json"},
		{"go.mod at root", "go.mod"},
		{"go.sum deep", "sub/dir/go.sum"},
		{"root itself", "."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := sb.ValidateWrite(tc.rel)
			wantCode(t, err, safety.CodeDeniedWrite)
		})
	}
}

func TestValidateWrite_NewNestedFileAllowed(t *testing.T) {
	sb, root := newSandbox(t)
	got, err := sb.ValidateWrite("a/b/c.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(root, "a", "b", "c.txt"); got != want {
		t.Fatalf("path: got %q want %q", got, want)
	}
}

func TestValidate_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test skipped on Windows")
	}
	sb, root := newSandbox(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "out")); err != nil {
		t.Skipf("symlink not allowed on this FS: %v", err)
	}

	_, err := sb.ValidateRead("out/escape.txt")
	wantCode(t, err, safety.CodeOutsideSandbox)
	_, err = sb.ValidateWrite("out/escape.txt")
	wantCode(t, err, safety.CodeOutsideSandbox)
}

func TestToolError_JSON(t *testing.T) {
	got := safety.ToolError{Code: safety.CodeNotAFile, Message: "path is a directory"}.Error()
	want := `{"code":"ERR_NOT_A_FILE","message":"path is a directory"}`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
