package fsops

import (
	"os"

	"github.com/petasbytes/go-conv/internal/safety"
)

// ReadFile reads a file addressed by a relative path under the sandbox read root.
// Policy violations are returned as safety.ToolError.
func ReadFile(sb *safety.Sandbox, relPath string) (string, error) {
	absPath, err := sb.ValidateRead(relPath)
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", safety.ToolError{Code: safety.CodeNotAFile, Message: "path is a directory"}
	}

	b, err := os.ReadFile(absPath)
	if err != nil {
		return "", err // standard error for I/O issues (not policy)
	}
	return string(b), nil
}
