package fsops

import (
	"os"
	"path/filepath"

	"github.com/petasbytes/go-conv/internal/safety"
)

// WriteFile writes content to a file addressed by a relative path under the sandbox write root,
// creating parent directories as needed.
func WriteFile(sb *safety.Sandbox, relPath, content string) error {
	absPath, err := sb.ValidateWrite(relPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(absPath, []byte(content), 0o644)
}
