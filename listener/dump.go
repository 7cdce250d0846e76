package listener

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/petasbytes/go-conv/conv"
)

// Dump writes every message to its own file, <dir>/<conv>_<n>_<role>.txt,
// where n counts messages per conversation.
type Dump struct {
	dir string
	log *slog.Logger

	mu       sync.Mutex
	counters map[string]int
}

// NewDump creates dir if needed.
func NewDump(dir string, log *slog.Logger) (*Dump, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dump dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dump{dir: dir, log: log, counters: map[string]int{}}, nil
}

func (d *Dump) Before(_ context.Context, convID string, msgs []conv.Message) {
	for _, m := range msgs {
		d.write(convID, m)
	}
}

func (d *Dump) After(_ context.Context, convID string, msg conv.Message) {
	d.write(convID, msg)
}

func (d *Dump) write(convID string, m conv.Message) {
	d.mu.Lock()
	n := d.counters[convID]
	d.counters[convID] = n + 1
	d.mu.Unlock()

	name := filepath.Join(d.dir, fmt.Sprintf("%s_%d_%s.txt", convID, n, m.Role()))
	if err := os.WriteFile(name, []byte(m.Text()), 0o644); err != nil {
		d.log.Warn("dump message", "conv_id", convID, "path", name, "error", err)
	}
}
