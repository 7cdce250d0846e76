package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Memoize caches responses on disk under dir, keyed by a hash of the whole
// request. Natively parsed payloads are not cached; callers re-extract them
// from the message text.
func Memoize(b Backend, dir string) (Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &memo{next: b, dir: dir}, nil
}

type memo struct {
	next Backend
	dir  string
}

// RequestKey is the cache key for req.
func RequestKey(req Request) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func (m *memo) Complete(ctx context.Context, req Request) (Response, error) {
	key, err := RequestKey(req)
	if err != nil {
		return m.next.Complete(ctx, req)
	}
	path := filepath.Join(m.dir, key+".json")

	if b, err := os.ReadFile(path); err == nil {
		var cached Response
		if err := json.Unmarshal(b, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Response{}, fmt.Errorf("read cache: %w", err)
	}

	resp, err := m.next.Complete(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if err := writeAtomic(path, resp); err != nil {
		return Response{}, fmt.Errorf("write cache: %w", err)
	}
	return resp, nil
}

func writeAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".memo-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
