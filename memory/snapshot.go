package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/petasbytes/go-conv/conv"
)

// snapshot is the persisted view of a conversation. Handlers, tools and
// schemas are code, not data; callers re-supply them on Load.
type snapshot struct {
	ID              string               `json:"id"`
	Model           string               `json:"model"`
	Temperature     *float64             `json:"temperature,omitempty"`
	ReasoningEffort conv.ReasoningEffort `json:"reasoning_effort"`
	Messages        []conv.Message       `json:"messages"`
}

// Save writes c's lineage to path as indented JSON.
func Save(path string, c *conv.Conversation) error {
	if c == nil {
		return errors.New("memory: nil conversation")
	}
	s := snapshot{
		ID:              c.ID(),
		Model:           c.Model(),
		ReasoningEffort: c.ReasoningEffort(),
		Messages:        c.Messages(),
	}
	if t, ok := c.Temperature(); ok {
		s.Temperature = &t
	}
	b, err := json.MarshalIndent(s, "", " ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

// Load restores a conversation saved by Save. A missing file yields a nil
// conversation and no error. opts are applied after the stored settings, so
// handlers and tools can be attached here. The restored messages count as
// already reported to listeners.
func Load(path string, opts ...conv.Option) (*conv.Conversation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var s snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("memory: decode %s: %w", path, err)
	}

	base := []conv.Option{conv.WithID(s.ID), conv.WithReasoningEffort(s.ReasoningEffort)}
	if s.Temperature != nil {
		base = append(base, conv.WithTemperature(*s.Temperature))
	}
	c, err := conv.New(s.Model, s.Messages, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("memory: restore %s: %w", path, err)
	}
	return c.MarkReported(), nil
}
