package extract

import (
	"fmt"
	"strings"
)

const (
	fenceOpen  = "```json"
	fenceClose = "```"
)

// StructuredOutputError reports model text that did not match the requested schema.
type StructuredOutputError struct {
	Schema string
	Raw    string
	Err    error
}

func (e *StructuredOutputError) Error() string {
	return fmt.Sprintf("structured output does not match schema %q: %v", e.Schema, e.Err)
}

func (e *StructuredOutputError) Unwrap() error { return e.Err }

// StripFence trims whitespace and removes ```json ... ``` fences around text,
// repeating until none is left. A closing fence is only removed when present,
// so truncated output keeps its tail.
func StripFence(text string) string {
	txt := strings.TrimSpace(text)
	for strings.HasPrefix(txt, fenceOpen) {
		txt = strings.TrimPrefix(txt, fenceOpen)
		txt = strings.TrimSuffix(txt, fenceClose)
		txt = strings.TrimSpace(txt)
	}
	return txt
}

// Extract returns the structured payload for one model reply.
// parsed is a backend-native, already validated payload (nil when absent).
func Extract(text string, parsed any, s *Schema) (any, error) {
	if parsed != nil {
		return parsed, nil
	}
	txt := StripFence(text)
	if s == nil {
		return txt, nil
	}
	return s.Decode(txt)
}

// As converts an extracted payload to T.
func As[T any](payload any) (T, error) {
	var zero T
	switch v := payload.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	return zero, fmt.Errorf("extract: payload is %T, want %T", payload, zero)
}
