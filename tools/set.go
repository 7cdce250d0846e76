package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ErrToolNameEmpty = errors.New("tool name is empty")
	ErrDuplicateTool = errors.New("tool name registered twice")
)

// UnknownToolError reports a call to a tool that was never advertised to the model.
type UnknownToolError struct {
	Name   string
	CallID string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q requested by call %s", e.Name, e.CallID)
}

// Descriptor is the backend-facing description of a tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Set is an ordered collection of tools with unique names. A nil *Set is empty.
type Set struct {
	list   []Tool
	byName map[string]Tool
}

// NewSet validates and indexes ts, keeping their order.
func NewSet(ts ...Tool) (*Set, error) {
	s := &Set{list: make([]Tool, 0, len(ts)), byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		name := t.Name()
		if name == "" {
			return nil, ErrToolNameEmpty
		}
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, name)
		}
		s.list = append(s.list, t)
		s.byName[name] = t
	}
	return s, nil
}

// MustSet is NewSet that panics on invalid input.
func MustSet(ts ...Tool) *Set {
	s, err := NewSet(ts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len reports the number of tools.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.list)
}

// Tools returns the tools in registration order.
func (s *Set) Tools() []Tool {
	if s == nil {
		return nil
	}
	return append([]Tool(nil), s.list...)
}

// Resolve finds the tool for a call by exact name.
func (s *Set) Resolve(name, callID string) (Tool, error) {
	if s != nil {
		if t, ok := s.byName[name]; ok {
			return t, nil
		}
	}
	return nil, &UnknownToolError{Name: name, CallID: callID}
}

// Descriptors describes every tool for a backend request. Parameter schemas are
// forced to be closed objects (additionalProperties=false).
func (s *Set) Descriptors() ([]Descriptor, error) {
	if s.Len() == 0 {
		return nil, nil
	}
	out := make([]Descriptor, 0, len(s.list))
	for _, t := range s.list {
		params, err := closedSchema(t.Parameters())
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name(), err)
		}
		out = append(out, Descriptor{Name: t.Name(), Description: t.Description(), Parameters: params})
	}
	return out, nil
}

func closedSchema(schema map[string]any) (json.RawMessage, error) {
	b := []byte(`{}`)
	if schema != nil {
		var err error
		if b, err = json.Marshal(schema); err != nil {
			return nil, err
		}
	}
	var err error
	if !gjson.GetBytes(b, "type").Exists() {
		if b, err = sjson.SetBytes(b, "type", "object"); err != nil {
			return nil, err
		}
	}
	if !gjson.GetBytes(b, "properties").Exists() {
		if b, err = sjson.SetRawBytes(b, "properties", []byte(`{}`)); err != nil {
			return nil, err
		}
	}
	if b, err = sjson.SetBytes(b, "additionalProperties", false); err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
