package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema describes the Go type a structured reply must decode into.
// It carries the JSON schema sent to backends and a compiled validator.
type Schema struct {
	name     string
	typ      reflect.Type
	document map[string]any
	compiled *validator.Schema
}

// NewSchema builds a Schema for T. Struct fields without omitempty are required
// and unknown properties are rejected.
func NewSchema[T any]() (*Schema, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil, errors.New("extract: schema type must be concrete")
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	raw, err := json.Marshal(reflector.Reflect(zero))
	if err != nil {
		return nil, fmt.Errorf("extract: marshal schema: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("extract: decode schema: %w", err)
	}
	// Backends reject meta keys in response formats; the validator doesn't need them.
	delete(doc, "$schema")
	delete(doc, "$id")

	compiled, err := compile(doc)
	if err != nil {
		return nil, err
	}
	return &Schema{
		name:     schemaName(typ),
		typ:      typ,
		document: doc,
		compiled: compiled,
	}, nil
}

// MustSchema is NewSchema for package-level declarations; it panics on error.
func MustSchema[T any]() *Schema {
	s, err := NewSchema[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// Name is a backend-safe identifier for the schema.
func (s *Schema) Name() string { return s.name }

// Document returns a copy of the JSON schema.
func (s *Schema) Document() map[string]any {
	return cloneMap(s.document)
}

// MarshalJSON encodes the schema document, so requests carrying a Schema stay hashable.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.document)
}

// Decode validates text against the schema and decodes it into the schema's type.
// The returned value has the schema's Go type (not a pointer).
func (s *Schema) Decode(text string) (any, error) {
	inst, err := validator.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, &StructuredOutputError{Schema: s.name, Raw: text, Err: err}
	}
	if err := s.compiled.Validate(inst); err != nil {
		return nil, &StructuredOutputError{Schema: s.name, Raw: text, Err: err}
	}
	ptr := reflect.New(s.typ)
	if err := json.Unmarshal([]byte(text), ptr.Interface()); err != nil {
		return nil, &StructuredOutputError{Schema: s.name, Raw: text, Err: err}
	}
	return ptr.Elem().Interface(), nil
}

func compile(doc map[string]any) (*validator.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("extract: marshal schema: %w", err)
	}
	res, err := validator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("extract: load schema: %w", err)
	}
	c := validator.NewCompiler()
	c.DefaultDraft(validator.Draft2020)
	if err := c.AddResource("schema.json", res); err != nil {
		return nil, fmt.Errorf("extract: add schema: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("extract: compile schema: %w", err)
	}
	return compiled, nil
}

func schemaName(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	name := typ.Name()
	if name == "" {
		return "response"
	}
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = cloneMap(vv)
		case []any:
			out[k] = cloneSlice(vv)
		default:
			out[k] = v
		}
	}
	return out
}

func cloneSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		switch vv := v.(type) {
		case map[string]any:
			out[i] = cloneMap(vv)
		case []any:
			out[i] = cloneSlice(vv)
		default:
			out[i] = v
		}
	}
	return out
}
