// Package config reads and writes layer documents: the YAML (or JSON)
// description of a map service's layer tree, its data bindings and its
// symbology.
//
// A document is validated against an embedded JSON Schema before it is
// decoded, so structural mistakes are reported with the offending location
// instead of surfacing later as compile errors.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-layers/internal/style"
)

//go:embed layers.schema.yaml
var schemaYAML []byte

// ErrInvalidDocument wraps every schema violation.
var ErrInvalidDocument = errors.New("invalid layer document")

// Node kinds in a document.
const (
	KindGroup = "group"
	KindLayer = "layer"
)

// Document is a decoded layer document.
type Document struct {
	Service string `json:"service"`
	Layers  []Node `json:"layers,omitempty"`
}

// Node is a group or a layer. Groups only use Children; layers use the
// remaining fields.
type Node struct {
	Kind     string       `json:"kind"`
	ID       string       `json:"id"`
	Children []Node       `json:"children,omitempty"`
	Source   string       `json:"source,omitempty"`
	Table    string       `json:"table,omitempty"`
	Filter   string       `json:"filter,omitempty"`
	Fields   style.Fields `json:"fields,omitempty"`
	Style    style.Model  `json:"style,omitempty"`
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var raw interface{}
		if err := yaml.Unmarshal(schemaYAML, &raw); err != nil {
			compileErr = fmt.Errorf("failed to parse layer schema: %w", err)
			return
		}
		data, err := json.Marshal(raw)
		if err != nil {
			compileErr = fmt.Errorf("failed to marshal layer schema: %w", err)
			return
		}
		compiledSchema, compileErr = jsonschema.CompileString("layers.schema.json", string(data))
	})
	return compiledSchema, compileErr
}

// Parse decodes and validates a layer document. YAML and JSON are both
// accepted.
func Parse(data []byte) (*Document, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse layer document: %w", err)
	}

	// Round-trip through JSON so the validator sees plain JSON values.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert layer document: %w", err)
	}
	var value interface{}
	if err := json.Unmarshal(asJSON, &value); err != nil {
		return nil, fmt.Errorf("failed to convert layer document: %w", err)
	}

	s, err := schema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	var doc Document
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode layer document: %w", err)
	}
	return &doc, nil
}

// Load reads and parses the layer document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Marshal encodes d as YAML.
func Marshal(d *Document) ([]byte, error) {
	asJSON, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var raw interface{}
	if err := json.Unmarshal(asJSON, &raw); err != nil {
		return nil, err
	}
	return yaml.Marshal(raw)
}

// Save writes d to path as YAML.
func Save(path string, d *Document) error {
	data, err := Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode layer document: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
