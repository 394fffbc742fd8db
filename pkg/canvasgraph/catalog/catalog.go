// Package catalog describes the node types available to a workflow
// canvas and instantiates nodes from them.
//
// A catalog groups node type descriptors by category (primitives, llm,
// logic, ...). Descriptors carry the per-type defaults a freshly
// dropped node starts with: visual tag, schemas, and prompt templates.
// Catalogs load from JSON or YAML documents validated against a JSON
// schema, or from Builtin.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
)

var (
	// ErrTypeNotFound indicates an unknown node type name.
	ErrTypeNotFound = errors.New("node type not found")

	// ErrDuplicateType indicates a type name declared twice across the
	// catalog's categories.
	ErrDuplicateType = errors.New("duplicate node type")

	// ErrInvalidCatalog indicates a catalog document failing schema
	// validation.
	ErrInvalidCatalog = errors.New("invalid catalog document")
)

// VisualTag is the canvas appearance of a node type.
type VisualTag struct {
	Color   string `json:"color" yaml:"color"`
	Acronym string `json:"acronym" yaml:"acronym"`
}

// Descriptor declares one node type: its wire name, appearance, and the
// default config a new instance starts from.
type Descriptor struct {
	Name   string                 `json:"name" yaml:"name"`
	Visual VisualTag              `json:"visual_tag" yaml:"visual_tag"`
	Config canvasgraph.NodeConfig `json:"config" yaml:"config"`
}

// Catalog is an immutable set of node type descriptors grouped by
// category.
type Catalog struct {
	categories map[string][]Descriptor
	index      map[string]Descriptor
}

// New builds a catalog from categorized descriptors. Type names must be
// unique across all categories.
func New(categories map[string][]Descriptor) (Catalog, error) {
	c := Catalog{
		categories: make(map[string][]Descriptor, len(categories)),
		index:      make(map[string]Descriptor),
	}
	for category, descs := range categories {
		for _, d := range descs {
			if _, dup := c.index[d.Name]; dup {
				return Catalog{}, fmt.Errorf("%w: %s", ErrDuplicateType, d.Name)
			}
			c.index[d.Name] = d
		}
		c.categories[category] = append([]Descriptor(nil), descs...)
	}
	return c, nil
}

// Lookup returns the descriptor for the given type name.
func (c Catalog) Lookup(typeName string) (Descriptor, bool) {
	d, ok := c.index[typeName]
	return d, ok
}

// Categories returns the category names in sorted order.
func (c Catalog) Categories() []string {
	out := make([]string, 0, len(c.categories))
	for name := range c.categories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Descriptors returns the descriptors of one category.
func (c Catalog) Descriptors(category string) []Descriptor {
	return append([]Descriptor(nil), c.categories[category]...)
}

// Types returns every type name in sorted order.
func (c Catalog) Types() []string {
	out := make([]string, 0, len(c.index))
	for name := range c.index {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// documentSchema constrains catalog documents: a map of category name
// to descriptor list.
const documentSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": {
		"type": "array",
		"items": {
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"visual_tag": {
					"type": "object",
					"properties": {
						"color": {"type": "string"},
						"acronym": {"type": "string"}
					}
				},
				"config": {"type": "object"}
			}
		}
	}
}`

// LoadJSON parses and validates a JSON catalog document.
func LoadJSON(data []byte) (Catalog, error) {
	if err := validateDocument(data); err != nil {
		return Catalog{}, err
	}
	var categories map[string][]Descriptor
	if err := json.Unmarshal(data, &categories); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(categories)
}

// LoadYAML parses and validates a YAML catalog document. The document
// is converted to JSON first so the same schema governs both formats.
func LoadYAML(data []byte) (Catalog, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return LoadJSON(jsonData)
}

// LoadFile loads a catalog from a .json, .yaml, or .yml file.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		return LoadJSON(data)
	}
}

// validateDocument checks the raw JSON against documentSchema.
func validateDocument(data []byte) error {
	compiler := jsonschema.NewCompiler()
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchema))
	if err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}
	if err := compiler.AddResource("catalog.json", schemaDoc); err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}
	schema, err := compiler.Compile("catalog.json")
	if err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return nil
}
