package capabilities

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/realaman90/koda-sub002/domain/core/entities"
	"gopkg.in/yaml.v3"
)

type document struct {
	Models []ModelCapability `yaml:"models"`
}

// ParseYAML builds a table from a YAML document of the form
//
//	models:
//	  - id: flux-schnell
//	    kind: imageGenerator
//	    inputType: text-only
func ParseYAML(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse capability table: %w", err)
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("capability table has no models")
	}
	return NewTable(doc.Models)
}

// LoadYAML reads and parses a YAML capability table
func LoadYAML(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read capability table: %w", err)
	}
	return ParseYAML(data)
}

// Registry holds the current table and allows it to be swapped at runtime.
// Readers never block writers.
type Registry struct {
	current atomic.Pointer[Table]
}

// NewRegistry creates a registry serving t, or the built-in table when t is nil
func NewRegistry(t *Table) *Registry {
	if t == nil {
		t = DefaultTable()
	}
	r := &Registry{}
	r.current.Store(t)
	return r
}

// Current returns the table in effect
func (r *Registry) Current() *Table {
	return r.current.Load()
}

// Swap installs a new table and returns the previous one
func (r *Registry) Swap(t *Table) *Table {
	if t == nil {
		return r.current.Load()
	}
	return r.current.Swap(t)
}

// Lookup resolves modelID against the current table
func (r *Registry) Lookup(modelID string) (ModelCapability, bool) {
	return r.Current().Lookup(modelID)
}

// DefaultModel returns the current default model for kind
func (r *Registry) DefaultModel(kind entities.NodeKind) (string, bool) {
	return r.Current().DefaultModel(kind)
}
