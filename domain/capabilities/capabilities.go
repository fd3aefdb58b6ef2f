// Package capabilities describes what each generation model accepts and
// how it completes.
package capabilities

import (
	"fmt"
	"slices"

	"github.com/realaman90/koda-sub002/domain/core/entities"
)

// InputType is the kind of input a model accepts besides its parameters
type InputType string

const (
	InputTextOnly     InputType = "text-only"
	InputTextAndImage InputType = "text-and-image"
	InputImageOnly    InputType = "image-only"
)

// IsValid reports whether t is a known input type
func (t InputType) IsValid() bool {
	switch t {
	case InputTextOnly, InputTextAndImage, InputImageOnly:
		return true
	}
	return false
}

// AcceptsImages reports whether image references may be wired into a model
// of this input type
func (t InputType) AcceptsImages() bool {
	return t == InputTextAndImage || t == InputImageOnly
}

// ModelCapability is the static record for one generation model
type ModelCapability struct {
	ID            string            `yaml:"id" json:"id"`
	Name          string            `yaml:"name" json:"name"`
	Kind          entities.NodeKind `yaml:"kind" json:"kind"`
	InputType     InputType         `yaml:"inputType" json:"inputType"`
	Async         bool              `yaml:"async" json:"async"`
	Default       bool              `yaml:"default" json:"default"`
	Disabled      bool              `yaml:"disabled" json:"disabled"`
	MaxReferences int               `yaml:"maxReferences" json:"maxReferences,omitempty"`
	AspectRatios  []string          `yaml:"aspectRatios" json:"aspectRatios,omitempty"`
	Durations     []int             `yaml:"durations" json:"durations,omitempty"`
}

// Enabled reports whether the model may be selected
func (c ModelCapability) Enabled() bool {
	return !c.Disabled
}

// Source resolves a model id to its capability record
type Source interface {
	Lookup(modelID string) (ModelCapability, bool)
}

// Catalog is a Source that can also name a default model per kind
type Catalog interface {
	Source
	DefaultModel(kind entities.NodeKind) (string, bool)
}

// Table is an immutable set of capability records
type Table struct {
	models map[string]ModelCapability
	order  []string
}

// NewTable builds a table, rejecting duplicate ids and unknown kinds
func NewTable(models []ModelCapability) (*Table, error) {
	t := &Table{models: make(map[string]ModelCapability, len(models))}
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model without id")
		}
		if _, dup := t.models[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}
		if !m.Kind.IsGenerator() {
			return nil, fmt.Errorf("model %q: kind %q does not generate", m.ID, m.Kind)
		}
		if m.InputType == "" {
			m.InputType = InputTextOnly
		}
		if !m.InputType.IsValid() {
			return nil, fmt.Errorf("model %q: unknown input type %q", m.ID, m.InputType)
		}
		m.AspectRatios = slices.Clone(m.AspectRatios)
		m.Durations = slices.Clone(m.Durations)
		t.models[m.ID] = m
		t.order = append(t.order, m.ID)
	}
	return t, nil
}

// Lookup returns the record for modelID
func (t *Table) Lookup(modelID string) (ModelCapability, bool) {
	if t == nil {
		return ModelCapability{}, false
	}
	m, ok := t.models[modelID]
	return m, ok
}

// IsEnabled reports whether modelID exists and is enabled
func (t *Table) IsEnabled(modelID string) bool {
	m, ok := t.Lookup(modelID)
	return ok && m.Enabled()
}

// Models returns the enabled models of kind in table order
func (t *Table) Models(kind entities.NodeKind) []ModelCapability {
	var out []ModelCapability
	for _, id := range t.order {
		m := t.models[id]
		if m.Kind == kind && m.Enabled() {
			out = append(out, m)
		}
	}
	return out
}

// All returns every record in table order
func (t *Table) All() []ModelCapability {
	out := make([]ModelCapability, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.models[id])
	}
	return out
}

// Len returns the number of records
func (t *Table) Len() int {
	return len(t.order)
}

// DefaultModel returns the preferred enabled model for kind: the one marked
// default, else the first enabled one.
func (t *Table) DefaultModel(kind entities.NodeKind) (string, bool) {
	models := t.Models(kind)
	for _, m := range models {
		if m.Default {
			return m.ID, true
		}
	}
	if len(models) > 0 {
		return models[0].ID, true
	}
	return "", false
}
