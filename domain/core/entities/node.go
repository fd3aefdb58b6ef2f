package entities

import (
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// Node is a typed unit of the graph. Kind always matches Data.Kind().
type Node struct {
	ID       valueobjects.NodeID   `json:"id"`
	Kind     NodeKind              `json:"type"`
	Position valueobjects.Position `json:"position"`
	Data     NodeData              `json:"data"`
}

// NewNode creates a node with a fresh id. A nil data takes the kind's defaults.
func NewNode(kind NodeKind, position valueobjects.Position, data NodeData) (Node, error) {
	return NewNodeWithID(valueobjects.NewNodeID(), kind, position, data)
}

// NewNodeWithID creates a node with a caller-chosen id
func NewNodeWithID(id valueobjects.NodeID, kind NodeKind, position valueobjects.Position, data NodeData) (Node, error) {
	if id.IsZero() {
		return Node{}, pkgerrors.NewValidationError("node id cannot be empty")
	}
	if !kind.IsValid() {
		return Node{}, pkgerrors.NewValidationError("unknown node kind: " + string(kind))
	}
	if !position.IsValid() {
		return Node{}, pkgerrors.NewValidationError("invalid coordinates: must be finite numbers")
	}
	if data == nil {
		data = DefaultData(kind)
	}
	if data.Kind() != kind {
		return Node{}, pkgerrors.NewValidationError("data of kind " + string(data.Kind()) + " does not match node kind " + string(kind))
	}
	return Node{ID: id, Kind: kind, Position: position, Data: data}, nil
}

// Generator returns the generator view of the node's data
func (n Node) Generator() (GeneratorData, bool) {
	g, ok := n.Data.(GeneratorData)
	return g, ok
}

// Generation returns the node's status block; zero for non-generators
func (n Node) Generation() GenerationStatus {
	if g, ok := n.Generator(); ok {
		return g.Generation()
	}
	return GenerationStatus{}
}

// IsImageSource reports whether the node emits an image: a media node
// holding an image, or an image generator.
func (n Node) IsImageSource() bool {
	switch d := n.Data.(type) {
	case ImageGeneratorData:
		return true
	case MediaData:
		return d.EffectiveType() == MediaImage
	default:
		return false
	}
}

// IsTextSource reports whether the node is a text content node
func (n Node) IsTextSource() bool {
	_, ok := n.Data.(TextData)
	return ok
}

// Bounds returns the node's footprint. Only groups carry a size; every
// other node is treated as a point.
func (n Node) Bounds() valueobjects.Rect {
	if g, ok := n.Data.(GroupData); ok {
		return valueobjects.Rect{X: n.Position.X, Y: n.Position.Y, Width: g.Width, Height: g.Height}
	}
	return valueobjects.Rect{X: n.Position.X, Y: n.Position.Y}
}
