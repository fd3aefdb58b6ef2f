package services

import (
	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

// NodeLookup finds nodes by id. Both the live graph and its snapshots
// satisfy it.
type NodeLookup interface {
	Node(id valueobjects.NodeID) (entities.Node, bool)
}

// Rejection names the rule that refused a connection
type Rejection string

const (
	Accepted              Rejection = ""
	RejectSelfLoop        Rejection = "self_loop"
	RejectMissingEndpoint Rejection = "missing_endpoint"
	RejectSourceNotImage  Rejection = "source_not_image"
	RejectModelNoImages   Rejection = "model_rejects_images"
	RejectSourceNotText   Rejection = "source_not_text"
)

// CheckConnection applies the connection rules in order and reports the
// first one that refuses the candidate, or Accepted.
//
// Handle classification runs before any capability lookup, so an image
// handle on a generator whose model is unknown or stale rejects cleanly.
func CheckConnection(candidate entities.Edge, nodes NodeLookup, caps capabilities.Source) Rejection {
	if candidate.IsSelfLoop() {
		return RejectSelfLoop
	}

	source, ok := nodes.Node(candidate.Source)
	if !ok {
		return RejectMissingEndpoint
	}
	target, ok := nodes.Node(candidate.Target)
	if !ok {
		return RejectMissingEndpoint
	}

	handle := candidate.TargetHandle
	switch {
	case handle.IsImageInput():
		if !source.IsImageSource() {
			return RejectSourceNotImage
		}
		if target.Kind == entities.KindImageGenerator {
			return checkImageModel(target, caps)
		}
		return Accepted

	case handle.IsStructuralImageInput():
		if !source.IsImageSource() {
			return RejectSourceNotImage
		}
		return Accepted

	case handle == valueobjects.HandleText:
		if !source.IsTextSource() {
			return RejectSourceNotText
		}
		return Accepted
	}

	return Accepted
}

// IsValidConnection reports whether candidate may be added to the graph
func IsValidConnection(candidate entities.Edge, nodes NodeLookup, caps capabilities.Source) bool {
	return CheckConnection(candidate, nodes, caps) == Accepted
}

func checkImageModel(target entities.Node, caps capabilities.Source) Rejection {
	gen, ok := target.Generator()
	if !ok || caps == nil {
		return RejectModelNoImages
	}
	capability, ok := caps.Lookup(gen.ModelID())
	if !ok || !capability.InputType.AcceptsImages() {
		return RejectModelNoImages
	}
	return Accepted
}
