package services

import (
	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

// ResolvedInputs is what a node sees from upstream at generation time
type ResolvedInputs struct {
	TextContent  string `json:"textContent,omitempty"`
	ReferenceURL string `json:"referenceUrl,omitempty"`

	// Extra references from ref2..ref8, in slot order. Empty slots are skipped.
	ReferenceURLs []string `json:"referenceUrls,omitempty"`

	FirstFrameURL     string `json:"firstFrameUrl,omitempty"`
	LastFrameURL      string `json:"lastFrameUrl,omitempty"`
	VideoURL          string `json:"videoUrl,omitempty"`
	AudioURL          string `json:"audioUrl,omitempty"`
	ProductImageURL   string `json:"productImageUrl,omitempty"`
	CharacterImageURL string `json:"characterImageUrl,omitempty"`
}

// ImageURLs returns every image reference in priority order: the primary
// reference first, then the numbered slots.
func (r ResolvedInputs) ImageURLs() []string {
	var urls []string
	if r.ReferenceURL != "" {
		urls = append(urls, r.ReferenceURL)
	}
	return append(urls, r.ReferenceURLs...)
}

// IsEmpty reports whether nothing upstream produced a value
func (r ResolvedInputs) IsEmpty() bool {
	return r.TextContent == "" && r.ReferenceURL == "" && len(r.ReferenceURLs) == 0 &&
		r.FirstFrameURL == "" && r.LastFrameURL == "" && r.VideoURL == "" &&
		r.AudioURL == "" && r.ProductImageURL == "" && r.CharacterImageURL == ""
}

// GetConnectedInputs walks the edges feeding nodeID and maps each upstream
// value onto its semantic field by target handle. It is recomputed from the
// snapshot on every call; nothing is cached on the node.
//
// Edges whose source emits the wrong type for the handle, or whose handle
// the node does not read, contribute nothing. When two edges feed the same
// field the later one wins.
func GetConnectedInputs(s aggregates.Snapshot, nodeID valueobjects.NodeID) ResolvedInputs {
	var (
		resolved ResolvedInputs
		slots    [valueobjects.MaxReferenceSlot + 1]string
		byID     = make(map[valueobjects.NodeID]entities.Node, len(s.Nodes))
	)
	for _, n := range s.Nodes {
		byID[n.ID] = n
	}
	target, ok := byID[nodeID]
	if !ok {
		return resolved
	}

	for _, e := range s.Edges {
		if e.Target != nodeID || !entities.AcceptsInput(target.Kind, e.TargetHandle) {
			continue
		}
		source, ok := byID[e.Source]
		if !ok {
			continue
		}
		value := entities.OutputValue(source.Data)
		if value == "" {
			continue
		}
		kind := entities.OutputTypeOf(source.Data)

		switch e.TargetHandle {
		case valueobjects.HandleText:
			if kind == entities.OutputText {
				resolved.TextContent = value
			}
		case valueobjects.HandleReference:
			if kind == entities.OutputImage {
				resolved.ReferenceURL = value
			}
		case valueobjects.HandleFirstFrame:
			if kind == entities.OutputImage {
				resolved.FirstFrameURL = value
			}
		case valueobjects.HandleLastFrame:
			if kind == entities.OutputImage {
				resolved.LastFrameURL = value
			}
		case valueobjects.HandleVideo:
			if kind == entities.OutputVideo {
				resolved.VideoURL = value
			}
		case valueobjects.HandleAudio:
			if kind == entities.OutputAudio {
				resolved.AudioURL = value
			}
		case valueobjects.HandleProductImage:
			if kind == entities.OutputImage {
				resolved.ProductImageURL = value
			}
		case valueobjects.HandleCharacterImage:
			if kind == entities.OutputImage {
				resolved.CharacterImageURL = value
			}
		default:
			if n, ok := e.TargetHandle.ReferenceSlotIndex(); ok && kind == entities.OutputImage {
				slots[n] = value
			}
		}
	}

	for n := valueobjects.MinReferenceSlot; n <= valueobjects.MaxReferenceSlot; n++ {
		if slots[n] != "" {
			resolved.ReferenceURLs = append(resolved.ReferenceURLs, slots[n])
		}
	}
	return resolved
}
