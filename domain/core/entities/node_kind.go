package entities

import "github.com/realaman90/koda-sub002/domain/core/valueobjects"

// NodeKind is the closed set of node variants
type NodeKind string

const (
	// Generator nodes
	KindImageGenerator NodeKind = "imageGenerator"
	KindVideoGenerator NodeKind = "videoGenerator"
	KindMusicGenerator NodeKind = "musicGenerator"
	KindSpeech         NodeKind = "speech"
	KindVideoAudio     NodeKind = "videoAudio"

	// Content nodes
	KindText       NodeKind = "text"
	KindMedia      NodeKind = "media"
	KindStickyNote NodeKind = "stickyNote"
	KindSticker    NodeKind = "sticker"

	// Structural nodes
	KindGroup  NodeKind = "group"
	KindPlugin NodeKind = "plugin"
)

// Kinds lists every node kind in declaration order
func Kinds() []NodeKind {
	return []NodeKind{
		KindImageGenerator, KindVideoGenerator, KindMusicGenerator, KindSpeech, KindVideoAudio,
		KindText, KindMedia, KindStickyNote, KindSticker,
		KindGroup, KindPlugin,
	}
}

// IsValid reports whether k is a known kind
func (k NodeKind) IsValid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// IsGenerator reports whether nodes of this kind run generation jobs
func (k NodeKind) IsGenerator() bool {
	switch k {
	case KindImageGenerator, KindVideoGenerator, KindMusicGenerator, KindSpeech, KindVideoAudio:
		return true
	}
	return false
}

// IsContent reports whether nodes of this kind hold user content
func (k NodeKind) IsContent() bool {
	switch k {
	case KindText, KindMedia, KindStickyNote, KindSticker:
		return true
	}
	return false
}

// IsStructural reports whether nodes of this kind shape the canvas itself
func (k NodeKind) IsStructural() bool {
	return k == KindGroup || k == KindPlugin
}

// String returns the kind tag
func (k NodeKind) String() string {
	return string(k)
}

// InputHandles returns the handles a kind accepts edges on. Edges that
// target any other handle are stored but never resolved.
func InputHandles(k NodeKind) []valueobjects.HandleID {
	switch k {
	case KindImageGenerator:
		handles := []valueobjects.HandleID{valueobjects.HandleText, valueobjects.HandleReference}
		for n := valueobjects.MinReferenceSlot; n <= valueobjects.MaxReferenceSlot; n++ {
			handles = append(handles, valueobjects.ReferenceSlot(n))
		}
		return handles
	case KindVideoGenerator:
		return []valueobjects.HandleID{
			valueobjects.HandleText,
			valueobjects.HandleReference,
			valueobjects.HandleFirstFrame,
			valueobjects.HandleLastFrame,
		}
	case KindMusicGenerator, KindSpeech:
		return []valueobjects.HandleID{valueobjects.HandleText}
	case KindVideoAudio:
		return []valueobjects.HandleID{valueobjects.HandleText, valueobjects.HandleVideo, valueobjects.HandleAudio}
	case KindPlugin:
		return []valueobjects.HandleID{
			valueobjects.HandleText,
			valueobjects.HandleProductImage,
			valueobjects.HandleCharacterImage,
		}
	default:
		return nil
	}
}

// AcceptsInput reports whether handle is declared by kind
func AcceptsInput(k NodeKind, handle valueobjects.HandleID) bool {
	for _, h := range InputHandles(k) {
		if h == handle {
			return true
		}
	}
	return false
}

// OutputType is the semantic type a node emits on its output handle
type OutputType string

const (
	OutputNone  OutputType = ""
	OutputText  OutputType = "text"
	OutputImage OutputType = "image"
	OutputVideo OutputType = "video"
	OutputAudio OutputType = "audio"
)
