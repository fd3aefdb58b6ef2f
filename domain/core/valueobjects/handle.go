package valueobjects

import "strconv"

// HandleID names a socket on a node through which edges attach
type HandleID string

const (
	HandleText       HandleID = "text"
	HandleReference  HandleID = "reference"
	HandleFirstFrame HandleID = "firstFrame"
	HandleLastFrame  HandleID = "lastFrame"
	HandleVideo      HandleID = "video"
	HandleAudio      HandleID = "audio"
	HandleOutput     HandleID = "output"

	// Structural inputs of planner-composed nodes
	HandleProductImage   HandleID = "productImage"
	HandleCharacterImage HandleID = "characterImage"
)

// Extra reference sockets are numbered ref2..ref8.
const (
	MinReferenceSlot = 2
	MaxReferenceSlot = 8
)

// ReferenceSlot returns the handle for extra reference slot n (2..8).
func ReferenceSlot(n int) HandleID {
	return HandleID("ref" + strconv.Itoa(n))
}

// ReferenceSlotIndex reports the slot number of a refN handle.
// The second result is false for any other handle.
func (h HandleID) ReferenceSlotIndex() (int, bool) {
	s := string(h)
	if len(s) != 4 || s[:3] != "ref" {
		return 0, false
	}
	n := int(s[3] - '0')
	if n < MinReferenceSlot || n > MaxReferenceSlot {
		return 0, false
	}
	return n, true
}

// IsImageInput reports whether the handle is one of the reserved
// image-input sockets: reference, firstFrame, lastFrame or ref2..ref8.
func (h HandleID) IsImageInput() bool {
	switch h {
	case HandleReference, HandleFirstFrame, HandleLastFrame:
		return true
	}
	_, ok := h.ReferenceSlotIndex()
	return ok
}

// IsStructuralImageInput reports whether the handle is an image socket of
// a planner-composed node.
func (h HandleID) IsStructuralImageInput() bool {
	return h == HandleProductImage || h == HandleCharacterImage
}

// String returns the handle name
func (h HandleID) String() string {
	return string(h)
}
