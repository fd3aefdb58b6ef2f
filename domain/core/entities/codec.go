package entities

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

// ErrUnknownKind is returned when decoding a node of an unrecognised kind
var ErrUnknownKind = errors.New("unknown node kind")

// DecodeData decodes raw into the variant for kind. Missing fields keep the
// kind's defaults; an empty or null payload yields the defaults.
func DecodeData(kind NodeKind, raw []byte) (NodeData, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultData(kind), nil
	}

	switch kind {
	case KindImageGenerator:
		return decodeInto(raw, DefaultData(kind).(ImageGeneratorData))
	case KindVideoGenerator:
		return decodeInto(raw, DefaultData(kind).(VideoGeneratorData))
	case KindMusicGenerator:
		return decodeInto(raw, DefaultData(kind).(MusicGeneratorData))
	case KindSpeech:
		return decodeInto(raw, DefaultData(kind).(SpeechData))
	case KindVideoAudio:
		return decodeInto(raw, DefaultData(kind).(VideoAudioData))
	case KindText:
		return decodeInto(raw, DefaultData(kind).(TextData))
	case KindMedia:
		return decodeInto(raw, DefaultData(kind).(MediaData))
	case KindStickyNote:
		return decodeInto(raw, DefaultData(kind).(StickyNoteData))
	case KindSticker:
		return decodeInto(raw, DefaultData(kind).(StickerData))
	case KindGroup:
		return decodeInto(raw, DefaultData(kind).(GroupData))
	case KindPlugin:
		return decodeInto(raw, DefaultData(kind).(PluginData))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func decodeInto[T NodeData](raw []byte, base T) (NodeData, error) {
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("failed to decode %s data: %w", base.Kind(), err)
	}
	return base, nil
}

type nodeJSON struct {
	ID       valueobjects.NodeID   `json:"id"`
	Kind     NodeKind              `json:"type"`
	Position valueobjects.Position `json:"position"`
	Data     json.RawMessage       `json:"data,omitempty"`
}

// UnmarshalJSON decodes the data union using the type tag
func (n *Node) UnmarshalJSON(b []byte) error {
	var aux nodeJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	data, err := DecodeData(aux.Kind, aux.Data)
	if err != nil {
		return err
	}
	n.ID = aux.ID
	n.Kind = aux.Kind
	n.Position = aux.Position
	n.Data = data
	return nil
}
