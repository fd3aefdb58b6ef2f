package entities

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Patch is a shallow set of top-level data fields, keyed by their JSON
// names. A nil value resets a field to its zero value.
type Patch map[string]any

// generationKeys are the status fields owned by the job lifecycle
var generationKeys = map[string]bool{
	"isGenerating":  true,
	"progress":      true,
	"error":         true,
	"outputUrl":     true,
	"outputUrls":    true,
	"taskId":        true,
	"taskModel":     true,
	"taskStatus":    true,
	"taskStartedAt": true,
}

// GenerationKeys returns the keys of p that address generation status,
// sorted
func (p Patch) GenerationKeys() []string {
	var keys []string
	for key := range p {
		if generationKeys[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// ApplyPatch shallow-merges p into d and returns the merged payload. Keys
// the variant does not declare are ignored.
func ApplyPatch(d NodeData, p Patch) (NodeData, error) {
	if d == nil {
		return nil, fmt.Errorf("cannot patch nil data")
	}
	if len(p) == 0 {
		return d, nil
	}

	current, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s data: %w", d.Kind(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(current, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode %s data: %w", d.Kind(), err)
	}
	for key, value := range p {
		if value == nil {
			delete(fields, key)
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode patch field %q: %w", key, err)
		}
		fields[key] = encoded
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged data: %w", err)
	}
	return decodeZero(d.Kind(), merged)
}

// decodeZero decodes into the zero variant rather than the defaults, so a
// field removed by a nil patch value really becomes zero.
func decodeZero(kind NodeKind, raw []byte) (NodeData, error) {
	switch kind {
	case KindImageGenerator:
		return decodeInto(raw, ImageGeneratorData{})
	case KindVideoGenerator:
		return decodeInto(raw, VideoGeneratorData{})
	case KindMusicGenerator:
		return decodeInto(raw, MusicGeneratorData{})
	case KindSpeech:
		return decodeInto(raw, SpeechData{})
	case KindVideoAudio:
		return decodeInto(raw, VideoAudioData{})
	case KindText:
		return decodeInto(raw, TextData{})
	case KindMedia:
		return decodeInto(raw, MediaData{})
	case KindStickyNote:
		return decodeInto(raw, StickyNoteData{})
	case KindSticker:
		return decodeInto(raw, StickerData{})
	case KindGroup:
		return decodeInto(raw, GroupData{})
	case KindPlugin:
		return decodeInto(raw, PluginData{})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
