package entities

// NodeData is the per-kind payload of a node. Values stored in a graph are
// treated as immutable; changes go through ApplyPatch or WithGeneration,
// which always produce a fresh value.
type NodeData interface {
	Kind() NodeKind
}

// GeneratorData is implemented by every variant that runs generation jobs
type GeneratorData interface {
	NodeData
	Generation() GenerationStatus
	ModelID() string
	PromptText() string
}

// ImageGeneratorData configures an image generator node
type ImageGeneratorData struct {
	Name        string `json:"name,omitempty"`
	Model       string `json:"model"`
	Prompt      string `json:"prompt,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	NumImages   int    `json:"numImages,omitempty"`
	GenerationStatus
}

func (ImageGeneratorData) Kind() NodeKind       { return KindImageGenerator }
func (d ImageGeneratorData) ModelID() string    { return d.Model }
func (d ImageGeneratorData) PromptText() string { return d.Prompt }

// VideoGeneratorData configures a video generator node
type VideoGeneratorData struct {
	Name          string `json:"name,omitempty"`
	Model         string `json:"model"`
	Prompt        string `json:"prompt,omitempty"`
	AspectRatio   string `json:"aspectRatio,omitempty"`
	Duration      int    `json:"duration,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
	GenerateAudio bool   `json:"generateAudio,omitempty"`
	GenerationStatus
}

func (VideoGeneratorData) Kind() NodeKind       { return KindVideoGenerator }
func (d VideoGeneratorData) ModelID() string    { return d.Model }
func (d VideoGeneratorData) PromptText() string { return d.Prompt }

// MusicGeneratorData configures a music generator node
type MusicGeneratorData struct {
	Name         string `json:"name,omitempty"`
	Model        string `json:"model"`
	Prompt       string `json:"prompt,omitempty"`
	Lyrics       string `json:"lyrics,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	Instrumental bool   `json:"instrumental,omitempty"`
	GenerationStatus
}

func (MusicGeneratorData) Kind() NodeKind       { return KindMusicGenerator }
func (d MusicGeneratorData) ModelID() string    { return d.Model }
func (d MusicGeneratorData) PromptText() string { return d.Prompt }

// SpeechData configures a text-to-speech node
type SpeechData struct {
	Name  string  `json:"name,omitempty"`
	Model string  `json:"model"`
	Text  string  `json:"text,omitempty"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
	GenerationStatus
}

func (SpeechData) Kind() NodeKind       { return KindSpeech }
func (d SpeechData) ModelID() string    { return d.Model }
func (d SpeechData) PromptText() string { return d.Text }

// VideoAudioData configures a node that scores an existing video
type VideoAudioData struct {
	Name     string `json:"name,omitempty"`
	Model    string `json:"model"`
	Prompt   string `json:"prompt,omitempty"`
	Duration int    `json:"duration,omitempty"`
	GenerationStatus
}

func (VideoAudioData) Kind() NodeKind       { return KindVideoAudio }
func (d VideoAudioData) ModelID() string    { return d.Model }
func (d VideoAudioData) PromptText() string { return d.Prompt }

// TextData is a free text source
type TextData struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

func (TextData) Kind() NodeKind { return KindText }

// MediaType is the kind of asset a media node holds
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// MediaData points at an uploaded or external asset
type MediaData struct {
	Name      string    `json:"name,omitempty"`
	URL       string    `json:"url,omitempty"`
	MediaType MediaType `json:"mediaType,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
}

func (MediaData) Kind() NodeKind { return KindMedia }

// EffectiveType treats an unset media type as an image
func (d MediaData) EffectiveType() MediaType {
	if d.MediaType == "" {
		return MediaImage
	}
	return d.MediaType
}

// StickyNoteData is an annotation
type StickyNoteData struct {
	Content string `json:"content"`
	Color   string `json:"color,omitempty"`
}

func (StickyNoteData) Kind() NodeKind { return KindStickyNote }

// StickerData is a decorative emoji or asset
type StickerData struct {
	Emoji string  `json:"emoji,omitempty"`
	Asset string  `json:"asset,omitempty"`
	Scale float64 `json:"scale,omitempty"`
}

func (StickerData) Kind() NodeKind { return KindSticker }

// GroupData frames a region of the canvas. Membership is spatial and is
// never stored.
type GroupData struct {
	Label  string  `json:"label,omitempty"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color,omitempty"`
}

func (GroupData) Kind() NodeKind { return KindGroup }

// PluginData hosts a plugin-defined node, such as a storyboard composite
type PluginData struct {
	PluginID string         `json:"pluginId"`
	Name     string         `json:"name,omitempty"`
	State    map[string]any `json:"state,omitempty"`
}

func (PluginData) Kind() NodeKind { return KindPlugin }

// DefaultData returns the zero payload for kind, or nil for unknown kinds
func DefaultData(kind NodeKind) NodeData {
	switch kind {
	case KindImageGenerator:
		return ImageGeneratorData{AspectRatio: "1:1", NumImages: 1}
	case KindVideoGenerator:
		return VideoGeneratorData{AspectRatio: "16:9", Duration: 5}
	case KindMusicGenerator:
		return MusicGeneratorData{Duration: 30}
	case KindSpeech:
		return SpeechData{Speed: 1}
	case KindVideoAudio:
		return VideoAudioData{}
	case KindText:
		return TextData{}
	case KindMedia:
		return MediaData{MediaType: MediaImage}
	case KindStickyNote:
		return StickyNoteData{Color: "yellow"}
	case KindSticker:
		return StickerData{Scale: 1}
	case KindGroup:
		return GroupData{Width: 400, Height: 300}
	case KindPlugin:
		return PluginData{}
	default:
		return nil
	}
}

// WithGeneration returns a copy of d carrying status s. Non-generator
// payloads are returned unchanged.
func WithGeneration(d NodeData, s GenerationStatus) NodeData {
	switch v := d.(type) {
	case ImageGeneratorData:
		v.GenerationStatus = s
		return v
	case VideoGeneratorData:
		v.GenerationStatus = s
		return v
	case MusicGeneratorData:
		v.GenerationStatus = s
		return v
	case SpeechData:
		v.GenerationStatus = s
		return v
	case VideoAudioData:
		v.GenerationStatus = s
		return v
	default:
		return d
	}
}

// WithModel returns a copy of d using model. Non-generator payloads are
// returned unchanged.
func WithModel(d NodeData, model string) NodeData {
	switch v := d.(type) {
	case ImageGeneratorData:
		v.Model = model
		return v
	case VideoGeneratorData:
		v.Model = model
		return v
	case MusicGeneratorData:
		v.Model = model
		return v
	case SpeechData:
		v.Model = model
		return v
	case VideoAudioData:
		v.Model = model
		return v
	default:
		return d
	}
}

// OutputTypeOf returns what a payload emits on its output handle
func OutputTypeOf(d NodeData) OutputType {
	switch v := d.(type) {
	case ImageGeneratorData:
		return OutputImage
	case VideoGeneratorData, VideoAudioData:
		return OutputVideo
	case MusicGeneratorData, SpeechData:
		return OutputAudio
	case TextData:
		return OutputText
	case MediaData:
		return OutputType(v.EffectiveType())
	default:
		return OutputNone
	}
}

// OutputValue returns the value a payload currently emits, or "" when it
// has nothing to offer yet.
func OutputValue(d NodeData) string {
	switch v := d.(type) {
	case TextData:
		return v.Content
	case MediaData:
		return v.URL
	case GeneratorData:
		return v.Generation().PrimaryOutput()
	default:
		return ""
	}
}
