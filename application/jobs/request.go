package jobs

import (
	"strings"

	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/services"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// BuildRequest assembles a provider request from a generator node and what
// its upstream edges currently supply. The node's own prompt wins over
// connected text unless it is blank.
func BuildRequest(node entities.Node, in services.ResolvedInputs) (ports.GenerationRequest, error) {
	gen, ok := node.Generator()
	if !ok {
		return ports.GenerationRequest{}, pkgerrors.NewValidationError("node " + node.ID.String() + " cannot generate")
	}
	if gen.ModelID() == "" {
		return ports.GenerationRequest{}, pkgerrors.NewValidationError("node " + node.ID.String() + " has no model selected")
	}

	prompt := strings.TrimSpace(gen.PromptText())
	if prompt == "" {
		prompt = strings.TrimSpace(in.TextContent)
	}

	req := ports.GenerationRequest{
		NodeID:            node.ID,
		Kind:              node.Kind,
		Model:             gen.ModelID(),
		Prompt:            prompt,
		ImageURLs:         in.ImageURLs(),
		FirstFrameURL:     in.FirstFrameURL,
		LastFrameURL:      in.LastFrameURL,
		VideoURL:          in.VideoURL,
		AudioURL:          in.AudioURL,
		ProductImageURL:   in.ProductImageURL,
		CharacterImageURL: in.CharacterImageURL,
		Params:            params(node.Data),
	}

	switch node.Kind {
	case entities.KindVideoAudio:
		if req.VideoURL == "" {
			return req, pkgerrors.NewValidationError("connect a video to score")
		}
	case entities.KindImageGenerator, entities.KindVideoGenerator:
		if req.Prompt == "" && len(req.ImageURLs) == 0 && req.FirstFrameURL == "" {
			return req, pkgerrors.NewValidationError("enter a prompt or connect an input")
		}
	default:
		if req.Prompt == "" {
			return req, pkgerrors.NewValidationError("enter a prompt or connect a text node")
		}
	}
	return req, nil
}

func params(d entities.NodeData) map[string]any {
	p := map[string]any{}
	set := func(key string, v any, ok bool) {
		if ok {
			p[key] = v
		}
	}
	switch v := d.(type) {
	case entities.ImageGeneratorData:
		set("aspectRatio", v.AspectRatio, v.AspectRatio != "")
		set("resolution", v.Resolution, v.Resolution != "")
		set("numImages", v.NumImages, v.NumImages > 0)
	case entities.VideoGeneratorData:
		set("aspectRatio", v.AspectRatio, v.AspectRatio != "")
		set("duration", v.Duration, v.Duration > 0)
		set("resolution", v.Resolution, v.Resolution != "")
		set("generateAudio", v.GenerateAudio, v.GenerateAudio)
	case entities.MusicGeneratorData:
		set("lyrics", v.Lyrics, v.Lyrics != "")
		set("duration", v.Duration, v.Duration > 0)
		set("instrumental", v.Instrumental, v.Instrumental)
	case entities.SpeechData:
		set("voice", v.Voice, v.Voice != "")
		set("speed", v.Speed, v.Speed > 0)
	case entities.VideoAudioData:
		set("duration", v.Duration, v.Duration > 0)
	}
	if len(p) == 0 {
		return nil
	}
	return p
}
