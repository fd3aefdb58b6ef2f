package capabilities

import "github.com/realaman90/koda-sub002/domain/core/entities"

var builtin = []ModelCapability{
	// Image
	{ID: "flux-schnell", Name: "FLUX.1 [schnell]", Kind: entities.KindImageGenerator, InputType: InputTextOnly, Default: true,
		AspectRatios: []string{"1:1", "16:9", "9:16", "4:3", "3:4"}},
	{ID: "flux-pro", Name: "FLUX1.1 [pro]", Kind: entities.KindImageGenerator, InputType: InputTextOnly,
		AspectRatios: []string{"1:1", "16:9", "9:16", "4:3", "3:4"}},
	{ID: "flux-kontext", Name: "FLUX.1 Kontext", Kind: entities.KindImageGenerator, InputType: InputTextAndImage, MaxReferences: 4,
		AspectRatios: []string{"1:1", "16:9", "9:16"}},
	{ID: "nano-banana", Name: "Nano Banana", Kind: entities.KindImageGenerator, InputType: InputTextAndImage, MaxReferences: 8,
		AspectRatios: []string{"1:1", "16:9", "9:16", "4:3", "3:4"}},
	{ID: "seedream-v4", Name: "Seedream 4", Kind: entities.KindImageGenerator, InputType: InputTextAndImage, MaxReferences: 8,
		AspectRatios: []string{"1:1", "16:9", "9:16"}},
	{ID: "recraft-upscale", Name: "Recraft Upscale", Kind: entities.KindImageGenerator, InputType: InputImageOnly, MaxReferences: 1},

	// Video
	{ID: "veo-3", Name: "Veo 3", Kind: entities.KindVideoGenerator, InputType: InputTextAndImage, Async: true, Default: true,
		AspectRatios: []string{"16:9", "9:16"}, Durations: []int{8}},
	{ID: "kling-2.1", Name: "Kling 2.1", Kind: entities.KindVideoGenerator, InputType: InputTextAndImage, Async: true,
		AspectRatios: []string{"16:9", "9:16", "1:1"}, Durations: []int{5, 10}},
	{ID: "seedance-pro", Name: "Seedance 1.0 Pro", Kind: entities.KindVideoGenerator, InputType: InputTextAndImage, Async: true,
		AspectRatios: []string{"16:9", "9:16", "1:1"}, Durations: []int{5, 10}},

	// Audio
	{ID: "elevenlabs-music", Name: "Eleven Music", Kind: entities.KindMusicGenerator, InputType: InputTextOnly, Async: true, Default: true,
		Durations: []int{30, 60, 120}},
	{ID: "elevenlabs-tts", Name: "Eleven Multilingual v2", Kind: entities.KindSpeech, InputType: InputTextOnly, Default: true},
	{ID: "mmaudio-v2", Name: "MMAudio V2", Kind: entities.KindVideoAudio, InputType: InputTextOnly, Async: true, Default: true,
		Durations: []int{8}},
}

// DefaultTable returns the built-in capability table
func DefaultTable() *Table {
	t, err := NewTable(builtin)
	if err != nil {
		panic("capabilities: invalid built-in table: " + err.Error())
	}
	return t
}
