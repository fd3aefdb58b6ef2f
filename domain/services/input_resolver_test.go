package services

import (
	"testing"

	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wire(id, source, target string, handle valueobjects.HandleID) entities.Edge {
	e := connect(source, target, handle)
	e.ID = valueobjects.EdgeID(id)
	return e
}

func TestGetConnectedInputs_Image(t *testing.T) {
	g := aggregates.NewGraph()
	g.AddNode(newNode(t, "prompt", entities.KindText, entities.TextData{Content: "a lighthouse at dusk"}))
	g.AddNode(newNode(t, "ref", entities.KindMedia, entities.MediaData{URL: "https://cdn/ref.png"}))
	g.AddNode(newNode(t, "r3", entities.KindMedia, entities.MediaData{URL: "https://cdn/r3.png"}))
	g.AddNode(newNode(t, "r7", entities.KindImageGenerator, entities.ImageGeneratorData{
		GenerationStatus: entities.GenerationStatus{OutputURLs: []string{"https://cdn/r7a.png", "https://cdn/r7b.png"}},
	}))
	g.AddNode(newNode(t, "empty", entities.KindImageGenerator, nil))
	g.AddNode(newNode(t, "gen", entities.KindImageGenerator, nil))
	g.AddEdge(wire("e1", "prompt", "gen", valueobjects.HandleText))
	g.AddEdge(wire("e2", "ref", "gen", valueobjects.HandleReference))
	g.AddEdge(wire("e3", "r7", "gen", valueobjects.ReferenceSlot(7)))
	g.AddEdge(wire("e4", "r3", "gen", valueobjects.ReferenceSlot(3)))
	g.AddEdge(wire("e5", "empty", "gen", valueobjects.ReferenceSlot(4)))

	got := GetConnectedInputs(g.Snapshot(), "gen")

	assert.Equal(t, ResolvedInputs{
		TextContent:   "a lighthouse at dusk",
		ReferenceURL:  "https://cdn/ref.png",
		ReferenceURLs: []string{"https://cdn/r3.png", "https://cdn/r7a.png"},
	}, got)
	assert.Equal(t, []string{"https://cdn/ref.png", "https://cdn/r3.png", "https://cdn/r7a.png"}, got.ImageURLs())
}

func TestGetConnectedInputs_Video(t *testing.T) {
	g := aggregates.NewGraph()
	g.AddNode(newNode(t, "first", entities.KindImageGenerator, entities.ImageGeneratorData{
		GenerationStatus: entities.GenerationStatus{OutputURL: "https://cdn/1.png"},
	}))
	g.AddNode(newNode(t, "last", entities.KindMedia, entities.MediaData{URL: "https://cdn/2.png"}))
	g.AddNode(newNode(t, "clip", entities.KindVideoGenerator, nil))
	g.AddNode(newNode(t, "score", entities.KindVideoAudio, nil))
	g.AddNode(newNode(t, "track", entities.KindMedia, entities.MediaData{URL: "https://cdn/t.mp3", MediaType: entities.MediaAudio}))
	g.AddEdge(wire("e1", "first", "clip", valueobjects.HandleFirstFrame))
	g.AddEdge(wire("e2", "last", "clip", valueobjects.HandleLastFrame))
	g.AddEdge(wire("e3", "clip", "score", valueobjects.HandleVideo))
	g.AddEdge(wire("e4", "track", "score", valueobjects.HandleAudio))

	clip := GetConnectedInputs(g.Snapshot(), "clip")
	assert.Equal(t, "https://cdn/1.png", clip.FirstFrameURL)
	assert.Equal(t, "https://cdn/2.png", clip.LastFrameURL)

	score := GetConnectedInputs(g.Snapshot(), "score")
	assert.Empty(t, score.VideoURL, "video has no output yet")
	assert.Equal(t, "https://cdn/t.mp3", score.AudioURL)

	_, err := g.UpdateNodeData("clip", entities.Patch{"outputUrl": "https://cdn/clip.mp4"})
	require.NoError(t, err)
	score = GetConnectedInputs(g.Snapshot(), "score")
	assert.Equal(t, "https://cdn/clip.mp4", score.VideoURL)
}

func TestGetConnectedInputs_Deterministic(t *testing.T) {
	g := aggregates.NewGraph()
	g.AddNode(newNode(t, "ref", entities.KindMedia, entities.MediaData{URL: "https://cdn/v1.png"}))
	g.AddNode(newNode(t, "gen", entities.KindImageGenerator, nil))
	g.AddEdge(wire("e1", "ref", "gen", valueobjects.HandleReference))

	first := GetConnectedInputs(g.Snapshot(), "gen")
	second := GetConnectedInputs(g.Snapshot(), "gen")
	assert.Equal(t, first, second)

	_, err := g.UpdateNodeData("ref", entities.Patch{"url": "https://cdn/v2.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v2.png", GetConnectedInputs(g.Snapshot(), "gen").ReferenceURL)
}

func TestGetConnectedInputs_InertEdges(t *testing.T) {
	g := aggregates.NewGraph()
	g.AddNode(newNode(t, "text", entities.KindText, entities.TextData{Content: "hello"}))
	g.AddNode(newNode(t, "media", entities.KindMedia, entities.MediaData{URL: "https://cdn/x.png"}))
	g.AddNode(newNode(t, "speech", entities.KindSpeech, nil))
	g.AddNode(newNode(t, "plugin", entities.KindPlugin, nil))
	// speech declares only the text handle
	g.AddEdge(wire("e1", "media", "speech", valueobjects.HandleReference))
	// wrong source type on a declared handle
	g.AddEdge(wire("e2", "media", "speech", valueobjects.HandleText))
	g.AddEdge(wire("e3", "media", "plugin", valueobjects.HandleProductImage))

	assert.True(t, GetConnectedInputs(g.Snapshot(), "speech").IsEmpty())
	assert.Equal(t, "https://cdn/x.png", GetConnectedInputs(g.Snapshot(), "plugin").ProductImageURL)
	assert.True(t, GetConnectedInputs(g.Snapshot(), "ghost").IsEmpty())
}
