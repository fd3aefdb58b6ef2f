package services

import (
	"testing"

	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *capabilities.Table {
	t.Helper()
	table, err := capabilities.NewTable([]capabilities.ModelCapability{
		{ID: "img-text", Kind: entities.KindImageGenerator, InputType: capabilities.InputTextOnly, Default: true},
		{ID: "img-ref", Kind: entities.KindImageGenerator, InputType: capabilities.InputTextAndImage},
		{ID: "img-only", Kind: entities.KindImageGenerator, InputType: capabilities.InputImageOnly},
		{ID: "img-retired", Kind: entities.KindImageGenerator, InputType: capabilities.InputTextAndImage, Disabled: true},
		{ID: "vid", Kind: entities.KindVideoGenerator, InputType: capabilities.InputTextOnly, Async: true, Default: true},
	})
	require.NoError(t, err)
	return table
}

func newNode(t *testing.T, id string, kind entities.NodeKind, data entities.NodeData) entities.Node {
	t.Helper()
	n, err := entities.NewNodeWithID(valueobjects.NodeID(id), kind, valueobjects.Position{}, data)
	require.NoError(t, err)
	return n
}

func connect(source string, target string, handle valueobjects.HandleID) entities.Edge {
	return entities.Edge{
		ID:           "candidate",
		Source:       valueobjects.NodeID(source),
		SourceHandle: valueobjects.HandleOutput,
		Target:       valueobjects.NodeID(target),
		TargetHandle: handle,
	}
}

func validatorGraph(t *testing.T) aggregates.Snapshot {
	return aggregates.Snapshot{Nodes: []entities.Node{
		newNode(t, "media", entities.KindMedia, nil),
		newNode(t, "audio", entities.KindMedia, entities.MediaData{MediaType: entities.MediaAudio, URL: "a.mp3"}),
		newNode(t, "text", entities.KindText, entities.TextData{Content: "a cat"}),
		newNode(t, "image", entities.KindImageGenerator, entities.ImageGeneratorData{Model: "img-text"}),
		newNode(t, "gen-text", entities.KindImageGenerator, entities.ImageGeneratorData{Model: "img-text"}),
		newNode(t, "gen-ref", entities.KindImageGenerator, entities.ImageGeneratorData{Model: "img-ref"}),
		newNode(t, "gen-only", entities.KindImageGenerator, entities.ImageGeneratorData{Model: "img-only"}),
		newNode(t, "gen-stale", entities.KindImageGenerator, entities.ImageGeneratorData{Model: "removed-model"}),
		newNode(t, "video", entities.KindVideoGenerator, entities.VideoGeneratorData{Model: "vid"}),
		newNode(t, "music", entities.KindMusicGenerator, entities.MusicGeneratorData{Model: "m"}),
		newNode(t, "plugin", entities.KindPlugin, entities.PluginData{PluginID: "storyboard"}),
		newNode(t, "note", entities.KindStickyNote, nil),
	}}
}

func TestCheckConnection(t *testing.T) {
	nodes := validatorGraph(t)
	catalog := testCatalog(t)

	tests := []struct {
		name   string
		edge   entities.Edge
		expect Rejection
	}{
		{"media into text-and-image reference", connect("media", "gen-ref", valueobjects.HandleReference), Accepted},
		{"media into text-only reference", connect("media", "gen-text", valueobjects.HandleReference), RejectModelNoImages},
		{"media into image-only numbered slot", connect("media", "gen-only", valueobjects.ReferenceSlot(5)), Accepted},
		{"stale model rejects cleanly", connect("media", "gen-stale", valueobjects.HandleReference), RejectModelNoImages},
		{"image generator into video first frame", connect("image", "video", valueobjects.HandleFirstFrame), Accepted},
		{"media into video last frame ignores model", connect("media", "video", valueobjects.HandleLastFrame), Accepted},
		{"text into image handle", connect("text", "video", valueobjects.HandleFirstFrame), RejectSourceNotImage},
		{"audio media into image handle", connect("audio", "gen-ref", valueobjects.HandleReference), RejectSourceNotImage},
		{"music into image handle", connect("music", "video", valueobjects.HandleReference), RejectSourceNotImage},
		{"media into plugin product socket", connect("media", "plugin", valueobjects.HandleProductImage), Accepted},
		{"text into plugin character socket", connect("text", "plugin", valueobjects.HandleCharacterImage), RejectSourceNotImage},
		{"text into text", connect("text", "gen-text", valueobjects.HandleText), Accepted},
		{"media into text", connect("media", "gen-text", valueobjects.HandleText), RejectSourceNotText},
		{"sticky note into text", connect("note", "music", valueobjects.HandleText), RejectSourceNotText},
		{"other handle accepted", connect("audio", "music", valueobjects.HandleAudio), Accepted},
		{"self loop", connect("gen-ref", "gen-ref", valueobjects.HandleReference), RejectSelfLoop},
		{"missing source", connect("ghost", "gen-ref", valueobjects.HandleReference), RejectMissingEndpoint},
		{"missing target", connect("media", "ghost", valueobjects.HandleReference), RejectMissingEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, CheckConnection(tt.edge, nodes, catalog))
			assert.Equal(t, tt.expect == Accepted, IsValidConnection(tt.edge, nodes, catalog))
		})
	}
}

func TestIsValidConnection_NoCatalog(t *testing.T) {
	nodes := validatorGraph(t)

	assert.False(t, IsValidConnection(connect("media", "gen-ref", valueobjects.HandleReference), nodes, nil))
	assert.True(t, IsValidConnection(connect("media", "video", valueobjects.HandleReference), nodes, nil))
}

func TestIsValidConnection_Properties(t *testing.T) {
	nodes := validatorGraph(t)
	catalog := testCatalog(t)
	handles := []valueobjects.HandleID{
		valueobjects.HandleText, valueobjects.HandleReference, valueobjects.HandleFirstFrame,
		valueobjects.HandleLastFrame, valueobjects.ReferenceSlot(2), valueobjects.ReferenceSlot(8),
		valueobjects.HandleProductImage, valueobjects.HandleVideo,
	}

	for _, source := range nodes.Nodes {
		for _, target := range nodes.Nodes {
			for _, h := range handles {
				e := connect(source.ID.String(), target.ID.String(), h)
				if !IsValidConnection(e, nodes, catalog) {
					continue
				}
				assert.NotEqual(t, e.Source, e.Target)
				if h.IsImageInput() {
					assert.True(t, source.Kind == entities.KindMedia || source.Kind == entities.KindImageGenerator,
						"image handle fed by %s", source.Kind)
				}
			}
		}
	}
}
