package services

import (
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNodes(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"id":"a","type":"text","position":{"x":1,"y":2},"data":{"content":"hi"}}`),
		json.RawMessage(`{"id":"b","type":"hologram","position":{"x":0,"y":0},"data":{}}`),
		json.RawMessage(`{"id":"c","type":"imageGenerator","position":{"x":0,"y":0}}`),
		json.RawMessage(`{"id":"d","type":"media","position":{"x":0,"y":0},"data":{"width":"wide"}}`),
	}
	var report MigrationReport

	nodes := DecodeNodes(raw, &report)

	require.Len(t, nodes, 2)
	assert.Equal(t, "hi", nodes[0].Data.(entities.TextData).Content)
	assert.Equal(t, entities.DefaultData(entities.KindImageGenerator), nodes[1].Data, "missing data takes defaults")
	assert.Equal(t, []valueobjects.NodeID{"b", "d"}, report.DroppedNodes)
	assert.Len(t, report.Warnings, 2)
	assert.Contains(t, report.Warnings[0], "hologram")
}

func TestMigrateSnapshot(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := aggregates.Snapshot{
		Nodes: []entities.Node{
			newNode(t, "retired", entities.KindImageGenerator, entities.ImageGeneratorData{Model: "img-retired"}),
			newNode(t, "unknown", entities.KindImageGenerator, entities.ImageGeneratorData{Model: "gone"}),
			newNode(t, "wrong-kind", entities.KindImageGenerator, entities.ImageGeneratorData{Model: "vid"}),
			newNode(t, "fine", entities.KindImageGenerator, entities.ImageGeneratorData{Model: "img-ref"}),
			newNode(t, "no-default", entities.KindSpeech, entities.SpeechData{Model: "tts-x"}),
			newNode(t, "orphaned", entities.KindVideoGenerator, entities.VideoGeneratorData{
				Model:            "vid",
				GenerationStatus: entities.GenerationStatus{IsGenerating: true, Progress: 40, OutputURL: "https://cdn/old.mp4"},
			}),
			newNode(t, "polling", entities.KindVideoGenerator, entities.VideoGeneratorData{
				Model: "vid",
				GenerationStatus: entities.GenerationStatus{
					IsGenerating: true, TaskID: "t1", TaskModel: "vid", TaskStatus: entities.TaskProcessing, TaskStartedAt: &started,
				},
			}),
		},
		Edges: []entities.Edge{
			wire("ok", "fine", "polling", valueobjects.HandleFirstFrame),
			wire("dangling", "fine", "missing", valueobjects.HandleFirstFrame),
			wire("taken", "retired", "polling", valueobjects.HandleFirstFrame),
			wire("ok", "unknown", "polling", valueobjects.HandleLastFrame),
		},
	}
	var report MigrationReport

	out := MigrateSnapshot(s, testCatalog(t), &report)

	require.Len(t, out.Nodes, 7)
	assert.Equal(t, map[valueobjects.NodeID]string{
		"retired":    "img-text",
		"unknown":    "img-text",
		"wrong-kind": "img-text",
	}, report.DefaultedModels)

	fine, _ := out.Node("fine")
	assert.Equal(t, "img-ref", fine.Data.(entities.ImageGeneratorData).Model)

	noDefault, _ := out.Node("no-default")
	assert.Equal(t, "tts-x", noDefault.Data.(entities.SpeechData).Model, "kept when nothing can replace it")

	orphaned, _ := out.Node("orphaned")
	status := orphaned.Generation()
	assert.False(t, status.IsGenerating)
	assert.Equal(t, InterruptedMessage, status.Error)
	assert.Equal(t, "https://cdn/old.mp4", status.OutputURL, "last known good output survives")

	polling, _ := out.Node("polling")
	assert.True(t, polling.Generation().IsGenerating)
	assert.Equal(t, "t1", polling.Generation().TaskID)

	require.Len(t, out.Edges, 1)
	assert.Equal(t, valueobjects.EdgeID("ok"), out.Edges[0].ID)
	assert.ElementsMatch(t, []valueobjects.EdgeID{"dangling", "taken", "ok"}, report.DroppedEdges)
	assert.Equal(t, []valueobjects.NodeID{"orphaned"}, report.Interrupted)
	assert.True(t, report.HasChanges())
}
