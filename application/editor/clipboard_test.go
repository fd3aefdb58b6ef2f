package editor

import (
	"testing"
	"time"

	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CopyPaste(t *testing.T) {
	// Arrange
	s := newTestStore(t)
	started := time.Now()
	addNode(t, s, "text", entities.KindText, 0, 0, entities.TextData{Content: "a fox"})
	addNode(t, s, "gen", entities.KindVideoGenerator, 300, 0, entities.VideoGeneratorData{
		Model: "vid",
		GenerationStatus: entities.GenerationStatus{
			IsGenerating: true, Progress: 50, OutputURL: "https://cdn/prev.mp4",
			TaskID: "t1", TaskModel: "vid", TaskStatus: entities.TaskProcessing, TaskStartedAt: &started,
		},
	})
	addNode(t, s, "outside", entities.KindText, 0, 500, nil)
	require.True(t, s.AddEdge(newEdge("internal", "text", "gen", valueobjects.HandleText)))
	require.True(t, s.AddEdge(newEdge("external", "outside", "gen", valueobjects.HandleReference)))
	s.Select([]valueobjects.NodeID{"text", "gen"}, nil)

	// Act
	require.Equal(t, 2, s.Copy())
	first := s.Paste()
	second := s.Paste()

	// Assert
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, second, s.Selection().Nodes)

	copyText, ok := s.Node(first[0])
	require.True(t, ok)
	assert.Equal(t, valueobjects.Position{X: 24, Y: 24}, copyText.Position)
	assert.Equal(t, "a fox", copyText.Data.(entities.TextData).Content)

	copyGen, _ := s.Node(first[1])
	status := copyGen.Generation()
	assert.False(t, status.IsGenerating)
	assert.False(t, status.HasTask())
	assert.Equal(t, "https://cdn/prev.mp4", status.OutputURL)

	secondText, _ := s.Node(second[0])
	assert.Equal(t, valueobjects.Position{X: 48, Y: 48}, secondText.Position)

	snapshot := s.Snapshot()
	var copied []entities.Edge
	for _, e := range snapshot.Edges {
		if e.Target == first[1] {
			copied = append(copied, e)
		}
	}
	require.Len(t, copied, 1, "only the internal edge is copied")
	assert.Equal(t, first[0], copied[0].Source)
	assert.Equal(t, valueobjects.HandleText, copied[0].TargetHandle)

	// one undo per paste
	require.True(t, s.Undo())
	_, ok = s.Node(second[0])
	assert.False(t, ok)
	_, ok = s.Node(first[0])
	assert.True(t, ok)
}

func TestStore_CutPastesInPlace(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", entities.KindText, 10, 20, nil)
	s.Select([]valueobjects.NodeID{"a"}, nil)

	require.Equal(t, 1, s.Cut())
	nodes, _ := s.Counts()
	assert.Zero(t, nodes)

	ids := s.Paste()
	require.Len(t, ids, 1)
	n, _ := s.Node(ids[0])
	assert.Equal(t, valueobjects.Position{X: 10, Y: 20}, n.Position)
	assert.NotEqual(t, valueobjects.NodeID("a"), ids[0])
}

func TestStore_DuplicateLeavesClipboard(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", entities.KindText, 0, 0, nil)
	addNode(t, s, "b", entities.KindText, 0, 0, nil)
	s.Select([]valueobjects.NodeID{"a"}, nil)
	s.Copy()

	ids := s.Duplicate([]valueobjects.NodeID{"b", "ghost"})

	require.Len(t, ids, 1)
	clip := s.Clipboard()
	require.Len(t, clip.Nodes, 1)
	assert.Equal(t, valueobjects.NodeID("a"), clip.Nodes[0].ID)
	assert.Nil(t, s.Duplicate([]valueobjects.NodeID{"ghost"}))
}

func TestStore_GroupSelection(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", entities.KindText, 100, 100, nil)
	addNode(t, s, "b", entities.KindText, 300, 250, nil)
	addNode(t, s, "far", entities.KindText, 2000, 2000, nil)
	s.Select([]valueobjects.NodeID{"a", "b"}, nil)

	groupID, ok := s.GroupSelection("Scene 1")
	require.True(t, ok)

	group, _ := s.Node(groupID)
	assert.Equal(t, valueobjects.Position{X: 68, Y: 68}, group.Position)
	data := group.Data.(entities.GroupData)
	assert.Equal(t, "Scene 1", data.Label)
	assert.Equal(t, 264.0, data.Width)
	assert.Equal(t, 214.0, data.Height)
	assert.ElementsMatch(t, []valueobjects.NodeID{"a", "b"}, s.GroupMembers(groupID))

	// copying the group brings its members
	s.Select([]valueobjects.NodeID{groupID}, nil)
	assert.Equal(t, 3, s.Copy())

	assert.False(t, s.Ungroup("a"))
	require.True(t, s.Ungroup(groupID))
	nodes, _ := s.Counts()
	assert.Equal(t, 3, nodes)
}
