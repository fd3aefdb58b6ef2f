package planner

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realaman90/koda-sub002/application/builder"
	"github.com/realaman90/koda-sub002/application/editor"
	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/domain/config"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/realaman90/koda-sub002/domain/services"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
	"github.com/realaman90/koda-sub002/pkg/observability"
)

func newTestPlanner(t *testing.T, source ports.PlanSource) (*Planner, *editor.Store) {
	t.Helper()
	table := capabilities.DefaultTable()
	store := editor.NewStore(config.DefaultDomainConfig(), table, zaptest.NewLogger(t))
	t.Cleanup(store.Close)
	b := builder.NewBuilder(store, table, zaptest.NewLogger(t))
	return NewPlanner(b, source, zaptest.NewLogger(t), observability.NewCollector("test")), store
}

func fourScenes() Plan {
	return Plan{
		Scenes: []Scene{
			{Prompt: "sunrise over the bay"},
			{Prompt: "fishing boats leave", Duration: 8},
			{Prompt: "storm rolls in"},
			{Prompt: "calm harbour at night"},
		},
		ImageModel: "flux-kontext",
		VideoModel: "kling-2.1",
	}
}

func TestPlanner_BuildIsOneUndoStep(t *testing.T) {
	// Arrange
	p, store := newTestPlanner(t, nil)
	existing, err := entities.NewNode(entities.KindText, valueobjects.Position{}, entities.TextData{Content: "notes"})
	require.NoError(t, err)
	require.True(t, store.AddNode(existing))

	// Act
	layout, err := p.Build(context.Background(), fourScenes())

	// Assert
	require.NoError(t, err)
	assert.Len(t, layout.SceneIDs, 4)
	assert.Len(t, layout.Transitions, 3)
	assert.Equal(t, 3+3*2, layout.Edges)
	nodes, edges := store.Counts()
	assert.Equal(t, 8, nodes)
	assert.Equal(t, 9, edges)
	assert.Len(t, store.Selection().Nodes, 7)

	require.True(t, store.Undo())
	nodes, edges = store.Counts()
	assert.Equal(t, 1, nodes, "only the pre-existing node remains")
	assert.Zero(t, edges)
}

func TestPlanner_TransitionsResolveFrames(t *testing.T) {
	p, store := newTestPlanner(t, nil)
	layout, err := p.Build(context.Background(), fourScenes())
	require.NoError(t, err)

	store.UpdateGeneration(layout.SceneIDs[1], func(s entities.GenerationStatus) entities.GenerationStatus {
		s.OutputURL = "https://cdn/s2.png"
		return s
	})
	store.UpdateGeneration(layout.SceneIDs[2], func(s entities.GenerationStatus) entities.GenerationStatus {
		s.OutputURL = "https://cdn/s3.png"
		return s
	})

	in := store.GetConnectedInputs(layout.Transitions[1])
	assert.Equal(t, "https://cdn/s2.png", in.FirstFrameURL)
	assert.Equal(t, "https://cdn/s3.png", in.LastFrameURL)

	continuity := services.GetConnectedInputs(store.Snapshot(), layout.SceneIDs[2])
	assert.Equal(t, "https://cdn/s2.png", continuity.ReferenceURL)

	video, _ := store.Node(layout.Transitions[1])
	data := video.Data.(entities.VideoGeneratorData)
	assert.Equal(t, 8, data.Duration)
	assert.Equal(t, "kling-2.1", data.Model)
}

func TestPlanner_SharedSourcesFeedEveryScene(t *testing.T) {
	p, store := newTestPlanner(t, nil)
	plan := fourScenes()
	plan.ProductImageURL = "https://cdn/product.png"
	plan.CharacterImageURL = "https://cdn/hero.png"

	layout, err := p.Build(context.Background(), plan)

	require.NoError(t, err)
	assert.Equal(t, 9, layout.NodeCount())
	assert.Equal(t, 9+4*2, layout.Edges)
	for _, scene := range layout.SceneIDs {
		in := store.GetConnectedInputs(scene)
		assert.Equal(t, []string{"https://cdn/product.png", "https://cdn/hero.png"}, in.ReferenceURLs)
	}
}

func TestPlanner_BuildRejectsInvalidPlan(t *testing.T) {
	p, store := newTestPlanner(t, nil)

	_, err := p.Build(context.Background(), Plan{Scenes: []Scene{{Title: "no prompt"}}})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	nodes, _ := store.Counts()
	assert.Zero(t, nodes)
}

// failingCanvas records what is created and fails after a number of edges
type failingCanvas struct {
	nodes     int
	edges     int
	failAfter int
}

func (c *failingCanvas) CreateNodes(inputs []builder.CreateNodeInput) ([]valueobjects.NodeID, error) {
	ids := make([]valueobjects.NodeID, len(inputs))
	for i := range inputs {
		ids[i] = valueobjects.NewNodeID()
	}
	c.nodes += len(inputs)
	return ids, nil
}

func (c *failingCanvas) CreateEdge(_ valueobjects.NodeID, _ valueobjects.HandleID, _ valueobjects.NodeID, _ valueobjects.HandleID) error {
	if c.edges == c.failAfter {
		return errors.New("upstream unavailable")
	}
	c.edges++
	return nil
}

func (c *failingCanvas) GetViewportCenter() valueobjects.Position { return valueobjects.Position{} }
func (c *failingCanvas) FitView() bool                            { return true }

func TestMaterialize_StopsAtFirstError(t *testing.T) {
	canvas := &failingCanvas{failAfter: 2}

	layout, err := Materialize(canvas, fourScenes())

	require.Error(t, err)
	assert.Equal(t, 7, canvas.nodes)
	assert.Equal(t, 2, layout.Edges)
	assert.Len(t, layout.SceneIDs, 4)
}

// scriptedStream replays chunks, then io.EOF
type scriptedStream struct {
	chunks []ports.PlanChunk
	err    error
	onRecv func(i int)
	i      int
	closed bool
}

func (s *scriptedStream) Recv() (ports.PlanChunk, error) {
	if s.onRecv != nil {
		s.onRecv(s.i)
	}
	if s.i >= len(s.chunks) {
		if s.err != nil {
			return ports.PlanChunk{}, s.err
		}
		return ports.PlanChunk{}, io.EOF
	}
	c := s.chunks[s.i]
	s.i++
	return c, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

func TestPlanFromStream(t *testing.T) {
	stream := &scriptedStream{chunks: []ports.PlanChunk{
		{Reasoning: "Four beats, "},
		{Reasoning: "dawn to night.", Content: "```json\n{\"scenes\": [{\"prompt\": \"dawn\"},"},
		{Content: " {\"prompt\": \"night\"}], \"aspectRatio\": \"16:9\"}\n```"},
	}}

	result, err := PlanFromStream(context.Background(), stream)

	require.NoError(t, err)
	assert.True(t, stream.closed)
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, "Four beats, dawn to night.", result.Reasoning)
	require.Len(t, result.Plan.Scenes, 2)
	assert.Equal(t, "night", result.Plan.Scenes[1].Prompt)
	assert.Equal(t, "16:9", result.Plan.AspectRatio)
}

func TestPlanFromStream_CancelKeepsReasoning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := &scriptedStream{
		chunks: []ports.PlanChunk{
			{Reasoning: "thinking about "},
			{Reasoning: "the ending"},
			{Content: "{\"scenes\": []}"},
		},
		onRecv: func(i int) {
			if i == 2 {
				cancel()
			}
		},
	}

	result, err := PlanFromStream(ctx, stream)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCanceled(err))
	assert.Equal(t, "thinking about the ending", result.Reasoning)
	assert.True(t, stream.closed)
}

func TestPlanFromStream_Errors(t *testing.T) {
	tests := []struct {
		name   string
		stream *scriptedStream
		check  func(error) bool
	}{
		{
			name:   "transport failure",
			stream: &scriptedStream{err: errors.New("reset by peer")},
			check:  func(err error) bool { return pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal) },
		},
		{
			name:   "no json",
			stream: &scriptedStream{chunks: []ports.PlanChunk{{Content: "I cannot help with that."}}},
			check:  pkgerrors.IsValidation,
		},
		{
			name:   "empty plan",
			stream: &scriptedStream{chunks: []ports.PlanChunk{{Content: `{"scenes": []}`}}},
			check:  pkgerrors.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanFromStream(context.Background(), tt.stream)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

type staticSource struct {
	stream ports.PlanStream
}

func (s staticSource) StreamPlan(context.Context, string) (ports.PlanStream, error) {
	return s.stream, nil
}

func TestPlanner_Storyboard(t *testing.T) {
	stream := &scriptedStream{chunks: []ports.PlanChunk{
		{Content: `{"scenes": [{"prompt": "a"}, {"prompt": "b"}]}`},
	}}
	p, store := newTestPlanner(t, staticSource{stream: stream})

	result, layout, err := p.Storyboard(context.Background(), "two shots")

	require.NoError(t, err)
	assert.Len(t, result.Plan.Scenes, 2)
	assert.Len(t, layout.Transitions, 1)
	nodes, edges := store.Counts()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 3, edges)
}
