package services

import (
	"context"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realaman90/koda-sub002/application/jobs"
	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	domainservices "github.com/realaman90/koda-sub002/domain/services"
	"github.com/realaman90/koda-sub002/infrastructure/persistence/memory"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
)

type idleProvider struct{}

func (idleProvider) Generate(context.Context, ports.GenerationRequest) (ports.GenerationResult, error) {
	return ports.GenerationResult{OutputURL: "https://cdn/out.png"}, nil
}

func (idleProvider) Poll(context.Context, string, string) (ports.PollResult, error) {
	return ports.PollResult{Status: ports.PollProcessing}, nil
}

func newTestService(t *testing.T) (*SessionService, *memory.GraphRepository) {
	t.Helper()
	repo := memory.NewGraphRepository()
	svc := NewSessionService(repo, capabilities.NewRegistry(nil), idleProvider{}, jobs.NewManualScheduler(),
		nil, nil, nil, zaptest.NewLogger(t), nil)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc, repo
}

func TestSessionService_SaveAndReopen(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc, repo := newTestService(t)
	sess, err := svc.Open(ctx, "g1", "u1")
	require.NoError(t, err)
	node, err := entities.NewNode(entities.KindText, valueobjects.Position{X: 5, Y: 6}, entities.TextData{Content: "hello"})
	require.NoError(t, err)
	require.True(t, sess.Store.AddNode(node))

	// Act
	require.NoError(t, svc.Close(ctx, "g1"))
	reopened, err := svc.Open(ctx, "g1", "u1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())
	assert.NotSame(t, sess, reopened)
	got, ok := reopened.Store.Node(node.ID)
	require.True(t, ok)
	assert.Equal(t, node, got)
	assert.False(t, reopened.Store.CanUndo(), "history starts empty after load")
	assert.False(t, reopened.Migration.HasChanges())
}

func TestSessionService_MigratesOnLoad(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	repo.Put("legacy", []byte(`{
		"id": "legacy",
		"nodes": [
			{"id": "txt", "type": "text", "position": {"x": 0, "y": 0}, "data": {"content": "a cat"}},
			{"id": "holo", "type": "hologram", "position": {"x": 0, "y": 0}, "data": {}},
			{"id": "img", "type": "imageGenerator", "position": {"x": 300, "y": 0}, "data": {"model": "retired-model", "isGenerating": true}}
		],
		"edges": [
			{"id": "e1", "source": "txt", "sourceHandle": "output", "target": "img", "targetHandle": "text"},
			{"id": "e2", "source": "holo", "sourceHandle": "output", "target": "img", "targetHandle": "reference"}
		]
	}`))

	sess, err := svc.Open(ctx, "legacy", "")

	require.NoError(t, err)
	nodes, edges := sess.Store.Counts()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)
	assert.Equal(t, []valueobjects.NodeID{"holo"}, sess.Migration.DroppedNodes)
	assert.Equal(t, []valueobjects.EdgeID{"e2"}, sess.Migration.DroppedEdges)

	img, ok := sess.Store.Node("img")
	require.True(t, ok)
	gen, _ := img.Generator()
	assert.Equal(t, "flux-schnell", gen.ModelID())
	assert.False(t, gen.Generation().IsGenerating)
	assert.Equal(t, domainservices.InterruptedMessage, gen.Generation().Error)
}

func TestSessionService_ResumesRemoteTasks(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	repo.Put("g2", []byte(`{
		"id": "g2", "version": 2,
		"nodes": [
			{"id": "vid", "type": "videoGenerator", "position": {"x": 0, "y": 0},
			 "data": {"model": "veo-3", "prompt": "waves", "isGenerating": true, "taskId": "t1", "taskModel": "veo-3", "taskStatus": "processing"}}
		],
		"edges": []
	}`))

	sess, err := svc.Open(ctx, "g2", "")

	require.NoError(t, err)
	assert.True(t, sess.Jobs.IsRunning("vid"))
	assert.Equal(t, 1, sess.Jobs.Active())
}

func TestSessionService_OwnerMismatchLooksMissing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Open(ctx, "g1", "alice")
	require.NoError(t, err)

	_, err = svc.Open(ctx, "g1", "mallory")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSessionService_ConcurrentOpenSharesSession(t *testing.T) {
	svc, _ := newTestService(t)

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := svc.Open(context.Background(), "shared", "")
			assert.NoError(t, err)
			sessions[i] = sess
		}()
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, svc.Count())
}

func TestSessionService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	_, err := svc.Open(ctx, "g1", "")
	require.NoError(t, err)
	require.NoError(t, svc.Save(ctx, "g1"))
	require.Equal(t, 1, repo.Len())

	require.NoError(t, svc.Delete(ctx, "g1"))

	assert.Zero(t, repo.Len())
	assert.Zero(t, svc.Count())
	assert.True(t, pkgerrors.IsNotFound(svc.Save(ctx, "g1")))
}

func TestSessionService_ImportReplacesCanvas(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc, repo := newTestService(t)
	sess, err := svc.Open(ctx, "g1", "u1")
	require.NoError(t, err)
	old, err := entities.NewNode(entities.KindText, valueobjects.Position{}, nil)
	require.NoError(t, err)
	require.True(t, sess.Store.AddNode(old))

	doc := ports.GraphDocument{
		Nodes: []json.RawMessage{
			json.RawMessage(`{"id":"a","type":"text","position":{"x":0,"y":0},"data":{"content":"hi"}}`),
			json.RawMessage(`{"id":"ghost","type":"warpDrive","position":{"x":0,"y":0},"data":{}}`),
		},
		Viewport: &ports.ViewportState{X: 10, Y: 20, Zoom: 0.5},
	}

	// Act
	imported, err := svc.Import(ctx, "g1", "u1", doc)

	// Assert
	require.NoError(t, err)
	assert.Same(t, sess, imported)
	_, ok := imported.Store.Node(old.ID)
	assert.False(t, ok)
	_, ok = imported.Store.Node("a")
	assert.True(t, ok)
	assert.Equal(t, []valueobjects.NodeID{"ghost"}, imported.Migration.DroppedNodes)
	assert.Equal(t, 0.5, imported.Store.Viewport().Zoom)
	assert.False(t, imported.Store.CanUndo())
	assert.Equal(t, 1, repo.Len())
}

func TestSessionService_List(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	for _, id := range []string{"g1", "g2"} {
		_, err := svc.Open(ctx, id, "u1")
		require.NoError(t, err)
		require.NoError(t, svc.Save(ctx, id))
	}
	_, err := svc.Open(ctx, "g3", "u2")
	require.NoError(t, err)
	require.NoError(t, svc.Save(ctx, "g3"))

	got, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.List(ctx, "")
	assert.True(t, pkgerrors.IsValidation(err))
}
