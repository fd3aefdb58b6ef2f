package persistence

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
)

func TestDocumentCodec(t *testing.T) {
	doc := ports.GraphDocument{
		ID:      "g1",
		OwnerID: "u1",
		Version: 2,
		Nodes: []json.RawMessage{
			json.RawMessage(`{"id":"n1","type":"text","position":{"x":1,"y":2},"data":{"content":"hi"}}`),
		},
		Edges:     []entities.Edge{entities.NewEdge("n1", "output", "n2", "text")},
		Viewport:  &ports.ViewportState{X: 10, Y: 20, Zoom: 1.5},
		UpdatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	b, err := EncodeDocument(doc)
	require.NoError(t, err)
	got, err := DecodeDocument(b)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Edges, got.Edges)
	assert.Equal(t, doc.Viewport, got.Viewport)
	require.Len(t, got.Nodes, 1)
	assert.JSONEq(t, string(doc.Nodes[0]), string(got.Nodes[0]))
}

func TestDecodeDocument_Legacy(t *testing.T) {
	got, err := DecodeDocument([]byte(`{"id":"g1","nodes":[],"edges":[]}`))

	require.NoError(t, err)
	assert.Equal(t, LegacyVersion, got.Version)
	assert.Nil(t, got.Viewport)
}

func TestCodec_Errors(t *testing.T) {
	_, err := EncodeDocument(ports.GraphDocument{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = DecodeDocument([]byte(`{"id":`))
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
}
