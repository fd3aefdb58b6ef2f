package history

import (
	"fmt"
	"testing"

	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotOf(t *testing.T, ids ...string) aggregates.Snapshot {
	t.Helper()
	s := aggregates.Snapshot{Nodes: []entities.Node{}, Edges: []entities.Edge{}}
	for _, id := range ids {
		n, err := entities.NewNodeWithID(valueobjects.NodeID(id), entities.KindText, valueobjects.Position{}, nil)
		require.NoError(t, err)
		s.Nodes = append(s.Nodes, n)
	}
	return s
}

func TestManager_UndoRedo(t *testing.T) {
	m := NewManager(10)
	s0 := snapshotOf(t)
	s1 := snapshotOf(t, "a")
	s2 := snapshotOf(t, "a", "b")

	_, ok := m.Undo(s0)
	assert.False(t, ok, "undo on empty history is a no-op")
	assert.False(t, m.CanUndo())

	m.Record(s0, "add a")
	m.Record(s1, "add b")
	assert.Equal(t, 2, m.UndoDepth())

	entry, ok := m.Undo(s2)
	require.True(t, ok)
	assert.Equal(t, s1, entry.Snapshot)
	assert.Equal(t, "add b", entry.Label)
	assert.True(t, m.CanRedo())

	entry, ok = m.Redo(s1)
	require.True(t, ok)
	assert.Equal(t, s2, entry.Snapshot)
	assert.False(t, m.CanRedo())
	assert.Equal(t, 2, m.UndoDepth())
}

func TestManager_RecordDiscardsRedo(t *testing.T) {
	m := NewManager(10)
	m.Record(snapshotOf(t), "add a")
	_, ok := m.Undo(snapshotOf(t, "a"))
	require.True(t, ok)
	require.True(t, m.CanRedo())

	m.Record(snapshotOf(t), "add c")

	assert.False(t, m.CanRedo())
	assert.Equal(t, 1, m.UndoDepth())
}

func TestManager_Bounded(t *testing.T) {
	m := NewManager(3)
	for i := 0; i < 5; i++ {
		m.Record(snapshotOf(t, fmt.Sprintf("n%d", i)), fmt.Sprintf("step %d", i))
	}

	assert.Equal(t, 3, m.UndoDepth())
	var labels []string
	for m.CanUndo() {
		e, _ := m.Undo(snapshotOf(t))
		labels = append(labels, e.Label)
	}
	assert.Equal(t, []string{"step 4", "step 3", "step 2"}, labels)
	assert.Equal(t, 3, m.RedoDepth())
}

func TestManager_EntriesAreDetached(t *testing.T) {
	m := NewManager(5)
	s := snapshotOf(t, "a")
	m.Record(s, "step")

	s.Nodes[0].Position = valueobjects.Position{X: 99}

	e, _ := m.Undo(snapshotOf(t))
	assert.Equal(t, valueobjects.Position{}, e.Snapshot.Nodes[0].Position)
}
