// Package history keeps bounded undo and redo stacks of graph snapshots.
package history

import (
	"time"

	"github.com/realaman90/koda-sub002/domain/core/aggregates"
)

// Entry is one undoable step: the graph as it was on the other side of it
type Entry struct {
	Label      string
	Snapshot   aggregates.Snapshot
	RecordedAt time.Time
}

// Manager holds the undo and redo stacks. It is not safe for concurrent
// use; the owning store serializes access.
type Manager struct {
	limit int
	undo  []Entry
	redo  []Entry
	now   func() time.Time
}

// NewManager creates a manager keeping at most limit entries per stack
func NewManager(limit int) *Manager {
	if limit < 1 {
		limit = 1
	}
	return &Manager{limit: limit, now: time.Now}
}

// Record pushes the state preceding a mutation. Any redo branch is discarded.
func (m *Manager) Record(before aggregates.Snapshot, label string) {
	m.undo = push(m.undo, Entry{Label: label, Snapshot: before.Clone(), RecordedAt: m.now()}, m.limit)
	m.redo = nil
}

// Undo pops the last step and returns the state to restore. current is
// saved for redo. Returns false when there is nothing to undo.
func (m *Manager) Undo(current aggregates.Snapshot) (Entry, bool) {
	if len(m.undo) == 0 {
		return Entry{}, false
	}
	entry := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = push(m.redo, Entry{Label: entry.Label, Snapshot: current.Clone(), RecordedAt: m.now()}, m.limit)
	return entry, true
}

// Redo re-applies the last undone step. Returns false when there is
// nothing to redo.
func (m *Manager) Redo(current aggregates.Snapshot) (Entry, bool) {
	if len(m.redo) == 0 {
		return Entry{}, false
	}
	entry := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = push(m.undo, Entry{Label: entry.Label, Snapshot: current.Clone(), RecordedAt: m.now()}, m.limit)
	return entry, true
}

// CanUndo reports whether Undo would do anything
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether Redo would do anything
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// UndoDepth returns the number of undoable steps
func (m *Manager) UndoDepth() int { return len(m.undo) }

// RedoDepth returns the number of redoable steps
func (m *Manager) RedoDepth() int { return len(m.redo) }

// Limit returns the per-stack cap
func (m *Manager) Limit() int { return m.limit }

// Clear drops both stacks
func (m *Manager) Clear() {
	m.undo = nil
	m.redo = nil
}

// push appends e, dropping the oldest entries past limit
func push(stack []Entry, e Entry, limit int) []Entry {
	stack = append(stack, e)
	if over := len(stack) - limit; over > 0 {
		clear(stack[:over])
		stack = stack[over:]
	}
	return stack
}
