// Package memory keeps graph documents in process. Used for local
// development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/infrastructure/persistence"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// GraphRepository stores encoded documents in a map, so callers never
// share memory with what is stored.
type GraphRepository struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewGraphRepository creates an empty repository
func NewGraphRepository() *GraphRepository {
	return &GraphRepository{docs: make(map[string][]byte)}
}

var _ ports.GraphRepository = (*GraphRepository)(nil)

// Save stores doc
func (r *GraphRepository) Save(ctx context.Context, doc ports.GraphDocument) error {
	b, err := persistence.EncodeDocument(doc)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = b
	return nil
}

// Load returns the stored document for graphID
func (r *GraphRepository) Load(ctx context.Context, graphID string) (ports.GraphDocument, error) {
	r.mu.RLock()
	b, ok := r.docs[graphID]
	r.mu.RUnlock()
	if !ok {
		return ports.GraphDocument{}, pkgerrors.NewNotFoundError("graph " + graphID)
	}
	return persistence.DecodeDocument(b)
}

// Delete removes graphID
func (r *GraphRepository) Delete(ctx context.Context, graphID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, graphID)
	return nil
}

// List returns the summaries of ownerID's documents
func (r *GraphRepository) List(ctx context.Context, ownerID string) ([]ports.GraphSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := []ports.GraphSummary{}
	for _, b := range r.docs {
		doc, err := persistence.DecodeDocument(b)
		if err != nil || doc.OwnerID != ownerID {
			continue
		}
		summaries = append(summaries, ports.GraphSummary{
			ID:        doc.ID,
			OwnerID:   doc.OwnerID,
			NodeCount: len(doc.Nodes),
			EdgeCount: len(doc.Edges),
			UpdatedAt: doc.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// Put stores raw bytes as a document, bypassing encoding. Lets callers
// seed documents written by older versions.
func (r *GraphRepository) Put(graphID string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[graphID] = append([]byte(nil), raw...)
}

// Len returns the number of stored documents
func (r *GraphRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}
