// Package persistence holds the storage encoding shared by the graph
// repositories.
package persistence

import (
	"github.com/goccy/go-json"

	"github.com/realaman90/koda-sub002/application/ports"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// LegacyVersion is assumed for documents saved without a version
const LegacyVersion = 1

// EncodeDocument renders doc as JSON
func EncodeDocument(doc ports.GraphDocument) ([]byte, error) {
	if doc.ID == "" {
		return nil, pkgerrors.NewValidationError("graph document has no id")
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to encode graph document").WithCause(err)
	}
	return b, nil
}

// DecodeDocument parses a stored document. Node payloads are left raw for
// migration; edges must decode.
func DecodeDocument(b []byte) (ports.GraphDocument, error) {
	var doc ports.GraphDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return ports.GraphDocument{}, pkgerrors.NewDatabaseError("decode graph document", err)
	}
	if doc.Version == 0 {
		doc.Version = LegacyVersion
	}
	return doc, nil
}
