package services

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

// InterruptedMessage is written into generators that were mid-request when
// the graph was saved and have no remote task to resume.
const InterruptedMessage = "Generation was interrupted before it finished"

// MigrationReport lists everything a load changed. Nothing is rejected
// wholesale; each entry is a warning for the caller to log.
type MigrationReport struct {
	DroppedNodes    []valueobjects.NodeID          `json:"droppedNodes,omitempty"`
	DroppedEdges    []valueobjects.EdgeID          `json:"droppedEdges,omitempty"`
	DefaultedModels map[valueobjects.NodeID]string `json:"defaultedModels,omitempty"`
	Interrupted     []valueobjects.NodeID          `json:"interrupted,omitempty"`
	Warnings        []string                       `json:"warnings,omitempty"`
}

// HasChanges reports whether the loaded graph differs from what was stored
func (r MigrationReport) HasChanges() bool {
	return len(r.DroppedNodes) > 0 || len(r.DroppedEdges) > 0 ||
		len(r.DefaultedModels) > 0 || len(r.Interrupted) > 0
}

func (r *MigrationReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// DecodeNodes decodes stored nodes one by one. Nodes of unknown kind, or
// whose payload cannot be decoded, are dropped and reported.
func DecodeNodes(raw []json.RawMessage, report *MigrationReport) []entities.Node {
	nodes := make([]entities.Node, 0, len(raw))
	for i, item := range raw {
		var node entities.Node
		err := json.Unmarshal(item, &node)
		if err == nil {
			nodes = append(nodes, node)
			continue
		}

		var head struct {
			ID   valueobjects.NodeID `json:"id"`
			Type string              `json:"type"`
		}
		_ = json.Unmarshal(item, &head)
		report.DroppedNodes = append(report.DroppedNodes, head.ID)
		if errors.Is(err, entities.ErrUnknownKind) {
			report.warn("dropped node %q at index %d: unknown kind %q", head.ID, i, head.Type)
		} else {
			report.warn("dropped node %q at index %d: %v", head.ID, i, err)
		}
	}
	return nodes
}

// MigrateSnapshot brings a stored snapshot in line with the current
// capability catalog and the graph invariants:
//   - generators whose model is missing or disabled take the kind's default model
//   - generators saved mid-request without a remote task are marked failed
//   - duplicate nodes and invalid edges are dropped
//
// Nodes with a running remote task keep their task fields so polling can resume.
func MigrateSnapshot(s aggregates.Snapshot, catalog capabilities.Catalog, report *MigrationReport) aggregates.Snapshot {
	out := aggregates.Snapshot{
		Nodes: make([]entities.Node, 0, len(s.Nodes)),
		Edges: make([]entities.Edge, 0, len(s.Edges)),
	}

	seen := make(map[valueobjects.NodeID]bool, len(s.Nodes))
	for _, node := range s.Nodes {
		if node.ID.IsZero() || seen[node.ID] {
			report.DroppedNodes = append(report.DroppedNodes, node.ID)
			report.warn("dropped duplicate or unnamed node %q", node.ID)
			continue
		}
		seen[node.ID] = true
		out.Nodes = append(out.Nodes, migrateNode(node, catalog, report))
	}

	edgeIDs := make(map[valueobjects.EdgeID]bool, len(s.Edges))
	sockets := make(map[string]bool, len(s.Edges))
	for _, e := range s.Edges {
		key := e.Target.String() + "/" + e.TargetHandle.String()
		switch {
		case e.ID.IsZero() || edgeIDs[e.ID]:
			report.warn("dropped duplicate or unnamed edge %q", e.ID)
		case e.IsSelfLoop():
			report.warn("dropped self edge %q", e.ID)
		case !seen[e.Source] || !seen[e.Target]:
			report.warn("dropped edge %q with a missing endpoint", e.ID)
		case sockets[key]:
			report.warn("dropped edge %q: socket %s already connected", e.ID, key)
		default:
			edgeIDs[e.ID] = true
			sockets[key] = true
			out.Edges = append(out.Edges, e)
			continue
		}
		report.DroppedEdges = append(report.DroppedEdges, e.ID)
	}

	return out
}

func migrateNode(node entities.Node, catalog capabilities.Catalog, report *MigrationReport) entities.Node {
	gen, ok := node.Generator()
	if !ok {
		return node
	}

	if catalog != nil {
		model := gen.ModelID()
		capability, found := catalog.Lookup(model)
		if !found || !capability.Enabled() || capability.Kind != node.Kind {
			if fallback, ok := catalog.DefaultModel(node.Kind); ok {
				node.Data = entities.WithModel(node.Data, fallback)
				if report.DefaultedModels == nil {
					report.DefaultedModels = make(map[valueobjects.NodeID]string)
				}
				report.DefaultedModels[node.ID] = fallback
				report.warn("node %q: model %q is unavailable, using %q", node.ID, model, fallback)
			} else {
				report.warn("node %q: model %q is unavailable and %s has no default", node.ID, model, node.Kind)
			}
		}
	}

	status := gen.Generation()
	if status.IsGenerating && !status.HasTask() {
		status = status.Clone()
		status.IsGenerating = false
		status.Progress = 0
		status.Error = InterruptedMessage
		node.Data = entities.WithGeneration(node.Data, status)
		report.Interrupted = append(report.Interrupted, node.ID)
	}
	return node
}
