// Package builder creates whole subgraphs on behalf of planners. Everything
// created in one Run is a single undo step.
package builder

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/editor"
	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
	"github.com/realaman90/koda-sub002/pkg/observability"
	"github.com/realaman90/koda-sub002/pkg/utils"
)

// Canvas is the seam through which a planner turns a plan into graph state
type Canvas interface {
	CreateNodes(inputs []CreateNodeInput) ([]valueobjects.NodeID, error)
	CreateEdge(source valueobjects.NodeID, sourceHandle valueobjects.HandleID, target valueobjects.NodeID, targetHandle valueobjects.HandleID) error
	GetViewportCenter() valueobjects.Position
	FitView() bool
}

// CreateNodeInput describes one node to create. Data defaults to the
// kind's defaults; Patch is merged on top of it.
type CreateNodeInput struct {
	Kind     entities.NodeKind     `json:"type" validate:"required,nodekind"`
	Position valueobjects.Position `json:"position"`
	Data     entities.NodeData     `json:"-"`
	Patch    entities.Patch        `json:"data,omitempty"`
}

// Builder commits planner output to a store
type Builder struct {
	store   *editor.Store
	catalog capabilities.Catalog
	logger  *zap.Logger
}

// NewBuilder creates a builder for store
func NewBuilder(store *editor.Store, catalog capabilities.Catalog, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{store: store, catalog: catalog, logger: logger}
}

// Run executes one planner invocation. Everything fn creates is a single
// history entry. When fn fails partway the nodes and edges already created
// stay on the canvas and the error is returned to the caller.
func (b *Builder) Run(ctx context.Context, label string, fn func(tx *Tx) error) error {
	ctx, span := observability.StartSpan(ctx, "builder.run", attribute.String("label", label))
	defer span.End()

	var tx *Tx
	err := b.store.Batch(label, func(etx *editor.Tx) error {
		tx = &Tx{ctx: ctx, etx: etx, catalog: b.catalog, logger: b.logger}
		return fn(tx)
	})

	span.SetAttributes(
		attribute.Int("nodes.created", len(tx.created)),
		attribute.Int("edges.created", tx.edges),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Warn("Graph build stopped partway",
			zap.String("label", label),
			zap.Int("nodesCreated", len(tx.created)),
			zap.Int("edgesCreated", tx.edges),
			zap.Error(err))
		return err
	}

	b.logger.Debug("Graph build committed",
		zap.String("label", label),
		zap.Int("nodesCreated", len(tx.created)),
		zap.Int("edgesCreated", tx.edges))
	return nil
}

// CreateNodes creates nodes as their own undo step
func (b *Builder) CreateNodes(ctx context.Context, inputs []CreateNodeInput) ([]valueobjects.NodeID, error) {
	var ids []valueobjects.NodeID
	err := b.Run(ctx, "create_nodes", func(tx *Tx) error {
		var err error
		ids, err = tx.CreateNodes(inputs)
		return err
	})
	return ids, err
}

// CreateEdge creates an edge as its own undo step
func (b *Builder) CreateEdge(ctx context.Context, source valueobjects.NodeID, sourceHandle valueobjects.HandleID, target valueobjects.NodeID, targetHandle valueobjects.HandleID) error {
	return b.Run(ctx, "create_edge", func(tx *Tx) error {
		return tx.CreateEdge(source, sourceHandle, target, targetHandle)
	})
}

// GetViewportCenter returns the canvas position at the center of the screen
func (b *Builder) GetViewportCenter() valueobjects.Position {
	return b.store.GetViewportCenter()
}

// FitView moves the viewport to show every node
func (b *Builder) FitView() bool {
	return b.store.FitView()
}

// Tx is the Canvas handed to a Run callback
type Tx struct {
	ctx     context.Context
	etx     *editor.Tx
	catalog capabilities.Catalog
	logger  *zap.Logger

	created []valueobjects.NodeID
	edges   int
}

var _ Canvas = (*Tx)(nil)

// CreateNodes validates every input, then creates the nodes and returns
// their ids in input order. Nothing is created when any input is invalid
// or the graph would exceed its node limit.
func (tx *Tx) CreateNodes(inputs []CreateNodeInput) ([]valueobjects.NodeID, error) {
	if err := tx.ctx.Err(); err != nil {
		return nil, pkgerrors.NewCanceledError("create nodes").WithCause(err)
	}

	nodes := make([]entities.Node, 0, len(inputs))
	for i, in := range inputs {
		node, err := tx.buildNode(in)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "node %d", i)
		}
		nodes = append(nodes, node)
	}

	count, _ := tx.etx.Counts()
	limit, _ := tx.etx.Limits()
	if count+len(nodes) > limit {
		return nil, pkgerrors.NewCapacityError("nodes per graph", limit).
			WithDetails(map[string]interface{}{"current": count, "requested": len(nodes)})
	}

	ids := make([]valueobjects.NodeID, 0, len(nodes))
	for _, n := range nodes {
		if !tx.etx.AddNode(n) {
			return ids, pkgerrors.NewInternalError(fmt.Sprintf("node %s was not added", n.ID))
		}
		ids = append(ids, n.ID)
		tx.created = append(tx.created, n.ID)
	}
	return ids, nil
}

// CreateEdge wires two existing nodes without consulting the connection
// rules. A handle the target kind does not declare is accepted but the
// edge will never be resolved.
func (tx *Tx) CreateEdge(source valueobjects.NodeID, sourceHandle valueobjects.HandleID, target valueobjects.NodeID, targetHandle valueobjects.HandleID) error {
	if err := tx.ctx.Err(); err != nil {
		return pkgerrors.NewCanceledError("create edge").WithCause(err)
	}
	if source == target {
		return pkgerrors.NewValidationError("an edge cannot connect a node to itself")
	}
	if _, ok := tx.etx.Node(source); !ok {
		return pkgerrors.NewNotFoundError("source node " + source.String())
	}
	targetNode, ok := tx.etx.Node(target)
	if !ok {
		return pkgerrors.NewNotFoundError("target node " + target.String())
	}
	_, edgeCount := tx.etx.Counts()
	if _, limit := tx.etx.Limits(); edgeCount >= limit {
		return pkgerrors.NewCapacityError("edges per graph", limit)
	}

	if !entities.AcceptsInput(targetNode.Kind, targetHandle) {
		tx.logger.Warn("Edge targets a handle its node does not read",
			zap.String("target", target.String()),
			zap.String("kind", targetNode.Kind.String()),
			zap.String("targetHandle", targetHandle.String()))
	}

	edge := entities.NewEdge(source, sourceHandle, target, targetHandle)
	if !tx.etx.AddEdge(edge) {
		return pkgerrors.NewInternalError("edge " + edge.ID.String() + " was not added")
	}
	tx.edges++
	return nil
}

// GetViewportCenter returns the canvas position at the center of the screen
func (tx *Tx) GetViewportCenter() valueobjects.Position {
	return tx.etx.Viewport().Center()
}

// FitView moves the viewport to show every node
func (tx *Tx) FitView() bool {
	return tx.etx.FitView()
}

// SelectCreated selects every node created so far in this run
func (tx *Tx) SelectCreated() {
	tx.etx.SelectNodes(tx.created)
}

// Created returns the ids created so far in this run
func (tx *Tx) Created() []valueobjects.NodeID {
	return append([]valueobjects.NodeID(nil), tx.created...)
}

func (tx *Tx) buildNode(in CreateNodeInput) (entities.Node, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return entities.Node{}, err
	}

	data := in.Data
	if data == nil {
		data = entities.DefaultData(in.Kind)
	}
	if len(in.Patch) > 0 {
		patched, err := entities.ApplyPatch(data, in.Patch)
		if err != nil {
			return entities.Node{}, pkgerrors.NewValidationError(err.Error())
		}
		data = patched
	}

	if gen, ok := data.(entities.GeneratorData); ok && gen.ModelID() == "" && tx.catalog != nil {
		if model, ok := tx.catalog.DefaultModel(in.Kind); ok {
			data = entities.WithModel(data, model)
		}
	}

	return entities.NewNode(in.Kind, in.Position, data)
}
