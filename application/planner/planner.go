package planner

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/builder"
	"github.com/realaman90/koda-sub002/application/ports"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
	"github.com/realaman90/koda-sub002/pkg/observability"
	"github.com/realaman90/koda-sub002/pkg/utils"
)

// Planner outcome labels
const (
	OutcomeBuilt    = "built"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Planner builds storyboards on one canvas
type Planner struct {
	builder *builder.Builder
	source  ports.PlanSource
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewPlanner creates a planner. source may be nil when plans are always
// supplied by the caller.
func NewPlanner(b *builder.Builder, source ports.PlanSource, logger *zap.Logger, metrics *observability.Collector) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{builder: b, source: source, logger: logger, metrics: metrics}
}

// Build lays plan out on the canvas as one undo step and fits the view
// to the result.
func (p *Planner) Build(ctx context.Context, plan Plan) (Layout, error) {
	if err := utils.ValidateStruct(plan); err != nil {
		p.metrics.RecordPlannerRun(OutcomeInvalid)
		return Layout{}, err
	}

	var layout Layout
	err := p.builder.Run(ctx, "storyboard", func(tx *builder.Tx) error {
		var err error
		layout, err = Materialize(tx, plan)
		tx.SelectCreated()
		tx.FitView()
		return err
	})
	if err != nil {
		p.metrics.RecordPlannerRun(outcomeOf(err))
		return layout, err
	}

	p.metrics.RecordPlannerRun(OutcomeBuilt)
	p.logger.Info("Storyboard built",
		zap.Int("scenes", len(layout.SceneIDs)),
		zap.Int("transitions", len(layout.Transitions)),
		zap.Int("edges", layout.Edges))
	return layout, nil
}

// StreamResult is what a streamed planning session produced. Reasoning is
// kept even when the session was aborted.
type StreamResult struct {
	Plan      Plan   `json:"plan"`
	Reasoning string `json:"reasoning,omitempty"`
	Chunks    int    `json:"chunks"`
}

// Storyboard asks the plan source for a plan from brief and builds it
func (p *Planner) Storyboard(ctx context.Context, brief string) (StreamResult, Layout, error) {
	if p.source == nil {
		return StreamResult{}, Layout{}, pkgerrors.NewInternalError("no plan source configured")
	}

	ctx, span := observability.StartSpan(ctx, "planner.storyboard", attribute.Int("brief.length", len(brief)))
	defer span.End()

	stream, err := p.source.StreamPlan(ctx, brief)
	if err != nil {
		p.metrics.RecordPlannerRun(OutcomeFailed)
		return StreamResult{}, Layout{}, pkgerrors.NewExternalError("plan source", err)
	}

	started := time.Now()
	result, err := PlanFromStream(ctx, stream)
	if err != nil {
		span.RecordError(err)
		p.metrics.RecordPlannerRun(outcomeOf(err))
		p.logger.Warn("Storyboard planning stopped",
			zap.Int("chunks", result.Chunks),
			zap.Int("reasoningLength", len(result.Reasoning)),
			zap.Error(err))
		return result, Layout{}, err
	}
	p.logger.Debug("Storyboard plan received",
		zap.Int("chunks", result.Chunks),
		zap.Duration("elapsed", time.Since(started)))

	layout, err := p.Build(ctx, result.Plan)
	return result, layout, err
}

// PlanFromStream reads stream to the end and parses the plan it carries.
// Cancellation is checked between chunks; on abort the reasoning buffered
// so far is returned with a canceled error.
func PlanFromStream(ctx context.Context, stream ports.PlanStream) (StreamResult, error) {
	defer stream.Close()

	var (
		result    StreamResult
		reasoning strings.Builder
		content   strings.Builder
	)
	for {
		if err := ctx.Err(); err != nil {
			result.Reasoning = reasoning.String()
			return result, pkgerrors.NewCanceledError("storyboard planning").WithCause(err)
		}

		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Reasoning = reasoning.String()
			if ctx.Err() != nil {
				return result, pkgerrors.NewCanceledError("storyboard planning").WithCause(err)
			}
			return result, pkgerrors.NewExternalError("plan stream", err)
		}
		result.Chunks++
		reasoning.WriteString(chunk.Reasoning)
		content.WriteString(chunk.Content)
	}
	result.Reasoning = reasoning.String()

	plan, err := ParsePlan(content.String())
	if err != nil {
		return result, err
	}
	result.Plan = plan
	return result, nil
}

// ParsePlan extracts the JSON plan from model output, tolerating code
// fences and prose around it.
func ParsePlan(text string) (Plan, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Plan{}, pkgerrors.NewValidationError("plan output contains no JSON object")
	}

	var plan Plan
	if err := json.Unmarshal([]byte(text[start:end+1]), &plan); err != nil {
		return Plan{}, pkgerrors.NewValidationError("plan output is not valid JSON").WithCause(err)
	}
	if err := utils.ValidateStruct(plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func outcomeOf(err error) string {
	switch {
	case pkgerrors.IsCanceled(err):
		return OutcomeCanceled
	case pkgerrors.IsValidation(err):
		return OutcomeInvalid
	default:
		return OutcomeFailed
	}
}
