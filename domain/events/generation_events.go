package events

import (
	"time"

	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

// Event sources
const (
	SourceEngine = "koda.engine"
)

// Event types
const (
	TypeGenerationStarted   = "generation.started"
	TypeGenerationSubmitted = "generation.submitted"
	TypeGenerationSucceeded = "generation.succeeded"
	TypeGenerationFailed    = "generation.failed"
	TypeGenerationCanceled  = "generation.canceled"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// GenerationEvent records a transition of a node's job lifecycle
type GenerationEvent struct {
	BaseEvent
	GraphID    string              `json:"graph_id,omitempty"`
	NodeID     valueobjects.NodeID `json:"node_id"`
	NodeKind   string              `json:"node_kind"`
	Model      string              `json:"model,omitempty"`
	TaskID     string              `json:"task_id,omitempty"`
	OutputURLs []string            `json:"output_urls,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// NewGenerationEvent creates a lifecycle event of the given type
func NewGenerationEvent(eventType string, nodeID valueobjects.NodeID, kind, model string, timestamp time.Time) GenerationEvent {
	return GenerationEvent{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   eventType,
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:   nodeID,
		NodeKind: kind,
		Model:    model,
	}
}
