// Package ports declares what the application needs from the outside world.
// Implementations live under infrastructure.
package ports

import (
	"context"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/realaman90/koda-sub002/domain/events"
)

// GenerationRequest is everything a provider needs to run one node
type GenerationRequest struct {
	NodeID valueobjects.NodeID `json:"-"`
	Kind   entities.NodeKind   `json:"kind"`
	Model  string              `json:"model"`
	Prompt string              `json:"prompt,omitempty"`

	// Reference images in slot order
	ImageURLs         []string `json:"imageUrls,omitempty"`
	FirstFrameURL     string   `json:"firstFrameUrl,omitempty"`
	LastFrameURL      string   `json:"lastFrameUrl,omitempty"`
	VideoURL          string   `json:"videoUrl,omitempty"`
	AudioURL          string   `json:"audioUrl,omitempty"`
	ProductImageURL   string   `json:"productImageUrl,omitempty"`
	CharacterImageURL string   `json:"characterImageUrl,omitempty"`

	// Kind specific settings such as aspectRatio or duration
	Params map[string]any `json:"params,omitempty"`
}

// GenerationResult is a provider's answer to Generate. Either the outputs
// are set, or Async is true and TaskID names the remote job to poll.
type GenerationResult struct {
	OutputURL  string   `json:"outputUrl,omitempty"`
	OutputURLs []string `json:"outputUrls,omitempty"`
	Async      bool     `json:"async,omitempty"`
	TaskID     string   `json:"taskId,omitempty"`
	Model      string   `json:"model,omitempty"`
}

// PollStatus is the remote state reported by Poll
type PollStatus string

const (
	PollPending    PollStatus = "pending"
	PollProcessing PollStatus = "processing"
	PollCompleted  PollStatus = "completed"
	PollFailed     PollStatus = "failed"
)

// IsTerminal reports whether the remote job has finished
func (s PollStatus) IsTerminal() bool {
	return s == PollCompleted || s == PollFailed
}

// PollResult is one observation of a remote job
type PollResult struct {
	Status     PollStatus `json:"status"`
	Progress   int        `json:"progress,omitempty"`
	OutputURL  string     `json:"outputUrl,omitempty"`
	OutputURLs []string   `json:"outputUrls,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// GenerationProvider runs generation jobs
type GenerationProvider interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
	Poll(ctx context.Context, taskID, model string) (PollResult, error)
}

// Canceler is implemented by providers that can stop a remote job
type Canceler interface {
	Cancel(ctx context.Context, taskID, model string) error
}

// PresignedUpload lets a client upload straight to storage
type PresignedUpload struct {
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"publicUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AssetStorage stores binary assets and returns stable URLs for them
type AssetStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Presign(ctx context.Context, fileName, contentType string) (PresignedUpload, error)
}

// GraphDocument is the persisted form of a canvas. Nodes stay raw so that
// loading can drop what it no longer understands instead of failing.
type GraphDocument struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"ownerId,omitempty"`
	Version   int               `json:"version"`
	Nodes     []json.RawMessage `json:"nodes"`
	Edges     []entities.Edge   `json:"edges"`
	Viewport  *ViewportState    `json:"viewport,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// ViewportState is the persisted viewport
type ViewportState struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// GraphRepository persists graph documents
type GraphRepository interface {
	// Save creates or replaces a document
	Save(ctx context.Context, doc GraphDocument) error

	// Load returns a not found AppError for unknown ids
	Load(ctx context.Context, graphID string) (GraphDocument, error)

	// Delete removes a document; deleting a missing one is not an error
	Delete(ctx context.Context, graphID string) error

	// List returns the graphs of ownerID, most recently updated first
	List(ctx context.Context, ownerID string) ([]GraphSummary, error)
}

// GraphSummary describes a stored graph without its content
type GraphSummary struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId,omitempty"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventPublisher delivers job lifecycle events to interested systems
type EventPublisher interface {
	Publish(ctx context.Context, events ...events.GenerationEvent) error
}

// PlanChunk is one piece of a streamed plan
type PlanChunk struct {
	Reasoning string
	Content   string
}

// PlanStream yields plan chunks until io.EOF
type PlanStream interface {
	Recv() (PlanChunk, error)
	Close() error
}

// PlanSource opens plan streams for a brief
type PlanSource interface {
	StreamPlan(ctx context.Context, brief string) (PlanStream, error)
}
