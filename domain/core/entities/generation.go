package entities

import (
	"slices"
	"time"
)

// TaskStatus is the remote state of a long-running job
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
)

// GenerationStatus is the status block shared by every generator variant.
// A prior error may coexist with a previous output; the fields are not
// mutually exclusive.
type GenerationStatus struct {
	IsGenerating bool     `json:"isGenerating,omitempty"`
	Progress     int      `json:"progress,omitempty"`
	Error        string   `json:"error,omitempty"`
	OutputURL    string   `json:"outputUrl,omitempty"`
	OutputURLs   []string `json:"outputUrls,omitempty"`

	// Set only while a polled remote job is outstanding
	TaskID        string     `json:"taskId,omitempty"`
	TaskModel     string     `json:"taskModel,omitempty"`
	TaskStatus    TaskStatus `json:"taskStatus,omitempty"`
	TaskStartedAt *time.Time `json:"taskStartedAt,omitempty"`
}

// Generation returns the status block
func (s GenerationStatus) Generation() GenerationStatus {
	return s
}

// HasTask reports whether a remote job is attached
func (s GenerationStatus) HasTask() bool {
	return s.TaskID != ""
}

// PrimaryOutput returns outputUrl, falling back to the first of outputUrls
func (s GenerationStatus) PrimaryOutput() string {
	if s.OutputURL != "" {
		return s.OutputURL
	}
	if len(s.OutputURLs) > 0 {
		return s.OutputURLs[0]
	}
	return ""
}

// ClearTask drops all remote job fields
func (s *GenerationStatus) ClearTask() {
	s.TaskID = ""
	s.TaskModel = ""
	s.TaskStatus = ""
	s.TaskStartedAt = nil
}

// Clone returns a copy that shares no memory with s
func (s GenerationStatus) Clone() GenerationStatus {
	out := s
	out.OutputURLs = slices.Clone(s.OutputURLs)
	if s.TaskStartedAt != nil {
		started := *s.TaskStartedAt
		out.TaskStartedAt = &started
	}
	return out
}
