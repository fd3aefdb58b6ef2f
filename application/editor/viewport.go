package editor

import (
	"math"

	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

const (
	minZoom       = 0.1
	maxZoom       = 2
	fitViewMargin = 80
)

// Viewport is the visible window onto the canvas. X and Y are the screen
// offset of the canvas origin; Width and Height are the screen size.
type Viewport struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Zoom   float64 `json:"zoom"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// DefaultViewport is an unzoomed 1440x900 window at the origin
func DefaultViewport() Viewport {
	return Viewport{Zoom: 1, Width: 1440, Height: 900}
}

// Center returns the canvas position under the middle of the screen
func (v Viewport) Center() valueobjects.Position {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return valueobjects.Position{
		X: (v.Width/2 - v.X) / zoom,
		Y: (v.Height/2 - v.Y) / zoom,
	}
}

// Fit returns a viewport of the same screen size that shows all of bounds
func (v Viewport) Fit(bounds valueobjects.Rect) Viewport {
	area := bounds.Expand(fitViewMargin)
	zoom := 1.0
	if area.Width > 0 && area.Height > 0 && v.Width > 0 && v.Height > 0 {
		zoom = math.Min(v.Width/area.Width, v.Height/area.Height)
	}
	zoom = math.Max(minZoom, math.Min(maxZoom, zoom))

	center := bounds.Center()
	return Viewport{
		X:      v.Width/2 - center.X*zoom,
		Y:      v.Height/2 - center.Y*zoom,
		Zoom:   zoom,
		Width:  v.Width,
		Height: v.Height,
	}
}

// Viewport returns the current viewport
func (s *Store) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// SetViewport replaces the viewport. It is not an undoable change.
func (s *Store) SetViewport(v Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Zoom <= 0 {
		v.Zoom = 1
	}
	s.viewport = v
}

// GetViewportCenter returns the canvas position at the center of the screen
func (s *Store) GetViewportCenter() valueobjects.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport.Center()
}

// FitView moves the viewport to show every node. Returns false on an
// empty canvas.
func (s *Store) FitView() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bounds, ok := s.graph.Bounds()
	if !ok {
		return false
	}
	s.viewport = s.viewport.Fit(bounds)
	return true
}
