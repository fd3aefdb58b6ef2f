// Package planner turns storyboard plans into graph structure through the
// builder's Canvas.
package planner

import (
	"fmt"

	"github.com/realaman90/koda-sub002/application/builder"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

// Layout of a storyboard, relative to the viewport center
const (
	SceneSpacing     = 420.0
	TransitionOffset = 380.0
	SourceColumnGap  = 480.0
	SourceRowGap     = 320.0

	DefaultTransitionPrompt = "Smooth cinematic transition between the two frames"
	DefaultSceneDuration    = 5
)

// Scene is one shot of a storyboard
type Scene struct {
	Title    string `json:"title,omitempty"`
	Prompt   string `json:"prompt" validate:"required"`
	Duration int    `json:"duration,omitempty" validate:"omitempty,min=1,max=60"`
}

// Plan describes a storyboard to lay out on the canvas
type Plan struct {
	Scenes            []Scene `json:"scenes" validate:"required,min=1,max=24,dive"`
	ProductImageURL   string  `json:"productImageUrl,omitempty" validate:"omitempty,url"`
	CharacterImageURL string  `json:"characterImageUrl,omitempty" validate:"omitempty,url"`
	TransitionPrompt  string  `json:"transitionPrompt,omitempty"`
	ImageModel        string  `json:"imageModel,omitempty"`
	VideoModel        string  `json:"videoModel,omitempty"`
	AspectRatio       string  `json:"aspectRatio,omitempty"`
}

// Layout lists what a storyboard created
type Layout struct {
	ProductID   valueobjects.NodeID   `json:"productId,omitempty"`
	CharacterID valueobjects.NodeID   `json:"characterId,omitempty"`
	SceneIDs    []valueobjects.NodeID `json:"sceneIds"`
	Transitions []valueobjects.NodeID `json:"transitionIds"`
	Edges       int                   `json:"edges"`
}

// NodeCount returns the number of nodes in the layout
func (l Layout) NodeCount() int {
	n := len(l.SceneIDs) + len(l.Transitions)
	if l.ProductID != "" {
		n++
	}
	if l.CharacterID != "" {
		n++
	}
	return n
}

// Materialize creates the storyboard on canvas:
//   - one image generator per scene, left to right
//   - a transition video under each consecutive pair, fed by its first and last frame
//   - continuity edges from each scene image into the next one's reference
//   - optional product and character images feeding every scene
//
// Nodes are created first, then wired by index. On error the nodes and
// edges created so far are kept.
func Materialize(canvas builder.Canvas, plan Plan) (Layout, error) {
	var layout Layout
	center := canvas.GetViewportCenter()
	n := len(plan.Scenes)
	left := center.X - SceneSpacing*float64(n-1)/2

	var inputs []builder.CreateNodeInput
	if plan.ProductImageURL != "" {
		inputs = append(inputs, mediaInput("Product", plan.ProductImageURL, valueobjects.Position{X: left - SourceColumnGap, Y: center.Y}))
	}
	if plan.CharacterImageURL != "" {
		inputs = append(inputs, mediaInput("Character", plan.CharacterImageURL, valueobjects.Position{X: left - SourceColumnGap, Y: center.Y + SourceRowGap}))
	}
	sources := len(inputs)

	for i, scene := range plan.Scenes {
		name := scene.Title
		if name == "" {
			name = fmt.Sprintf("Scene %d", i+1)
		}
		inputs = append(inputs, builder.CreateNodeInput{
			Kind:     entities.KindImageGenerator,
			Position: valueobjects.Position{X: left + SceneSpacing*float64(i), Y: center.Y},
			Data: entities.ImageGeneratorData{
				Name:        name,
				Model:       plan.ImageModel,
				Prompt:      scene.Prompt,
				AspectRatio: plan.AspectRatio,
				NumImages:   1,
			},
		})
	}

	transitionPrompt := plan.TransitionPrompt
	if transitionPrompt == "" {
		transitionPrompt = DefaultTransitionPrompt
	}
	for i := 0; i < n-1; i++ {
		duration := plan.Scenes[i].Duration
		if duration == 0 {
			duration = DefaultSceneDuration
		}
		inputs = append(inputs, builder.CreateNodeInput{
			Kind:     entities.KindVideoGenerator,
			Position: valueobjects.Position{X: left + SceneSpacing*(float64(i)+0.5), Y: center.Y + TransitionOffset},
			Data: entities.VideoGeneratorData{
				Name:        fmt.Sprintf("Transition %d-%d", i+1, i+2),
				Model:       plan.VideoModel,
				Prompt:      transitionPrompt,
				AspectRatio: plan.AspectRatio,
				Duration:    duration,
			},
		})
	}

	ids, err := canvas.CreateNodes(inputs)
	if err != nil {
		return layout, err
	}

	idx := 0
	if plan.ProductImageURL != "" {
		layout.ProductID = ids[idx]
		idx++
	}
	if plan.CharacterImageURL != "" {
		layout.CharacterID = ids[idx]
	}
	layout.SceneIDs = ids[sources : sources+n]
	layout.Transitions = ids[sources+n:]

	wire := func(source valueobjects.NodeID, target valueobjects.NodeID, handle valueobjects.HandleID) error {
		if err := canvas.CreateEdge(source, valueobjects.HandleOutput, target, handle); err != nil {
			return err
		}
		layout.Edges++
		return nil
	}

	for i, scene := range layout.SceneIDs {
		if i > 0 {
			if err := wire(layout.SceneIDs[i-1], scene, valueobjects.HandleReference); err != nil {
				return layout, err
			}
		}
		if layout.ProductID != "" {
			if err := wire(layout.ProductID, scene, valueobjects.ReferenceSlot(2)); err != nil {
				return layout, err
			}
		}
		if layout.CharacterID != "" {
			if err := wire(layout.CharacterID, scene, valueobjects.ReferenceSlot(3)); err != nil {
				return layout, err
			}
		}
	}

	for i, video := range layout.Transitions {
		if err := wire(layout.SceneIDs[i], video, valueobjects.HandleFirstFrame); err != nil {
			return layout, err
		}
		if err := wire(layout.SceneIDs[i+1], video, valueobjects.HandleLastFrame); err != nil {
			return layout, err
		}
	}

	return layout, nil
}

func mediaInput(name, url string, pos valueobjects.Position) builder.CreateNodeInput {
	return builder.CreateNodeInput{
		Kind:     entities.KindMedia,
		Position: pos,
		Data:     entities.MediaData{Name: name, URL: url, MediaType: entities.MediaImage},
	}
}
