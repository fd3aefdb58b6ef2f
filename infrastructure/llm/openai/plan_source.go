// Package openai streams storyboard plans from an OpenAI compatible chat
// completion endpoint.
package openai

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/ports"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

const (
	openThinking  = "<thinking>"
	closeThinking = "</thinking>"
)

// SystemPrompt instructs the model to think in tags and answer with the
// plan JSON only
const SystemPrompt = `You plan short video storyboards for a node based media editor.
First reason about the brief inside <thinking></thinking> tags.
Then answer with a single JSON object and nothing else:
{"scenes":[{"title":"...","prompt":"...","duration":5}],
 "productImageUrl":"","characterImageUrl":"","transitionPrompt":"",
 "imageModel":"","videoModel":"","aspectRatio":"16:9"}
Use between 1 and 24 scenes. Leave fields empty when the brief does not mention them.`

// ChatClient is the subset of the go-openai client used here
type ChatClient interface {
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// PlanSource implements ports.PlanSource
type PlanSource struct {
	client ChatClient
	model  string
	logger *zap.Logger
}

var _ ports.PlanSource = (*PlanSource)(nil)

// NewPlanSource creates a plan source that uses model
func NewPlanSource(client ChatClient, model string, logger *zap.Logger) *PlanSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &PlanSource{client: client, model: model, logger: logger}
}

// NewClient builds a go-openai client, pointing at baseURL when set
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// StreamPlan opens a completion stream for brief
func (s *PlanSource) StreamPlan(ctx context.Context, brief string) (ports.PlanStream, error) {
	if strings.TrimSpace(brief) == "" {
		return nil, appErrors.NewValidationError("brief is required")
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:  s.model,
		Stream: true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: brief},
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, appErrors.NewCanceledError("plan stream").WithCause(err)
		}
		s.logger.Error("Failed to open plan stream", zap.String("model", s.model), zap.Error(err))
		return nil, appErrors.NewExternalError("openai", err)
	}

	s.logger.Debug("Plan stream opened", zap.String("model", s.model))
	return &planStream{stream: stream}, nil
}

// planStream splits the model's text into reasoning and content
type planStream struct {
	stream   *openai.ChatCompletionStream
	splitter splitter
	done     bool
}

func (p *planStream) Recv() (ports.PlanChunk, error) {
	for !p.done {
		resp, err := p.stream.Recv()
		if errors.Is(err, io.EOF) {
			p.done = true
			if chunk := p.splitter.flush(); chunk != (ports.PlanChunk{}) {
				return chunk, nil
			}
			break
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ports.PlanChunk{}, appErrors.NewCanceledError("plan stream").WithCause(err)
			}
			return ports.PlanChunk{}, appErrors.NewExternalError("openai", err)
		}

		var text strings.Builder
		for _, choice := range resp.Choices {
			text.WriteString(choice.Delta.Content)
		}
		if chunk := p.splitter.feed(text.String()); chunk != (ports.PlanChunk{}) {
			return chunk, nil
		}
	}
	return ports.PlanChunk{}, io.EOF
}

func (p *planStream) Close() error {
	p.stream.Close()
	return nil
}

// splitter routes text inside <thinking> tags to Reasoning and everything
// else to Content. Tags may arrive split across deltas.
type splitter struct {
	pending     string
	inReasoning bool
}

func (s *splitter) feed(text string) ports.PlanChunk {
	s.pending += text
	var out ports.PlanChunk
	for {
		tag := openThinking
		if s.inReasoning {
			tag = closeThinking
		}

		if i := strings.Index(s.pending, tag); i >= 0 {
			s.emit(&out, s.pending[:i])
			s.pending = s.pending[i+len(tag):]
			s.inReasoning = !s.inReasoning
			continue
		}

		keep := partialSuffix(s.pending, tag)
		s.emit(&out, s.pending[:len(s.pending)-keep])
		s.pending = s.pending[len(s.pending)-keep:]
		return out
	}
}

func (s *splitter) flush() ports.PlanChunk {
	var out ports.PlanChunk
	s.emit(&out, s.pending)
	s.pending = ""
	return out
}

func (s *splitter) emit(out *ports.PlanChunk, text string) {
	if s.inReasoning {
		out.Reasoning += text
	} else {
		out.Content += text
	}
}

// partialSuffix is the length of the longest suffix of s that is a proper
// prefix of tag
func partialSuffix(s, tag string) int {
	for n := min(len(s), len(tag)-1); n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
