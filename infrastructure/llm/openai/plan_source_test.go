package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realaman90/koda-sub002/application/planner"
	"github.com/realaman90/koda-sub002/application/ports"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// sseServer streams deltas the way the chat completions endpoint does
func sseServer(t *testing.T, deltas []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		for i, d := range deltas {
			payload, _ := json.Marshal(map[string]any{
				"id":      fmt.Sprintf("chunk-%d", i),
				"object":  "chat.completion.chunk",
				"model":   "gpt-4o-mini",
				"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": d}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, stream ports.PlanStream) (reasoning, content string) {
	t.Helper()
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return reasoning, content
		}
		require.NoError(t, err)
		reasoning += chunk.Reasoning
		content += chunk.Content
	}
}

func TestPlanSource_SplitsReasoning(t *testing.T) {
	// Arrange
	srv := sseServer(t, []string{
		"<think", "ing>three beats", ", harbour at dawn</thi", "nking>",
		`{"scenes":[{"prompt":"harbour at dawn"},`,
		`{"prompt":"boats leave"}]}`,
	})
	source := NewPlanSource(NewClient("key", srv.URL), "", zaptest.NewLogger(t))

	// Act
	stream, err := source.StreamPlan(context.Background(), "a fishing village")
	require.NoError(t, err)
	defer stream.Close()
	reasoning, content := collect(t, stream)

	// Assert
	assert.Equal(t, "three beats, harbour at dawn", reasoning)
	plan, err := planner.ParsePlan(content)
	require.NoError(t, err)
	assert.Len(t, plan.Scenes, 2)
}

func TestPlanSource_FeedsPlanner(t *testing.T) {
	srv := sseServer(t, []string{`<thinking>ok</thinking>{"scenes":[{"prompt":"one"}]}`})
	source := NewPlanSource(NewClient("key", srv.URL), "gpt-4o", nil)

	stream, err := source.StreamPlan(context.Background(), "brief")
	require.NoError(t, err)
	result, err := planner.PlanFromStream(context.Background(), stream)

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Reasoning)
	assert.Equal(t, "one", result.Plan.Scenes[0].Prompt)
}

func TestPlanSource_RejectsEmptyBrief(t *testing.T) {
	source := NewPlanSource(NewClient("key", "http://127.0.0.1:0"), "", nil)

	_, err := source.StreamPlan(context.Background(), "  ")

	assert.True(t, appErrors.IsValidation(err))
}

func TestSplitter(t *testing.T) {
	tests := []struct {
		name          string
		parts         []string
		wantReasoning string
		wantContent   string
	}{
		{"no tags", []string{"{\"a\":", "1}"}, "", "{\"a\":1}"},
		{"tag in one delta", []string{"<thinking>r</thinking>c"}, "r", "c"},
		{"tag split per byte", strings.Split("<thinking>r</thinking>c", ""), "r", "c"},
		{"lookalike text", []string{"a <thin", "g> b"}, "", "a <thing> b"},
		{"unterminated reasoning", []string{"<thinking>still going"}, "still going", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s splitter
			var reasoning, content string
			for _, p := range tt.parts {
				c := s.feed(p)
				reasoning += c.Reasoning
				content += c.Content
			}
			c := s.flush()
			reasoning += c.Reasoning
			content += c.Content

			assert.Equal(t, tt.wantReasoning, reasoning)
			assert.Equal(t, tt.wantContent, content)
		})
	}
}
