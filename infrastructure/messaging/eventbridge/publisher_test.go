package eventbridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/realaman90/koda-sub002/domain/events"
)

type fakeBus struct {
	calls  []*eventbridge.PutEventsInput
	err    error
	failed int32
}

func (f *fakeBus) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &eventbridge.PutEventsOutput{FailedEntryCount: f.failed}
	for i := range in.Entries {
		entry := types.PutEventsResultEntry{EventId: aws.String(fmt.Sprintf("ev-%d", i))}
		if int32(i) < f.failed {
			entry.ErrorCode = aws.String("ThrottlingException")
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func generationEvents(n int) []events.GenerationEvent {
	out := make([]events.GenerationEvent, n)
	for i := range out {
		e := events.NewGenerationEvent(events.TypeGenerationSucceeded,
			valueobjects.NodeID(fmt.Sprintf("n%d", i)), "imageGenerator", "flux-schnell",
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		e.GraphID = "g1"
		out[i] = e
	}
	return out
}

func TestPublisher_BatchesByTen(t *testing.T) {
	// Arrange
	bus := &fakeBus{}
	p := NewPublisher(bus, "koda-events", zaptest.NewLogger(t))

	// Act
	err := p.Publish(context.Background(), generationEvents(23)...)

	// Assert
	require.NoError(t, err)
	require.Len(t, bus.calls, 3)
	assert.Len(t, bus.calls[0].Entries, 10)
	assert.Len(t, bus.calls[1].Entries, 10)
	assert.Len(t, bus.calls[2].Entries, 3)

	entry := bus.calls[0].Entries[0]
	assert.Equal(t, "koda-events", aws.ToString(entry.EventBusName))
	assert.Equal(t, events.SourceEngine, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeGenerationSucceeded, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"arn:koda:graph::g1/node/n0"}, entry.Resources)

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "n0", detail["node_id"])
	assert.Equal(t, "flux-schnell", detail["model"])
}

func TestPublisher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		bus     *fakeBus
		wantErr string
	}{
		{"client error", &fakeBus{err: assert.AnError}, "failed to publish events to EventBridge"},
		{"partial failure", &fakeBus{failed: 2}, "2 events failed to publish"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPublisher(tt.bus, "bus", zaptest.NewLogger(t))

			err := p.Publish(context.Background(), generationEvents(15)...)

			assert.ErrorContains(t, err, tt.wantErr)
			assert.Len(t, tt.bus.calls, 1, "later batches are not sent")
		})
	}
}

func TestPublisher_NothingToSend(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, "bus", nil)

	require.NoError(t, p.Publish(context.Background()))
	assert.Empty(t, bus.calls)
}
