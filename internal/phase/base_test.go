package phase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/architect/internal/agent"
	"github.com/dotcommander/architect/internal/core"
	"github.com/dotcommander/architect/internal/extract"
	"github.com/dotcommander/architect/internal/prompt"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunWrapsErrors(t *testing.T) {
	b := NewBaseStage("vision", quietLogger)
	boom := errors.New("boom")

	err := b.Run(context.Background(), func(ctx context.Context) error {
		assert.Equal(t, "vision", agent.OperationFrom(ctx))
		return boom
	})

	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "vision", pe.Stage)
	assert.ErrorIs(t, err, boom)
	assert.False(t, pe.Timestamp.IsZero())

	assert.NoError(t, b.Run(context.Background(), func(context.Context) error { return nil }))
}

func TestRunSkipsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewBaseStage("structure", nil).Run(ctx, func(context.Context) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "structure", core.StageOf(err))
}

func TestAsk(t *testing.T) {
	mock := agent.NewMockClient("Sure.\n```json\n{\"visionText\": \"a\\nb\"}\n```", "no json here")
	b := NewBaseStage("vision", quietLogger)
	prompts := prompt.NewCache("")

	var out map[string]json.RawMessage
	require.NoError(t, b.Ask(context.Background(), mock, prompts, prompt.Vision, prompt.VisionData{Requirements: []string{"r"}}, &out))
	assert.Contains(t, out, "visionText")
	assert.Contains(t, mock.Calls()[0].UserMessage, "- r")

	err := b.Ask(context.Background(), mock, prompts, prompt.Vision, prompt.VisionData{}, &out)
	assert.True(t, extract.IsExtractionError(err))
}

func TestField(t *testing.T) {
	obj := map[string]json.RawMessage{
		"text":  json.RawMessage(`"hello"`),
		"null":  json.RawMessage(`null`),
		"count": json.RawMessage(`3`),
	}

	var s string
	require.NoError(t, Field("vision", obj, "text", &s))
	assert.Equal(t, "hello", s)

	tests := []struct {
		name  string
		field string
	}{
		{name: "missing", field: "absent"},
		{name: "null", field: "null"},
		{name: "wrong type", field: "count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst string
			err := Field("vision", obj, tt.field, &dst)

			var re *core.InvalidResponseError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.field, re.Field)
			assert.Equal(t, "vision", re.Stage)
		})
	}
}

func TestOptionalField(t *testing.T) {
	obj := map[string]json.RawMessage{"n": json.RawMessage(`"x"`)}

	var n int
	present, err := OptionalField("understanding", obj, "absent", &n)
	assert.False(t, present)
	assert.NoError(t, err)

	present, err = OptionalField("understanding", obj, "n", &n)
	assert.True(t, present)
	assert.True(t, core.IsInvalidResponse(err))
}
