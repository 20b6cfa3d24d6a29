// Package phase holds what the architect and understanding stages share:
// timing, structured logging and error wrapping around one remote call.
package phase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dotcommander/architect/internal/agent"
	"github.com/dotcommander/architect/internal/core"
	"github.com/dotcommander/architect/internal/extract"
	"github.com/dotcommander/architect/internal/prompt"
)

// BaseStage provides common functionality for all stages
type BaseStage struct {
	name   string
	logger *slog.Logger
}

// NewBaseStage creates a stage base. A nil logger falls back to slog.Default.
func NewBaseStage(name string, logger *slog.Logger) BaseStage {
	if logger == nil {
		logger = slog.Default()
	}
	return BaseStage{
		name:   name,
		logger: logger.With("stage", name),
	}
}

// Name returns the stage name
func (b BaseStage) Name() string {
	return b.name
}

// Logger returns the stage-tagged logger.
func (b BaseStage) Logger() *slog.Logger {
	return b.logger
}

// Run executes fn once with ctx labelled by the stage name. Any error is
// returned as a *core.PipelineError for this stage. There is no retry.
func (b BaseStage) Run(ctx context.Context, fn func(context.Context) error) error {
	start := time.Now()
	b.logger.Info("Starting stage execution")

	if err := ctx.Err(); err != nil {
		b.LogError(err, time.Since(start))
		return core.NewPipelineError(b.name, err)
	}

	if err := fn(agent.WithOperation(ctx, b.name)); err != nil {
		b.LogError(err, time.Since(start))
		return core.NewPipelineError(b.name, err)
	}

	b.logger.Info("Stage completed successfully",
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// LogError logs stage execution errors
func (b BaseStage) LogError(err error, duration time.Duration) {
	b.logger.Error("Stage execution failed",
		"error", err,
		"error_kind", classify(err),
		"duration_ms", duration.Milliseconds())
}

// Ask renders template name with data, sends it and decodes the extracted
// JSON reply into out.
func (b BaseStage) Ask(ctx context.Context, client agent.Completer, prompts *prompt.Cache, name string, data, out any) error {
	system, user, err := prompts.Render(name, data)
	if err != nil {
		return err
	}

	raw, err := client.Complete(ctx, system, user)
	if err != nil {
		return err
	}

	if err := extract.Decode(raw, out); err != nil {
		b.logger.Debug("Reply could not be decoded",
			"raw_length", len(raw),
			"error", err)
		return err
	}
	return nil
}

func classify(err error) string {
	switch {
	case core.IsInvalidInput(err):
		return "invalid_input"
	case core.IsInvalidResponse(err):
		return "invalid_response"
	case agent.IsServiceError(err):
		return "service"
	case extract.IsExtractionError(err):
		return "extraction"
	default:
		return "other"
	}
}

// Field decodes obj[name] into dst. A missing, null or mistyped field is an
// *core.InvalidResponseError for stage.
func Field(stage string, obj map[string]json.RawMessage, name string, dst any) error {
	raw, ok := obj[name]
	if !ok || string(raw) == "null" {
		return core.NewInvalidResponseError(stage, name, "missing from reply")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return core.NewInvalidResponseError(stage, name, err.Error())
	}
	return nil
}

// OptionalField is Field for keys that may be absent. It reports whether the
// key was present.
func OptionalField(stage string, obj map[string]json.RawMessage, name string, dst any) (bool, error) {
	raw, ok := obj[name]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, core.NewInvalidResponseError(stage, name, err.Error())
	}
	return true, nil
}
