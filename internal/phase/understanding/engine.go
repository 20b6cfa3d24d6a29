// Package understanding runs the requirements interview: each turn asks the
// remote service for a reply and a fresh confidence reading, which is merged
// so confidence never drops.
package understanding

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"

	"github.com/dotcommander/architect/internal/agent"
	"github.com/dotcommander/architect/internal/core"
	"github.com/dotcommander/architect/internal/domain/conversation"
	"github.com/dotcommander/architect/internal/phase"
	"github.com/dotcommander/architect/internal/prompt"
)

// StageName is recorded on every PipelineError the engine returns.
const StageName = "understanding"

// Engine advances a conversation one turn at a time. It keeps no
// conversation state of its own.
type Engine struct {
	client  agent.Completer
	prompts *prompt.Cache
	logger  *slog.Logger
	stage   phase.BaseStage
}

type Option func(*Engine)

func WithPrompts(prompts *prompt.Cache) Option {
	return func(e *Engine) {
		e.prompts = prompts
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(client agent.Completer, opts ...Option) *Engine {
	e := &Engine{
		client:  client,
		prompts: prompt.NewCache(""),
		logger:  slog.Default().With("component", "understanding"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stage = phase.NewBaseStage(StageName, e.logger)
	return e
}

var metricFields = []string{"coreConcept", "requirements", "technical", "constraints", "userContext"}

// Advance sends turn together with the state in c and returns the validated
// result. c is not modified; callers fold the result in with c.Apply.
func (e *Engine) Advance(ctx context.Context, turn []conversation.Message, c conversation.Context) (*conversation.TurnResult, error) {
	var result *conversation.TurnResult

	err := e.stage.Run(ctx, func(ctx context.Context) error {
		data := prompt.UnderstandingData{
			Phase:         c.Phase,
			Metrics:       c.Understanding,
			Overall:       c.Understanding.Overall(),
			ExtractedInfo: c.ExtractedInfo,
			Turn:          turn,
		}
		if !data.Phase.Valid() {
			data.Phase = conversation.PhaseInitial
		}

		var reply map[string]json.RawMessage
		if err := e.stage.Ask(ctx, e.client, e.prompts, prompt.Understanding, data, &reply); err != nil {
			return err
		}

		r, err := parseReply(reply)
		if err != nil {
			return err
		}

		r.Phase = data.Phase.Advance(r.Phase)
		r.Understanding = conversation.Merge(c.Understanding, r.Understanding)
		r.Overall = r.Understanding.Overall()

		e.stage.Logger().Debug("Turn evaluated",
			"phase", r.Phase,
			"metrics", r.Understanding.String(),
			"overall", r.Overall,
			"new_requirements", len(r.NewRequirements),
			"new_technical_details", len(r.NewTechnicalDetails))

		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseReply reads the raw reply. Phase and Understanding hold the asserted,
// unvalidated values.
func parseReply(reply map[string]json.RawMessage) (*conversation.TurnResult, error) {
	r := &conversation.TurnResult{}

	if err := phase.Field(StageName, reply, "response", &r.ResponseText); err != nil {
		return nil, err
	}

	var metrics map[string]json.RawMessage
	if err := phase.Field(StageName, reply, "metrics", &metrics); err != nil {
		return nil, err
	}
	values := make([]int, len(metricFields))
	for i, name := range metricFields {
		var v float64
		if err := phase.Field(StageName, metrics, name, &v); err != nil {
			return nil, core.NewInvalidResponseError(StageName, "metrics."+name, "missing or not a number")
		}
		// clamp before converting; out-of-range floats have no defined int value
		values[i] = int(math.Round(math.Min(math.Max(v, 0), 100)))
	}
	r.Understanding = conversation.Metrics{
		CoreConcept:  values[0],
		Requirements: values[1],
		Technical:    values[2],
		Constraints:  values[3],
		UserContext:  values[4],
	}

	var info conversation.ExtractedInfo
	if _, err := phase.OptionalField(StageName, reply, "extractedInfo", &info); err != nil {
		return nil, err
	}
	r.NewRequirements = info.Requirements
	r.NewTechnicalDetails = info.TechnicalDetails

	var next string
	if _, err := phase.OptionalField(StageName, reply, "nextPhase", &next); err != nil {
		return nil, err
	}
	r.Phase = conversation.Phase(next)

	return r, nil
}
