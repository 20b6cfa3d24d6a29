// Package architect turns requirements into a technical vision, a project
// structure and per-file implementation contexts, one remote call per stage.
package architect

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dotcommander/architect/internal/agent"
	"github.com/dotcommander/architect/internal/core"
	"github.com/dotcommander/architect/internal/domain/blueprint"
	"github.com/dotcommander/architect/internal/phase"
	"github.com/dotcommander/architect/internal/prioritize"
	"github.com/dotcommander/architect/internal/prompt"
)

// Stage names, as recorded on PipelineError.
const (
	StageVision    = core.StageVision
	StageStructure = core.StageStructure
	StageContexts  = core.StageContexts
)

// Pipeline runs the three architect stages. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	client    agent.Completer
	prompts   *prompt.Cache
	batchSize int
	validate  *validator.Validate
	logger    *slog.Logger

	vision    phase.BaseStage
	structure phase.BaseStage
	contexts  phase.BaseStage
}

type Option func(*Pipeline)

// WithPrompts replaces the embedded prompt set.
func WithPrompts(prompts *prompt.Cache) Option {
	return func(p *Pipeline) {
		p.prompts = prompts
	}
}

// WithBatchSize sets how many files one contexts call covers. Values below
// one are ignored.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func New(client agent.Completer, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:    client,
		prompts:   prompt.NewCache(""),
		batchSize: prioritize.DefaultBatchSize,
		validate:  validator.New(),
		logger:    slog.Default().With("component", "architect"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.vision = phase.NewBaseStage(StageVision, p.logger)
	p.structure = phase.NewBaseStage(StageStructure, p.logger)
	p.contexts = phase.NewBaseStage(StageContexts, p.logger)
	return p
}

// BatchSize returns the number of files a contexts call covers.
func (p *Pipeline) BatchSize() int {
	return p.batchSize
}

// GenerateVision produces the technical vision for requirements.
func (p *Pipeline) GenerateVision(ctx context.Context, requirements []string) (*blueprint.VisionResult, error) {
	var result *blueprint.VisionResult

	err := p.vision.Run(ctx, func(ctx context.Context) error {
		var reply map[string]json.RawMessage
		if err := p.vision.Ask(ctx, p.client, p.prompts, prompt.Vision,
			prompt.VisionData{Requirements: requirements}, &reply); err != nil {
			return err
		}

		var text string
		if err := phase.Field(StageVision, reply, "visionText", &text); err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return core.NewInvalidResponseError(StageVision, "visionText", "empty")
		}

		result = &blueprint.VisionResult{VisionText: text}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateStructure designs the folder tree for requirements and visionText.
// An empty vision fails before any remote call.
func (p *Pipeline) GenerateStructure(ctx context.Context, requirements []string, visionText string) (*blueprint.StructureResult, error) {
	var result *blueprint.StructureResult

	err := p.structure.Run(ctx, func(ctx context.Context) error {
		if strings.TrimSpace(visionText) == "" {
			return core.NewInvalidInputError(StageStructure, "visionText", "must not be empty")
		}

		var reply map[string]json.RawMessage
		if err := p.structure.Ask(ctx, p.client, p.prompts, prompt.Structure,
			prompt.StructureData{Requirements: requirements, VisionText: visionText}, &reply); err != nil {
			return err
		}

		var root blueprint.FolderNode
		if err := phase.Field(StageStructure, reply, "rootFolder", &root); err != nil {
			return err
		}
		if err := p.validate.Struct(&root); err != nil {
			return core.NewInvalidResponseError(StageStructure, "rootFolder", err.Error())
		}

		p.structure.Logger().Debug("Structure received",
			"root", root.Name,
			"files", root.CountFiles())

		result = &blueprint.StructureResult{RootFolder: &root}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateImplementationContexts briefs the most important files of
// structure. Only the top BatchSize files by score are sent, in one call. A
// missing structure fails before any remote call.
func (p *Pipeline) GenerateImplementationContexts(ctx context.Context, requirements []string, visionText string, structure *blueprint.StructureResult) (*blueprint.ContextResult, error) {
	var result *blueprint.ContextResult

	err := p.contexts.Run(ctx, func(ctx context.Context) error {
		if structure == nil || structure.RootFolder == nil {
			return core.NewInvalidInputError(StageContexts, "rootFolder", "structure is required")
		}

		all := prioritize.Flatten(structure.RootFolder)
		if len(all) == 0 {
			return core.NewInvalidInputError(StageContexts, "rootFolder", "structure contains no files")
		}
		selected := prioritize.SelectTop(all, p.batchSize)

		p.contexts.Logger().Info("Files prioritized",
			"total", len(all),
			"selected", len(selected))

		var reply map[string]json.RawMessage
		if err := p.contexts.Ask(ctx, p.client, p.prompts, prompt.Contexts, prompt.ContextsData{
			Requirements: requirements,
			VisionText:   visionText,
			FileList:     prioritize.FormatList(selected),
		}, &reply); err != nil {
			return err
		}

		var order []blueprint.FileContext
		if err := phase.Field(StageContexts, reply, "implementationOrder", &order); err != nil {
			return err
		}

		result = &blueprint.ContextResult{
			ImplementationOrder: order,
			Selected:            selected,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
