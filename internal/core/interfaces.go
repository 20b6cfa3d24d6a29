package core

import (
	"context"

	"github.com/dotcommander/architect/internal/domain/blueprint"
)

// Stage names shared by the pipeline, the orchestrator and stored sessions.
const (
	StageVision    = "vision"
	StageStructure = "structure"
	StageContexts  = "contexts"
)

// Stages lists the architect stages in execution order.
var Stages = []string{StageVision, StageStructure, StageContexts}

// Architect is the three-stage generator the orchestrator drives.
type Architect interface {
	GenerateVision(ctx context.Context, requirements []string) (*blueprint.VisionResult, error)
	GenerateStructure(ctx context.Context, requirements []string, visionText string) (*blueprint.StructureResult, error)
	GenerateImplementationContexts(ctx context.Context, requirements []string, visionText string, structure *blueprint.StructureResult) (*blueprint.ContextResult, error)
}

type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, pattern string) ([]string, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
}
