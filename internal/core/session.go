package core

import (
	"slices"
	"time"

	"github.com/dotcommander/architect/internal/domain/blueprint"
)

// Session is one requirements set moving through the architect stages.
// Outputs of stages that succeeded are kept when a later stage fails.
type Session struct {
	ID           string    `json:"id"`
	Dir          string    `json:"dir"`
	Requirements []string  `json:"requirements"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	FailedStage  string    `json:"failedStage,omitempty"`
	LastError    string    `json:"lastError,omitempty"`

	Vision    *blueprint.VisionResult    `json:"-"`
	Structure *blueprint.StructureResult `json:"-"`
	Contexts  *blueprint.ContextResult   `json:"-"`
}

// NextStage returns the first stage without output, or "" when all are done.
func (s *Session) NextStage() string {
	switch {
	case s.Vision == nil:
		return StageVision
	case s.Structure == nil:
		return StageStructure
	case s.Contexts == nil:
		return StageContexts
	default:
		return ""
	}
}

// Done reports whether every stage has produced output.
func (s *Session) Done() bool {
	return s.NextStage() == ""
}

// Completed lists the stages that have output, in order.
func (s *Session) Completed() []string {
	next := s.NextStage()
	if next == "" {
		return slices.Clone(Stages)
	}
	return slices.Clone(Stages[:slices.Index(Stages, next)])
}

// ResetFrom drops the output of stage and every stage after it, so they run
// again.
func (s *Session) ResetFrom(stage string) {
	switch stage {
	case StageVision:
		s.Vision = nil
		fallthrough
	case StageStructure:
		s.Structure = nil
		fallthrough
	case StageContexts:
		s.Contexts = nil
	}
}
