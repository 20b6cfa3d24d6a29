package core

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SessionNamer returns the storage directory for a new session.
type SessionNamer func(sessionID string, requirements []string) string

func defaultSessionNamer(sessionID string, _ []string) string {
	return path.Join(SessionsDir, sessionID)
}

// Orchestrator threads sessions through the architect stages, persisting
// after every stage.
type Orchestrator struct {
	architect      Architect
	checkpoint     *CheckpointManager
	logger         *slog.Logger
	namer          SessionNamer
	maxConcurrency int
	now            func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithSessionNamer(namer SessionNamer) Option {
	return func(o *Orchestrator) {
		if namer != nil {
			o.namer = namer
		}
	}
}

// WithMaxConcurrency bounds how many sessions RunBatch runs at once.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrency = n
		}
	}
}

func New(architect Architect, storage Storage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		architect:      architect,
		checkpoint:     NewCheckpointManager(storage),
		logger:         slog.Default().With("component", "orchestrator"),
		namer:          defaultSessionNamer,
		maxConcurrency: 4,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// NewSession creates and stores a session for requirements. Blank entries
// are dropped; at least one requirement must remain.
func (o *Orchestrator) NewSession(ctx context.Context, requirements []string) (*Session, error) {
	cleaned := make([]string, 0, len(requirements))
	for _, r := range requirements {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return nil, NewPipelineError(StageVision,
			NewInvalidInputError(StageVision, "requirements", "at least one requirement is required"))
	}

	id := uuid.New().String()
	now := o.now()
	s := &Session{
		ID:           id,
		Dir:          o.namer(id, cleaned),
		Requirements: cleaned,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.checkpoint.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	o.logger.Info("Session created",
		"session_id", s.ID,
		"dir", s.Dir,
		"requirements", len(cleaned))
	return s, nil
}

// Run creates a session and runs every stage. The session is returned even
// when a stage fails, holding the outputs produced before the failure.
func (o *Orchestrator) Run(ctx context.Context, requirements []string) (*Session, error) {
	s, err := o.NewSession(ctx, requirements)
	if err != nil {
		return nil, err
	}
	return s, o.Resume(ctx, s)
}

// Resume runs the stages s has no output for, in order, stopping at the
// first failure.
func (o *Orchestrator) Resume(ctx context.Context, s *Session) error {
	start := time.Now()
	for stage := s.NextStage(); stage != ""; stage = s.NextStage() {
		if err := o.runStage(ctx, s, stage); err != nil {
			return err
		}
	}

	o.logger.Info("Session complete",
		"session_id", s.ID,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// RunStage reruns stage for s, dropping the output of it and of every later
// stage first.
func (o *Orchestrator) RunStage(ctx context.Context, s *Session, stage string) error {
	switch stage {
	case StageVision, StageStructure, StageContexts:
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	s.ResetFrom(stage)
	return o.runStage(ctx, s, stage)
}

func (o *Orchestrator) runStage(ctx context.Context, s *Session, stage string) error {
	o.logger.Debug("Running stage",
		"session_id", s.ID,
		"stage", stage)

	var err error
	switch stage {
	case StageVision:
		s.Vision, err = o.architect.GenerateVision(ctx, s.Requirements)
	case StageStructure:
		visionText := ""
		if s.Vision != nil {
			visionText = s.Vision.VisionText
		}
		s.Structure, err = o.architect.GenerateStructure(ctx, s.Requirements, visionText)
	case StageContexts:
		visionText := ""
		if s.Vision != nil {
			visionText = s.Vision.VisionText
		}
		s.Contexts, err = o.architect.GenerateImplementationContexts(ctx, s.Requirements, visionText, s.Structure)
	}

	s.FailedStage, s.LastError = "", ""
	if err != nil {
		err = NewPipelineError(stage, err)
		s.FailedStage, s.LastError = stage, err.Error()
		s.ResetFrom(stage)
		o.logger.Error("Stage failed",
			"session_id", s.ID,
			"stage", stage,
			"error", err)
	}
	s.UpdatedAt = o.now()

	// Use a fresh context so a cancelled run still records its progress.
	if saveErr := o.checkpoint.Save(context.WithoutCancel(ctx), s); saveErr != nil {
		if err != nil {
			return err
		}
		return fmt.Errorf("saving session: %w", saveErr)
	}
	return err
}

// Load finds a stored session by ID, ID prefix or directory name.
func (o *Orchestrator) Load(ctx context.Context, ref string) (*Session, error) {
	return o.checkpoint.Find(ctx, ref)
}

// Sessions lists stored sessions, oldest first.
func (o *Orchestrator) Sessions(ctx context.Context) ([]*Session, error) {
	return o.checkpoint.List(ctx)
}

// BatchResult is the outcome of one session in a batch.
type BatchResult struct {
	Requirements []string
	Session      *Session
	Err          error
}

// RunBatch runs one session per requirements set, at most maxConcurrency at
// a time. A failing session does not stop the others. Results are in input
// order.
func (o *Orchestrator) RunBatch(ctx context.Context, batches [][]string) []BatchResult {
	results := make([]BatchResult, len(batches))

	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)

	for i, requirements := range batches {
		g.Go(func() error {
			s, err := o.Run(ctx, requirements)
			results[i] = BatchResult{
				Requirements: requirements,
				Session:      s,
				Err:          err,
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	o.logger.Info("Batch complete",
		"sessions", len(batches),
		"failed", failed)

	return results
}
