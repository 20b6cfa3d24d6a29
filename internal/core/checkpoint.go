package core

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Files written into every session directory.
const (
	SessionsDir      = "sessions"
	SessionFile      = "session.json"
	RequirementsFile = "requirements.json"
	VisionFile       = "vision.json"
	StructureFile    = "structure.json"
	ContextsFile     = "contexts.json"
)

// CheckpointManager persists sessions so a run can resume from the last
// stage that succeeded.
type CheckpointManager struct {
	storage Storage
}

func NewCheckpointManager(storage Storage) *CheckpointManager {
	return &CheckpointManager{
		storage: storage,
	}
}

// Save writes the session metadata and every stage output present. Files of
// stages without output are removed so a reset stage does not reappear.
func (cm *CheckpointManager) Save(ctx context.Context, s *Session) error {
	artifacts := []struct {
		name    string
		data    any
		present bool
	}{
		{SessionFile, s, true},
		{RequirementsFile, s.Requirements, true},
		{VisionFile, s.Vision, s.Vision != nil},
		{StructureFile, s.Structure, s.Structure != nil},
		{ContextsFile, s.Contexts, s.Contexts != nil},
	}

	for _, a := range artifacts {
		p := path.Join(s.Dir, a.name)
		if !a.present {
			if cm.storage.Exists(ctx, p) {
				if err := cm.storage.Delete(ctx, p); err != nil {
					return fmt.Errorf("removing stale %s: %w", a.name, err)
				}
			}
			continue
		}

		data, err := json.MarshalIndent(a.data, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", a.name, err)
		}
		if err := cm.storage.Save(ctx, p, data); err != nil {
			return fmt.Errorf("saving %s: %w", a.name, err)
		}
	}
	return nil
}

// Load reads the session stored in dir.
func (cm *CheckpointManager) Load(ctx context.Context, dir string) (*Session, error) {
	var s Session
	if err := cm.loadJSON(ctx, path.Join(dir, SessionFile), &s); err != nil {
		return nil, err
	}
	s.Dir = dir

	if err := cm.loadOptional(ctx, path.Join(dir, RequirementsFile), &s.Requirements); err != nil {
		return nil, err
	}
	if err := cm.loadOptional(ctx, path.Join(dir, VisionFile), &s.Vision); err != nil {
		return nil, err
	}
	if err := cm.loadOptional(ctx, path.Join(dir, StructureFile), &s.Structure); err != nil {
		return nil, err
	}
	if err := cm.loadOptional(ctx, path.Join(dir, ContextsFile), &s.Contexts); err != nil {
		return nil, err
	}
	return &s, nil
}

func (cm *CheckpointManager) loadJSON(ctx context.Context, p string, v any) error {
	data, err := cm.storage.Load(ctx, p)
	if err != nil {
		return fmt.Errorf("loading %s: %w", p, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", p, err)
	}
	return nil
}

func (cm *CheckpointManager) loadOptional(ctx context.Context, p string, v any) error {
	if !cm.storage.Exists(ctx, p) {
		return nil
	}
	return cm.loadJSON(ctx, p, v)
}

// List returns every stored session, oldest first.
func (cm *CheckpointManager) List(ctx context.Context) ([]*Session, error) {
	files, err := cm.storage.List(ctx, path.Join(SessionsDir, "*", SessionFile))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(files))
	for _, f := range files {
		s, err := cm.Load(ctx, path.Dir(filepath.ToSlash(f)))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	slices.SortStableFunc(sessions, func(a, b *Session) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sessions, nil
}

// Find resolves ref to a stored session. ref may be the full ID, an ID
// prefix of at least eight characters, or the session directory name.
func (cm *CheckpointManager) Find(ctx context.Context, ref string) (*Session, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrSessionNotFound)
	}

	sessions, err := cm.List(ctx)
	if err != nil {
		return nil, err
	}

	var match *Session
	for _, s := range sessions {
		if s.ID == ref || path.Base(s.Dir) == ref {
			return s, nil
		}
		if len(ref) >= 8 && strings.HasPrefix(s.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("session reference %q is ambiguous", ref)
			}
			match = s
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, ref)
	}
	return match, nil
}
