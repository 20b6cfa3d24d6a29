package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/architect/internal/core"
	"github.com/dotcommander/architect/internal/domain/blueprint"
)

var (
	runRequirements     []string
	runRequirementsFile string
	runJSON             bool
)

var runCmd = &cobra.Command{
	Use:   "run [requirement...]",
	Short: "Plan a project from requirements",
	Long: `Runs the vision, structure and contexts stages for a new session.

Requirements are given as arguments, with --requirement (repeatable), or read
from a file with --file (one per line, blank lines and lines starting with #
are skipped). All sources are combined.`,
	Example: `  architect run "User login with OAuth" "Expense reports per month"
  architect run -r "User login" -r "Audit log"
  architect run --file requirements.txt`,
	RunE: runPlan,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session>",
	Short: "Run the stages a session has not finished",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	addRequirementFlags(runCmd)
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the session as JSON")
	rootCmd.AddCommand(runCmd, resumeCmd)
}

func addRequirementFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&runRequirements, "requirement", "r", nil, "a requirement (repeatable)")
	cmd.Flags().StringVarP(&runRequirementsFile, "file", "f", "", "read requirements from file (- for stdin)")
}

// gatherRequirements combines positional arguments, --requirement and --file.
func gatherRequirements(cmd *cobra.Command, args []string) ([]string, error) {
	requirements := append([]string(nil), args...)
	requirements = append(requirements, runRequirements...)
	if runRequirementsFile != "" {
		fromFile, err := readRequirements(cmd, runRequirementsFile)
		if err != nil {
			return nil, err
		}
		requirements = append(requirements, fromFile...)
	}
	if len(requirements) == 0 {
		return nil, errors.New("no requirements given: pass them as arguments, with --requirement or with --file")
	}
	return requirements, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	requirements, err := gatherRequirements(cmd, args)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	s, err := a.orchestrator.Run(ctx, requirements)
	return finish(cmd, a, s, err)
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	s, err := a.orchestrator.Load(ctx, args[0])
	if err != nil {
		return err
	}
	if s.Done() {
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s is already complete.\n", s.ID)
		return nil
	}

	return finish(cmd, a, s, a.orchestrator.Resume(ctx, s))
}

// finish reports a session and, on failure, how to pick it up again.
func finish(cmd *cobra.Command, a *app, s *core.Session, runErr error) error {
	if s == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if runJSON && runErr == nil {
		return printSessionJSON(out, s)
	}
	printSession(out, s, filepath.Join(a.store.BaseDir(), filepath.FromSlash(s.Dir)))

	if runErr != nil {
		fmt.Fprintf(out, "\nStage %s failed. Progress is saved; retry with: architect resume %s\n",
			core.StageOf(runErr), shortID(s.ID))
		return runErr
	}
	return nil
}

func printSession(w io.Writer, s *core.Session, dir string) {
	fmt.Fprintf(w, "Session:  %s\n", s.ID)
	fmt.Fprintf(w, "Output:   %s\n", dir)
	fmt.Fprintf(w, "Stages:   %s\n", strings.Join(s.Completed(), ", "))

	if s.Vision != nil {
		fmt.Fprintf(w, "\nVision:\n  %s\n", firstLine(s.Vision.VisionText))
	}
	if s.Structure != nil && s.Structure.RootFolder != nil {
		fmt.Fprintf(w, "\nStructure: %s (%d files)\n", s.Structure.RootFolder.Name, s.Structure.RootFolder.CountFiles())
	}
	if s.Contexts != nil {
		fmt.Fprintln(w, "\nImplementation order:")
		for i, fc := range s.Contexts.ImplementationOrder {
			fmt.Fprintf(w, "  %2d. %s\n", i+1, blueprint.FileDescriptor{Name: fc.Name, Path: fc.Path}.FullPath())
		}
	}
}

func printSessionJSON(w io.Writer, s *core.Session) error {
	view := struct {
		*core.Session
		Vision    *blueprint.VisionResult    `json:"vision,omitempty"`
		Structure *blueprint.StructureResult `json:"structure,omitempty"`
		Contexts  *blueprint.ContextResult   `json:"contexts,omitempty"`
	}{s, s.Vision, s.Structure, s.Contexts}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func readRequirements(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening requirements file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return parseRequirements(r)
}

func parseRequirements(r io.Reader) ([]string, error) {
	var requirements []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		requirements = append(requirements, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading requirements: %w", err)
	}
	return requirements, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
