package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotcommander/architect/internal/core"
)

var stageSession string

var visionCmd = &cobra.Command{
	Use:   "vision [requirement...]",
	Short: "Generate the technical vision",
	Long: `Starts a session and runs only the vision stage. With --session, the vision
of an existing session is generated again and its structure and contexts are
dropped.`,
	RunE: runVisionStage,
}

var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Generate the folder and file structure of a session",
	Long:  "Runs the structure stage from the session's vision. Existing contexts are dropped.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleStage(cmd, core.StageStructure)
	},
}

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "Generate implementation contexts for a session",
	Long: `Runs the contexts stage from the session's vision and structure. Only the
highest priority files (limits.context_batch_size) are described.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleStage(cmd, core.StageContexts)
	},
}

func init() {
	addRequirementFlags(visionCmd)
	visionCmd.Flags().StringVarP(&stageSession, "session", "s", "", "regenerate the vision of this session")

	for _, c := range []*cobra.Command{structureCmd, contextsCmd} {
		c.Flags().StringVarP(&stageSession, "session", "s", "", "session ID, ID prefix or directory name")
		_ = c.MarkFlagRequired("session")
	}

	rootCmd.AddCommand(visionCmd, structureCmd, contextsCmd)
}

func runVisionStage(cmd *cobra.Command, args []string) error {
	if stageSession != "" {
		return runSingleStage(cmd, core.StageVision)
	}

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

	s, err := a.orchestrator.NewSession(ctx, requirements)
	if err != nil {
		return err
	}
	return reportStage(cmd, a, s, a.orchestrator.RunStage(ctx, s, core.StageVision))
}

func runSingleStage(cmd *cobra.Command, stage string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	s, err := a.orchestrator.Load(ctx, stageSession)
	if err != nil {
		return err
	}
	return reportStage(cmd, a, s, a.orchestrator.RunStage(ctx, s, stage))
}

// reportStage prints the session and names the command for the next stage.
func reportStage(cmd *cobra.Command, a *app, s *core.Session, runErr error) error {
	if err := finish(cmd, a, s, runErr); err != nil {
		return err
	}
	if next := s.NextStage(); next != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nNext: architect %s --session %s\n", next, shortID(s.ID))
	}
	return nil
}
