package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dotcommander/architect/internal/core"
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "List saved sessions",
	Args:    cobra.NoArgs,
	RunE:    runSessions,
}

var showCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show a saved session",
	Long:  "Shows a session by full ID, ID prefix (at least 8 characters) or directory name.",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "output sessions as JSON")
	showCmd.Flags().BoolVar(&sessionsJSON, "json", false, "output the session as JSON")
	rootCmd.AddCommand(sessionsCmd, showCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := newLocalApp()
	if err != nil {
		return err
	}

	sessions, err := a.orchestrator.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if sessionsJSON {
		data, err := json.MarshalIndent(sessions, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sessions: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tREQUIREMENT")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			shortID(s.ID),
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			sessionStatus(s),
			summarize(s.Requirements))
	}
	return tw.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := newLocalApp()
	if err != nil {
		return err
	}

	s, err := a.orchestrator.Load(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sessionsJSON {
		return printSessionJSON(out, s)
	}
	printSession(out, s, filepath.Join(a.store.BaseDir(), filepath.FromSlash(s.Dir)))
	if s.LastError != "" {
		fmt.Fprintf(out, "\nLast error (%s): %s\n", s.FailedStage, s.LastError)
	}
	return nil
}

func sessionStatus(s *core.Session) string {
	switch {
	case s.Done():
		return "complete"
	case s.FailedStage != "":
		return "failed at " + s.FailedStage
	default:
		return "pending " + s.NextStage()
	}
}

func summarize(requirements []string) string {
	if len(requirements) == 0 {
		return ""
	}
	first := requirements[0]
	if len(first) > 50 {
		first = strings.TrimSpace(first[:47]) + "..."
	}
	if n := len(requirements) - 1; n > 0 {
		first = fmt.Sprintf("%s (+%d)", first, n)
	}
	return first
}
