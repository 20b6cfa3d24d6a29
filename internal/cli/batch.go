package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/architect/internal/core"
)

// batchManifest lists independent requirement sets to plan together.
//
//	sessions:
//	  - name: billing
//	    requirements:
//	      - Monthly invoices
//	      - Card payments
type batchManifest struct {
	Sessions []batchEntry `yaml:"sessions"`
}

type batchEntry struct {
	Name         string   `yaml:"name"`
	Requirements []string `yaml:"requirements"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "Plan several requirement sets concurrently",
	Long: `Reads a YAML manifest of requirement sets and runs a session for each.
Sessions run concurrently up to limits.max_concurrent_sessions. A failing
session does not stop the others.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

func loadManifest(path string) (*batchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m batchManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Sessions) == 0 {
		return nil, fmt.Errorf("manifest %s lists no sessions", path)
	}
	for i := range m.Sessions {
		if m.Sessions[i].Name == "" {
			m.Sessions[i].Name = fmt.Sprintf("#%d", i+1)
		}
	}
	return &m, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifest, err := loadManifest(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	batches := make([][]string, len(manifest.Sessions))
	for i, e := range manifest.Sessions {
		batches[i] = e.Requirements
	}

	results := a.orchestrator.RunBatch(ctx, batches)

	out := cmd.OutOrStdout()
	for i, r := range results {
		name := manifest.Sessions[i].Name
		switch {
		case r.Err == nil:
			fmt.Fprintf(out, "ok      %-20s %s  %s\n", name, shortID(r.Session.ID), r.Session.Dir)
		case r.Session != nil:
			fmt.Fprintf(out, "FAILED  %-20s %s  %s: %v\n", name, shortID(r.Session.ID), strings.Join(r.Session.Completed(), ","), r.Err)
		default:
			fmt.Fprintf(out, "FAILED  %-20s %v\n", name, r.Err)
		}
	}

	if _, failed := batchSummary(results); failed > 0 {
		return fmt.Errorf("%d of %d sessions failed", failed, len(results))
	}
	return nil
}

// batchSummary counts results by outcome.
func batchSummary(results []core.BatchResult) (ok, failed int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		ok++
	}
	return ok, failed
}
