package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/architect/internal/config"
)

var (
	initForce    bool
	initProvider string
	initModel    string
	initOutput   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Writes a config file with the default settings. The API key is stored as
the ${ARCHITECT_API_KEY} placeholder and read from the environment at startup.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	initCmd.Flags().StringVar(&initProvider, "provider", config.ProviderAnthropic, "AI provider (anthropic, openai or gemini)")
	initCmd.Flags().StringVar(&initModel, "model", "", "model name (default depends on provider)")
	initCmd.Flags().StringVar(&initOutput, "output-dir", "", "where sessions are written")
	rootCmd.AddCommand(initCmd)
}

var defaultModels = map[string]string{
	config.ProviderAnthropic: "claude-3-5-sonnet-20241022",
	config.ProviderOpenAI:    "gpt-4o",
	config.ProviderGemini:    "gemini-2.0-flash",
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}

	model, ok := defaultModels[initProvider]
	if !ok {
		return fmt.Errorf("unknown provider %q", initProvider)
	}
	if initModel != "" {
		model = initModel
	}

	cfg := config.Default()
	cfg.AI.Provider = initProvider
	cfg.AI.Model = model
	if initOutput != "" {
		cfg.Paths.OutputDir = initOutput
	}

	if err := config.Save(&cfg, path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	logger.Debug("Config written", "path", path, "provider", cfg.AI.Provider)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nSet %s before running architect.\n", path, config.EnvAPIKey)
	return nil
}
