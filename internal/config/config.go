package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/architect/internal/core"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"

	// EnvAPIKey is checked before the provider specific variable.
	EnvAPIKey = "ARCHITECT_API_KEY"
	EnvConfig = "ARCHITECT_CONFIG"

	apiKeyPlaceholder = "${ARCHITECT_API_KEY}"
)

var providerKeyEnv = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

type Config struct {
	AI            AIConfig            `yaml:"ai" validate:"required"`
	Paths         PathsConfig         `yaml:"paths"`
	Limits        Limits              `yaml:"limits" validate:"required"`
	Understanding UnderstandingConfig `yaml:"understanding"`
}

type AIConfig struct {
	Provider        string  `yaml:"provider" validate:"required,oneof=anthropic openai gemini"`
	APIKey          string  `yaml:"api_key" validate:"required,min=8"`
	Model           string  `yaml:"model" validate:"required"`
	BaseURL         string  `yaml:"base_url" validate:"omitempty,url"`
	MaxOutputTokens int     `yaml:"max_output_tokens" validate:"required,min=256,max=200000"`
	Temperature     float64 `yaml:"temperature" validate:"min=0,max=2"`
	Timeout         int     `yaml:"timeout" validate:"required,min=10,max=3600"`
}

type PathsConfig struct {
	OutputDir     string `yaml:"output_dir" validate:"required"`
	PromptsDir    string `yaml:"prompts_dir"`
	SessionNaming string `yaml:"session_naming" validate:"omitempty,oneof=uuid timestamp descriptive"`
}

type UnderstandingConfig struct {
	ReadyThreshold int `yaml:"ready_threshold" validate:"min=1,max=100"`
}

// Default returns a configuration with every optional field filled in. The
// API key is left empty.
func Default() Config {
	return Config{
		AI: AIConfig{
			Provider:        ProviderAnthropic,
			Model:           "claude-3-5-sonnet-20241022",
			MaxOutputTokens: 8192,
			Temperature:     0.7,
			Timeout:         300,
		},
		Paths: PathsConfig{
			OutputDir:     defaultOutputDir(),
			SessionNaming: "uuid",
		},
		Limits: DefaultLimits(),
		Understanding: UnderstandingConfig{
			ReadyThreshold: 80,
		},
	}
}

// Load reads .env, the YAML config file (if any) and the environment. The
// credential is required: Load fails when none can be found.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(getConfigPath())
}

// LoadFile loads configuration from path. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	return loadFile(path, true)
}

// LoadLocal is Load for commands that never call the generative service:
// the credential may be absent and is not validated.
func LoadLocal() (*Config, error) {
	_ = godotenv.Load()
	return LoadLocalFile(getConfigPath())
}

// LoadLocalFile is LoadFile without the credential requirement.
func LoadLocalFile(path string) (*Config, error) {
	return loadFile(path, false)
}

func loadFile(path string, requireKey bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.resolveAPIKey()
	if requireKey && cfg.AI.APIKey == "" {
		return nil, fmt.Errorf("%w: set %s or %s", core.ErrNoAPIKey, EnvAPIKey, providerKeyEnv[cfg.AI.Provider])
	}

	if err := cfg.validate(requireKey); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func getConfigPath() string {
	// 1. Explicit config path via environment variable
	if path := os.Getenv(EnvConfig); path != "" {
		return path
	}

	// 2. XDG_CONFIG_HOME (XDG Base Directory Specification)
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "architect", "config.yaml")
	}

	// 3. Default to ~/.config/architect/config.yaml
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "architect", "config.yaml")
}

// DefaultPath is where Load looks for the config file.
func DefaultPath() string {
	return getConfigPath()
}

func defaultOutputDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "architect", "output")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "architect", "output")
}

func (c *Config) resolveAPIKey() {
	if c.AI.APIKey != "" && c.AI.APIKey != apiKeyPlaceholder {
		return
	}
	c.AI.APIKey = ""
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.AI.APIKey = key
		return
	}
	if env, ok := providerKeyEnv[c.AI.Provider]; ok {
		c.AI.APIKey = os.Getenv(env)
	}
}

// expandTilde expands a tilde (~) at the beginning of a path to the user's home directory
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return original path if we can't get home dir
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (c *Config) validate(requireKey bool) error {
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = defaultOutputDir()
	}
	c.Paths.OutputDir = expandTilde(c.Paths.OutputDir)
	c.Paths.PromptsDir = expandTilde(c.Paths.PromptsDir)

	if c.Limits.RateLimit.RequestsPerMinute == 0 {
		c.Limits.RateLimit = DefaultLimits().RateLimit
	}
	if c.Limits.MaxConcurrentSessions == 0 {
		c.Limits.MaxConcurrentSessions = DefaultLimits().MaxConcurrentSessions
	}
	if c.Limits.ContextBatchSize == 0 {
		c.Limits.ContextBatchSize = DefaultLimits().ContextBatchSize
	}
	if c.Understanding.ReadyThreshold == 0 {
		c.Understanding.ReadyThreshold = Default().Understanding.ReadyThreshold
	}

	validate := validator.New()
	var err error
	if requireKey {
		err = validate.Struct(c)
	} else {
		err = validate.StructExcept(c, "AI.APIKey")
	}
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// Save writes cfg to path as YAML. The API key is replaced by an environment
// placeholder.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	cfgToSave := *cfg
	cfgToSave.AI.APIKey = apiKeyPlaceholder

	data, err := yaml.Marshal(&cfgToSave)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}
