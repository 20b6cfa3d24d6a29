package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/architect/internal/agent"
	"github.com/dotcommander/architect/internal/config"
	"github.com/dotcommander/architect/internal/core"
)

func fenced(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return "```json\n" + string(data) + "\n```"
}

// plannerReply answers each request by recognising which prompt it was sent.
func plannerReply(system, user string) (string, error) {
	switch {
	case strings.Contains(system, "implementation briefs"):
		return fenced(map[string]any{"implementationOrder": []map[string]any{
			{"name": "go.mod", "path": "", "description": "module"},
			{"name": "main.go", "path": "cmd/app", "description": "entry point"},
		}}), nil
	case strings.Contains(system, "folder and file layout"):
		return fenced(map[string]any{"rootFolder": map[string]any{
			"name":  "app",
			"files": []map[string]any{{"name": "go.mod", "description": "module"}},
			"subfolders": []map[string]any{{
				"name":  "cmd",
				"files": []map[string]any{{"name": "main.go", "description": "entry point"}},
			}},
		}}), nil
	case strings.Contains(system, "interviewing a client"):
		return fenced(map[string]any{
			"response": "Which currencies do you need?",
			"metrics": map[string]any{
				"coreConcept": 90, "requirements": 90, "technical": 90, "constraints": 90, "userContext": 90,
			},
			"extractedInfo": map[string]any{
				"requirements":     []string{"Track monthly expenses"},
				"technicalDetails": []string{"postgres"},
			},
			"nextPhase": "clarification",
		}), nil
	default:
		return fenced(map[string]any{"visionText": "A small expense tracker.\nWith reports."}), nil
	}
}

func resetFlags() {
	runRequirements, runRequirementsFile, runJSON = nil, "", false
	stageSession = ""
	sessionsJSON, chatAutoPlan = false, false
	initForce, initProvider, initModel, initOutput = false, config.ProviderAnthropic, "", ""
	configPath, verbose, logFormat = "", false, "text"
}

// setupTestApp points the CLI at a temporary output directory and a mock
// client answering with responder.
func setupTestApp(t *testing.T, responder func(system, user string) (string, error)) (string, *agent.MockClient) {
	t.Helper()

	dir := t.TempDir()
	mock := agent.NewMockClient()
	mock.Responder = responder

	origLoad, origCompleter := loadConfig, newCompleter
	loadConfig = func(string, bool) (*config.Config, error) {
		cfg := config.Default()
		cfg.AI.APIKey = "sk-test-key-123456"
		cfg.Paths.OutputDir = dir
		return &cfg, nil
	}
	newCompleter = func(context.Context, *config.Config, *slog.Logger) (agent.Completer, error) {
		return mock, nil
	}
	resetFlags()

	t.Cleanup(func() {
		loadConfig, newCompleter = origLoad, origCompleter
		resetFlags()
	})
	return dir, mock
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// sessionIDs returns the session directories under dir.
func sessionIDs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir, core.SessionsDir))
	require.NoError(t, err)

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.Name())
	}
	return ids
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "architect", rootCmd.Use)
}

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag, "verbose flag should exist")
	assert.Equal(t, "v", flag.Shorthand)

	flag = rootCmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, flag)
	assert.Equal(t, "text", flag.DefValue)

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("timeout"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	l, err := newLogger(&buf, "json", true)
	require.NoError(t, err)
	l.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	l, err = newLogger(&buf, "text", false)
	require.NoError(t, err)
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	_, err = newLogger(&buf, "xml", false)
	assert.Error(t, err)
}

func TestUnknownLogFormatFails(t *testing.T) {
	setupTestApp(t, plannerReply)

	_, err := execute(t, "", "--log-format", "xml", "version")
	assert.Error(t, err)
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute(t, "", "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "architect version test-version-1.0.0")
}

func TestConfigErrorsSurface(t *testing.T) {
	setupTestApp(t, plannerReply)
	loadConfig = func(string, bool) (*config.Config, error) {
		return nil, core.ErrNoAPIKey
	}

	_, err := execute(t, "", "run", "something")
	assert.ErrorIs(t, err, core.ErrNoAPIKey)
}

func TestSessionsCmd_NeedsNoCredential(t *testing.T) {
	resetFlags()
	defer resetFlags()
	for _, env := range []string{config.EnvAPIKey, "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(env, "")
	}

	out := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  output_dir: "+out+"\n"), 0644))

	got, err := execute(t, "", "--config", path, "sessions")
	require.NoError(t, err)
	assert.Contains(t, got, "No sessions found.")

	_, err = execute(t, "", "--config", path, "show", "missing-session")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	_, err = execute(t, "", "--config", path, "run", "Track expenses")
	assert.ErrorIs(t, err, core.ErrNoAPIKey)
}

func TestInitCmd_WritesConfig(t *testing.T) {
	resetFlags()
	defer resetFlags()
	path := filepath.Join(t.TempDir(), "architect", "config.yaml")

	out, err := execute(t, "", "--config", path, "init", "--provider", "openai")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "provider: openai")
	assert.Contains(t, string(data), "gpt-4o")
	assert.Contains(t, string(data), "${ARCHITECT_API_KEY}")

	_, err = execute(t, "", "--config", path, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "", "--config", path, "init", "--force", "--provider", "gemini")
	require.NoError(t, err)

	t.Setenv(config.EnvAPIKey, "sk-roundtrip-123456")
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGemini, cfg.AI.Provider)
}

func TestInitCmd_RejectsUnknownProvider(t *testing.T) {
	resetFlags()
	defer resetFlags()
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "", "--config", path, "init", "--provider", "cohere")
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}
