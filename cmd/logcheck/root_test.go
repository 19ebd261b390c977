package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime/debug"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logcheck/internal/config"
	"logcheck/internal/runner"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	assert.Equal(t, "logcheck", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Version)

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"run", "list", "show", "serve", "version"})
}

func TestRunFlagsDefaultToLogViewer(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()
	def := config.Default()
	assert.Equal(t, def.TargetURL, cmd.Flags().Lookup("url").DefValue)
	assert.Equal(t, def.Label, cmd.Flags().Lookup("label").DefValue)
	assert.Equal(t, def.OutputDir, cmd.Flags().Lookup("output").DefValue)
}

func TestApplyRunFlags(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--url", "http://127.0.0.1:7000",
		"--engine", "chromedp",
		"--headless=false",
		"--timeout", "3s",
		"-o", "shots",
	}))

	cfg := config.Default()
	cfg.Label = "from file"
	require.NoError(t, applyRunFlags(cmd, &cfg))

	assert.Equal(t, "http://127.0.0.1:7000", cfg.TargetURL)
	assert.Equal(t, config.EngineChromedp, cfg.Engine)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "shots", cfg.OutputDir)
	assert.Equal(t, "from file", cfg.Label, "flags not given keep the loaded value")
}

func writeManifest(t *testing.T, workspace string, m runner.Manifest) {
	t.Helper()
	path := runner.ManifestPath(workspace, m.RunID)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	b, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListAndShow(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	writeManifest(t, ws, runner.Manifest{
		RunID:     "0192f0a4-0000-7000-8000-000000000001",
		StartedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		TargetURL: "http://localhost:5006",
		Status:    runner.StatusPassed,
	})

	out, err := execute(t, "list", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "0192f0a4-0000-7000-8000-000000000001")
	assert.Contains(t, out, "passed")

	out, err = execute(t, "show", "0192f0a4-0000-7000-8000-000000000001", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, `"target_url": "http://localhost:5006"`)

	_, err = execute(t, "show", "missing", "-w", ws)
	assert.ErrorContains(t, err, "not found")
}

func TestListEmptyWorkspace(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "list", "-w", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "no runs")
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "logcheck version")
	assert.Contains(t, out, "github.com/playwright-community/playwright-go")
	assert.Contains(t, out, "github.com/chromedp/chromedp")
}

func TestEngineVersions(t *testing.T) {
	t.Parallel()

	info := &debug.BuildInfo{Deps: []*debug.Module{
		{Path: "github.com/playwright-community/playwright-go", Version: "v0.5200.1"},
		{Path: "github.com/spf13/cobra", Version: "v1.10.2"},
	}}
	got := engineVersions(info)
	assert.Equal(t, "v0.5200.1", got["github.com/playwright-community/playwright-go"])
	assert.Equal(t, "unknown", got["github.com/chromedp/chromedp"])
	assert.Len(t, got, 2)

	assert.Equal(t, "unknown", engineVersions(nil)["github.com/chromedp/chromedp"])
}
