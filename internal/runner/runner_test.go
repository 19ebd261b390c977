package runner

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logcheck/internal/browser"
	"logcheck/internal/config"
	"logcheck/internal/scenario"
)

// fakeDriver records calls and writes a small PNG for each screenshot.
type fakeDriver struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	closed  int
	console []string
}

func (f *fakeDriver) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.failOn != "" && strings.HasPrefix(call, f.failOn) {
		return errors.New("element not found")
	}
	return nil
}

func (f *fakeDriver) Goto(_ context.Context, url string) error { return f.record("goto " + url) }
func (f *fakeDriver) ExpectVisibleText(_ context.Context, text string) error {
	return f.record("expect " + text)
}
func (f *fakeDriver) ClickFirst(_ context.Context, role string) error { return f.record("click " + role) }
func (f *fakeDriver) Wait(ctx context.Context, d time.Duration) error {
	return f.record("wait " + d.String())
}

func (f *fakeDriver) Screenshot(_ context.Context, path string) error {
	if err := f.record("screenshot " + filepath.Base(path)); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, image.NewRGBA(image.Rect(0, 0, 40, 30)))
}

func (f *fakeDriver) ConsoleErrors() []string { return f.console }

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeDriver) factory() browser.Factory {
	return func(context.Context, browser.Options) (browser.Driver, error) { return f, nil }
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workspace = t.TempDir()
	cfg.OutputDir = filepath.Join(t.TempDir(), "jules-scratch", "verification")
	cfg.ProbeTimeout = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestRunLogViewerScenario(t *testing.T) {
	cfg := testConfig(t)
	drv := &fakeDriver{console: []string{"console.error: boom"}}

	res, err := Run(context.Background(), Options{Config: cfg, NewDriver: drv.factory()})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"goto http://localhost:5006",
		"expect Logs",
		"screenshot log-viewer-initial.png",
		"click button",
		"screenshot log-viewer-with-content.png",
	}, drv.calls)
	assert.Equal(t, 1, drv.closed, "browser released exactly once")

	m := res.Manifest
	assert.Equal(t, StatusPassed, m.Status)
	assert.Equal(t, "log-viewer", m.Scenario)
	assert.Len(t, m.Steps, 5)
	assert.Equal(t, []string{"console.error: boom"}, m.ConsoleErrors)
	require.Len(t, m.Screenshots, 2)
	assert.Equal(t, 40, m.Screenshots[0].Width)

	for _, name := range []string{scenario.InitialShot, scenario.ContentShot} {
		out := filepath.Join(cfg.OutputDir, name)
		info, err := os.Stat(out)
		require.NoError(t, err, name)
		assert.Positive(t, info.Size())
		assert.Contains(t, res.Screenshots, out)
	}

	loaded, err := LoadManifest(ManifestPath(cfg.Workspace, res.RunID))
	require.NoError(t, err)
	assert.Equal(t, res.RunID, loaded.RunID)
	assert.Equal(t, StatusPassed, loaded.Status)

	logData, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(logData), `"run_id":"`+res.RunID+`"`)
	assert.Contains(t, string(logData), "run finished")
}

func TestRunOverwritesOutputs(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o755))
	stale := filepath.Join(cfg.OutputDir, scenario.InitialShot)
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err := Run(context.Background(), Options{Config: cfg, NewDriver: (&fakeDriver{}).factory()})
	require.NoError(t, err)

	data, err := os.ReadFile(stale)
	require.NoError(t, err)
	assert.NotEqual(t, "old", string(data))
}

func TestRunStepFailureReleasesBrowser(t *testing.T) {
	cfg := testConfig(t)
	drv := &fakeDriver{failOn: "expect", console: []string{"EXCEPTION: TypeError: x is undefined"}}

	res, err := Run(context.Background(), Options{Config: cfg, NewDriver: drv.factory()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStepFailed)
	assert.Contains(t, err.Error(), "element not found")

	assert.Equal(t, 1, drv.closed)
	assert.Equal(t, StatusFailed, res.Manifest.Status)
	assert.Equal(t, 2, res.Manifest.FailedStep)
	require.Len(t, res.Manifest.Steps, 2)
	assert.Equal(t, StatusFailed, res.Manifest.Steps[1].Status)
	assert.Empty(t, res.Screenshots)

	loaded, err := LoadManifest(ManifestPath(cfg.Workspace, res.RunID))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, loaded.Status)
	assert.NotEmpty(t, loaded.Error)
	assert.Equal(t, drv.console, loaded.ConsoleErrors)

	logData, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "TypeError: x is undefined")
}

func TestRunMirrorsLogToConsole(t *testing.T) {
	cfg := testConfig(t)
	var console bytes.Buffer

	res, err := Run(context.Background(), Options{
		Config:    cfg,
		NewDriver: (&fakeDriver{}).factory(),
		Console:   &log.IOWriter{Writer: &console},
	})
	require.NoError(t, err)

	logData, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "run finished")
	assert.Contains(t, console.String(), "run finished")
	assert.Contains(t, console.String(), res.RunID)
}

func TestRunDiscardLeavesOnlyScreenshots(t *testing.T) {
	cfg := testConfig(t)

	for range 2 {
		res, err := Run(context.Background(), Options{Config: cfg, Discard: true, NewDriver: (&fakeDriver{}).factory()})
		require.NoError(t, err)
		assert.Empty(t, res.RunDir)
		assert.Empty(t, res.LogPath)
		assert.Equal(t, StatusPassed, res.Manifest.Status)
		assert.Len(t, res.Screenshots, 2)
	}

	entries, err := os.ReadDir(cfg.Workspace)
	require.NoError(t, err)
	assert.Empty(t, entries, "no runs directory in the workspace")

	ids, err := FindRuns(cfg.Workspace)
	require.NoError(t, err)
	assert.Empty(t, ids)

	outputs, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	var names []string
	for _, e := range outputs {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{scenario.InitialShot, scenario.ContentShot}, names)
}

func TestRunCustomScenario(t *testing.T) {
	cfg := testConfig(t)
	cfg.TargetURL = "http://localhost:5006/app/"
	drv := &fakeDriver{}
	sc := scenario.Scenario{Name: "tabs", Steps: []scenario.Step{
		{Action: scenario.ActionGoto, URL: "logs"},
		{Action: scenario.ActionWait, Duration: time.Millisecond},
		{Action: scenario.ActionClickFirst, Role: "tab"},
	}}

	res, err := Run(context.Background(), Options{Config: cfg, Scenario: &sc, NewDriver: drv.factory()})
	require.NoError(t, err)
	assert.Equal(t, []string{"goto http://localhost:5006/app/logs", "wait 1ms", "click tab"}, drv.calls)
	assert.Equal(t, "tabs", res.Manifest.Scenario)
}

func TestRunRejectsInvalidInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine = "lynx"
	_, err := Run(context.Background(), Options{Config: cfg})
	assert.ErrorIs(t, err, config.ErrUnknownEngine)

	cfg = testConfig(t)
	_, err = Run(context.Background(), Options{Config: cfg, Scenario: &scenario.Scenario{Name: "empty"}})
	assert.Error(t, err)
}

func TestRunOpenBrowserError(t *testing.T) {
	cfg := testConfig(t)
	failing := func(context.Context, browser.Options) (browser.Driver, error) {
		return nil, errors.New("chromium missing")
	}

	res, err := Run(context.Background(), Options{Config: cfg, NewDriver: failing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium missing")
	assert.Equal(t, StatusFailed, res.Manifest.Status)
}

func TestRunTargetUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig(t)
	cfg.TargetURL = "http://" + addr
	cfg.ProbeTimeout = 300 * time.Millisecond
	drv := &fakeDriver{}

	_, err = Run(context.Background(), Options{Config: cfg, NewDriver: drv.factory()})
	assert.ErrorIs(t, err, ErrTargetUnreachable)
	assert.Empty(t, drv.calls, "browser never opened")
	assert.Zero(t, drv.closed)
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	assert.NoError(t, Probe(context.Background(), srv.URL, time.Second), "any HTTP answer counts")
}

func TestResolveURL(t *testing.T) {
	got, err := resolveURL("http://localhost:5006", "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5006", got)

	got, err = resolveURL("http://localhost:5006", "/logs?tail=10")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5006/logs?tail=10", got)

	got, err = resolveURL("http://localhost:5006", "http://other:1/")
	require.NoError(t, err)
	assert.Equal(t, "http://other:1/", got)
}

func TestFindRuns(t *testing.T) {
	ws := t.TempDir()
	ids, err := FindRuns(ws)
	require.NoError(t, err)
	assert.Empty(t, ids)

	cfg := testConfig(t)
	cfg.Workspace = ws
	first, err := Run(context.Background(), Options{Config: cfg, NewDriver: (&fakeDriver{}).factory()})
	require.NoError(t, err)
	second, err := Run(context.Background(), Options{Config: cfg, NewDriver: (&fakeDriver{}).factory()})
	require.NoError(t, err)

	ids, err = FindRuns(ws)
	require.NoError(t, err)
	assert.Equal(t, []string{second.RunID, first.RunID}, ids)
}
