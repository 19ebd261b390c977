package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/phuslu/log"

	"logcheck/internal/artifact"
	"logcheck/internal/browser"
	"logcheck/internal/config"
	"logcheck/internal/scenario"
)

// ErrStepFailed wraps the error of the step that stopped a run.
var ErrStepFailed = errors.New("step failed")

// Run statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Options configure a run.
type Options struct {
	Config config.Config
	// Scenario overrides Config.ScenarioPath and the built-in log viewer check.
	Scenario *scenario.Scenario
	// NewDriver opens the browser; nil means browser.New.
	NewDriver browser.Factory
	// Console receives the same events as the run log; optional.
	Console log.Writer
	// Discard keeps the run directory in a temporary location removed when Run returns,
	// so the screenshots under Config.OutputDir are the only files left behind.
	Discard bool
}

// Result contains artifact paths and manifest. RunDir and LogPath are empty for
// discarded runs.
type Result struct {
	RunID       string
	RunDir      string
	Manifest    Manifest
	LogPath     string
	Screenshots []string // copies under Config.OutputDir, in step order
}

// StepResult records one executed step.
type StepResult struct {
	Index      int    `json:"index"`
	Step       string `json:"step"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Screenshot is a verified PNG produced by a screenshot step.
type Screenshot struct {
	Name   string `json:"name"`
	Output string `json:"output"`
	Size   int64  `json:"size"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Manifest is persisted to run.json.
type Manifest struct {
	RunID         string       `json:"run_id"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	TargetURL     string       `json:"target_url"`
	Engine        string       `json:"engine"`
	Scenario      string       `json:"scenario"`
	Status        string       `json:"status"`
	Error         string       `json:"error,omitempty"`
	FailedStep    int          `json:"failed_step,omitempty"`
	Steps         []StepResult `json:"steps"`
	Screenshots   []Screenshot `json:"screenshots"`
	ConsoleErrors []string     `json:"console_errors,omitempty"`
	VideoWebM     string       `json:"video_webm,omitempty"`
	LogPath       string       `json:"log_path"`
}

// Run executes the scenario against the target and produces artifacts. The browser is
// released whether or not a step fails. A failed run still writes run.json and returns
// an error wrapping ErrStepFailed.
func Run(ctx context.Context, opts Options) (Result, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	sc, err := resolveScenario(opts.Scenario, cfg)
	if err != nil {
		return Result{}, err
	}
	if cfg.Workspace == "" {
		cwd, _ := os.Getwd()
		cfg.Workspace = cwd
	}
	newDriver := opts.NewDriver
	if newDriver == nil {
		newDriver = browser.New
	}

	workspace := cfg.Workspace
	if opts.Discard {
		tmp, err := os.MkdirTemp("", "logcheck-")
		if err != nil {
			return Result{}, err
		}
		defer os.RemoveAll(tmp)
		workspace = tmp
	}

	runID := uuid.Must(uuid.NewV7()).String()
	runDir := filepath.Join(workspace, "runs", runID)
	artifactsDir := filepath.Join(runDir, "artifacts")
	logsDir := filepath.Join(runDir, "logs")
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return Result{}, err
	}

	logPath := filepath.Join(logsDir, "runner.ndjson")
	logFile, err := os.Create(logPath)
	if err != nil {
		return Result{}, err
	}
	defer logFile.Close()

	var writer log.Writer = &log.IOWriter{Writer: logFile}
	if opts.Console != nil {
		writer = &log.MultiEntryWriter{writer, opts.Console}
	}
	logger := &log.Logger{
		Level:      log.ParseLevel(cfg.LogLevel),
		TimeFormat: time.RFC3339Nano,
		Context:    log.NewContext(nil).Str("run_id", runID).Value(),
		Writer:     writer,
	}

	manifest := Manifest{
		RunID:     runID,
		StartedAt: time.Now(),
		TargetURL: cfg.TargetURL,
		Engine:    cfg.Engine,
		Scenario:  sc.Name,
		Status:    StatusPassed,
		LogPath:   logPath,
	}
	res := Result{RunID: runID, RunDir: runDir, LogPath: logPath}

	runErr := execute(ctx, cfg, sc, newDriver, logger, artifactsDir, &manifest, &res)
	if runErr != nil {
		manifest.Status = StatusFailed
		manifest.Error = runErr.Error()
		logger.Error().Err(runErr).Msg("run failed")
	}
	manifest.FinishedAt = time.Now()

	if err := writeManifest(filepath.Join(runDir, "run.json"), manifest); err != nil {
		logger.Warn().Err(err).Msg("write manifest failed")
		if runErr == nil {
			runErr = fmt.Errorf("write manifest: %w", err)
		}
	}
	logger.Info().Str("status", manifest.Status).Msg("run finished")

	res.Manifest = manifest
	if opts.Discard {
		res.RunDir, res.LogPath = "", ""
		res.Manifest.LogPath = ""
	}
	return res, runErr
}

func resolveScenario(override *scenario.Scenario, cfg config.Config) (scenario.Scenario, error) {
	switch {
	case override != nil:
		if err := override.Validate(); err != nil {
			return scenario.Scenario{}, err
		}
		return *override, nil
	case cfg.ScenarioPath != "":
		return scenario.Parse(cfg.ScenarioPath)
	default:
		return scenario.LogViewer(cfg.Label), nil
	}
}

// execute runs probe, browser and steps, filling manifest as it goes.
func execute(ctx context.Context, cfg config.Config, sc scenario.Scenario, newDriver browser.Factory,
	logger *log.Logger, artifactsDir string, manifest *Manifest, res *Result) error {

	if cfg.ProbeTimeout > 0 {
		logger.Info().Str("url", cfg.TargetURL).Dur("timeout", cfg.ProbeTimeout).Msg("probing target")
		if err := Probe(ctx, cfg.TargetURL, cfg.ProbeTimeout); err != nil {
			return err
		}
	}

	dopts, err := browser.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if cfg.RecordVideo && cfg.Engine == config.EnginePlaywright {
		dopts.VideoDir = filepath.Join(artifactsDir, "video")
	}

	logger.Info().Str("engine", cfg.Engine).Bool("headless", cfg.Headless).Msg("launching browser")
	driver, err := newDriver(ctx, dopts)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	closed := false
	closeDriver := func() {
		if closed {
			return
		}
		closed = true
		manifest.ConsoleErrors = driver.ConsoleErrors()
		if err := driver.Close(); err != nil {
			logger.Warn().Err(err).Msg("close browser")
		}
		for _, msg := range manifest.ConsoleErrors {
			logger.Warn().Str("source", "page").Msg(msg)
		}
		if v, ok := driver.(browser.Video); ok && v.VideoPath() != "" {
			manifest.VideoWebM = v.VideoPath()
		}
	}
	defer closeDriver()

	for i, st := range sc.Steps {
		start := time.Now()
		shot, err := runStep(ctx, cfg, driver, st, artifactsDir)
		sr := StepResult{
			Index:      i + 1,
			Step:       st.String(),
			Status:     StatusPassed,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			sr.Status = StatusFailed
			sr.Error = err.Error()
			manifest.Steps = append(manifest.Steps, sr)
			manifest.FailedStep = sr.Index
			logger.Error().Int("step", sr.Index).Str("action", string(st.Action)).Err(err).Msg("step failed")
			return fmt.Errorf("%w: %d (%s): %w", ErrStepFailed, sr.Index, sr.Step, err)
		}
		manifest.Steps = append(manifest.Steps, sr)
		logger.Info().Int("step", sr.Index).Str("action", string(st.Action)).Int64("duration_ms", sr.DurationMS).Msg(sr.Step)

		if shot != nil {
			manifest.Screenshots = append(manifest.Screenshots, *shot)
			res.Screenshots = append(res.Screenshots, shot.Output)
			logger.Info().Str("path", shot.Output).Int64("size", shot.Size).Msg("screenshot written")
		}
	}

	closeDriver()
	return nil
}

func runStep(ctx context.Context, cfg config.Config, d browser.Driver, st scenario.Step, artifactsDir string) (*Screenshot, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	switch st.Action {
	case scenario.ActionGoto:
		target, err := resolveURL(cfg.TargetURL, st.URL)
		if err != nil {
			return nil, err
		}
		return nil, d.Goto(ctx, target)
	case scenario.ActionExpectText:
		return nil, d.ExpectVisibleText(ctx, st.Text)
	case scenario.ActionClickFirst:
		role := st.Role
		if role == "" {
			role = scenario.DefaultRole
		}
		return nil, d.ClickFirst(ctx, role)
	case scenario.ActionWait:
		return nil, d.Wait(ctx, st.Duration)
	case scenario.ActionScreenshot:
		path := filepath.Join(artifactsDir, st.File)
		if err := d.Screenshot(ctx, path); err != nil {
			return nil, err
		}
		info, err := artifact.Verify(path)
		if err != nil {
			return nil, err
		}
		out := filepath.Join(cfg.OutputDir, st.File)
		if err := artifact.Copy(path, out); err != nil {
			return nil, fmt.Errorf("copy screenshot: %w", err)
		}
		return &Screenshot{Name: st.File, Output: out, Size: info.Size, Width: info.Width, Height: info.Height}, nil
	}
	return nil, fmt.Errorf("unknown action %q", st.Action)
}

// resolveURL returns ref resolved against base; an empty ref means base itself.
func resolveURL(base, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return base, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("step url %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// --- helpers ---

func writeManifest(path string, manifest Manifest) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}

// LoadManifest reads a manifest from disk.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// ManifestPath is where Run stores the manifest of runID.
func ManifestPath(workspace, runID string) string {
	return filepath.Join(workspace, "runs", runID, "run.json")
}

// FindRuns returns run ids under workspace/runs, newest first. A missing runs
// directory means no runs yet.
func FindRuns(workspace string) ([]string, error) {
	runsDir := filepath.Join(workspace, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	// v7 ids sort by creation time
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
