// Package config loads logcheck settings from defaults, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Engines understood by the browser package.
const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"
)

// EnvPrefix is prepended to every environment variable, e.g. LOGCHECK_TARGET_URL.
const EnvPrefix = "LOGCHECK"

// Config is the full set of knobs for a verification run. Environment names are the
// prefixed, underscored field names, e.g. LOGCHECK_PROBE_TIMEOUT.
type Config struct {
	TargetURL       string        `yaml:"target_url" split_words:"true"`
	Label           string        `yaml:"label" split_words:"true"`
	OutputDir       string        `yaml:"output_dir" split_words:"true"`
	Engine          string        `yaml:"engine" split_words:"true"`
	Headless        bool          `yaml:"headless" split_words:"true"`
	Timeout         time.Duration `yaml:"timeout" split_words:"true"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout" split_words:"true"`
	Viewport        string        `yaml:"viewport" split_words:"true"`
	FullPage        bool          `yaml:"full_page" split_words:"true"`
	InstallBrowsers bool          `yaml:"install_browsers" split_words:"true"`
	RecordVideo     bool          `yaml:"record_video" split_words:"true"`
	Workspace       string        `yaml:"workspace" split_words:"true"`
	ScenarioPath    string        `yaml:"scenario" split_words:"true"`
	LogLevel        string        `yaml:"log_level" split_words:"true"`
}

// Default returns the settings the log viewer check has always used.
func Default() Config {
	return Config{
		TargetURL:    "http://localhost:5006",
		Label:        "Logs",
		OutputDir:    "jules-scratch/verification",
		Engine:       EnginePlaywright,
		Headless:     true,
		Timeout:      30 * time.Second,
		ProbeTimeout: 10 * time.Second,
		Viewport:     "1280x720",
		Workspace:    ".",
		LogLevel:     "info",
	}
}

// Load builds a Config from defaults, the optional YAML file at path, a .env file in the
// working directory and finally LOGCHECK_* environment variables. An empty path skips
// the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used for a run.
func (c Config) Validate() error {
	u, err := url.Parse(c.TargetURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, c.TargetURL)
	}
	switch c.Engine {
	case EnginePlaywright, EngineChromedp:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Engine)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Timeout)
	}
	if c.ProbeTimeout < 0 {
		return fmt.Errorf("%w: probe %s", ErrInvalidTimeout, c.ProbeTimeout)
	}
	if _, _, err := ParseViewport(c.Viewport); err != nil {
		return err
	}
	return nil
}

// ParseViewport splits "WxH" into its two positive sides.
func ParseViewport(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidViewport, s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidViewport, s)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidViewport, s)
	}
	return w, h, nil
}
