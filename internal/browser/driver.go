// Package browser drives a headless browser through playwright-go or chromedp behind a
// single Driver interface.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"logcheck/internal/config"
)

// Driver is an open browser with exactly one page.
type Driver interface {
	// Goto navigates the page and waits for the load event.
	Goto(ctx context.Context, url string) error
	// ExpectVisibleText waits until an element containing text is visible.
	ExpectVisibleText(ctx context.Context, text string) error
	// ClickFirst clicks the first element exposing the given ARIA role.
	ClickFirst(ctx context.Context, role string) error
	// Screenshot writes a PNG of the page to path.
	Screenshot(ctx context.Context, path string) error
	// Wait pauses for d or until ctx is done.
	Wait(ctx context.Context, d time.Duration) error
	// ConsoleErrors returns page exceptions and console.error messages seen so far.
	ConsoleErrors() []string
	// Close releases the page and the browser process. It is safe to call twice.
	Close() error
}

// Options configure a new Driver.
type Options struct {
	Engine          string
	Headless        bool
	Width, Height   int
	FullPage        bool
	Timeout         time.Duration
	InstallBrowsers bool
	VideoDir        string // playwright only; empty disables recording
}

// OptionsFromConfig maps run settings onto driver options.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	w, h, err := config.ParseViewport(cfg.Viewport)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Engine:          cfg.Engine,
		Headless:        cfg.Headless,
		Width:           w,
		Height:          h,
		FullPage:        cfg.FullPage,
		Timeout:         cfg.Timeout,
		InstallBrowsers: cfg.InstallBrowsers,
	}, nil
}

// Factory opens a Driver. Runner code takes a Factory so tests can substitute a fake.
type Factory func(ctx context.Context, opts Options) (Driver, error)

// New launches the engine named in opts.
func New(ctx context.Context, opts Options) (Driver, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1280, 720
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	switch opts.Engine {
	case config.EnginePlaywright, "":
		return newPlaywright(ctx, opts)
	case config.EngineChromedp:
		return newChromedp(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownEngine, opts.Engine)
	}
}

// Video is implemented by drivers that record the session.
type Video interface {
	// VideoPath is only valid after Close.
	VideoPath() string
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// consoleLog is shared by both engines to gather page errors from event callbacks.
type consoleLog struct {
	mu     sync.Mutex
	errors []string
}

func (c *consoleLog) add(msg string) {
	if msg == "" || ignoredConsole(msg) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, msg)
}

func (c *consoleLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.errors))
	copy(out, c.errors)
	return out
}
