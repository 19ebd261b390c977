package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

type chromedpDriver struct {
	opts    Options
	ctx     context.Context
	cancel  context.CancelFunc
	console consoleLog

	closeOnce sync.Once
}

func newChromedp(ctx context.Context, opts Options) (Driver, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)

	// The browser outlives any single step deadline, so it hangs off a context that
	// only carries ctx's values and is cancelled by Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	d := &chromedpDriver{
		opts: opts,
		ctx:  tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}
	chromedp.ListenTarget(tabCtx, d.listen)

	// The first Run starts the browser process.
	if err := d.run(ctx, chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height))); err != nil {
		d.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return d, nil
}

func (d *chromedpDriver) listen(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventExceptionThrown:
		desc := e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
			desc = e.ExceptionDetails.Exception.Description
		}
		d.console.add("EXCEPTION: " + desc)
	case *runtime.EventConsoleAPICalled:
		if e.Type != runtime.APITypeError {
			return
		}
		var parts []string
		for _, arg := range e.Args {
			if arg.Value != nil {
				parts = append(parts, string(arg.Value))
			} else if arg.Description != "" {
				parts = append(parts, arg.Description)
			}
		}
		if len(parts) > 0 {
			d.console.add("console.error: " + strings.Join(parts, " "))
		}
	}
}

// run executes actions on the tab, bounded by the step timeout and by ctx.
func (d *chromedpDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.ctx, d.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (d *chromedpDriver) Goto(ctx context.Context, url string) error {
	if err := d.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

func (d *chromedpDriver) ExpectVisibleText(ctx context.Context, text string) error {
	if err := d.run(ctx, d.poll(findTextJS, strings.TrimSpace(text))); err != nil {
		return fmt.Errorf("text %q not visible: %w", text, err)
	}
	return nil
}

// ClickFirst clicks the first visible element with role. Hidden matches earlier in the
// document are skipped.
func (d *chromedpDriver) ClickFirst(ctx context.Context, role string) error {
	if err := d.run(ctx,
		d.poll(findRoleJS, roleSelector(role), markAttr),
		chromedp.Click("["+markAttr+"]", chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return fmt.Errorf("click first %s: %w", role, err)
	}
	return nil
}

// poll waits until fn returns true for args, checking every 100ms.
func (d *chromedpDriver) poll(fn string, args ...any) chromedp.Action {
	return chromedp.PollFunction(fn, nil,
		chromedp.WithPollingArgs(args...),
		chromedp.WithPollingInterval(100*time.Millisecond),
		chromedp.WithPollingTimeout(d.opts.Timeout),
	)
}

func (d *chromedpDriver) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if d.opts.FullPage {
		// quality 100 keeps the capture in PNG
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := d.run(ctx, action); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

func (d *chromedpDriver) Wait(ctx context.Context, dur time.Duration) error {
	return sleep(ctx, dur)
}

func (d *chromedpDriver) ConsoleErrors() []string {
	return d.console.list()
}

func (d *chromedpDriver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = chromedp.Cancel(d.ctx)
		d.cancel()
	})
	return err
}
