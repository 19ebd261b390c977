package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

type playwrightDriver struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	console consoleLog

	closeOnce sync.Once
	closeErr  error
	videoPath string
}

func newPlaywright(ctx context.Context, opts Options) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.InstallBrowsers {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	d := &playwrightDriver{opts: opts, pw: pw}

	d.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--disable-dev-shm-usage"},
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	pageOpts := playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: opts.Width, Height: opts.Height},
	}
	if opts.VideoDir != "" {
		pageOpts.RecordVideo = &playwright.RecordVideo{
			Dir:  opts.VideoDir,
			Size: &playwright.Size{Width: opts.Width, Height: opts.Height},
		}
	}
	d.page, err = d.browser.NewPage(pageOpts)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	d.page.SetDefaultTimeout(ms(opts.Timeout))

	d.page.OnConsole(func(msg playwright.ConsoleMessage) {
		if msg.Type() == "error" {
			d.console.add("console.error: " + msg.Text())
		}
	})
	d.page.OnPageError(func(err error) {
		d.console.add("EXCEPTION: " + err.Error())
	})
	return d, nil
}

// ms converts the remaining budget into playwright's millisecond timeouts.
func ms(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

func (d *playwrightDriver) timeout(ctx context.Context) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := d.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < t {
			t = left
		}
	}
	if t <= 0 {
		return nil, context.DeadlineExceeded
	}
	return playwright.Float(ms(t)), nil
}

func (d *playwrightDriver) Goto(ctx context.Context, url string) error {
	t, err := d.timeout(ctx)
	if err != nil {
		return err
	}
	if _, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   t,
	}); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

func (d *playwrightDriver) ExpectVisibleText(ctx context.Context, text string) error {
	t, err := d.timeout(ctx)
	if err != nil {
		return err
	}
	// getByText also matches hidden nodes; only a visible one satisfies the check.
	visible := d.page.GetByText(text).Filter(playwright.LocatorFilterOptions{Visible: playwright.Bool(true)})
	if err := visible.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: t,
	}); err != nil {
		return fmt.Errorf("text %q not visible: %w", text, err)
	}
	return nil
}

func (d *playwrightDriver) ClickFirst(ctx context.Context, role string) error {
	t, err := d.timeout(ctx)
	if err != nil {
		return err
	}
	if err := d.page.GetByRole(playwright.AriaRole(role)).First().Click(playwright.LocatorClickOptions{
		Timeout: t,
	}); err != nil {
		return fmt.Errorf("click first %s: %w", role, err)
	}
	return nil
}

func (d *playwrightDriver) Screenshot(ctx context.Context, path string) error {
	t, err := d.timeout(ctx)
	if err != nil {
		return err
	}
	if _, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(d.opts.FullPage),
		Type:     playwright.ScreenshotTypePng,
		Timeout:  t,
	}); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return nil
}

func (d *playwrightDriver) Wait(ctx context.Context, dur time.Duration) error {
	return sleep(ctx, dur)
}

func (d *playwrightDriver) ConsoleErrors() []string {
	return d.console.list()
}

func (d *playwrightDriver) Close() error {
	d.closeOnce.Do(func() {
		var video playwright.Video
		if d.page != nil {
			if d.opts.VideoDir != "" {
				video = d.page.Video()
			}
			if err := d.page.Close(); err != nil && d.closeErr == nil {
				d.closeErr = fmt.Errorf("close page: %w", err)
			}
		}
		if video != nil {
			if p, err := video.Path(); err == nil {
				d.videoPath = p
			}
		}
		if d.browser != nil {
			if err := d.browser.Close(); err != nil && d.closeErr == nil {
				d.closeErr = fmt.Errorf("close browser: %w", err)
			}
		}
		if d.pw != nil {
			if err := d.pw.Stop(); err != nil && d.closeErr == nil {
				d.closeErr = fmt.Errorf("stop playwright: %w", err)
			}
		}
	})
	return d.closeErr
}

func (d *playwrightDriver) VideoPath() string {
	return d.videoPath
}
