package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"logcheck/internal/config"
	"logcheck/internal/runner"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the log viewer check once",
		Long: `Run launches the browser, executes the scenario and writes the screenshots to the
output directory (jules-scratch/verification by default), replacing any previous ones.

Examples:
  # Check the viewer on the default port
  logcheck run

  # Use chromedp and a different label
  logcheck run --engine chromedp --label "Log Files"

  # Run steps from a YAML scenario
  logcheck run --scenario scenarios/viewer.yaml`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	def := config.Default()
	cmd.Flags().StringP("url", "u", def.TargetURL, "Log viewer URL")
	cmd.Flags().StringP("label", "l", def.Label, "Text that must become visible")
	cmd.Flags().StringP("output", "o", def.OutputDir, "Directory for the screenshots")
	cmd.Flags().StringP("engine", "e", def.Engine, "Browser engine: playwright or chromedp")
	cmd.Flags().Bool("headless", def.Headless, "Run the browser headless")
	cmd.Flags().DurationP("timeout", "t", def.Timeout, "Timeout for each step")
	cmd.Flags().Duration("probe-timeout", def.ProbeTimeout, "Wait this long for the viewer to answer (0 disables)")
	cmd.Flags().String("viewport", def.Viewport, "Viewport as WxH")
	cmd.Flags().Bool("full-page", def.FullPage, "Capture the full scrollable page")
	cmd.Flags().Bool("install", def.InstallBrowsers, "Install the playwright Chromium build first")
	cmd.Flags().Bool("video", def.RecordVideo, "Record a video of the session (playwright only)")
	cmd.Flags().StringP("scenario", "s", "", "YAML scenario file instead of the built-in check")
	cmd.Flags().StringP("workspace", "w", def.Workspace, "Directory holding runs/")

	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, &cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, runner.Options{Config: cfg, Console: consoleWriter()})
	if res.RunID != "" {
		printSummary(cmd, res.Manifest)
	}
	return err
}

// applyRunFlags overrides cfg with the flags given on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func()) {
		if err == nil && f.Changed(name) {
			apply()
		}
	}
	set("url", func() { cfg.TargetURL, err = f.GetString("url") })
	set("label", func() { cfg.Label, err = f.GetString("label") })
	set("output", func() { cfg.OutputDir, err = f.GetString("output") })
	set("engine", func() { cfg.Engine, err = f.GetString("engine") })
	set("headless", func() { cfg.Headless, err = f.GetBool("headless") })
	set("timeout", func() { cfg.Timeout, err = f.GetDuration("timeout") })
	set("probe-timeout", func() { cfg.ProbeTimeout, err = f.GetDuration("probe-timeout") })
	set("viewport", func() { cfg.Viewport, err = f.GetString("viewport") })
	set("full-page", func() { cfg.FullPage, err = f.GetBool("full-page") })
	set("install", func() { cfg.InstallBrowsers, err = f.GetBool("install") })
	set("video", func() { cfg.RecordVideo, err = f.GetBool("video") })
	set("scenario", func() { cfg.ScenarioPath, err = f.GetString("scenario") })
	set("workspace", func() { cfg.Workspace, err = f.GetString("workspace") })
	return err
}

func printSummary(cmd *cobra.Command, m runner.Manifest) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s (%s, %s)\n", m.RunID, m.Status, m.Engine, m.TargetURL)
	for _, st := range m.Steps {
		mark := "✓"
		if st.Status != runner.StatusPassed {
			mark = "✗"
		}
		fmt.Fprintf(out, "  %s %d. %s (%dms)\n", mark, st.Index, st.Step, st.DurationMS)
		if st.Error != "" {
			fmt.Fprintf(out, "      %s\n", st.Error)
		}
	}
	for _, shot := range m.Screenshots {
		fmt.Fprintf(out, "  screenshot: %s (%dx%d, %d bytes)\n", shot.Output, shot.Width, shot.Height, shot.Size)
	}
	if len(m.ConsoleErrors) > 0 {
		fmt.Fprintf(out, "  page errors: %d\n", len(m.ConsoleErrors))
	}
}
