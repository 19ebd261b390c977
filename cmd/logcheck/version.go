package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = ""

// engineModules are the browser engine modules reported by the version command.
var engineModules = []string{
	"github.com/playwright-community/playwright-go",
	"github.com/chromedp/chromedp",
}

func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// engineVersions maps each browser engine module to the version linked into the binary.
// Engines missing from the build info (go test binaries, stripped builds) read "unknown".
func engineVersions(info *debug.BuildInfo) map[string]string {
	out := make(map[string]string, len(engineModules))
	for _, m := range engineModules {
		out[m] = "unknown"
	}
	if info == nil {
		return out
	}
	for _, dep := range info.Deps {
		if _, ok := out[dep.Path]; ok {
			out[dep.Path] = dep.Version
		}
	}
	return out
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print logcheck and browser engine versions",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logcheck version %s\n", getVersion())
			info, _ := debug.ReadBuildInfo()
			engines := engineVersions(info)
			for _, m := range engineModules {
				fmt.Fprintf(out, "  %s %s\n", m, engines[m])
			}
		},
	}
}
