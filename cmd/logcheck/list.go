package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"logcheck/internal/runner"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runListCmd,
	}
	cmd.Flags().StringP("workspace", "w", ".", "Directory holding runs/")
	return cmd
}

func runListCmd(cmd *cobra.Command, _ []string) error {
	workspace, err := workspaceFlag(cmd)
	if err != nil {
		return err
	}
	ids, err := runner.FindRuns(workspace)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tTARGET")
	for _, id := range ids {
		m, err := runner.LoadManifest(runner.ManifestPath(workspace, id))
		if err != nil {
			fmt.Fprintf(tw, "%s\t?\t\t\n", id)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, m.Status, m.StartedAt.Format("2006-01-02 15:04:05"), m.TargetURL)
	}
	return tw.Flush()
}

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the manifest of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}
	cmd.Flags().StringP("workspace", "w", ".", "Directory holding runs/")
	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	workspace, err := workspaceFlag(cmd)
	if err != nil {
		return err
	}
	m, err := runner.LoadManifest(runner.ManifestPath(workspace, args[0]))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("run %s not found", args[0])
		}
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

// workspaceFlag prefers --workspace, then the config file and environment.
func workspaceFlag(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("workspace") {
		return cmd.Flags().GetString("workspace")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return cfg.Workspace, nil
}
