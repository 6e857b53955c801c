package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/manager"
)

// bulkOp is one of the manager's whole-manifest operations.
type bulkOp func(m *manager.Manager, ctx context.Context, opts manager.DownloadOptions) (*manager.Report, error)

func (c *CLI) restoreCommand() *cobra.Command {
	return c.bulkCommand("restore", "Restore", (*manager.Manager).Restore,
		"Download and install every package of the manifest",
		`Restore downloads the packages of the selected PLCs, skipping packages
that a PLC of this solution builds itself, and installs them where a live
environment is available.`)
}

func (c *CLI) downloadCommand() *cobra.Command {
	return c.bulkCommand("download", "Download", (*manager.Manager).Download,
		"Download every package of the manifest into the library cache",
		`Download fetches the packages of the selected PLCs into the library
cache. Every package that cannot be resolved fails the command.`)
}

func (c *CLI) pullCommand() *cobra.Command {
	return c.bulkCommand("pull", "Pull", (*manager.Manager).Pull,
		"Download packages, tolerating unpublished ones",
		`Pull downloads like restore but only warns about packages no source
publishes, which suits build agents working on feature branches.`)
}

func (c *CLI) bulkCommand(use, verb string, op bulkOp, short, long string) *cobra.Command {
	var opts manager.DownloadOptions
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			prog := newProgress(ws.logger)
			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Running %s...", use))
			spinner.Start()
			report, err := op(ws.manager, ctx, opts)
			spinner.Stop()

			if report != nil {
				printReport(verb, report)
				prog.done(fmt.Sprintf("%s finished", verb))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Project, "project", "", "only PLCs of this project")
	cmd.Flags().StringVar(&opts.Plc, "plc", "", "only this PLC")
	cmd.Flags().BoolVar(&opts.IncludeDependencies, "include-dependencies", true, "also fetch dependencies")
	cmd.Flags().BoolVarP(&opts.ForceDownload, "force", "f", false, "download even when cached")
	return cmd
}
