package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/manager"
)

func (c *CLI) setVersionCommand() *cobra.Command {
	var opts manager.SetVersionOptions
	cmd := &cobra.Command{
		Use:   "set-version <version>",
		Short: "Set the version of the manifest's PLCs",
		Long: `set-version writes a new version for the selected PLCs (all PLCs by
default) and optionally moves their framework packages along.`,
		Example: `  plcpack set-version 1.2.0.0
  plcpack set-version 1.2.0.0 --plc Machine --sync-framework-packages --branch release/1.2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			spinner := newSpinnerWithContext(ctx, "Setting version "+args[0]+"...")
			spinner.Start()
			err = ws.manager.SetPackageVersion(ctx, args[0], opts)
			spinner.Stop()
			if err != nil {
				return err
			}
			printSuccess("Version set to %s", StyleNumber.Render(args[0]))
			printDetail("%s", ws.manifest.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Project, "project", "", "only PLCs of this project")
	cmd.Flags().StringVar(&opts.Plc, "plc", "", "only this PLC")
	cmd.Flags().BoolVar(&opts.SyncFrameworkPackages, "sync-framework-packages", false, "move framework packages to the same version")
	cmd.Flags().StringVar(&opts.PreferredBranch, "branch", "", "preferred branch of framework packages")
	cmd.Flags().StringVar(&opts.PreferredTarget, "target", "", "preferred target of framework packages")
	cmd.Flags().StringVar(&opts.PreferredConfiguration, "configuration", "", "preferred configuration of framework packages")
	cmd.Flags().BoolVar(&opts.PurgePackages, "purge", false, "drop packages the project file no longer references")
	return cmd
}
