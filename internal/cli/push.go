package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/manager"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

func (c *CLI) pushCommand() *cobra.Command {
	var (
		source string
		opts   manager.PushOptions
	)
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Publish the built libraries of the manifest's PLCs",
		Long: `Push reads <name>_<version>.library (or .compiled-library) files from the
build directory and publishes one package version per PLC. The PLC's
packages are published as its dependencies.`,
		Example: `  plcpack login --source local -u jane
  plcpack push --source local --dir build --branch main`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			srv, err := ws.server(source)
			if err != nil {
				return err
			}
			pub, ok := srv.(protocol.Publisher)
			if !ok {
				return errors.New(errors.ErrCodeUnsupported, "source %s does not accept uploads", srv.Name())
			}
			if !srv.Connected() {
				return errors.New(errors.ErrCodeUnauthorized, "source %s is not connected, run plcpack login --source %s", srv.Name(), srv.Name())
			}

			spinner := newSpinnerWithContext(ctx, "Publishing to "+srv.Name()+"...")
			spinner.Start()
			pushed, err := ws.manager.Push(ctx, pub, opts)
			spinner.Stop()

			for _, v := range pushed {
				printSuccess("Published %s %s", StyleHighlight.Render(v.Name), StyleNumber.Render(v.Version))
				printDetail("sha256 %s", v.BinarySha256)
			}
			if err == nil && len(pushed) == 0 {
				printInfo("Nothing published")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&source, "source", defaultSourceName, "source to publish to")
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory with the built libraries")
	cmd.Flags().StringVar(&opts.Project, "project", "", "only PLCs of this project")
	cmd.Flags().StringVar(&opts.Plc, "plc", "", "only this PLC")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "branch the build belongs to")
	cmd.Flags().StringVar(&opts.Target, "target", "", "target platform")
	cmd.Flags().StringVar(&opts.Configuration, "configuration", "", "build configuration")
	cmd.Flags().BoolVar(&opts.Compiled, "compiled", false, "publish .compiled-library files")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "release notes")
	cmd.Flags().BoolVar(&opts.SkipDuplicates, "skip-duplicates", false, "skip versions that are already published")
	return cmd
}
