package cli

import (
	"cmp"
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/cache"
	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/plcproj"
)

// configCommand groups manifest and settings maintenance.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and maintain the manifest and the user settings",
	}

	cmd.AddCommand(c.configInitCommand())
	cmd.AddCommand(c.configSyncCommand())
	cmd.AddCommand(c.configSettingsCommand())

	return cmd
}

func (c *CLI) configInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [solution.sln]",
		Short: "Create a manifest from a TwinCAT solution",
		Long: `init reads the solution (the first .sln of the current directory by
default), finds every PLC project and writes a plcpack.json that lists the
libraries each PLC references. References are looked up on the sources to
record their distributor and version.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sln := ""
			if len(args) == 1 {
				sln = args[0]
			} else {
				found, err := plcproj.FindSolution(".")
				if err != nil {
					return err
				}
				sln = found
			}
			return c.runInit(ctx, sln, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing manifest")
	return cmd
}

func (c *CLI) runInit(ctx context.Context, sln string, force bool) error {
	target := filepath.Join(filepath.Dir(sln), config.DefaultFile)
	if _, err := os.Stat(target); err == nil && !force {
		return errors.New(errors.ErrCodeConflict, "%s exists, use --force to overwrite", target)
	}

	e, err := c.openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	mgr := e.newManager(config.New(target), e.connect(ctx))

	spinner := newSpinnerWithContext(ctx, "Reading "+filepath.Base(sln)+"...")
	spinner.Start()
	m, err := config.FromSolution(ctx, sln, mgr.Reconciler())
	spinner.Stop()
	if m == nil {
		return err
	}
	if saveErr := m.Save(); saveErr != nil {
		return saveErr
	}

	plcs := 0
	for range m.Plcs() {
		plcs++
	}
	printSuccess("Created manifest with %s PLC(s)", StyleNumber.Render(strconv.Itoa(plcs)))
	printFile(m.Path())
	printNextStep("Download the packages with", "plcpack restore")
	return err
}

func (c *CLI) configSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Re-read the PLC project files into the manifest",
		Long: `sync regenerates the package sections of every PLC from its project
file. Versions the project pins are kept; references without a version
are pinned to the version the sources resolve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			spinner := newSpinnerWithContext(ctx, "Reconciling project files...")
			spinner.Start()
			err = ws.manager.Reconciler().Sync(ctx, ws.manifest)
			spinner.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if saveErr := ws.manifest.Save(); saveErr != nil {
				return saveErr
			}
			if err != nil {
				return err
			}
			printSuccess("Manifest synchronized")
			printFile(ws.manifest.Path())
			return nil
		},
	}
}

func (c *CLI) configSettingsCommand() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the user settings",
		Long:  `settings prints the effective user settings. With --write the defaults are written to the settings file when it does not exist yet.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settingsPath(c.configPath)
			if err != nil {
				return err
			}
			s, err := loadSettings(path)
			if err != nil {
				return err
			}
			if write {
				if _, err := os.Stat(path); err == nil {
					return errors.New(errors.ErrCodeConflict, "%s exists", path)
				}
				if err := s.save(path); err != nil {
					return err
				}
				printSuccess("Wrote default settings")
				printFile(path)
				return nil
			}

			printKeyValue("File", path)
			printKeyValue("Checksum", s.Checksum)
			printKeyValue("Cache", cmp.Or(s.Cache.Backend, cache.BackendFile))
			printKeyValue("Framework", s.Framework.Vendor)
			for _, src := range s.Sources {
				state := cmp.Or(src.Type, SourceREST)
				if src.Disabled {
					state += ", disabled"
				}
				printKeyValue("Source", src.Name+" "+StyleDim.Render("("+state+") "+src.URL))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write the default settings file")
	return cmd
}
