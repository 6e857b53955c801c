package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/manager"
)

// targetFlags select the PLC a package command edits and the axes a
// package is resolved on.
type targetFlags struct {
	project       string
	plc           string
	distributor   string
	branch        string
	target        string
	configuration string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.project, "project", "", "project of the PLC")
	cmd.Flags().StringVar(&f.plc, "plc", "", "PLC to edit (default: the only PLC of the manifest)")
	cmd.Flags().StringVar(&f.distributor, "distributor", "", "distributor of the packages")
	cmd.Flags().StringVar(&f.branch, "branch", "", "preferred branch")
	cmd.Flags().StringVar(&f.target, "target", "", "preferred target")
	cmd.Flags().StringVar(&f.configuration, "configuration", "", "preferred configuration")
}

// items turns name[@version] arguments into manager items of the selected
// PLC.
func (f *targetFlags) items(m *config.Manifest, args []string) ([]manager.Item, error) {
	ref, err := selectPlc(m, f.project, f.plc)
	if err != nil {
		return nil, err
	}
	items := make([]manager.Item, 0, len(args))
	for _, arg := range args {
		pkg, err := parsePackageArg(arg)
		if err != nil {
			return nil, err
		}
		pkg.DistributorName = f.distributor
		pkg.Branch = f.branch
		pkg.Target = f.target
		pkg.Configuration = f.configuration
		items = append(items, manager.Item{Project: ref.Project, Plc: ref.Plc.Name, Package: pkg})
	}
	return items, nil
}

// parsePackageArg parses "Name" or "Name@1.2.3.4".
func parsePackageArg(arg string) (config.Package, error) {
	name, version, _ := strings.Cut(strings.TrimSpace(arg), "@")
	if err := errors.ValidatePackageName(name); err != nil {
		return config.Package{}, err
	}
	if err := errors.ValidateVersion(version); err != nil {
		return config.Package{}, err
	}
	return config.Package{Name: name, Version: version}, nil
}

// selectPlc finds the PLC named plc. Without a name the manifest must hold
// exactly one PLC.
func selectPlc(m *config.Manifest, project, plc string) (config.PlcRef, error) {
	if plc != "" {
		ref, ok := m.FindPlc(project, plc)
		if !ok {
			return config.PlcRef{}, errors.New(errors.ErrCodeNotFound, "plc %q not found in %s", plc, m.Path())
		}
		return ref, nil
	}
	var found []config.PlcRef
	for ref := range m.Plcs() {
		if project == "" || strings.EqualFold(ref.Project, project) {
			found = append(found, ref)
		}
	}
	switch len(found) {
	case 0:
		return config.PlcRef{}, errors.New(errors.ErrCodeNotFound, "manifest %s has no PLC", m.Path())
	case 1:
		return found[0], nil
	}
	names := make([]string, len(found))
	for i, ref := range found {
		names[i] = ref.Plc.Name
	}
	return config.PlcRef{}, errors.New(errors.ErrCodeInvalidInput, "choose a PLC with --plc (one of %s)", strings.Join(names, ", "))
}

func (c *CLI) addCommand() *cobra.Command {
	var (
		target targetFlags
		opts   manager.AddOptions
	)
	cmd := &cobra.Command{
		Use:   "add <name>[@version]...",
		Short: "Add packages to a PLC",
		Long: `Add resolves each package (the latest version when none is given),
downloads it into the library cache and records it in the manifest.`,
		Example: `  plcpack add Struckig
  plcpack add ZCore@1.5.0.12 --plc Machine --include-dependencies`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAdd(cmd.Context(), args, target, opts)
		},
	}
	target.register(cmd)
	cmd.Flags().BoolVar(&opts.IncludeDependencies, "include-dependencies", false, "add the whole dependency closure")
	cmd.Flags().BoolVarP(&opts.ForceDownload, "force", "f", false, "download even when cached")
	return cmd
}

func (c *CLI) runAdd(ctx context.Context, args []string, target targetFlags, opts manager.AddOptions) error {
	ws, err := c.openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	items, err := target.items(ws.manifest, args)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Adding %d package(s)...", len(items)))
	spinner.Start()
	results, err := ws.manager.Add(ctx, items, opts)
	spinner.Stop()

	printAddResults(results)
	return err
}

func printAddResults(results []manager.AddResult) {
	for _, r := range results {
		line := StyleHighlight.Render(r.Item.Package.Name) + " " + StyleNumber.Render(r.Version)
		switch {
		case r.Dependency:
			printDetail("%s %s (dependency)", r.Item.Package.Name, r.Version)
			continue
		case r.Downloaded:
			line += StyleDim.Render(" downloaded")
		default:
			line += StyleDim.Render(" cached")
		}
		printSuccess("%s %s %s", r.Item.Plc, iconArrow, line)
	}
}

func (c *CLI) removeCommand() *cobra.Command {
	var (
		target targetFlags
		opts   manager.RemoveOptions
	)
	cmd := &cobra.Command{
		Use:     "remove <name>...",
		Aliases: []string{"rm"},
		Short:   "Remove packages from a PLC",
		Long:    `Remove deletes packages from the manifest. Packages that were added as their dependencies stay.`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			manifest, err := c.loadManifest()
			if err != nil {
				return err
			}
			items, err := target.items(manifest, args)
			if err != nil {
				return err
			}
			e, err := c.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			// Removal needs no package server.
			if err := e.newManager(manifest, nil).Remove(ctx, items, opts); err != nil {
				return err
			}
			for _, it := range items {
				printSuccess("Removed %s from %s", StyleHighlight.Render(it.Package.Name), it.Plc)
			}
			return nil
		},
	}
	target.register(cmd)
	cmd.Flags().BoolVar(&opts.Uninstall, "uninstall", false, "also uninstall the libraries from the environment")
	return cmd
}

func (c *CLI) updateCommand() *cobra.Command {
	var (
		target    targetFlags
		opts      manager.AddOptions
		framework string
		version   string
	)
	cmd := &cobra.Command{
		Use:   "update [name[@version]...]",
		Short: "Update packages to a newer version",
		Long: `Update moves packages to the given version, or to the latest published
version. Without arguments every package of the PLC is updated. With
--framework the PLC's framework group moves to one shared version.`,
		Example: `  plcpack update
  plcpack update Struckig@0.12.0.0
  plcpack update --framework zeugwerk --version 1.6.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			ref, err := selectPlc(ws.manifest, target.project, target.plc)
			if err != nil {
				return err
			}

			spinner := newSpinnerWithContext(ctx, "Updating packages...")
			spinner.Start()
			var results []manager.AddResult
			if framework != "" {
				results, err = ws.manager.UpdateFramework(ctx, ref.Project, ref.Plc.Name, framework, version, opts)
			} else {
				if len(args) == 0 {
					for _, pkg := range ref.Plc.Packages {
						args = append(args, pkg.Name)
					}
				}
				var items []manager.Item
				items, err = target.items(ws.manifest, args)
				if err == nil {
					results, err = ws.manager.Update(ctx, items, opts)
				}
			}
			spinner.Stop()

			printAddResults(results)
			if err == nil && len(results) == 0 {
				printInfo("Nothing to update")
			}
			return err
		},
	}
	target.register(cmd)
	cmd.Flags().StringVar(&framework, "framework", "", "update the framework group with this key")
	cmd.Flags().StringVar(&version, "version", "", "framework version (default: latest)")
	cmd.Flags().BoolVar(&opts.IncludeDependencies, "include-dependencies", false, "update the whole dependency closure")
	cmd.Flags().BoolVarP(&opts.ForceDownload, "force", "f", false, "download even when cached")
	return cmd
}
