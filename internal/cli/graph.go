package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/deps"
	"github.com/matzehuels/plcpack/pkg/errors"
)

// Graph output formats.
const (
	formatDOT = "dot"
	formatSVG = "svg"
	formatPNG = "png"
)

func (c *CLI) graphCommand() *cobra.Command {
	var (
		target   targetFlags
		format   string
		output   string
		detailed bool
	)
	cmd := &cobra.Command{
		Use:   "graph <name>[@version]",
		Short: "Draw the dependency graph of a package",
		Long: `graph resolves a package and its dependencies on the sources and prints
the graph as Graphviz DOT, or renders it as SVG or PNG. Circular
dependencies are drawn as dashed red edges.`,
		Example: `  plcpack graph ZCore
  plcpack graph ZCore@1.5.0.12 --format svg -o zcore.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			format = strings.ToLower(format)
			switch format {
			case formatDOT, formatSVG, formatPNG:
			default:
				return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (available: dot, svg, png)", format)
			}
			if format == formatPNG && output == "" {
				return errors.New(errors.ErrCodeInvalidInput, "png output needs --output")
			}
			pkg, err := parsePackageArg(args[0])
			if err != nil {
				return err
			}
			pkg.DistributorName = target.distributor
			pkg.Branch, pkg.Target, pkg.Configuration = target.branch, target.target, target.configuration

			e, err := c.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			mgr := e.newManager(nil, e.connect(ctx))

			spinner := newSpinnerWithContext(ctx, "Resolving dependencies of "+pkg.Name+"...")
			spinner.Start()
			closure, err := mgr.Graph(ctx, pkg)
			spinner.Stop()
			if err != nil {
				return err
			}

			dot := deps.ToDOT(closure, deps.DOTOptions{Detailed: detailed})
			var data []byte
			switch format {
			case formatDOT:
				data = []byte(dot)
			case formatSVG:
				data, err = deps.RenderSVG(ctx, dot)
			case formatPNG:
				data, err = deps.RenderPNG(ctx, dot)
			}
			if err != nil {
				return err
			}

			if output == "" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", output)
			}
			printSuccess("%s: %d packages, %d dependencies", pkg.Name, len(closure.Nodes), len(closure.Edges))
			if len(closure.Cycles) > 0 {
				printWarning("%d circular dependencies were cut", len(closure.Cycles))
			}
			printFile(output)
			return nil
		},
	}
	cmd.Flags().StringVar(&target.distributor, "distributor", "", "distributor of the package")
	cmd.Flags().StringVar(&target.branch, "branch", "", "preferred branch")
	cmd.Flags().StringVar(&target.target, "target", "", "preferred target")
	cmd.Flags().StringVar(&target.configuration, "configuration", "", "preferred configuration")
	cmd.Flags().StringVarP(&format, "format", "f", formatDOT, "output format: dot, svg or png")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "label nodes with distributor and axes")
	return cmd
}
