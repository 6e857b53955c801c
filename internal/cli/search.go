package cli

import (
	"context"
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/catalog"
	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/manager"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

func (c *CLI) searchCommand() *cobra.Command {
	var (
		limit       int
		interactive bool
		target      targetFlags
		addOpts     manager.AddOptions
	)
	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Search the catalogs of all sources",
		Long: `Search lists the packages whose name or description matches term on any
configured source. A package offered by several sources is listed once,
from the first source in the configured order.

With --interactive the results are shown in a picker and the chosen
packages are added to a PLC of the manifest.`,
		Example: `  plcpack search motion
  plcpack search --interactive --plc Machine`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			if interactive {
				return c.runPicker(ctx, term, target, addOpts)
			}

			e, err := c.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			fed := catalog.New(e.connect(ctx), e.logger)

			spinner := newSpinnerWithContext(ctx, "Searching...")
			spinner.Start()
			items, err := fed.Search(ctx, term, limit, 0)
			spinner.Stop()
			if err != nil {
				return err
			}
			printCatalog(items, !fed.Exhausted())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultSearchLimit, "maximum number of results (0 for all)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick packages to add")
	cmd.Flags().StringVar(&target.project, "project", "", "project of the PLC to add to")
	cmd.Flags().StringVar(&target.plc, "plc", "", "PLC to add to (default: the only PLC of the manifest)")
	cmd.Flags().BoolVar(&addOpts.IncludeDependencies, "include-dependencies", false, "add the whole dependency closure of picked packages")
	return cmd
}

func printCatalog(items []protocol.CatalogItem, more bool) {
	if len(items) == 0 {
		printInfo("No packages found")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		source := ""
		if it.Server != nil {
			source = it.Server.Name()
		}
		rows = append(rows, []string{it.Name, it.DistributorName, strconv.Itoa(it.Downloads), source, truncate(it.Description, 50)})
	}
	fmt.Println(renderTable([]string{"Package", "Distributor", "Downloads", "Source", "Description"}, rows, func(row, col int) lipgloss.Style {
		if col == 0 {
			return StyleHighlight
		}
		return StyleDim
	}))
	if more {
		printDetail("more results available, raise --limit")
	}
}

// runPicker shows the interactive search and adds the picked packages.
func (c *CLI) runPicker(ctx context.Context, term string, target targetFlags, opts manager.AddOptions) error {
	ws, err := c.openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	ref, err := selectPlc(ws.manifest, target.project, target.plc)
	if err != nil {
		return err
	}

	fed := ws.manager.Catalog()
	picker := NewPackagePicker(ctx, func(ctx context.Context) ([]protocol.CatalogItem, error) {
		return fed.Search(ctx, term, catalog.DefaultBatchSize, 0)
	}, fed.Exhausted)

	final, err := tea.NewProgram(picker, tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	result := final.(PackagePicker)
	if result.Err != nil {
		return result.Err
	}
	if !result.Confirmed {
		return nil
	}

	var items []manager.Item
	for _, it := range result.Selected() {
		items = append(items, manager.Item{
			Project: ref.Project,
			Plc:     ref.Plc.Name,
			Package: config.Package{Name: it.Name, DistributorName: it.DistributorName},
		})
	}
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Adding %d package(s)...", len(items)))
	spinner.Start()
	results, err := ws.manager.Add(ctx, items, opts)
	spinner.Stop()
	printAddResults(results)
	return err
}
