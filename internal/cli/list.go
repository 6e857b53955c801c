package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/manager"
)

// List output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// listEntry is one row of list output.
type listEntry struct {
	Project     string `json:"project" yaml:"project"`
	Plc         string `json:"plc" yaml:"plc"`
	Package     string `json:"package" yaml:"package"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Branch      string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Distributor string `json:"distributor,omitempty" yaml:"distributor,omitempty"`
	Framework   bool   `json:"framework,omitempty" yaml:"framework,omitempty"`
	Latest      string `json:"latest,omitempty" yaml:"latest,omitempty"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
}

func (c *CLI) listCommand() *cobra.Command {
	var (
		opts     manager.DownloadOptions
		outdated bool
		format   string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the packages of the manifest",
		Long: `List prints every package of the selected PLCs. With --outdated each
package is looked up on the sources and only packages with a newer
published version are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			format = strings.ToLower(format)
			switch format {
			case formatTable, formatJSON, formatYAML:
			default:
				return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (available: table, json, yaml)", format)
			}
			if !outdated {
				manifest, err := c.loadManifest()
				if err != nil {
					return err
				}
				entries := manifestEntries(manifest, opts)
				if format != formatTable {
					return writeEntries(os.Stdout, format, entries)
				}
				printPackages(entries)
				return nil
			}

			ws, err := c.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			spinner := newSpinnerWithContext(ctx, "Checking for newer versions...")
			spinner.Start()
			statuses, err := ws.manager.Status(ctx, opts)
			spinner.Stop()
			if err != nil {
				return err
			}
			if format != formatTable {
				return writeEntries(os.Stdout, format, outdatedEntries(statuses))
			}
			printOutdated(statuses)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Project, "project", "", "only PLCs of this project")
	cmd.Flags().StringVar(&opts.Plc, "plc", "", "only this PLC")
	cmd.Flags().BoolVar(&outdated, "outdated", false, "only packages with a newer published version")
	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

// manifestEntries lists the packages and framework groups of the selected
// PLCs in manifest order.
func manifestEntries(m *config.Manifest, opts manager.DownloadOptions) []listEntry {
	entries := []listEntry{}
	for ref := range m.Plcs() {
		if !plcSelected(ref, opts) {
			continue
		}
		for _, pkg := range ref.Plc.Packages {
			entries = append(entries, listEntry{
				Project:     ref.Project,
				Plc:         ref.Plc.Name,
				Package:     pkg.Name,
				Version:     pkg.Version,
				Branch:      pkg.Branch,
				Distributor: pkg.DistributorName,
			})
		}
		for _, key := range slices.Sorted(maps.Keys(ref.Plc.Frameworks)) {
			entries = append(entries, listEntry{
				Project:   ref.Project,
				Plc:       ref.Plc.Name,
				Package:   key,
				Version:   ref.Plc.Frameworks[key].Version,
				Framework: true,
			})
		}
	}
	return entries
}

// outdatedEntries keeps the statuses with a newer published version.
func outdatedEntries(statuses []manager.Status) []listEntry {
	entries := []listEntry{}
	for _, st := range statuses {
		if !st.Outdated() {
			continue
		}
		entries = append(entries, listEntry{
			Plc:         st.Plc,
			Package:     st.Package.Name,
			Version:     st.Package.Version,
			Branch:      st.Package.Branch,
			Distributor: st.Package.DistributorName,
			Latest:      st.Latest,
			Source:      st.Server,
		})
	}
	return entries
}

func writeEntries(w io.Writer, format string, entries []listEntry) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
}

func printPackages(entries []listEntry) {
	if len(entries) == 0 {
		printInfo("No packages")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		name := e.Package
		if e.Framework {
			name += " (framework)"
		}
		rows = append(rows, []string{e.Plc, name, versionOrLatest(e.Version), e.Branch, e.Distributor})
	}
	fmt.Println(renderTable([]string{"PLC", "Package", "Version", "Branch", "Distributor"}, rows, func(row, col int) lipgloss.Style {
		switch col {
		case 1:
			return StyleHighlight
		case 2:
			return StyleNumber
		}
		return StyleDim
	}))
}

func printOutdated(statuses []manager.Status) {
	var rows [][]string
	for _, st := range statuses {
		if !st.Outdated() {
			continue
		}
		rows = append(rows, []string{st.Plc, st.Package.Name, st.Package.Version, st.Latest, st.Server})
	}
	if len(rows) == 0 {
		printSuccess("All %d packages are up to date", len(statuses))
		return
	}
	fmt.Println(renderTable([]string{"PLC", "Package", "Current", "Latest", "Source"}, rows, func(row, col int) lipgloss.Style {
		switch col {
		case 1:
			return StyleHighlight
		case 3:
			return StyleSuccess
		}
		return StyleDim
	}))
	printNextStep("Update with", "plcpack update")
}

func plcSelected(ref config.PlcRef, opts manager.DownloadOptions) bool {
	return (opts.Project == "" || strings.EqualFold(ref.Project, opts.Project)) &&
		(opts.Plc == "" || strings.EqualFold(ref.Plc.Name, opts.Plc))
}

func versionOrLatest(v string) string {
	if v == "" {
		return "latest"
	}
	return v
}
