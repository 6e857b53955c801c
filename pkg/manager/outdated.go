package manager

import (
	"context"

	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/resolve"
)

// Status is the state of one manifest package relative to its servers.
type Status struct {
	Plc     string
	Package config.Package
	Latest  string // empty when no server publishes the package
	Server  string
}

// Outdated reports whether a newer version than the pinned one exists. An
// unpinned package is never outdated.
func (s Status) Outdated() bool {
	return s.Package.Version != "" && s.Latest != "" && protocol.CompareVersions(s.Latest, s.Package.Version) > 0
}

// Status looks up the latest published version of every package of the
// selected PLCs on the package's recorded axes.
func (m *Manager) Status(ctx context.Context, opts DownloadOptions) ([]Status, error) {
	var out []Status
	for ref := range m.manifest.Plcs() {
		if !selected(ref, opts) {
			continue
		}
		for _, pkg := range ref.Plc.Packages {
			st := Status{Plc: ref.Plc.Name, Package: pkg}
			latest := pkg
			latest.Version = ""
			prefs := resolve.Preferences{Branch: pkg.Branch, Target: pkg.Target, Configuration: pkg.Configuration}
			res, err := m.resolver.Resolve(ctx, latest.Library(), prefs)
			if err != nil {
				return out, err
			}
			if res.Found() {
				st.Latest = res.Version.Version
				st.Server = res.Server.Name()
			}
			out = append(out, st)
		}
	}
	return out, nil
}
