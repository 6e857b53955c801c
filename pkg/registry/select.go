package registry

import (
	"sort"
	"strings"

	"github.com/matzehuels/plcpack/pkg/integrations/rest"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// Select picks the version a resolve query asks for.
//
// Candidates are narrowed to the pinned version when q names one. Each
// axis is then applied in turn (branch, target, configuration): when some
// candidates are on the preferred value only those are kept, otherwise the
// axis is ignored. Of what remains the highest version wins, with source
// libraries ahead of compiled ones. Select returns nil when nothing
// matches.
func Select(versions []*protocol.PackageVersion, q rest.Query) *protocol.PackageVersion {
	var cands []*protocol.PackageVersion
	for _, v := range versions {
		if q.Library.Version != "" && protocol.CompareVersions(v.Version, q.Library.Version) != 0 {
			continue
		}
		cands = append(cands, v)
	}

	axes := []struct {
		want string
		get  func(*protocol.PackageVersion) string
	}{
		{q.Branch, func(v *protocol.PackageVersion) string { b, _, _ := v.Axes(); return b }},
		{q.Target, func(v *protocol.PackageVersion) string { _, t, _ := v.Axes(); return t }},
		{q.Configuration, func(v *protocol.PackageVersion) string { _, _, c := v.Axes(); return c }},
	}
	for _, ax := range axes {
		if ax.want == "" {
			continue
		}
		var kept []*protocol.PackageVersion
		for _, v := range cands {
			if strings.EqualFold(ax.get(v), ax.want) {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			cands = kept
		}
	}
	if len(cands) == 0 {
		return nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if c := protocol.CompareVersions(cands[i].Version, cands[j].Version); c != 0 {
			return c > 0
		}
		return !cands[i].Compiled && cands[j].Compiled
	})
	return cands[0]
}

// Exact returns the version on exactly the queried axes, with unset axes
// meaning their defaults.
func Exact(versions []*protocol.PackageVersion, q rest.Query) *protocol.PackageVersion {
	want := &protocol.PackageVersion{Branch: q.Branch, Target: q.Target, Configuration: q.Configuration}
	wb, wt, wc := want.Axes()
	var found *protocol.PackageVersion
	for _, v := range versions {
		if protocol.CompareVersions(v.Version, q.Library.Version) != 0 {
			continue
		}
		b, t, c := v.Axes()
		if !strings.EqualFold(b, wb) || !strings.EqualFold(t, wt) || !strings.EqualFold(c, wc) {
			continue
		}
		if found == nil || (found.Compiled && !v.Compiled) {
			found = v
		}
	}
	return found
}

func sortItems(items []protocol.CatalogItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
		if a != b {
			return a < b
		}
		return strings.ToLower(items[i].DistributorName) < strings.ToLower(items[j].DistributorName)
	})
}
