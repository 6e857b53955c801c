package config

import (
	"slices"
	"strings"

	"github.com/matzehuels/plcpack/pkg/plcproj"
)

// GuessPlcType classifies a PLC from its project file. A project with a
// compiled task is an application, or a unit-test application when it
// references one of the unit-test frameworks. Otherwise it is a library,
// and a framework library when the vendor publishes it.
func GuessPlcType(proj *plcproj.Project, fw FrameworkSettings) PlcType {
	if proj.HasTask() {
		for _, ref := range proj.References {
			if slices.ContainsFunc(fw.UnitTestFrameworks, func(name string) bool {
				return strings.EqualFold(name, ref.Name)
			}) {
				return PlcTypeUnitTestApplication
			}
		}
		return PlcTypeApplication
	}
	if fw.Vendor != "" && strings.EqualFold(strings.TrimSpace(proj.Company), fw.Vendor) {
		return PlcTypeFrameworkLibrary
	}
	return PlcTypeLibrary
}

// EffectiveType returns the declared type of p, or the guessed one when the
// manifest does not declare any.
func (p *Plc) EffectiveType(proj *plcproj.Project, fw FrameworkSettings) PlcType {
	if p.Type != "" {
		return p.Type
	}
	return GuessPlcType(proj, fw)
}
