package config

import (
	"iter"
	"strings"

	"github.com/matzehuels/plcpack/pkg/protocol"
)

// FileVersion is the manifest schema version written by this package.
const FileVersion = 1

// DefaultFile is the manifest file name looked up in a solution directory.
const DefaultFile = "plcpack.json"

// SystemReferenceKey is the key of the system-reference map under which
// unmanaged references are listed.
const SystemReferenceKey = "*"

// PlcType classifies what a PLC builds.
type PlcType string

const (
	PlcTypeApplication         PlcType = "Application"
	PlcTypeUnitTestApplication PlcType = "UnitTestApplication"
	PlcTypeLibrary             PlcType = "Library"
	PlcTypeFrameworkLibrary    PlcType = "FrameworkLibrary"
)

// Valid reports whether t is one of the known types.
func (t PlcType) Valid() bool {
	switch t {
	case PlcTypeApplication, PlcTypeUnitTestApplication, PlcTypeLibrary, PlcTypeFrameworkLibrary:
		return true
	}
	return false
}

// Manifest is the root of a plcpack.json file. Field names are part of the
// on-disk format.
type Manifest struct {
	FileVersion int       `json:"fileversion"`
	Solution    string    `json:"solution,omitempty"`
	Modules     []string  `json:"modules,omitempty"`
	Projects    []Project `json:"projects,omitempty"`

	path    string
	root    string
	modules []*Manifest
}

// Project is a TwinCAT project of the solution.
type Project struct {
	Name string `json:"name"`
	Plcs []Plc  `json:"plcs"`
}

// Plc is one PLC of a project and the packages it depends on.
type Plc struct {
	Name            string                `json:"name"`
	Version         string                `json:"version,omitempty"`
	DistributorName string                `json:"distributor-name,omitempty"`
	Title           string                `json:"title,omitempty"`
	Type            PlcType               `json:"type,omitempty"`
	Description     string                `json:"description,omitempty"`
	Authors         string                `json:"authors,omitempty"`
	License         string                `json:"license,omitempty"`
	LicenseFile     string                `json:"license-file,omitempty"`
	IconFile        string                `json:"icon-file,omitempty"`
	Frameworks      map[string]*Framework `json:"frameworks,omitempty"`
	Packages        []Package             `json:"packages,omitempty"`
	References      map[string][]string   `json:"references,omitempty"`
	FilePath        string                `json:"filepath,omitempty"`
}

// Framework is a vendor's set of libraries pinned to one shared version.
type Framework struct {
	Version       string   `json:"version,omitempty"`
	References    []string `json:"references,omitempty"`
	Repositories  []string `json:"repositories,omitempty"`
	Hide          bool     `json:"hide,omitempty"`
	QualifiedOnly bool     `json:"qualified-only,omitempty"`
}

// Package is a managed library reference of a PLC.
type Package struct {
	Name            string                     `json:"name"`
	Version         string                     `json:"version,omitempty"`
	Branch          string                     `json:"branch,omitempty"`
	Target          string                     `json:"target,omitempty"`
	Configuration   string                     `json:"configuration,omitempty"`
	DistributorName string                     `json:"distributor-name,omitempty"`
	Namespace       string                     `json:"namespace,omitempty"`
	Parameters      map[string]string          `json:"parameters,omitempty"`
	Options         *protocol.ReferenceOptions `json:"options,omitempty"`
}

// Library returns the reference the package pins.
func (p Package) Library() protocol.PlcLibrary {
	return protocol.PlcLibrary{Name: p.Name, Version: p.Version, DistributorName: p.DistributorName, Options: p.Options}
}

// Same reports whether two packages name the same library, ignoring
// version. An empty distributor matches any distributor.
func (p Package) Same(o Package) bool {
	if !strings.EqualFold(p.Name, o.Name) {
		return false
	}
	return p.DistributorName == "" || o.DistributorName == "" || strings.EqualFold(p.DistributorName, o.DistributorName)
}

// PackageFrom builds a manifest entry for a resolved version.
func PackageFrom(v *protocol.PackageVersion) Package {
	branch, target, configuration := v.Axes()
	return Package{
		Name:            v.Name,
		Version:         v.Version,
		Branch:          branch,
		Target:          target,
		Configuration:   configuration,
		DistributorName: v.DistributorName,
	}
}

// Path is the file the manifest was loaded from or will be saved to.
func (m *Manifest) Path() string { return m.path }

// Root is the directory the manifest's relative paths are resolved
// against.
func (m *Manifest) Root() string { return m.root }

// SubManifests returns the loaded modules of a composite manifest.
func (m *Manifest) SubManifests() []*Manifest { return m.modules }

// PlcRef addresses a PLC inside a (possibly composite) manifest.
type PlcRef struct {
	Manifest *Manifest
	Project  string
	Plc      *Plc
}

// Plcs iterates over every PLC, descending into modules depth first.
func (m *Manifest) Plcs() iter.Seq[PlcRef] {
	return func(yield func(PlcRef) bool) {
		m.walkPlcs(yield)
	}
}

func (m *Manifest) walkPlcs(yield func(PlcRef) bool) bool {
	for i := range m.Projects {
		p := &m.Projects[i]
		for j := range p.Plcs {
			if !yield(PlcRef{Manifest: m, Project: p.Name, Plc: &p.Plcs[j]}) {
				return false
			}
		}
	}
	for _, sub := range m.modules {
		if !sub.walkPlcs(yield) {
			return false
		}
	}
	return true
}

// FindPlc returns the PLC named plc in project. An empty project matches
// any project; names compare case-insensitively.
func (m *Manifest) FindPlc(project, plc string) (PlcRef, bool) {
	for ref := range m.Plcs() {
		if project != "" && !strings.EqualFold(ref.Project, project) {
			continue
		}
		if strings.EqualFold(ref.Plc.Name, plc) {
			return ref, true
		}
	}
	return PlcRef{}, false
}

// Provides reports whether a PLC of the manifest produces the library
// name itself.
func (m *Manifest) Provides(name string) bool {
	for ref := range m.Plcs() {
		if strings.EqualFold(ref.Plc.Name, name) {
			return true
		}
	}
	return false
}

// Package returns the index of the package matching p, or -1.
func (p *Plc) Package(pkg Package) int {
	for i, have := range p.Packages {
		if have.Same(pkg) {
			return i
		}
	}
	return -1
}

// Upsert replaces the package matching pkg or appends it. It reports
// whether an entry was replaced.
func (p *Plc) Upsert(pkg Package) bool {
	if i := p.Package(pkg); i >= 0 {
		p.Packages[i] = pkg
		return true
	}
	p.Packages = append(p.Packages, pkg)
	return false
}

// RemovePackage deletes the entry matching pkg. It reports whether one was
// found.
func (p *Plc) RemovePackage(pkg Package) bool {
	i := p.Package(pkg)
	if i < 0 {
		return false
	}
	p.Packages = append(p.Packages[:i], p.Packages[i+1:]...)
	return true
}

// SystemReferences returns the unmanaged references of the PLC.
func (p *Plc) SystemReferences() []string {
	return p.References[SystemReferenceKey]
}

// InFramework returns the framework group listing name, with its key.
func (p *Plc) InFramework(name string) (string, *Framework, bool) {
	for key, fw := range p.Frameworks {
		for _, ref := range fw.References {
			if strings.EqualFold(ref, name) {
				return key, fw, true
			}
		}
	}
	return "", nil, false
}

// SystemReference formats an unmanaged reference entry, "Name=Version"
// with "*" for an unpinned version.
func SystemReference(lib protocol.PlcLibrary) string {
	v := lib.Version
	if v == "" {
		v = "*"
	}
	return lib.Name + "=" + v
}
