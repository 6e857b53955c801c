package manager

import (
	"context"
	"strings"

	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/plcproj"
	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/resolve"
)

// SetVersionOptions configures SetPackageVersion.
type SetVersionOptions struct {
	// Project and Plc select the PLCs to change. An empty Plc selects
	// every PLC of the manifest.
	Project string
	Plc     string
	// SyncFrameworkPackages moves the packages of the PLCs' framework
	// groups to the same version.
	SyncFrameworkPackages bool
	// Preferred axes for the re-resolved framework packages. Each axis
	// falls back to the package's current value when the new version is
	// not published on the preferred one.
	PreferredBranch        string
	PreferredTarget        string
	PreferredConfiguration string
	// PurgePackages drops packages the PLC's project file no longer
	// references.
	PurgePackages bool
}

// SetPackageVersion sets the version of the selected PLCs. Packages outside
// a framework group keep their versions.
func (m *Manager) SetPackageVersion(ctx context.Context, version string, opts SetVersionOptions) error {
	if version == "" || version == plcproj.Wildcard {
		return errors.New(errors.ErrCodeInvalidVersion, "a concrete version is required")
	}
	if err := errors.ValidateVersion(version); err != nil {
		return err
	}

	var targets []config.PlcRef
	for ref := range m.manifest.Plcs() {
		if opts.Project != "" && !strings.EqualFold(ref.Project, opts.Project) {
			continue
		}
		if opts.Plc != "" && !strings.EqualFold(ref.Plc.Name, opts.Plc) {
			continue
		}
		targets = append(targets, ref)
	}
	if len(targets) == 0 {
		return errors.New(errors.ErrCodeNotFound, "no plc matches project %q plc %q", opts.Project, opts.Plc)
	}

	batch := errors.NewBatch("set-version")
	for _, ref := range targets {
		ref.Plc.Version = version
		if opts.SyncFrameworkPackages {
			for _, fw := range ref.Plc.Frameworks {
				fw.Version = version
			}
			for i := range ref.Plc.Packages {
				pkg := &ref.Plc.Packages[i]
				if _, _, ok := ref.Plc.InFramework(pkg.Name); !ok {
					continue
				}
				err := m.syncPackage(ctx, pkg, version, opts)
				if isCancel(ctx, err) {
					return err
				}
				batch.RecordItem(ref.Plc.Name+": "+pkg.Name, err)
			}
		}
		if opts.PurgePackages {
			batch.RecordItem(ref.Plc.Name, m.purge(ref))
		}
	}
	return m.finish(ctx, batch)
}

// syncPackage pins pkg to version. Axes are tried preferred-first; an axis
// whose preferred value does not carry the version falls back to the
// package's current value. When no combination resolves, the version is
// pinned on the current axes and a warning is logged.
func (m *Manager) syncPackage(ctx context.Context, pkg *config.Package, version string, opts SetVersionOptions) error {
	prev := resolve.Preferences{Branch: pkg.Branch, Target: pkg.Target, Configuration: pkg.Configuration}
	want := resolve.Preferences{
		Branch:        firstNonEmpty(opts.PreferredBranch, prev.Branch),
		Target:        firstNonEmpty(opts.PreferredTarget, prev.Target),
		Configuration: firstNonEmpty(opts.PreferredConfiguration, prev.Configuration),
	}
	lib := protocol.PlcLibrary{Name: pkg.Name, Version: version, DistributorName: pkg.DistributorName}

	attempts := []resolve.Preferences{
		want,
		{Branch: prev.Branch, Target: want.Target, Configuration: want.Configuration},
		{Branch: prev.Branch, Target: prev.Target, Configuration: want.Configuration},
		prev,
	}
	tried := map[resolve.Preferences]bool{}
	for _, prefs := range attempts {
		if tried[prefs] {
			continue
		}
		tried[prefs] = true
		res, err := m.resolver.Version(ctx, lib, prefs)
		if err != nil {
			return err
		}
		if res.Found() {
			branch, target, configuration := res.Version.Axes()
			pkg.Version = version
			pkg.Branch, pkg.Target, pkg.Configuration = branch, target, configuration
			return nil
		}
	}

	m.logger.Warn("framework package version not published, pinning anyway", "package", pkg.Name, "version", version)
	pkg.Version = version
	return nil
}

// purge drops packages that the PLC's project file does not reference.
func (m *Manager) purge(ref config.PlcRef) error {
	path := ref.PlcFile()
	if path == "" {
		m.logger.Warn("plc has no project file, nothing to purge", "plc", ref.Plc.Name)
		return nil
	}
	proj, err := plcproj.ParseFile(path)
	if err != nil {
		return err
	}
	kept := ref.Plc.Packages[:0]
	for _, pkg := range ref.Plc.Packages {
		if _, ok := proj.Reference(pkg.Name); ok {
			kept = append(kept, pkg)
			continue
		}
		m.logger.Info("purging package", "plc", ref.Plc.Name, "package", pkg.Name)
	}
	ref.Plc.Packages = kept
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
