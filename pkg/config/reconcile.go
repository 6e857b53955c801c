package config

import (
	"context"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/plcproj"
	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/resolve"
)

// Reconciler derives the package sections of a manifest from the native
// project files.
type Reconciler struct {
	resolver  *resolve.Resolver
	framework FrameworkSettings
	logger    *log.Logger
}

// NewReconciler returns a Reconciler resolving references with r.
func NewReconciler(r *resolve.Resolver, fw FrameworkSettings, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{resolver: r, framework: fw.WithDefaults(), logger: logger}
}

// Framework returns the framework settings in use.
func (r *Reconciler) Framework() FrameworkSettings { return r.framework }

// ReconcilePlc rebuilds plc's identity, packages, framework group and
// system references from proj.
//
// Every reference is resolved. A resolved reference becomes a package
// pinned to the version the project declares. A reference from the
// framework vendor is always listed in the framework group. Any other
// reference no server knows is kept as a system reference. When every
// server failed for a reference, the previous package entry is kept
// rather than demoting it to a system reference.
func (r *Reconciler) ReconcilePlc(ctx context.Context, plc *Plc, proj *plcproj.Project) error {
	previous := plc.Packages
	previousFw := plc.Frameworks[r.framework.Key]

	var (
		packages []Package
		system   []string
		fwRefs   []string
		fwVer    string
	)
	for _, ref := range proj.References {
		vendor := r.isVendor(ref.DistributorName)
		if vendor {
			fwRefs = append(fwRefs, ref.Name)
			if fwVer == "" {
				fwVer = ref.Version
			}
		}

		prev, hadPrev := findPackage(previous, ref.Name)
		prefs := resolve.Preferences{}
		if hadPrev {
			prefs = resolve.Preferences{Branch: prev.Branch, Target: prev.Target, Configuration: prev.Configuration}
		}

		res, err := r.resolver.Resolve(ctx, ref.PlcLibrary, prefs)
		if err != nil {
			return err
		}
		switch {
		case res.Found():
			pkg := referencePackage(ref, res.Version)
			if !slices.ContainsFunc(packages, pkg.Same) {
				packages = append(packages, pkg)
			}
		case res.Unreachable() && hadPrev:
			r.logger.Warn("package sources unreachable, keeping previous entry", "plc", plc.Name, "package", ref.Name)
			packages = append(packages, prev)
		case vendor:
			r.logger.Debug("framework reference not published", "plc", plc.Name, "package", ref.Name)
		default:
			if res.Unreachable() {
				r.logger.Warn("package sources unreachable, recording system reference", "plc", plc.Name, "package", ref.Name)
			}
			if entry := SystemReference(ref.PlcLibrary); !slices.Contains(system, entry) {
				system = append(system, entry)
			}
		}
	}

	plc.Name = firstNonEmpty(proj.Name, plc.Name)
	plc.Title = firstNonEmpty(proj.Title, plc.Title)
	plc.Version = firstNonEmpty(proj.Version, plc.Version)
	plc.DistributorName = firstNonEmpty(proj.Company, plc.DistributorName)
	plc.Authors = firstNonEmpty(proj.Author, plc.Authors)
	plc.Description = firstNonEmpty(proj.Description, plc.Description)
	if plc.Type == "" {
		plc.Type = GuessPlcType(proj, r.framework)
	}

	plc.Packages = packages
	plc.References = nil
	if len(system) > 0 {
		plc.References = map[string][]string{SystemReferenceKey: system}
	}
	plc.Frameworks = nil
	if len(fwRefs) > 0 {
		fw := &Framework{Version: fwVer, References: dedupFold(fwRefs)}
		if previousFw != nil {
			fw.Repositories = previousFw.Repositories
			fw.Hide = previousFw.Hide
			fw.QualifiedOnly = previousFw.QualifiedOnly
		}
		if len(fw.Repositories) == 0 {
			fw.Repositories = slices.Clone(r.framework.Repositories)
		}
		plc.Frameworks = map[string]*Framework{r.framework.Key: fw}
	}
	return nil
}

// Sync reconciles every PLC of m that points at a project file. PLCs whose
// project file cannot be read are reported together after all PLCs were
// tried.
func (r *Reconciler) Sync(ctx context.Context, m *Manifest) error {
	batch := errors.NewBatch("sync")
	for ref := range m.Plcs() {
		path := ref.PlcFile()
		if path == "" {
			continue
		}
		proj, err := plcproj.ParseFile(path)
		if err != nil {
			batch.RecordItem("plc "+ref.Plc.Name, err)
			continue
		}
		err = r.ReconcilePlc(ctx, ref.Plc, proj)
		if err != nil && ctx.Err() != nil {
			return err
		}
		batch.RecordItem("plc "+ref.Plc.Name, err)
	}
	return batch.Err()
}

func (r *Reconciler) isVendor(distributor string) bool {
	return r.framework.Vendor != "" && strings.EqualFold(strings.TrimSpace(distributor), r.framework.Vendor)
}

func referencePackage(ref plcproj.Reference, v *protocol.PackageVersion) Package {
	pkg := PackageFrom(v)
	pkg.Name = ref.Name
	pkg.Version = ref.Version
	if ref.Namespace != "" && ref.Namespace != ref.Name {
		pkg.Namespace = ref.Namespace
	}
	if ref.Options != nil && *ref.Options != (protocol.ReferenceOptions{}) {
		opts := *ref.Options
		pkg.Options = &opts
	}
	return pkg
}

func findPackage(pkgs []Package, name string) (Package, bool) {
	for _, p := range pkgs {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Package{}, false
}

func dedupFold(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		k := strings.ToLower(n)
		if !seen[k] {
			seen[k] = true
			out = append(out, n)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
