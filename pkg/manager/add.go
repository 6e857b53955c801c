package manager

import (
	"context"

	"github.com/matzehuels/plcpack/pkg/automation"
	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
)

// AddOptions configures Add and Update.
type AddOptions struct {
	// ForceDownload transfers artifacts even when they are cached.
	ForceDownload bool
	// IncludeDependencies adds the whole dependency closure, not just the
	// requested packages.
	IncludeDependencies bool
}

// AddResult describes one added package version.
type AddResult struct {
	Item       Item
	Version    string
	Downloaded bool
	Dependency bool
}

// Add resolves, downloads and records every item. An item without a
// version resolves to the latest one published. Dependencies share one
// download per distinct version.
func (m *Manager) Add(ctx context.Context, items []Item, opts AddOptions) ([]AddResult, error) {
	batch := errors.NewBatch("add")
	var results []AddResult
	for _, it := range items {
		res, err := m.addOne(ctx, it, opts)
		if isCancel(ctx, err) {
			return results, err
		}
		results = append(results, res...)
		batch.RecordItem(it.String(), err)
	}
	return results, m.finish(ctx, batch)
}

func (m *Manager) addOne(ctx context.Context, it Item, opts AddOptions) ([]AddResult, error) {
	if err := errors.ValidatePackageName(it.Package.Name); err != nil {
		return nil, err
	}
	if err := errors.ValidateVersion(it.Package.Version); err != nil {
		return nil, err
	}
	ref, err := m.plc(it)
	if err != nil {
		return nil, err
	}
	root, err := m.resolvePackage(ctx, it.Package)
	if err != nil {
		return nil, err
	}
	nodes, err := m.closure(ctx, root, opts.IncludeDependencies)
	if err != nil {
		return nil, err
	}

	var (
		results []AddResult
		failed  error
	)
	for i, n := range nodes {
		downloaded, err := m.download(ctx, n, opts.ForceDownload)
		if err != nil {
			if isCancel(ctx, err) {
				return results, err
			}
			// A dependency that cannot be fetched fails the item but the
			// remaining nodes are still attempted.
			failed = errors.Join(failed, err)
			continue
		}

		pkg := config.PackageFrom(n.version)
		if i == 0 {
			pkg = merge(it.Package, pkg)
		} else if existing := ref.Plc.Package(pkg); existing >= 0 {
			pkg = merge(ref.Plc.Packages[existing], pkg)
		}
		ref.Plc.Upsert(pkg)

		if err := m.install(ctx, ref, pkg, n.version); err != nil {
			failed = errors.Join(failed, err)
		}
		results = append(results, AddResult{
			Item:       Item{Project: ref.Project, Plc: ref.Plc.Name, Package: pkg},
			Version:    n.version.Version,
			Downloaded: downloaded,
			Dependency: i > 0,
		})
	}
	return results, failed
}

// merge keeps the user-chosen fields of want and takes identity and axes
// from the resolved entry.
func merge(want, got config.Package) config.Package {
	out := got
	out.Namespace = want.Namespace
	out.Parameters = want.Parameters
	out.Options = want.Options
	return out
}

// RemoveOptions configures Remove.
type RemoveOptions struct {
	// Uninstall also removes the library from the environment's library
	// repository.
	Uninstall bool
}

// Remove deletes the items from their PLCs. It does not cascade: packages
// that were added as dependencies of a removed package stay, since other
// packages may still need them.
func (m *Manager) Remove(ctx context.Context, items []Item, opts RemoveOptions) error {
	batch := errors.NewBatch("remove")
	for _, it := range items {
		err := m.removeOne(ctx, it, opts)
		if isCancel(ctx, err) {
			return err
		}
		batch.RecordItem(it.String(), err)
	}
	return m.finish(ctx, batch)
}

func (m *Manager) removeOne(ctx context.Context, it Item, opts RemoveOptions) error {
	ref, err := m.plc(it)
	if err != nil {
		return err
	}
	i := ref.Plc.Package(it.Package)
	if i < 0 {
		return errors.New(errors.ErrCodePackageNotFound, "%s is not a package of %s", it.Package.Name, ref.Plc.Name)
	}
	pkg := ref.Plc.Packages[i]
	ref.Plc.RemovePackage(pkg)

	if m.surface.Live() {
		item := automation.Item{Project: ref.Project, Plc: ref.Plc.Name, Library: pkg.Library(), Namespace: pkg.Namespace}
		return m.surface.Remove(ctx, item, opts.Uninstall)
	}
	return nil
}

// Update replaces each item's package by the version the item names, or by
// the latest version when it names none. It is a Remove followed by an Add
// that keeps the package's namespace, options, parameters and axes.
func (m *Manager) Update(ctx context.Context, items []Item, opts AddOptions) ([]AddResult, error) {
	batch := errors.NewBatch("update")
	var results []AddResult
	for _, it := range items {
		res, err := m.updateOne(ctx, it, opts)
		if isCancel(ctx, err) {
			return results, err
		}
		results = append(results, res...)
		batch.RecordItem(it.String(), err)
	}
	return results, m.finish(ctx, batch)
}

func (m *Manager) updateOne(ctx context.Context, it Item, opts AddOptions) ([]AddResult, error) {
	ref, err := m.plc(it)
	if err != nil {
		return nil, err
	}
	i := ref.Plc.Package(it.Package)
	if i < 0 {
		return nil, errors.New(errors.ErrCodePackageNotFound, "%s is not a package of %s", it.Package.Name, ref.Plc.Name)
	}

	next := ref.Plc.Packages[i]
	next.Version = it.Package.Version
	if it.Package.Branch != "" {
		next.Branch = it.Package.Branch
	}
	if it.Package.Target != "" {
		next.Target = it.Package.Target
	}
	if it.Package.Configuration != "" {
		next.Configuration = it.Package.Configuration
	}

	// Resolve before removing so a failed lookup leaves the entry intact.
	if _, err := m.resolvePackage(ctx, next); err != nil {
		return nil, err
	}
	prev := ref.Plc.Packages[i]
	if err := m.removeOne(ctx, it, RemoveOptions{}); err != nil {
		return nil, err
	}
	results, err := m.addOne(ctx, Item{Project: ref.Project, Plc: ref.Plc.Name, Package: next}, opts)
	if err != nil && ref.Plc.Package(prev) < 0 {
		ref.Plc.Upsert(prev)
	}
	return results, err
}

// UpdateFramework moves every package of a PLC's framework group to
// version, or to the latest version of the group's first package when
// version is empty.
func (m *Manager) UpdateFramework(ctx context.Context, project, plc, key, version string, opts AddOptions) ([]AddResult, error) {
	ref, ok := m.manifest.FindPlc(project, plc)
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "plc %q not found in manifest", plc)
	}
	fw := ref.Plc.Frameworks[key]
	if fw == nil || len(fw.References) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "plc %s has no framework %q", plc, key)
	}

	if version == "" {
		first := config.Package{Name: fw.References[0]}
		if i := ref.Plc.Package(first); i >= 0 {
			first = ref.Plc.Packages[i]
			first.Version = ""
		}
		latest, err := m.resolvePackage(ctx, first)
		if err != nil {
			return nil, err
		}
		version = latest.version.Version
	}

	var items []Item
	for _, name := range fw.References {
		pkg := config.Package{Name: name, Version: version}
		if ref.Plc.Package(pkg) < 0 {
			continue
		}
		items = append(items, Item{Project: ref.Project, Plc: ref.Plc.Name, Package: pkg})
	}
	results, err := m.Update(ctx, items, opts)
	if err == nil {
		fw.Version = version
		err = m.save(ctx)
	}
	return results, err
}
