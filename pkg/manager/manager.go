// Package manager implements the package operations of a plcpack
// manifest: adding, removing and updating packages, pinning versions, and
// downloading the dependency closure into the artifact cache.
//
// Every operation works on the items it was given one after another and
// attempts all of them; failures are collected into one
// [errors.BatchError] returned at the end. Operations that change the
// manifest save it before returning, also when some items failed.
//
// All network access goes through the configured package servers in their
// registration order, and live project edits go through an
// [automation.Surface].
package manager

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/artifact"
	"github.com/matzehuels/plcpack/pkg/automation"
	"github.com/matzehuels/plcpack/pkg/catalog"
	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/deps"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/observability"
	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/resolve"
)

// Options configures a Manager.
type Options struct {
	CacheRoot string                  // Artifact cache directory (required)
	Policy    protocol.ChecksumPolicy // Checksum mismatch handling (default: throw)
	Framework config.FrameworkSettings
	Deps      deps.Options
	Surface   automation.Surface // Live environment (default: headless)
	Logger    *log.Logger
}

// Manager runs package operations against one manifest.
type Manager struct {
	manifest  *config.Manifest
	servers   []protocol.Server
	resolver  *resolve.Resolver
	catalog   *catalog.Federator
	store     *artifact.Store
	surface   automation.Surface
	framework config.FrameworkSettings
	policy    protocol.ChecksumPolicy
	depOpts   deps.Options
	logger    *log.Logger
}

// New returns a Manager for manifest using servers in the given order.
func New(manifest *config.Manifest, servers []protocol.Server, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	surface := opts.Surface
	if surface == nil {
		surface = automation.Headless{}
	}
	depOpts := opts.Deps
	if depOpts.Logger == nil {
		depOpts.Logger = logger
	}
	return &Manager{
		manifest:  manifest,
		servers:   servers,
		resolver:  resolve.New(servers, logger),
		catalog:   catalog.New(servers, logger),
		store:     artifact.NewStore(opts.CacheRoot, logger),
		surface:   surface,
		framework: opts.Framework.WithDefaults(),
		policy:    opts.Policy,
		depOpts:   depOpts,
		logger:    logger,
	}
}

// Manifest returns the manifest the manager edits.
func (m *Manager) Manifest() *config.Manifest { return m.manifest }

// Catalog returns the search federator over the manager's servers. Its
// de-duplication state lives as long as the manager.
func (m *Manager) Catalog() *catalog.Federator { return m.catalog }

// Resolver returns the version resolver over the manager's servers.
func (m *Manager) Resolver() *resolve.Resolver { return m.resolver }

// Store returns the artifact cache.
func (m *Manager) Store() *artifact.Store { return m.store }

// Reconciler returns a reconciler sharing the manager's resolver and
// framework settings.
func (m *Manager) Reconciler() *config.Reconciler {
	return config.NewReconciler(m.resolver, m.framework, m.logger)
}

// InvalidateCaches drops cached server responses on every server.
func (m *Manager) InvalidateCaches() {
	for _, s := range m.servers {
		s.InvalidateCache()
	}
}

// Item addresses a package of one PLC.
type Item struct {
	Project string // empty matches any project
	Plc     string
	Package config.Package
}

func (it Item) String() string {
	return it.Plc + ": " + it.Package.Library().String()
}

func (m *Manager) plc(it Item) (config.PlcRef, error) {
	ref, ok := m.manifest.FindPlc(it.Project, it.Plc)
	if !ok {
		return config.PlcRef{}, errors.New(errors.ErrCodeNotFound, "plc %q not found in manifest", it.Plc)
	}
	return ref, nil
}

// resolved is a version together with the server that published it.
type resolved struct {
	version *protocol.PackageVersion
	server  protocol.Server
}

// resolvePackage resolves a manifest entry on its recorded axes. A pinned
// entry resolves exactly that version.
func (m *Manager) resolvePackage(ctx context.Context, pkg config.Package) (resolved, error) {
	prefs := resolve.Preferences{Branch: pkg.Branch, Target: pkg.Target, Configuration: pkg.Configuration}
	res, err := m.resolver.Resolve(ctx, pkg.Library(), prefs)
	if err != nil {
		return resolved{}, err
	}
	if !res.Found() {
		if res.Unreachable() {
			return resolved{}, errors.New(errors.ErrCodeNetwork, "no package server reachable for %s", pkg.Library())
		}
		return resolved{}, errors.New(errors.ErrCodePackageNotFound, "%s not found on any package server", pkg.Library())
	}
	return resolved{version: res.Version, server: res.Server}, nil
}

// closure returns the versions to download for root, root first. owner
// records which server delivered each version.
func (m *Manager) closure(ctx context.Context, root resolved, withDeps bool) ([]resolved, error) {
	if !withDeps {
		return []resolved{root}, nil
	}

	owner := map[string]protocol.Server{root.version.Key(): root.server}
	c, err := deps.Walk(ctx, root.version, m.fetcher(owner), m.depOpts)
	if err != nil {
		return nil, err
	}
	out := make([]resolved, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		srv, ok := owner[n.Version.Key()]
		if !ok {
			srv = root.server
		}
		out = append(out, resolved{version: n.Version, server: srv})
	}
	return out, nil
}

// fetcher completes dependency descriptors through the resolver and
// records in owner which server delivered each version.
func (m *Manager) fetcher(owner map[string]protocol.Server) deps.Fetcher {
	return deps.FetchFunc(func(ctx context.Context, lib protocol.PlcLibrary, branch, configuration, target string) (*protocol.PackageVersion, error) {
		prefs := resolve.Preferences{Branch: branch, Target: target, Configuration: configuration}
		res, err := m.resolver.Resolve(ctx, lib, prefs)
		if err != nil || !res.Found() {
			return nil, err
		}
		if owner != nil {
			owner[res.Version.Key()] = res.Server
		}
		return res.Version, nil
	})
}

// Graph resolves pkg and walks its whole dependency closure without
// downloading anything.
func (m *Manager) Graph(ctx context.Context, pkg config.Package) (*deps.Closure, error) {
	if err := errors.ValidatePackageName(pkg.Name); err != nil {
		return nil, err
	}
	root, err := m.resolvePackage(ctx, pkg)
	if err != nil {
		return nil, err
	}
	return deps.Walk(ctx, root.version, m.fetcher(nil), m.depOpts)
}

// download transfers r into the cache unless it is already there. It
// reports whether a transfer happened.
func (m *Manager) download(ctx context.Context, r resolved, force bool) (bool, error) {
	v := r.version
	hooks := observability.Packages()
	if !force && m.store.Exists(v) {
		m.logger.Debug("artifact cached", "package", v.Name, "version", v.Version)
		hooks.OnDownloadSkipped(ctx, v.Name, v.Version)
		return false, nil
	}

	m.logger.Info("downloading", "package", v.Name, "version", v.Version, "server", r.server.Name())
	hooks.OnDownloadStart(ctx, v.Name, v.Version)
	start := time.Now()
	err := r.server.Download(ctx, v, m.policy, m.store.Root())
	hooks.OnDownloadComplete(ctx, v.Name, v.Version, time.Since(start), err)
	if err != nil {
		return false, errors.Wrap(errors.GetCode(err), err, "download %s %s", v.Name, v.Version)
	}
	return true, nil
}

// install hands a cached artifact to the live environment and references
// it from the PLC.
func (m *Manager) install(ctx context.Context, ref config.PlcRef, pkg config.Package, v *protocol.PackageVersion) error {
	if !m.surface.Live() {
		return nil
	}
	item := automation.Item{Project: ref.Project, Plc: ref.Plc.Name, Library: pkg.Library(), Namespace: pkg.Namespace, Version: v}
	installed, err := m.surface.IsInstalled(ctx, item)
	if err != nil {
		return err
	}
	if !installed {
		if !m.store.Exists(v) {
			return errors.New(errors.ErrCodeArtifactMissing, "%s %s is not in the cache", v.Name, v.Version)
		}
		if err := m.surface.Install(ctx, item, m.store.Path(v)); err != nil {
			return err
		}
	}
	return m.surface.Add(ctx, item)
}

func (m *Manager) save(ctx context.Context) error {
	if err := m.manifest.Save(); err != nil {
		return err
	}
	if m.surface.Live() {
		return m.surface.SaveAll(ctx)
	}
	return nil
}

// finish saves the manifest and combines a save failure with the batch
// outcome.
func (m *Manager) finish(ctx context.Context, batch *errors.Batch) error {
	if err := m.save(ctx); err != nil {
		if batchErr := batch.Err(); batchErr != nil {
			m.logger.Error("saving manifest failed", "err", err)
			return batchErr
		}
		return err
	}
	return batch.Err()
}

func isCancel(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}

func preferencesOf(v *protocol.PackageVersion) resolve.Preferences {
	return resolve.Preferences{Branch: v.Branch, Target: v.Target, Configuration: v.Configuration}
}
