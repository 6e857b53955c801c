package manager

import (
	"context"
	"strings"

	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
)

// DownloadOptions configures the bulk operations.
type DownloadOptions struct {
	Project             string // empty selects every project
	Plc                 string // empty selects every PLC
	ForceDownload       bool
	IncludeDependencies bool
}

// Report summarizes a bulk operation.
type Report struct {
	Downloaded int      // artifacts transferred
	Cached     int      // artifacts already in the cache
	Provided   []string // packages skipped because the manifest builds them
	Missing    []string // packages no server could deliver (warned, not failed)
}

type bulkMode struct {
	op           string
	skipProvided bool
	warnMissing  bool
	install      bool
}

var (
	modeDownload = bulkMode{op: "download"}
	modeRestore  = bulkMode{op: "restore", skipProvided: true, install: true}
	modePull     = bulkMode{op: "pull", skipProvided: true, warnMissing: true}
)

// Download fetches every package of the selected PLCs into the cache.
// Every unresolvable package fails the batch.
func (m *Manager) Download(ctx context.Context, opts DownloadOptions) (*Report, error) {
	return m.bulk(ctx, opts, modeDownload)
}

// Restore is Download for a build: packages the manifest itself produces
// are skipped, and the fetched packages are installed into the live
// environment when one is attached.
func (m *Manager) Restore(ctx context.Context, opts DownloadOptions) (*Report, error) {
	return m.bulk(ctx, opts, modeRestore)
}

// Pull fetches what it can: provided packages are skipped and packages no
// server can deliver are only reported in Report.Missing.
func (m *Manager) Pull(ctx context.Context, opts DownloadOptions) (*Report, error) {
	return m.bulk(ctx, opts, modePull)
}

func (m *Manager) bulk(ctx context.Context, opts DownloadOptions, mode bulkMode) (*Report, error) {
	report := &Report{}
	batch := errors.NewBatch(mode.op)
	seen := map[string]bool{}

	for ref := range m.manifest.Plcs() {
		if !selected(ref, opts) {
			continue
		}
		for _, pkg := range ref.Plc.Packages {
			if mode.skipProvided && m.manifest.Provides(pkg.Name) {
				report.Provided = append(report.Provided, pkg.Name)
				continue
			}
			err := m.fetchPackage(ctx, ref, pkg, opts, mode, report, seen)
			if isCancel(ctx, err) {
				return report, err
			}
			if err != nil && mode.warnMissing && isMissing(err) {
				m.logger.Warn("package unavailable", "plc", ref.Plc.Name, "package", pkg.Name, "err", errors.UserMessage(err))
				report.Missing = append(report.Missing, pkg.Name)
				err = nil
			}
			batch.RecordItem(ref.Plc.Name+": "+pkg.Library().String(), err)
		}
	}

	if mode.install && m.surface.Live() {
		if err := m.surface.SaveAll(ctx); err != nil {
			batch.Record(err)
		}
	}
	return report, batch.Err()
}

func (m *Manager) fetchPackage(ctx context.Context, ref config.PlcRef, pkg config.Package, opts DownloadOptions, mode bulkMode, report *Report, seen map[string]bool) error {
	root, err := m.resolvePackage(ctx, pkg)
	if err != nil {
		return err
	}
	nodes, err := m.closure(ctx, root, opts.IncludeDependencies)
	if err != nil {
		return err
	}

	var failed error
	for i, n := range nodes {
		if mode.skipProvided && m.manifest.Provides(n.version.Name) {
			continue
		}
		key := n.version.Key()
		if !seen[key] {
			seen[key] = true
			downloaded, err := m.download(ctx, n, opts.ForceDownload)
			if err != nil {
				if isCancel(ctx, err) {
					return err
				}
				failed = errors.Join(failed, err)
				continue
			}
			if downloaded {
				report.Downloaded++
			} else {
				report.Cached++
			}
		}
		if mode.install && i == 0 {
			if err := m.install(ctx, ref, pkg, n.version); err != nil {
				failed = errors.Join(failed, err)
			}
		}
	}
	return failed
}

func selected(ref config.PlcRef, opts DownloadOptions) bool {
	if opts.Project != "" && !strings.EqualFold(ref.Project, opts.Project) {
		return false
	}
	return opts.Plc == "" || strings.EqualFold(ref.Plc.Name, opts.Plc)
}

// isMissing reports whether err means the artifact does not exist, as
// opposed to a transfer or integrity failure.
func isMissing(err error) bool {
	return errors.Is(err, errors.ErrCodePackageNotFound) ||
		errors.Is(err, errors.ErrCodeArtifactMissing) ||
		errors.Is(err, errors.ErrCodeNotFound)
}
