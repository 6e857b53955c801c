package manager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/matzehuels/plcpack/pkg/artifact"
	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/libmeta"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// PushOptions configures Push.
type PushOptions struct {
	// Dir holds the build output, <name>_<version>.library files.
	Dir           string
	Project       string
	Plc           string
	Branch        string
	Target        string
	Configuration string
	Compiled      bool
	Notes         string
	// SkipDuplicates ignores PLCs whose version is already published.
	SkipDuplicates bool
}

// Push publishes the built library of every selected PLC. Metadata embedded
// in the artifact fills in what the manifest does not declare, and the
// PLC's packages are sent as dependency descriptors.
func (m *Manager) Push(ctx context.Context, pub protocol.Publisher, opts PushOptions) ([]*protocol.PackageVersion, error) {
	batch := errors.NewBatch("push")
	var pushed []*protocol.PackageVersion
	for ref := range m.manifest.Plcs() {
		if !selected(ref, DownloadOptions{Project: opts.Project, Plc: opts.Plc}) {
			continue
		}
		v, err := m.pushOne(ctx, pub, ref, opts)
		if isCancel(ctx, err) {
			return pushed, err
		}
		if v != nil {
			pushed = append(pushed, v)
		}
		batch.RecordItem(ref.Plc.Name, err)
	}
	return pushed, batch.Err()
}

func (m *Manager) pushOne(ctx context.Context, pub protocol.Publisher, ref config.PlcRef, opts PushOptions) (*protocol.PackageVersion, error) {
	plc := ref.Plc
	if plc.Version == "" {
		return nil, errors.New(errors.ErrCodeInvalidVersion, "plc %s has no version", plc.Name)
	}

	v := &protocol.PackageVersion{
		Name:            plc.Name,
		Version:         plc.Version,
		DistributorName: plc.DistributorName,
		Title:           plc.Title,
		Description:     plc.Description,
		Authors:         plc.Authors,
		License:         plc.License,
		Branch:          opts.Branch,
		Target:          opts.Target,
		Configuration:   opts.Configuration,
		Compiled:        opts.Compiled,
		Notes:           opts.Notes,
	}
	v.Branch, v.Target, v.Configuration = v.Axes()

	if opts.SkipDuplicates {
		res, err := m.resolver.Version(ctx, v.Library(), preferencesOf(v))
		if err != nil {
			return nil, err
		}
		if res.Found() {
			m.logger.Info("already published, skipping", "plc", plc.Name, "version", plc.Version)
			return nil, nil
		}
	}

	path := artifact.PathFor(opts.Dir, plc.Name, plc.Version, "", opts.Compiled)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArtifactMissing, err, "build output of %s", plc.Name)
	}
	v.Binary = data
	v.BinarySha256 = artifact.Checksum(data)

	if props, err := libmeta.Decode(data); err == nil {
		info := props.Info()
		v.DistributorName = firstNonEmpty(v.DistributorName, info.Company)
		v.Title = firstNonEmpty(v.Title, info.Title)
		v.Description = firstNonEmpty(v.Description, info.Description)
		v.Authors = firstNonEmpty(v.Authors, info.Author)
	} else {
		m.logger.Debug("no embedded metadata", "plc", plc.Name, "err", err)
	}
	if v.DistributorName == "" {
		return nil, errors.New(errors.ErrCodeInvalidPackage, "plc %s has no distributor", plc.Name)
	}

	if plc.LicenseFile != "" {
		lic := filepath.Join(ref.Manifest.Root(), filepath.FromSlash(plc.LicenseFile))
		data, err := os.ReadFile(lic)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeArtifactMissing, err, "license of %s", plc.Name)
		}
		v.LicenseBinary = data
	}

	for _, pkg := range plc.Packages {
		v.Dependencies = append(v.Dependencies, protocol.PackageVersion{
			Name:            pkg.Name,
			Version:         pkg.Version,
			DistributorName: pkg.DistributorName,
			Branch:          pkg.Branch,
			Target:          pkg.Target,
			Configuration:   pkg.Configuration,
		})
	}

	m.logger.Info("publishing", "plc", plc.Name, "version", plc.Version)
	return pub.Push(ctx, v)
}
