package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/plcpack/pkg/errors"
)

// Load reads the manifest at path. A relative path is resolved against
// root; modules of a composite manifest are resolved against the directory
// of the manifest that lists them.
func Load(root, path string) (*Manifest, error) {
	if path == "" {
		path = DefaultFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return load(path, map[string]bool{})
}

func load(path string, loading map[string]bool) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "manifest path %s", path)
	}
	if loading[abs] {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "manifest %s includes itself", path)
	}
	loading[abs] = true
	defer delete(loading, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "manifest %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read manifest")
	}

	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "%s", path)
	}
	m.path = abs
	m.root = filepath.Dir(abs)

	for _, mod := range m.Modules {
		modPath := filepath.FromSlash(mod)
		if !filepath.IsAbs(modPath) {
			modPath = filepath.Join(m.root, modPath)
		}
		if info, err := os.Stat(modPath); err == nil && info.IsDir() {
			modPath = filepath.Join(modPath, DefaultFile)
		}
		sub, err := load(modPath, loading)
		if err != nil {
			return nil, err
		}
		m.modules = append(m.modules, sub)
	}
	return m, nil
}

// Parse decodes and validates a manifest document. The result has no path;
// use SetPath before Save.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "invalid manifest JSON")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// New returns an empty manifest that will be saved to path.
func New(path string) *Manifest {
	m := &Manifest{FileVersion: FileVersion}
	m.SetPath(path)
	return m
}

// SetPath sets the file Save writes to and the root relative paths
// resolve against.
func (m *Manifest) SetPath(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	m.path = path
	m.root = filepath.Dir(path)
}

// Validate checks the manifest structure. Modules are validated when they
// are loaded.
func (m *Manifest) Validate() error {
	if m.FileVersion != FileVersion {
		return errors.New(errors.ErrCodeInvalidManifest, "unsupported fileversion %d (want %d)", m.FileVersion, FileVersion)
	}
	if len(m.Modules) > 0 && (m.Solution != "" || len(m.Projects) > 0) {
		return errors.New(errors.ErrCodeInvalidManifest, "a manifest with modules must not declare a solution or projects")
	}
	for _, mod := range m.Modules {
		if strings.TrimSpace(mod) == "" {
			return errors.New(errors.ErrCodeInvalidManifest, "empty module path")
		}
	}

	for _, p := range m.Projects {
		if p.Name == "" {
			return errors.New(errors.ErrCodeInvalidManifest, "project without name")
		}
		for _, plc := range p.Plcs {
			if err := plc.validate(); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidManifest, err, "project %s", p.Name)
			}
		}
	}
	return nil
}

func (p *Plc) validate() error {
	if p.Name == "" {
		return errors.New(errors.ErrCodeInvalidManifest, "plc without name")
	}
	if p.Type != "" && !p.Type.Valid() {
		return errors.New(errors.ErrCodeInvalidManifest, "plc %s: unknown type %q", p.Name, p.Type)
	}
	if err := errors.ValidateVersion(p.Version); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "plc %s", p.Name)
	}
	if p.FilePath != "" {
		if err := errors.ValidatePath(strings.ReplaceAll(p.FilePath, `\`, "/")); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidManifest, err, "plc %s", p.Name)
		}
	}

	for i, pkg := range p.Packages {
		if err := errors.ValidatePackageName(pkg.Name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidManifest, err, "plc %s", p.Name)
		}
		if err := errors.ValidateVersion(pkg.Version); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidManifest, err, "plc %s, package %s", p.Name, pkg.Name)
		}
		for _, other := range p.Packages[:i] {
			if other.Same(pkg) {
				return errors.New(errors.ErrCodeInvalidManifest, "plc %s lists package %s twice", p.Name, pkg.Name)
			}
		}
	}
	for key, fw := range p.Frameworks {
		if fw == nil {
			return errors.New(errors.ErrCodeInvalidManifest, "plc %s: empty framework %q", p.Name, key)
		}
		if err := errors.ValidateVersion(fw.Version); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidManifest, err, "plc %s, framework %s", p.Name, key)
		}
	}
	return nil
}

// Save writes the manifest and all loaded modules back to their files.
func (m *Manifest) Save() error {
	if m.path == "" {
		return errors.New(errors.ErrCodeInvalidPath, "manifest has no path")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode manifest")
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create manifest directory")
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write manifest")
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write manifest")
	}

	for _, sub := range m.modules {
		if err := sub.Save(); err != nil {
			return err
		}
	}
	return nil
}

// PlcFile returns the absolute path of a PLC's project file.
func (r PlcRef) PlcFile() string {
	if r.Plc.FilePath == "" {
		return ""
	}
	p := filepath.FromSlash(strings.ReplaceAll(r.Plc.FilePath, `\`, "/"))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.Manifest.root, p)
}
