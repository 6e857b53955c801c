// Package artifact manages the on-disk cache of downloaded library binaries.
//
// Artifacts are laid out as
//
//	<root>/<target>/<name>_<version>.library
//	<root>/<target>/<name>_<version>.compiled-library
//
// Presence of a file means a previous download completed: files are written
// to a temporary name and renamed into place. The directory is shared by
// concurrent plcpack processes without locking; two processes downloading
// the same artifact both write and the last rename wins.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// File extensions of cached artifacts.
const (
	ExtLibrary         = ".library"
	ExtCompiledLibrary = ".compiled-library"
	ExtLicense         = ".license"
)

// FetchFunc transfers the artifact bytes.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Store is an artifact cache rooted at a directory.
type Store struct {
	root   string
	logger *log.Logger
}

// NewStore returns a store rooted at root. A nil logger uses log.Default().
func NewStore(root string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{root: root, logger: logger}
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

// Path returns where the artifact of v lives.
func (s *Store) Path(v *protocol.PackageVersion) string {
	_, target, _ := v.Axes()
	return PathFor(s.root, v.Name, v.Version, target, v.Compiled)
}

// PathFor builds the cache path for the given artifact identity.
func PathFor(root, name, version, target string, compiled bool) string {
	ext := ExtLibrary
	if compiled {
		ext = ExtCompiledLibrary
	}
	return filepath.Join(root, target, fmt.Sprintf("%s_%s%s", name, version, ext))
}

// LicensePath returns where the license of v is stored.
func (s *Store) LicensePath(v *protocol.PackageVersion) string {
	p := s.Path(v)
	return strings.TrimSuffix(p, filepath.Ext(p)) + ExtLicense
}

// Exists reports whether the artifact of v is already cached.
func (s *Store) Exists(v *protocol.PackageVersion) bool {
	info, err := os.Stat(s.Path(v))
	return err == nil && !info.IsDir()
}

// Open reads the cached artifact of v. A missing file yields an error coded
// [errors.ErrCodeArtifactMissing].
func (s *Store) Open(v *protocol.PackageVersion) ([]byte, error) {
	data, err := os.ReadFile(s.Path(v))
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeArtifactMissing, "%s is not in the cache (%s)", v, s.Path(v))
	}
	return data, err
}

// Remove deletes the cached artifact of v. Removing a missing artifact is
// not an error.
func (s *Store) Remove(v *protocol.PackageVersion) error {
	err := os.Remove(s.Path(v))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Save transfers the artifact of v with primary, verifies it against
// v.BinarySha256 according to policy and writes it into the cache.
// fallback is the alternate transfer path used by
// [protocol.ChecksumIgnoreMismatchAndFallback]; it may be nil.
func (s *Store) Save(ctx context.Context, v *protocol.PackageVersion, policy protocol.ChecksumPolicy, primary, fallback FetchFunc) (string, error) {
	if v.Version == "" {
		return "", errors.New(errors.ErrCodeInvalidVersion, "cannot cache %s without a version", v.Name)
	}
	if err := errors.ValidatePackageName(v.Name); err != nil {
		return "", err
	}

	data, err := primary(ctx)
	if err != nil {
		return "", err
	}

	if err := Verify(data, v.BinarySha256); err != nil {
		switch policy {
		case protocol.ChecksumIgnoreMismatch:
			s.logger.Warn("checksum mismatch ignored", "package", v.Name, "version", v.Version)
		case protocol.ChecksumIgnoreMismatchAndFallback:
			if fallback == nil {
				s.logger.Warn("checksum mismatch, no fallback transfer available", "package", v.Name, "version", v.Version)
				break
			}
			s.logger.Warn("checksum mismatch, retrying via fallback", "package", v.Name, "version", v.Version)
			alt, ferr := fallback(ctx)
			if ferr != nil {
				return "", errors.Wrap(errors.ErrCodeChecksumMismatch, ferr, "fallback transfer of %s failed", v)
			}
			if verr := Verify(alt, v.BinarySha256); verr != nil {
				s.logger.Warn("checksum mismatch after fallback ignored", "package", v.Name, "version", v.Version)
			}
			data = alt
		default:
			return "", err
		}
	}

	path := s.Path(v)
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	if len(v.LicenseBinary) > 0 {
		if err := writeFile(s.LicensePath(v), v.LicenseBinary); err != nil {
			return "", err
		}
	}
	return path, nil
}

// Verify compares data with a hex SHA-256 digest. An empty digest means
// the server publishes none and always verifies.
func Verify(data []byte, sha string) error {
	if sha == "" {
		return nil
	}
	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if !strings.EqualFold(got, sha) {
		return errors.New(errors.ErrCodeChecksumMismatch, "checksum mismatch: expected %s, got %s", sha, got)
	}
	return nil
}

// Checksum returns the hex SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
