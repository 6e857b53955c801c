package protocol

import (
	"fmt"
	"strings"
	"time"
)

// Default artifact axes used when neither the caller nor the server names one.
const (
	DefaultBranch        = "main"
	DefaultTarget        = "TC3.1"
	DefaultConfiguration = "Release"
)

// ReferenceOptions are the per-reference flags a PLC project carries.
// The zero value is the default: a non-optional placeholder reference.
type ReferenceOptions struct {
	Optional                       bool `json:"optional,omitempty"`
	HideWhenReferencedAsDependency bool `json:"hide-when-referenced-as-dependency,omitempty"`
	PublishSymbolsInContainer      bool `json:"publish-all,omitempty"`
	QualifiedOnly                  bool `json:"qualified-only,omitempty"`
	LibraryReference               bool `json:"library-reference,omitempty"`
}

// PlcLibrary identifies a library reference. An empty Version means
// "latest" (an unpinned reference).
type PlcLibrary struct {
	Name            string            `json:"name"`
	Version         string            `json:"version,omitempty"`
	DistributorName string            `json:"distributor-name,omitempty"`
	Options         *ReferenceOptions `json:"options,omitempty"`
}

// Equal reports whether two references name the same library version.
// Distributors are not compared so that legacy entries without a
// distributor still match.
func (l PlcLibrary) Equal(o PlcLibrary) bool {
	return strings.EqualFold(l.Name, o.Name) && l.Version == o.Version
}

// String formats the reference the way the IDE displays placeholders.
func (l PlcLibrary) String() string {
	v := l.Version
	if v == "" {
		v = "*"
	}
	if l.DistributorName == "" {
		return fmt.Sprintf("%s, %s", l.Name, v)
	}
	return fmt.Sprintf("%s, %s (%s)", l.Name, v, l.DistributorName)
}

// CatalogItem is a single search result. Server is the package server that
// produced it; it is never serialized.
type CatalogItem struct {
	Name            string    `json:"name"`
	PackageID       int       `json:"package-id,omitempty"`
	DistributorName string    `json:"distributor-name,omitempty"`
	DisplayName     string    `json:"display-name,omitempty"`
	Description     string    `json:"description,omitempty"`
	IconURL         string    `json:"icon-url,omitempty"`
	Downloads       int       `json:"downloads,omitempty"`
	Created         time.Time `json:"created,omitzero"`
	Modified        time.Time `json:"modified,omitzero"`
	Server          Server    `json:"-"`
}

// PackageVersion is a fully resolved artifact. Either Binary is set inline
// or BinaryDownloadURL points at it; BinarySha256 is the hex SHA-256 of the
// artifact when the server publishes one.
//
// Dependencies form a tree as delivered by the server. Servers do not
// guarantee it is acyclic.
type PackageVersion struct {
	PackageID         int              `json:"package-id,omitempty"`
	PackageVersionID  int              `json:"package-version-id,omitempty"`
	Name              string           `json:"name"`
	Title             string           `json:"title,omitempty"`
	DistributorName   string           `json:"distributor-name"`
	DisplayName       string           `json:"display-name,omitempty"`
	Description       string           `json:"description,omitempty"`
	Authors           string           `json:"authors,omitempty"`
	Version           string           `json:"version"`
	Branch            string           `json:"branch,omitempty"`
	Target            string           `json:"target,omitempty"`
	Configuration     string           `json:"configuration,omitempty"`
	Compiled          bool             `json:"compiled,omitempty"`
	License           string           `json:"license,omitempty"`
	LicenseBinary     []byte           `json:"license-binary,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	ProjectURL        string           `json:"project-url,omitempty"`
	Binary            []byte           `json:"binary,omitempty"`
	BinaryDownloadURL string           `json:"binary-download-url,omitempty"`
	BinarySha256      string           `json:"binary-sha256,omitempty"`
	Dependencies      []PackageVersion `json:"dependencies,omitempty"`
}

// Valid reports whether the server actually resolved something: both the
// name and the distributor must be populated.
func (v *PackageVersion) Valid() bool {
	return v != nil && v.Name != "" && v.DistributorName != ""
}

// HasPayload reports whether the version carries enough information to be
// downloaded without another round trip.
func (v *PackageVersion) HasPayload() bool {
	return len(v.Binary) > 0 || v.BinaryDownloadURL != ""
}

// Library returns the reference that pins exactly this version.
func (v *PackageVersion) Library() PlcLibrary {
	return PlcLibrary{Name: v.Name, Version: v.Version, DistributorName: v.DistributorName}
}

// Key identifies a version for de-duplication: name, distributor and
// version, case-insensitively.
func (v *PackageVersion) Key() string {
	return strings.ToLower(v.Name + "\x00" + v.DistributorName + "\x00" + v.Version)
}

// String formats the version for log output.
func (v *PackageVersion) String() string {
	return fmt.Sprintf("%s %s (%s/%s/%s)", v.Name, v.Version, v.Branch, v.Target, v.Configuration)
}

// Axes returns branch, target and configuration with defaults filled in.
func (v *PackageVersion) Axes() (branch, target, configuration string) {
	return orDefault(v.Branch, DefaultBranch), orDefault(v.Target, DefaultTarget), orDefault(v.Configuration, DefaultConfiguration)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
