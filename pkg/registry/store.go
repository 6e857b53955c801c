package registry

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// Store persists published packages.
//
// Versions returned by Versions and Put carry metadata only; the artifact
// is fetched separately with Binary. Name and distributor lookups are
// case-insensitive.
type Store interface {
	// Put stores v together with v.Binary and v.LicenseBinary and returns
	// it with PackageID and PackageVersionID assigned. Publishing the same
	// version on the same axes twice fails with ErrCodeConflict.
	Put(ctx context.Context, v *protocol.PackageVersion) (*protocol.PackageVersion, error)
	// Versions lists every version of name. An empty distributor matches
	// all distributors.
	Versions(ctx context.Context, name, distributor string) ([]*protocol.PackageVersion, error)
	// Version returns the version with the given id, or ErrCodeNotFound.
	Version(ctx context.Context, id int) (*protocol.PackageVersion, error)
	// Binary returns the artifact of version id and counts the download.
	Binary(ctx context.Context, id int) ([]byte, error)
	// Packages lists one catalog item per package whose name, display name
	// or description contains term, ordered by name.
	Packages(ctx context.Context, term string) ([]protocol.CatalogItem, error)
	Close(ctx context.Context) error
}

// Open returns the store for dsn: a mongodb:// or mongodb+srv:// URI
// selects MongoDB, anything else is a SQLite database file.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return NewMongoStore(ctx, dsn, "")
	case dsn == "":
		return nil, errors.New(errors.ErrCodeInvalidInput, "no registry store configured")
	default:
		return NewSQLStore(strings.TrimPrefix(dsn, "sqlite://"))
	}
}

// validate checks a version before it is stored and fills default axes.
func validate(v *protocol.PackageVersion) error {
	if err := errors.ValidatePackageName(v.Name); err != nil {
		return err
	}
	if err := errors.ValidateVersion(v.Version); err != nil {
		return err
	}
	if v.DistributorName == "" {
		return errors.New(errors.ErrCodeInvalidPackage, "%s has no distributor", v.Name)
	}
	if len(v.Binary) == 0 {
		return errors.New(errors.ErrCodeArtifactMissing, "%s %s has no binary", v.Name, v.Version)
	}
	v.Branch, v.Target, v.Configuration = v.Axes()
	return nil
}

func duplicate(v *protocol.PackageVersion) error {
	return errors.New(errors.ErrCodeConflict, "%s %s is already published on %s/%s/%s", v.Name, v.Version, v.Branch, v.Target, v.Configuration)
}

// dependency is the stored form of a dependency descriptor.
type dependency struct {
	Name          string `json:"name" bson:"name"`
	Version       string `json:"version,omitempty" bson:"version,omitempty"`
	Distributor   string `json:"distributor,omitempty" bson:"distributor,omitempty"`
	Branch        string `json:"branch,omitempty" bson:"branch,omitempty"`
	Target        string `json:"target,omitempty" bson:"target,omitempty"`
	Configuration string `json:"configuration,omitempty" bson:"configuration,omitempty"`
}

func toDependencies(deps []protocol.PackageVersion) []dependency {
	out := make([]dependency, 0, len(deps))
	for _, d := range deps {
		out = append(out, dependency{
			Name:          d.Name,
			Version:       d.Version,
			Distributor:   d.DistributorName,
			Branch:        d.Branch,
			Target:        d.Target,
			Configuration: d.Configuration,
		})
	}
	return out
}

func fromDependencies(deps []dependency) []protocol.PackageVersion {
	if len(deps) == 0 {
		return nil
	}
	out := make([]protocol.PackageVersion, 0, len(deps))
	for _, d := range deps {
		out = append(out, protocol.PackageVersion{
			Name:            d.Name,
			Version:         d.Version,
			DistributorName: d.Distributor,
			Branch:          d.Branch,
			Target:          d.Target,
			Configuration:   d.Configuration,
		})
	}
	return out
}

// catalog folds per-version rows into one item per package.
type catalog struct {
	items map[int]*protocol.CatalogItem
}

func (c *catalog) add(v *protocol.PackageVersion, displayName, description, iconURL string, downloads int, created time.Time) {
	if c.items == nil {
		c.items = map[int]*protocol.CatalogItem{}
	}
	it, ok := c.items[v.PackageID]
	if !ok {
		it = &protocol.CatalogItem{
			Name:            v.Name,
			PackageID:       v.PackageID,
			DistributorName: v.DistributorName,
			Created:         created,
		}
		c.items[v.PackageID] = it
	}
	it.DisplayName = firstNonEmpty(displayName, it.DisplayName)
	it.Description = firstNonEmpty(description, it.Description)
	it.IconURL = firstNonEmpty(iconURL, it.IconURL)
	it.Downloads += downloads
	if created.Before(it.Created) {
		it.Created = created
	}
	if created.After(it.Modified) {
		it.Modified = created
	}
}

func (c *catalog) sorted() []protocol.CatalogItem {
	out := make([]protocol.CatalogItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, *it)
	}
	sortItems(out)
	return out
}

func matches(term string, fields ...string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
