package registry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// packageRow is one (name, distributor) pair.
type packageRow struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null;uniqueIndex:idx_package"`
	NameKey     string `gorm:"not null;index"`
	Distributor string `gorm:"not null;uniqueIndex:idx_package"`
	DisplayName string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (packageRow) TableName() string { return "packages" }

// versionRow is one published artifact of a package.
type versionRow struct {
	ID            uint   `gorm:"primaryKey"`
	PackageID     uint   `gorm:"not null;uniqueIndex:idx_version"`
	Version       string `gorm:"not null;uniqueIndex:idx_version"`
	Branch        string `gorm:"not null;uniqueIndex:idx_version"`
	Target        string `gorm:"not null;uniqueIndex:idx_version"`
	Configuration string `gorm:"not null;uniqueIndex:idx_version"`
	Compiled      bool   `gorm:"not null;default:false;uniqueIndex:idx_version"`
	Title         string
	Authors       string
	License       string
	Notes         string `gorm:"type:text"`
	ProjectURL    string
	Sha256        string `gorm:"type:varchar(64)"`
	Dependencies  string `gorm:"type:text"` // JSON array of dependency
	Downloads     int    `gorm:"not null;default:0"`
	CreatedAt     time.Time

	Package packageRow `gorm:"foreignKey:PackageID"`
}

func (versionRow) TableName() string { return "versions" }

// blobRow keeps artifacts out of metadata queries.
type blobRow struct {
	VersionID uint `gorm:"primaryKey"`
	Binary    []byte
	License   []byte
}

func (blobRow) TableName() string { return "blobs" }

// SQLStore is a [Store] in a SQLite database.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens (or creates) the SQLite database at path and migrates
// its schema. ":memory:" gives a private in-memory database.
func NewSQLStore(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open registry database %s", path)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty database.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(&packageRow{}, &versionRow{}, &blobRow{}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "migrate registry schema")
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) Put(ctx context.Context, v *protocol.PackageVersion) (*protocol.PackageVersion, error) {
	if err := validate(v); err != nil {
		return nil, err
	}
	deps, err := json.Marshal(toDependencies(v.Dependencies))
	if err != nil {
		return nil, err
	}

	var row versionRow
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pkg packageRow
		err := tx.Where("name_key = ? AND lower(distributor) = ?", strings.ToLower(v.Name), strings.ToLower(v.DistributorName)).
			First(&pkg).Error
		switch {
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			pkg = packageRow{
				Name:        v.Name,
				NameKey:     strings.ToLower(v.Name),
				Distributor: v.DistributorName,
				DisplayName: firstNonEmpty(v.DisplayName, v.Title),
				Description: v.Description,
			}
			if err := tx.Create(&pkg).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			updates := map[string]any{}
			if d := firstNonEmpty(v.DisplayName, v.Title); d != "" {
				updates["display_name"] = d
			}
			if v.Description != "" {
				updates["description"] = v.Description
			}
			if len(updates) > 0 {
				if err := tx.Model(&pkg).Updates(updates).Error; err != nil {
					return err
				}
			}
		}

		var count int64
		err = tx.Model(&versionRow{}).
			Where("package_id = ? AND version = ? AND branch = ? AND target = ? AND configuration = ? AND compiled = ?",
				pkg.ID, v.Version, v.Branch, v.Target, v.Configuration, v.Compiled).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return duplicate(v)
		}

		row = versionRow{
			PackageID:     pkg.ID,
			Version:       v.Version,
			Branch:        v.Branch,
			Target:        v.Target,
			Configuration: v.Configuration,
			Compiled:      v.Compiled,
			Title:         v.Title,
			Authors:       v.Authors,
			License:       v.License,
			Notes:         v.Notes,
			ProjectURL:    v.ProjectURL,
			Sha256:        v.BinarySha256,
			Dependencies:  string(deps),
			Package:       pkg,
		}
		if err := tx.Omit("Package").Create(&row).Error; err != nil {
			return err
		}
		return tx.Create(&blobRow{VersionID: row.ID, Binary: v.Binary, License: v.LicenseBinary}).Error
	})
	if errors.Is(err, errors.ErrCodeConflict) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "store %s %s", v.Name, v.Version)
	}
	return row.version(), nil
}

func (s *SQLStore) Versions(ctx context.Context, name, distributor string) ([]*protocol.PackageVersion, error) {
	q := s.db.WithContext(ctx).Joins("Package").Where(`"Package"."name_key" = ?`, strings.ToLower(name))
	if distributor != "" {
		q = q.Where(`lower("Package"."distributor") = ?`, strings.ToLower(distributor))
	}
	var rows []versionRow
	if err := q.Order("versions.id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list versions of %s", name)
	}
	out := make([]*protocol.PackageVersion, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].version())
	}
	return out, nil
}

func (s *SQLStore) Version(ctx context.Context, id int) (*protocol.PackageVersion, error) {
	var row versionRow
	err := s.db.WithContext(ctx).Joins("Package").First(&row, "versions.id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrCodeNotFound, "no version with id %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "get version %d", id)
	}
	return row.version(), nil
}

func (s *SQLStore) Binary(ctx context.Context, id int) ([]byte, error) {
	var blob blobRow
	err := s.db.WithContext(ctx).First(&blob, "version_id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrCodeNotFound, "no artifact for version %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "get artifact %d", id)
	}
	err = s.db.WithContext(ctx).Model(&versionRow{}).Where("id = ?", id).
		UpdateColumn("downloads", gorm.Expr("downloads + ?", 1)).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "count download of %d", id)
	}
	return blob.Binary, nil
}

func (s *SQLStore) Packages(ctx context.Context, term string) ([]protocol.CatalogItem, error) {
	q := s.db.WithContext(ctx).Joins("Package")
	if term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where(`"Package"."name_key" LIKE ? OR lower("Package"."display_name") LIKE ? OR lower("Package"."description") LIKE ?`, like, like, like)
	}
	var rows []versionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "search packages")
	}
	var c catalog
	for i := range rows {
		r := &rows[i]
		c.add(r.version(), r.Package.DisplayName, r.Package.Description, "", r.Downloads, r.CreatedAt)
	}
	return c.sorted(), nil
}

func (r *versionRow) version() *protocol.PackageVersion {
	v := &protocol.PackageVersion{
		PackageID:        int(r.PackageID),
		PackageVersionID: int(r.ID),
		Name:             r.Package.Name,
		DistributorName:  r.Package.Distributor,
		DisplayName:      r.Package.DisplayName,
		Description:      r.Package.Description,
		Title:            r.Title,
		Authors:          r.Authors,
		Version:          r.Version,
		Branch:           r.Branch,
		Target:           r.Target,
		Configuration:    r.Configuration,
		Compiled:         r.Compiled,
		License:          r.License,
		Notes:            r.Notes,
		ProjectURL:       r.ProjectURL,
		BinarySha256:     r.Sha256,
	}
	var deps []dependency
	if r.Dependencies != "" && json.Unmarshal([]byte(r.Dependencies), &deps) == nil {
		v.Dependencies = fromDependencies(deps)
	}
	return v
}
