package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

func upload(name, version, branch string) *protocol.PackageVersion {
	return &protocol.PackageVersion{
		Name:            name,
		Version:         version,
		DistributorName: "Acme",
		Branch:          branch,
		Binary:          []byte(name + " " + version + " " + branch),
	}
}

// testStore runs the behaviour every Store shares.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	v := upload("Core", "1.0.0.0", "")
	v.DisplayName = "Acme Core"
	v.Dependencies = []protocol.PackageVersion{{Name: "Utils", Version: "0.1.0.0", DistributorName: "Acme"}}
	v.LicenseBinary = []byte("MIT")
	stored, err := s.Put(ctx, v)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if stored.PackageVersionID == 0 || stored.PackageID == 0 {
		t.Fatalf("ids not assigned: %+v", stored)
	}
	if b, tg, c := stored.Branch, stored.Target, stored.Configuration; b != "main" || tg != "TC3.1" || c != "Release" {
		t.Errorf("axes = %s/%s/%s, want defaults", b, tg, c)
	}

	if _, err := s.Put(ctx, upload("Core", "1.0.0.0", "main")); !errors.Is(err, errors.ErrCodeConflict) {
		t.Errorf("duplicate Put err = %v, want CONFLICT", err)
	}
	next, err := s.Put(ctx, upload("core", "1.1.0.0", "release/1"))
	if err != nil {
		t.Fatal(err)
	}
	if next.PackageID != stored.PackageID {
		t.Errorf("same package got ids %d and %d", stored.PackageID, next.PackageID)
	}
	if _, err := s.Put(ctx, &protocol.PackageVersion{Name: "Core", Version: "2.0.0.0", Binary: []byte("x")}); !errors.Is(err, errors.ErrCodeInvalidPackage) {
		t.Errorf("Put without distributor err = %v", err)
	}
	if _, err := s.Put(ctx, upload("Other", "1.0.0.0", "")); err != nil {
		t.Fatal(err)
	}

	versions, err := s.Versions(ctx, "CORE", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("Versions = %d, want 2", len(versions))
	}
	if versions[0].DisplayName != "Acme Core" || len(versions[0].Dependencies) != 1 || versions[0].Dependencies[0].Name != "Utils" {
		t.Errorf("metadata = %+v", versions[0])
	}
	if len(versions[0].Binary) != 0 {
		t.Error("Versions must not load artifacts")
	}
	if vs, _ := s.Versions(ctx, "Core", "Other Corp"); len(vs) != 0 {
		t.Errorf("distributor filter returned %d versions", len(vs))
	}

	got, err := s.Version(ctx, stored.PackageVersionID)
	if err != nil || got.Version != "1.0.0.0" || got.Name != "Core" {
		t.Errorf("Version = %+v, %v", got, err)
	}
	if _, err := s.Version(ctx, 9999); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Version(9999) err = %v", err)
	}

	data, err := s.Binary(ctx, stored.PackageVersionID)
	if err != nil || string(data) != "Core 1.0.0.0 " {
		t.Errorf("Binary = %q, %v", data, err)
	}
	if _, err := s.Binary(ctx, 9999); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Binary(9999) err = %v", err)
	}

	items, err := s.Packages(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Name != "Core" || items[1].Name != "Other" {
		t.Fatalf("Packages = %+v", items)
	}
	if items[0].Downloads != 1 || items[0].DisplayName != "Acme Core" {
		t.Errorf("Core item = %+v", items[0])
	}
	if items, _ := s.Packages(ctx, "acme core"); len(items) != 1 || items[0].Name != "Core" {
		t.Errorf("search by display name = %+v", items)
	}
	if items, _ := s.Packages(ctx, "nothing"); len(items) != 0 {
		t.Errorf("search without hits = %+v", items)
	}
}

func TestSQLStore(t *testing.T) {
	s, err := NewSQLStore(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	testStore(t, s)
}

func TestSQLStore_Memory(t *testing.T) {
	s, err := NewSQLStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(context.Background())
	if _, err := s.Put(context.Background(), upload("Core", "1.0.0.0", "")); err != nil {
		t.Fatal(err)
	}
	if vs, err := s.Versions(context.Background(), "Core", "Acme"); err != nil || len(vs) != 1 {
		t.Errorf("Versions = %v, %v", vs, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, ""); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Open(\"\") err = %v", err)
	}
	s, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "r.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)
	if _, ok := s.(*SQLStore); !ok {
		t.Errorf("Open(sqlite://) = %T", s)
	}
}
