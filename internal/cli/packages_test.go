package cli

import (
	"path/filepath"
	"testing"

	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
)

func TestParsePackageArg(t *testing.T) {
	tests := []struct {
		arg         string
		wantName    string
		wantVersion string
		wantCode    errors.Code
	}{
		{arg: "ZCore", wantName: "ZCore"},
		{arg: "ZCore@1.5.0.12", wantName: "ZCore", wantVersion: "1.5.0.12"},
		{arg: " Struckig@* ", wantName: "Struckig", wantVersion: "*"},
		{arg: "@1.0.0.0", wantCode: errors.ErrCodeInvalidPackage},
		{arg: "../evil", wantCode: errors.ErrCodeInvalidPackage},
		{arg: "ZCore@latest!", wantCode: errors.ErrCodeInvalidVersion},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			pkg, err := parsePackageArg(tt.arg)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("parsePackageArg(%q) error = %v, want %s", tt.arg, err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePackageArg(%q) error: %v", tt.arg, err)
			}
			if pkg.Name != tt.wantName || pkg.Version != tt.wantVersion {
				t.Errorf("got %s@%s, want %s@%s", pkg.Name, pkg.Version, tt.wantName, tt.wantVersion)
			}
		})
	}
}

func testManifest(t *testing.T, projects ...config.Project) *config.Manifest {
	t.Helper()
	m := config.New(filepath.Join(t.TempDir(), config.DefaultFile))
	m.Projects = projects
	return m
}

func TestSelectPlc(t *testing.T) {
	single := testManifest(t, config.Project{Name: "Machine", Plcs: []config.Plc{{Name: "Main"}}})
	ref, err := selectPlc(single, "", "")
	if err != nil {
		t.Fatalf("selectPlc on single PLC: %v", err)
	}
	if ref.Project != "Machine" || ref.Plc.Name != "Main" {
		t.Errorf("selected %s/%s", ref.Project, ref.Plc.Name)
	}

	multi := testManifest(t,
		config.Project{Name: "Machine", Plcs: []config.Plc{{Name: "Main"}, {Name: "Tests"}}},
		config.Project{Name: "Tools", Plcs: []config.Plc{{Name: "Calib"}}},
	)
	if _, err := selectPlc(multi, "", ""); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("ambiguous selection error = %v, want INVALID_INPUT", err)
	}
	ref, err = selectPlc(multi, "tools", "")
	if err != nil || ref.Plc.Name != "Calib" {
		t.Errorf("selectPlc by project = %v, %v", ref.Plc, err)
	}
	ref, err = selectPlc(multi, "", "tests")
	if err != nil || ref.Plc.Name != "Tests" {
		t.Errorf("selectPlc by name = %v, %v", ref.Plc, err)
	}
	if _, err := selectPlc(multi, "", "Nope"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown PLC error = %v, want NOT_FOUND", err)
	}
	if _, err := selectPlc(testManifest(t), "", ""); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("empty manifest error = %v, want NOT_FOUND", err)
	}
}

func TestTargetFlagsItems(t *testing.T) {
	m := testManifest(t, config.Project{Name: "Machine", Plcs: []config.Plc{{Name: "Main"}}})
	f := targetFlags{distributor: "Zeugwerk GmbH", branch: "release/1.x"}
	items, err := f.items(m, []string{"ZCore@1.2.0.0", "ZAux"})
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	for _, it := range items {
		if it.Project != "Machine" || it.Plc != "Main" {
			t.Errorf("item targets %s/%s", it.Project, it.Plc)
		}
		if it.Package.DistributorName != "Zeugwerk GmbH" || it.Package.Branch != "release/1.x" {
			t.Errorf("axes not applied: %+v", it.Package)
		}
	}
	if items[0].Package.Version != "1.2.0.0" || items[1].Package.Version != "" {
		t.Errorf("versions = %q, %q", items[0].Package.Version, items[1].Package.Version)
	}
}
