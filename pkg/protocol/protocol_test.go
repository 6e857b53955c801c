package protocol

import (
	"testing"
)

func TestPlcLibraryEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b PlcLibrary
		want bool
	}{
		{"same", PlcLibrary{Name: "ZCore", Version: "1.0.0.0"}, PlcLibrary{Name: "ZCore", Version: "1.0.0.0"}, true},
		{"case", PlcLibrary{Name: "zcore", Version: "1.0.0.0"}, PlcLibrary{Name: "ZCore", Version: "1.0.0.0"}, true},
		{"distributor ignored", PlcLibrary{Name: "ZCore", Version: "1.0.0.0", DistributorName: "Zeugwerk GmbH"}, PlcLibrary{Name: "ZCore", Version: "1.0.0.0"}, true},
		{"version differs", PlcLibrary{Name: "ZCore", Version: "1.0.0.0"}, PlcLibrary{Name: "ZCore", Version: "1.0.0.1"}, false},
		{"latest vs pinned", PlcLibrary{Name: "ZCore"}, PlcLibrary{Name: "ZCore", Version: "1.0.0.0"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlcLibraryString(t *testing.T) {
	if got := (PlcLibrary{Name: "Tc2_Standard"}).String(); got != "Tc2_Standard, *" {
		t.Errorf("String() = %q", got)
	}
	lib := PlcLibrary{Name: "Tc2_Standard", Version: "3.3.3.0", DistributorName: "Beckhoff Automation GmbH"}
	if got := lib.String(); got != "Tc2_Standard, 3.3.3.0 (Beckhoff Automation GmbH)" {
		t.Errorf("String() = %q", got)
	}
}

func TestPackageVersion(t *testing.T) {
	var nilVersion *PackageVersion
	if nilVersion.Valid() {
		t.Error("nil version should not be valid")
	}
	if (&PackageVersion{Name: "ZCore"}).Valid() {
		t.Error("version without distributor should not be valid")
	}

	v := &PackageVersion{Name: "ZCore", DistributorName: "Zeugwerk GmbH", Version: "1.0.0.0"}
	if !v.Valid() {
		t.Error("version should be valid")
	}
	if v.HasPayload() {
		t.Error("version without binary or url has no payload")
	}
	other := &PackageVersion{Name: "zcore", DistributorName: "ZEUGWERK GMBH", Version: "1.0.0.0"}
	if v.Key() != other.Key() {
		t.Error("Key() should be case-insensitive")
	}

	branch, target, configuration := v.Axes()
	if branch != DefaultBranch || target != DefaultTarget || configuration != DefaultConfiguration {
		t.Errorf("Axes() = %s/%s/%s", branch, target, configuration)
	}
}

func TestParseChecksumPolicy(t *testing.T) {
	for _, p := range []ChecksumPolicy{ChecksumThrow, ChecksumIgnoreMismatch, ChecksumIgnoreMismatchAndFallback} {
		got, err := ParseChecksumPolicy(p.String())
		if err != nil || got != p {
			t.Errorf("ParseChecksumPolicy(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParseChecksumPolicy("bogus"); err == nil {
		t.Error("ParseChecksumPolicy should reject unknown names")
	}
}
