package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	plcerrors "github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
}

func constant(data []byte, calls *int) FetchFunc {
	return func(context.Context) ([]byte, error) {
		*calls++
		return data, nil
	}
}

func TestPathLayout(t *testing.T) {
	s := NewStore("/cache", nil)

	v := &protocol.PackageVersion{Name: "ZCore", Version: "1.2.3.4", Target: "TC3.1"}
	if got, want := s.Path(v), filepath.Join("/cache", "TC3.1", "ZCore_1.2.3.4.library"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	v.Compiled = true
	if got, want := s.Path(v), filepath.Join("/cache", "TC3.1", "ZCore_1.2.3.4.compiled-library"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if got, want := s.LicensePath(v), filepath.Join("/cache", "TC3.1", "ZCore_1.2.3.4.license"); got != want {
		t.Errorf("LicensePath() = %q, want %q", got, want)
	}

	v.Target = ""
	if got, want := s.Path(v), filepath.Join("/cache", protocol.DefaultTarget, "ZCore_1.2.3.4.compiled-library"); got != want {
		t.Errorf("Path() with default target = %q, want %q", got, want)
	}
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	good := []byte("library bytes")
	bad := []byte("tampered bytes")

	tests := []struct {
		name          string
		policy        protocol.ChecksumPolicy
		primary       []byte
		fallback      []byte
		wantErr       bool
		wantData      []byte
		wantFallbacks int
	}{
		{"match", protocol.ChecksumThrow, good, nil, false, good, 0},
		{"throw", protocol.ChecksumThrow, bad, nil, true, nil, 0},
		{"ignore", protocol.ChecksumIgnoreMismatch, bad, good, false, bad, 0},
		{"fallback fixes", protocol.ChecksumIgnoreMismatchAndFallback, bad, good, false, good, 1},
		{"fallback still bad", protocol.ChecksumIgnoreMismatchAndFallback, bad, bad, false, bad, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(t.TempDir(), quietLogger())
			v := &protocol.PackageVersion{
				Name: "ZCore", Version: "1.0.0.0", Target: "TC3.1",
				BinarySha256: Checksum(good),
			}

			var primaryCalls, fallbackCalls int
			var fallback FetchFunc
			if tt.fallback != nil {
				fallback = constant(tt.fallback, &fallbackCalls)
			}

			path, err := s.Save(ctx, v, tt.policy, constant(tt.primary, &primaryCalls), fallback)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Save() error = %v, wantErr %v", err, tt.wantErr)
			}
			if fallbackCalls != tt.wantFallbacks {
				t.Errorf("fallback calls = %d, want %d", fallbackCalls, tt.wantFallbacks)
			}
			if tt.wantErr {
				if !plcerrors.Is(err, plcerrors.ErrCodeChecksumMismatch) {
					t.Errorf("error code = %v, want CHECKSUM_MISMATCH", plcerrors.GetCode(err))
				}
				if s.Exists(v) {
					t.Error("rejected artifact must not be cached")
				}
				return
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read cached artifact: %v", err)
			}
			if string(data) != string(tt.wantData) {
				t.Errorf("cached data = %q, want %q", data, tt.wantData)
			}
			if !s.Exists(v) {
				t.Error("Exists() = false after Save")
			}
		})
	}
}

func TestSave_WritesLicense(t *testing.T) {
	s := NewStore(t.TempDir(), quietLogger())
	v := &protocol.PackageVersion{Name: "ZCore", Version: "1.0.0.0", LicenseBinary: []byte("MIT")}
	calls := 0
	if _, err := s.Save(context.Background(), v, protocol.ChecksumThrow, constant([]byte("x"), &calls), nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	data, err := os.ReadFile(s.LicensePath(v))
	if err != nil || string(data) != "MIT" {
		t.Errorf("license = %q, %v", data, err)
	}
}

func TestSave_Rejects(t *testing.T) {
	s := NewStore(t.TempDir(), quietLogger())
	calls := 0
	fetch := constant([]byte("x"), &calls)

	if _, err := s.Save(context.Background(), &protocol.PackageVersion{Name: "ZCore"}, protocol.ChecksumThrow, fetch, nil); err == nil {
		t.Error("Save() without version should fail")
	}
	if _, err := s.Save(context.Background(), &protocol.PackageVersion{Name: "../evil", Version: "1.0.0.0"}, protocol.ChecksumThrow, fetch, nil); err == nil {
		t.Error("Save() with traversal name should fail")
	}
	if calls != 0 {
		t.Errorf("rejected saves must not transfer, got %d calls", calls)
	}

	boom := errors.New("boom")
	_, err := s.Save(context.Background(), &protocol.PackageVersion{Name: "ZCore", Version: "1.0.0.0"}, protocol.ChecksumThrow,
		func(context.Context) ([]byte, error) { return nil, boom }, nil)
	if !errors.Is(err, boom) {
		t.Errorf("Save() error = %v, want transfer error", err)
	}
}

func TestOpenAndRemove(t *testing.T) {
	s := NewStore(t.TempDir(), quietLogger())
	v := &protocol.PackageVersion{Name: "ZCore", Version: "1.0.0.0"}

	if _, err := s.Open(v); !plcerrors.Is(err, plcerrors.ErrCodeArtifactMissing) {
		t.Errorf("Open() on empty cache error = %v, want ARTIFACT_MISSING", err)
	}
	if err := s.Remove(v); err != nil {
		t.Errorf("Remove() of missing artifact: %v", err)
	}

	calls := 0
	if _, err := s.Save(context.Background(), v, protocol.ChecksumThrow, constant([]byte("x"), &calls), nil); err != nil {
		t.Fatal(err)
	}
	if data, err := s.Open(v); err != nil || string(data) != "x" {
		t.Errorf("Open() = %q, %v", data, err)
	}
	if err := s.Remove(v); err != nil {
		t.Fatal(err)
	}
	if s.Exists(v) {
		t.Error("artifact still cached after Remove")
	}
}
