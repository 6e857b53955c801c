package resolve

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/protocol/protocoltest"
)

func quietLogger() *log.Logger { return log.New(io.Discard) }

func version(name, ver, dist string) protocol.PackageVersion {
	return protocol.PackageVersion{Name: name, Version: ver, DistributorName: dist, Branch: "main", Target: "TC3.1", Configuration: "Release"}
}

func TestResolve(t *testing.T) {
	lib := protocol.PlcLibrary{Name: "Tc3_JsonXml"}

	tests := []struct {
		name            string
		setup           func() []protocol.Server
		wantFound       bool
		wantServer      string
		wantUnreachable bool
	}{
		{
			name: "first match wins",
			setup: func() []protocol.Server {
				a := protocoltest.New("a")
				a.Versions = []protocol.PackageVersion{version("Tc3_JsonXml", "1.0.0.0", "Beckhoff")}
				b := protocoltest.New("b")
				b.Versions = []protocol.PackageVersion{version("Tc3_JsonXml", "2.0.0.0", "Beckhoff")}
				return []protocol.Server{a, b}
			},
			wantFound:  true,
			wantServer: "a",
		},
		{
			name: "failing server swallowed",
			setup: func() []protocol.Server {
				a := protocoltest.New("a")
				a.ResolveErr = errors.New("502 bad gateway")
				b := protocoltest.New("b")
				b.Versions = []protocol.PackageVersion{version("Tc3_JsonXml", "2.0.0.0", "Beckhoff")}
				return []protocol.Server{a, b}
			},
			wantFound:  true,
			wantServer: "b",
		},
		{
			name: "invalid answer is a miss",
			setup: func() []protocol.Server {
				a := protocoltest.New("a")
				a.Versions = []protocol.PackageVersion{{Name: "Tc3_JsonXml", Version: "1.0.0.0"}}
				return []protocol.Server{a}
			},
		},
		{
			name: "disconnected server skipped",
			setup: func() []protocol.Server {
				a := protocoltest.New("a")
				a.Versions = []protocol.PackageVersion{version("Tc3_JsonXml", "1.0.0.0", "Beckhoff")}
				a.SetConnected(false)
				return []protocol.Server{a}
			},
		},
		{
			name: "all servers failing",
			setup: func() []protocol.Server {
				a := protocoltest.New("a")
				a.ResolveErr = errors.New("timeout")
				b := protocoltest.New("b")
				b.ResolveErr = errors.New("timeout")
				return []protocol.Server{a, b}
			},
			wantUnreachable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.setup(), quietLogger())
			res, err := r.Resolve(context.Background(), lib, Preferences{})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Found() != tt.wantFound {
				t.Fatalf("Found() = %v, want %v", res.Found(), tt.wantFound)
			}
			if tt.wantFound && res.Server.Name() != tt.wantServer {
				t.Errorf("server = %s, want %s", res.Server.Name(), tt.wantServer)
			}
			if res.Unreachable() != tt.wantUnreachable {
				t.Errorf("Unreachable() = %v, want %v", res.Unreachable(), tt.wantUnreachable)
			}
		})
	}
}

func TestResolve_StopsAtFirstMatch(t *testing.T) {
	a := protocoltest.New("a")
	a.Versions = []protocol.PackageVersion{version("Tc3_Module", "1.0.0.0", "Beckhoff")}
	b := protocoltest.New("b")

	r := New([]protocol.Server{a, b}, quietLogger())
	if _, err := r.Resolve(context.Background(), protocol.PlcLibrary{Name: "Tc3_Module"}, Preferences{}); err != nil {
		t.Fatal(err)
	}
	if len(b.ResolveCalls) != 0 {
		t.Errorf("second server asked %d times after a match", len(b.ResolveCalls))
	}
}

func TestResolve_CancellationPropagates(t *testing.T) {
	a := protocoltest.New("a")
	a.ResolveErr = context.Canceled
	b := protocoltest.New("b")
	b.Versions = []protocol.PackageVersion{version("Tc3_Module", "1.0.0.0", "Beckhoff")}

	r := New([]protocol.Server{a, b}, quietLogger())
	_, err := r.Resolve(context.Background(), protocol.PlcLibrary{Name: "Tc3_Module"}, Preferences{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestVersion(t *testing.T) {
	a := protocoltest.New("a")
	a.Versions = []protocol.PackageVersion{
		version("Tc3_Module", "1.0.0.0", "Beckhoff"),
		version("Tc3_Module", "2.0.0.0", "Beckhoff"),
	}
	r := New([]protocol.Server{a}, quietLogger())

	res, err := r.Version(context.Background(), protocol.PlcLibrary{Name: "Tc3_Module", Version: "1.0.0.0"}, Preferences{Branch: "main"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found() || res.Version.Version != "1.0.0.0" {
		t.Fatalf("got %+v, want 1.0.0.0", res.Version)
	}

	res, err = r.Version(context.Background(), protocol.PlcLibrary{Name: "Tc3_Module", Version: "9.9.9.9"}, Preferences{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Found() {
		t.Errorf("unexpected match %v", res.Version)
	}
}
