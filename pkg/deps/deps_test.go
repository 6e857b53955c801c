package deps

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	plcerrors "github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

func opts() Options { return Options{Logger: log.New(io.Discard)} }

func pv(name string, deps ...protocol.PackageVersion) protocol.PackageVersion {
	return protocol.PackageVersion{Name: name, Version: "1.0.0.0", DistributorName: "Acme", BinaryDownloadURL: "https://x/" + name, Dependencies: deps}
}

func nodeNames(c *Closure) []string {
	var out []string
	for _, n := range c.Nodes {
		out = append(out, n.Version.Name)
	}
	return out
}

func TestWalk_PreOrderAndDedup(t *testing.T) {
	// A -> B -> D, A -> C -> D
	root := pv("A", pv("B", pv("D")), pv("C", pv("D")))

	c, err := Walk(context.Background(), &root, nil, opts())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if want := []string{"A", "B", "D", "C"}; !slices.Equal(nodeNames(c), want) {
		t.Errorf("nodes = %v, want %v", nodeNames(c), want)
	}
	if len(c.Edges) != 4 {
		t.Errorf("edges = %d, want 4", len(c.Edges))
	}
	d, ok := c.Node(pv("D").Key())
	if !ok || d.Depth != 2 || d.Parent != pv("B").Key() {
		t.Errorf("D = %+v", d)
	}
	if c.Root().Version.Name != "A" || len(c.Cycles) != 0 {
		t.Errorf("root %v cycles %v", c.Root().Version.Name, c.Cycles)
	}
}

func TestWalk_CycleCut(t *testing.T) {
	// A -> B -> A (back edge), B -> C
	root := pv("A", pv("B", pv("A"), pv("C")))

	c, err := Walk(context.Background(), &root, nil, opts())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if want := []string{"A", "B", "C"}; !slices.Equal(nodeNames(c), want) {
		t.Errorf("nodes = %v, want %v", nodeNames(c), want)
	}
	if len(c.Cycles) != 1 || c.Cycles[0] != (Edge{From: pv("B").Key(), To: pv("A").Key()}) {
		t.Errorf("cycles = %v", c.Cycles)
	}
}

func TestWalk_Guards(t *testing.T) {
	chain := pv("L5")
	for _, name := range []string{"L4", "L3", "L2", "L1", "L0"} {
		chain = pv(name, chain)
	}

	o := opts()
	o.MaxDepth = 3
	if _, err := Walk(context.Background(), &chain, nil, o); !plcerrors.Is(err, plcerrors.ErrCodeDependencyDepth) {
		t.Errorf("depth guard: err = %v", err)
	}

	o = opts()
	o.MaxNodes = 4
	if _, err := Walk(context.Background(), &chain, nil, o); !plcerrors.Is(err, plcerrors.ErrCodeDependencyDepth) {
		t.Errorf("node guard: err = %v", err)
	}

	o = opts()
	o.MaxDepth = 5
	if _, err := Walk(context.Background(), &chain, nil, o); err != nil {
		t.Errorf("exact depth: %v", err)
	}
}

func TestWalk_FetchesDescriptors(t *testing.T) {
	root := pv("A", protocol.PackageVersion{Name: "B", Version: "2.0.0.0", DistributorName: "Acme"})
	root.Branch = "release"

	var asked []string
	fetch := FetchFunc(func(ctx context.Context, lib protocol.PlcLibrary, branch, configuration, target string) (*protocol.PackageVersion, error) {
		asked = append(asked, lib.Name+"@"+branch)
		v := pv(lib.Name, pv("C"))
		v.Version = lib.Version
		return &v, nil
	})

	c, err := Walk(context.Background(), &root, fetch, opts())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if want := []string{"B@release"}; !slices.Equal(asked, want) {
		t.Errorf("fetched = %v, want %v", asked, want)
	}
	if want := []string{"A", "B", "C"}; !slices.Equal(nodeNames(c), want) {
		t.Errorf("nodes = %v, want %v", nodeNames(c), want)
	}
	if !c.Nodes[1].Version.HasPayload() {
		t.Error("fetched node has no payload")
	}
}

func TestWalk_FetchFailureKeepsDescriptor(t *testing.T) {
	root := pv("A", protocol.PackageVersion{Name: "B", Version: "2.0.0.0", DistributorName: "Acme"})
	fetch := FetchFunc(func(context.Context, protocol.PlcLibrary, string, string, string) (*protocol.PackageVersion, error) {
		return nil, errors.New("offline")
	})
	c, err := Walk(context.Background(), &root, fetch, opts())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(c.Nodes) != 2 || c.Nodes[1].Version.HasPayload() {
		t.Errorf("nodes = %v", nodeNames(c))
	}
}

func TestWalk_Errors(t *testing.T) {
	if _, err := Walk(context.Background(), &protocol.PackageVersion{Name: "A"}, nil, opts()); !plcerrors.Is(err, plcerrors.ErrCodeInvalidPackage) {
		t.Errorf("invalid root: err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := pv("A")
	if _, err := Walk(ctx, &root, nil, opts()); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: err = %v", err)
	}
}

func TestToDOT(t *testing.T) {
	root := pv("A", pv("B", pv("A")))
	c, err := Walk(context.Background(), &root, nil, opts())
	if err != nil {
		t.Fatal(err)
	}
	dot := ToDOT(c, DOTOptions{Detailed: true})
	for _, want := range []string{"digraph G {", "A\\n1.0.0.0\\nAcme", "style=dashed, color=red", "->"} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}
