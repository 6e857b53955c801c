package deps

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
)

// DOTOptions configures [ToDOT].
type DOTOptions struct {
	// Detailed adds branch, target and configuration to node labels.
	Detailed bool
}

// ToDOT converts a closure to Graphviz DOT. Cut cycle edges are drawn
// dashed and red.
func ToDOT(c *Closure, opts DOTOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range c.Nodes {
		attrs := fmt.Sprintf("label=%q", label(n, opts.Detailed))
		if n.Depth == 0 {
			attrs += ", penwidth=2"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", nodeID(n.Version.Key()), attrs)
	}

	buf.WriteString("\n")
	for _, e := range c.Edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", nodeID(e.From), nodeID(e.To))
	}
	for _, e := range c.Cycles {
		fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=red];\n", nodeID(e.From), nodeID(e.To))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func label(n *Node, detailed bool) string {
	v := n.Version
	s := v.Name + "\n" + versionOrLatest(v.Version)
	if detailed {
		branch, target, configuration := v.Axes()
		s += fmt.Sprintf("\n%s\n%s %s %s", v.DistributorName, branch, target, configuration)
	}
	return s
}

// nodeID makes a closure key readable: "name/distributor/version".
func nodeID(key string) string {
	return strings.ReplaceAll(key, "\x00", "/")
}

func versionOrLatest(v string) string {
	if v == "" {
		return "latest"
	}
	return v
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.SVG)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.PNG)
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
