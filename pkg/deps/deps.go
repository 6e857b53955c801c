package deps

import (
	"cmp"
	"context"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

const (
	DefaultMaxDepth = 50   // Default maximum dependency depth
	DefaultMaxNodes = 5000 // Default maximum distinct versions
)

// Options configures the closure walk.
type Options struct {
	MaxDepth int         // Maximum depth below the root (default: 50)
	MaxNodes int         // Maximum distinct versions (default: 5000)
	Logger   *log.Logger // Cycle and fetch warnings (default: log.Default())
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return opts
}

// Fetcher completes a dependency descriptor that arrived without a
// downloadable payload. It returns nil when no server knows the version.
type Fetcher interface {
	Fetch(ctx context.Context, lib protocol.PlcLibrary, branch, configuration, target string) (*protocol.PackageVersion, error)
}

// FetchFunc adapts a function to [Fetcher].
type FetchFunc func(ctx context.Context, lib protocol.PlcLibrary, branch, configuration, target string) (*protocol.PackageVersion, error)

// Fetch calls f.
func (f FetchFunc) Fetch(ctx context.Context, lib protocol.PlcLibrary, branch, configuration, target string) (*protocol.PackageVersion, error) {
	return f(ctx, lib, branch, configuration, target)
}

// Node is one distinct version of the closure.
type Node struct {
	Version *protocol.PackageVersion
	Depth   int
	// Parent is the key of the node that first referenced this one; empty
	// for the root.
	Parent string
}

// Edge is a dependency from one node key to another.
type Edge struct {
	From string
	To   string
}

// Closure is the result of [Walk].
type Closure struct {
	Nodes  []*Node // pre-order, root first
	Edges  []Edge
	Cycles []Edge // back edges that were cut
	index  map[string]*Node
}

// Root returns the first node.
func (c *Closure) Root() *Node {
	if len(c.Nodes) == 0 {
		return nil
	}
	return c.Nodes[0]
}

// Node returns the node with the given key.
func (c *Closure) Node(key string) (*Node, bool) {
	n, ok := c.index[key]
	return n, ok
}

// Versions returns the node versions in walk order.
func (c *Closure) Versions() []*protocol.PackageVersion {
	out := make([]*protocol.PackageVersion, len(c.Nodes))
	for i, n := range c.Nodes {
		out[i] = n.Version
	}
	return out
}

type frame struct {
	v      *protocol.PackageVersion
	depth  int
	parent *protocol.PackageVersion
	path   []string // keys of the ancestors, root first
}

// Walk visits root and its dependency tree. fetch may be nil, in which
// case descriptors are taken as delivered. Cancellation is checked before
// every node.
func Walk(ctx context.Context, root *protocol.PackageVersion, fetch Fetcher, opts Options) (*Closure, error) {
	opts = opts.WithDefaults()
	if !root.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidPackage, "closure root must name a package and distributor")
	}

	c := &Closure{index: make(map[string]*Node)}
	stack := []frame{{v: root}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		v, err := complete(ctx, f, fetch, opts.Logger)
		if err != nil {
			return nil, err
		}
		key := v.Key()

		parentKey := ""
		if len(f.path) > 0 {
			parentKey = f.path[len(f.path)-1]
		}
		if slices.Contains(f.path, key) {
			opts.Logger.Warn("dependency cycle cut", "package", v.Name, "version", v.Version, "via", f.parent.Name)
			c.Cycles = append(c.Cycles, Edge{From: parentKey, To: key})
			continue
		}
		if parentKey != "" {
			c.Edges = append(c.Edges, Edge{From: parentKey, To: key})
		}
		if _, seen := c.index[key]; seen {
			continue
		}

		if len(c.Nodes) >= opts.MaxNodes {
			return nil, errors.New(errors.ErrCodeDependencyDepth, "dependency tree of %s exceeds %d packages", root.Name, opts.MaxNodes)
		}
		n := &Node{Version: v, Depth: f.depth, Parent: parentKey}
		c.Nodes = append(c.Nodes, n)
		c.index[key] = n

		if len(v.Dependencies) == 0 {
			continue
		}
		if f.depth+1 > opts.MaxDepth {
			return nil, errors.New(errors.ErrCodeDependencyDepth, "dependency tree of %s is deeper than %d levels", root.Name, opts.MaxDepth)
		}
		path := append(slices.Clip(f.path), key)
		for i := len(v.Dependencies) - 1; i >= 0; i-- {
			stack = append(stack, frame{v: &v.Dependencies[i], depth: f.depth + 1, parent: v, path: path})
		}
	}
	return c, nil
}

// complete returns the frame's version, fetched from the servers when the
// descriptor cannot be downloaded as is. Missing axes are inherited from
// the parent.
func complete(ctx context.Context, f frame, fetch Fetcher, logger *log.Logger) (*protocol.PackageVersion, error) {
	v := f.v
	if fetch == nil || (v.HasPayload() && v.Version != "") {
		return v, nil
	}

	branch, target, configuration := v.Branch, v.Target, v.Configuration
	if f.parent != nil {
		pb, pt, pc := f.parent.Axes()
		branch = cmp.Or(branch, pb)
		target = cmp.Or(target, pt)
		configuration = cmp.Or(configuration, pc)
	}
	got, err := fetch.Fetch(ctx, v.Library(), branch, configuration, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Warn("dependency lookup failed", "package", v.Name, "version", v.Version, "err", err)
		return v, nil
	}
	if !got.Valid() {
		logger.Warn("dependency not published", "package", v.Name, "version", v.Version)
		return v, nil
	}
	if len(got.Dependencies) == 0 && len(v.Dependencies) > 0 {
		merged := *got
		merged.Dependencies = v.Dependencies
		got = &merged
	}
	return got, nil
}
