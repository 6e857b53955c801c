// Package deps computes the dependency closure of a resolved package.
//
// Servers deliver a version together with the tree of versions it depends
// on. That tree is not guaranteed to be acyclic, and shared dependencies
// appear once per parent. [Walk] visits it iteratively in pre-order
// (parents before children, siblings in declared order) and keeps a
// visited set keyed by name, distributor and version, so every distinct
// version appears once in [Closure.Nodes]. A dependency that points back at
// one of its own ancestors is recorded in [Closure.Cycles] and not
// followed.
//
// The walk is bounded by [Options.MaxDepth] and [Options.MaxNodes]; a tree
// exceeding either fails with a DEPENDENCY_DEPTH error.
//
// [ToDOT] and [RenderSVG] draw the closure with Graphviz.
package deps
