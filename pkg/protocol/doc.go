// Package protocol defines the contract every package server (catalog
// back-end) implements, and the value types exchanged through it.
//
// Core packages ([catalog], [resolve], [manager]) depend only on [Server];
// concrete adapters live under pkg/integrations and are interchangeable.
//
// # Types
//
//   - [PlcLibrary]: a reference to a library (name, optional version,
//     optional distributor, reference options). An empty version means
//     "latest".
//   - [CatalogItem]: a search result, tagged with the server it came from.
//   - [PackageVersion]: a fully resolved artifact with its dependency tree.
//   - [ChecksumPolicy]: how a download reacts to a SHA-256 mismatch.
//
// [catalog]: github.com/matzehuels/plcpack/pkg/catalog
// [resolve]: github.com/matzehuels/plcpack/pkg/resolve
// [manager]: github.com/matzehuels/plcpack/pkg/manager
package protocol
