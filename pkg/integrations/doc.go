// Package integrations provides the package server adapters.
//
// # Overview
//
// Each adapter implements [protocol.Server] for one kind of feed and
// lives in its own subpackage:
//
//   - [rest]: the plcpack REST catalog (also served by plcpack serve)
//   - [nuget]: NuGet v3 feeds carrying libraries packed as .nupkg
//   - [github]: GitHub releases with library assets
//
// # Shared Infrastructure
//
// The [Client] type provides shared HTTP functionality used by all
// adapters: response caching through a scoped [cache.Cache], retries of
// transient failures, default headers such as session tokens, and
// [observability] HTTP hooks.
//
// Adapters return (nil, nil) from Resolve and GetVersion when the server
// does not know a library, and reserve errors for transport and payload
// failures.
//
// [rest]: github.com/matzehuels/plcpack/pkg/integrations/rest
// [nuget]: github.com/matzehuels/plcpack/pkg/integrations/nuget
// [github]: github.com/matzehuels/plcpack/pkg/integrations/github
// [protocol.Server]: github.com/matzehuels/plcpack/pkg/protocol.Server
// [cache.Cache]: github.com/matzehuels/plcpack/pkg/cache.Cache
// [observability]: github.com/matzehuels/plcpack/pkg/observability
package integrations
