// Package pkg provides the libraries behind plcpack, a package manager for
// TwinCAT PLC libraries.
//
// # Overview
//
// plcpack keeps a plcpack.json manifest next to a TwinCAT solution. The
// manifest lists, per PLC, the library packages it depends on. Packages are
// resolved against an ordered list of package servers, downloaded into a
// local artifact cache and pinned in the manifest. The pkg directory is
// organized into four areas:
//
//  1. Domain: [manager], [config], [resolve], [deps], [catalog]
//  2. Formats: [plcproj], [libmeta], [artifact]
//  3. Servers: [protocol], [integrations], [registry]
//  4. Infrastructure: [cache], [session], [errors], [observability], [automation]
//
// # Architecture
//
// A typical add flows through:
//
//	manifest (plcpack.json)
//	         ↓
//	    [resolve] (first server that publishes the library wins)
//	         ↓
//	    [deps] (dependency closure with cycle and depth guards)
//	         ↓
//	    [artifact] (checksum-verified download into the library cache)
//	         ↓
//	    [config] (pinned versions written back)
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/plcpack/pkg/config"
//	    "github.com/matzehuels/plcpack/pkg/integrations/rest"
//	    "github.com/matzehuels/plcpack/pkg/manager"
//	    "github.com/matzehuels/plcpack/pkg/protocol"
//	)
//
//	m, _ := config.Load(".", config.DefaultFile)
//	srv := rest.New("public", "https://zeugwerk.dev/api", rest.Options{})
//	_ = srv.Login(ctx, "", "")
//
//	mgr := manager.New(m, []protocol.Server{srv}, manager.Options{CacheRoot: "libraries"})
//	report, err := mgr.Restore(ctx, manager.DownloadOptions{IncludeDependencies: true})
//
// # Main Packages
//
// [manager] - Add, remove, update, set-version, download, restore, pull and
// push. Batch operations attempt every item and report failures together.
//
// [config] - Manifest load and save, composite manifests, and the
// reconciler that rebuilds package lists from PLC project files.
//
// [resolve] - Finds the first server in configured order that publishes a
// library, telling "not found" apart from "every server failed".
//
// [deps] - Dependency closure walk and Graphviz rendering of the result.
//
// [catalog] - Federated, paginated search over all connected servers.
//
// [plcproj] - Reads .plcproj files and .sln solutions, and parses both
// library reference grammars.
//
// [libmeta] - Decodes the project properties embedded in compiled libraries.
//
// [artifact] - Layout of the library cache and checksum policies.
//
// [protocol] - The contract every package server implements.
//
// [integrations] - Server adapters for the plcpack REST catalog, NuGet v3
// feeds and GitHub releases, on a shared caching HTTP client.
//
// [registry] - A catalog server backed by SQLite or MongoDB.
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test -short ./pkg/...             # Skip container-backed tests
//	go test -run Example ./pkg/...       # Examples only
//
// [manager]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/manager
// [config]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/config
// [resolve]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/resolve
// [deps]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/deps
// [catalog]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/catalog
// [plcproj]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/plcproj
// [libmeta]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/libmeta
// [artifact]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/artifact
// [protocol]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/protocol
// [integrations]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/integrations
// [registry]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/registry
// [cache]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/cache
// [session]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/session
// [errors]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/observability
// [automation]: https://pkg.go.dev/github.com/matzehuels/plcpack/pkg/automation
package pkg
