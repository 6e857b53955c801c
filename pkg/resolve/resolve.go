// Package resolve finds the package server that publishes a library
// reference.
//
// Servers are tried in their configured order and the first one that
// returns a valid version wins; results are never merged across servers.
// A server that fails is treated as "no match" so that one broken source
// does not block the others, but its error is kept on the [Result] so a
// caller can tell an unknown package from a package whose sources were all
// unreachable.
package resolve

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/observability"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// Preferences are the preferred artifact axes. Empty fields leave the
// choice to the server.
type Preferences struct {
	Branch        string
	Target        string
	Configuration string
}

// Result is the outcome of resolving one reference.
type Result struct {
	Version *protocol.PackageVersion
	Server  protocol.Server
	// Errors holds the failures of servers that could not answer, keyed by
	// server name.
	Errors map[string]error
	// Tried is the number of connected servers asked.
	Tried int
}

// Found reports whether a server resolved the reference.
func (r Result) Found() bool { return r.Version.Valid() }

// Unreachable reports whether nothing was found and every server asked
// failed instead of answering. Such a miss says nothing about whether the
// package exists.
func (r Result) Unreachable() bool {
	return !r.Found() && r.Tried > 0 && len(r.Errors) == r.Tried
}

// Resolver resolves references against an ordered list of servers.
type Resolver struct {
	servers []protocol.Server
	logger  *log.Logger
}

// New returns a Resolver that asks servers in order.
func New(servers []protocol.Server, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{servers: servers, logger: logger}
}

// Servers returns the servers in resolution order.
func (r *Resolver) Servers() []protocol.Server { return r.servers }

// Resolve asks each connected server for lib. The returned error is only
// ever a context error; a reference that no server knows is reported
// through Result.Found.
func (r *Resolver) Resolve(ctx context.Context, lib protocol.PlcLibrary, prefs Preferences) (Result, error) {
	res := Result{}
	for _, srv := range r.servers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !srv.Connected() {
			continue
		}
		res.Tried++

		v, err := srv.Resolve(ctx, lib, prefs.Target, prefs.Configuration, prefs.Branch)
		if err != nil {
			if isCancel(err) {
				return res, err
			}
			r.logger.Debug("resolve failed", "server", srv.Name(), "package", lib.Name, "err", err)
			if res.Errors == nil {
				res.Errors = make(map[string]error)
			}
			res.Errors[srv.Name()] = err
			continue
		}
		if v.Valid() {
			res.Version = v
			res.Server = srv
			observability.Packages().OnResolve(ctx, srv.Name(), lib.Name, v.Version)
			return res, nil
		}
	}
	observability.Packages().OnResolveMiss(ctx, lib.Name, res.Unreachable())
	return res, nil
}

// Version is like Resolve but asks for an exact version on exact axes
// using GetVersion.
func (r *Resolver) Version(ctx context.Context, lib protocol.PlcLibrary, prefs Preferences) (Result, error) {
	res := Result{}
	for _, srv := range r.servers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !srv.Connected() {
			continue
		}
		res.Tried++

		v, err := srv.GetVersion(ctx, lib, prefs.Branch, prefs.Configuration, prefs.Target)
		if err != nil {
			if isCancel(err) {
				return res, err
			}
			if res.Errors == nil {
				res.Errors = make(map[string]error)
			}
			res.Errors[srv.Name()] = err
			continue
		}
		if v.Valid() {
			res.Version = v
			res.Server = srv
			return res, nil
		}
	}
	return res, nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
