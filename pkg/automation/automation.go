// Package automation is the boundary to a live engineering environment
// that can add, install and remove library references in an open
// solution.
//
// plcpack never inspects a live project itself; every "is this already
// present" question goes through a [Surface]. [Headless] is the surface
// used when no environment is attached: queries answer "not present",
// edits are no-ops, and operations that need the environment fail with a
// HEADLESS error.
package automation

import (
	"context"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// Item is a reference to install into a PLC of the open solution.
type Item struct {
	Project   string
	Plc       string
	Library   protocol.PlcLibrary
	Namespace string
	Version   *protocol.PackageVersion
}

// Surface is a live installation environment.
type Surface interface {
	// Live reports whether a solution is attached.
	Live() bool
	SolutionPath() string

	IsInstalled(ctx context.Context, item Item) (bool, error)
	Add(ctx context.Context, item Item) error
	Remove(ctx context.Context, item Item, uninstall bool) error
	// Install registers the library file from cachePath with the
	// environment's library repository.
	Install(ctx context.Context, item Item, cachePath string) error
	Uninstall(ctx context.Context, item Item) error
	// ResolveEffectiveVersion returns the version the environment would
	// pick for an unpinned reference.
	ResolveEffectiveVersion(ctx context.Context, project, plc string, lib protocol.PlcLibrary) (string, error)
	SaveAll(ctx context.Context) error
}

// Headless is a [Surface] for runs without an attached environment.
type Headless struct{}

var _ Surface = Headless{}

func (Headless) Live() bool           { return false }
func (Headless) SolutionPath() string { return "" }

func (Headless) IsInstalled(context.Context, Item) (bool, error) { return false, nil }
func (Headless) Add(context.Context, Item) error                 { return nil }
func (Headless) Remove(context.Context, Item, bool) error        { return nil }
func (Headless) SaveAll(context.Context) error                   { return nil }

func (Headless) Install(_ context.Context, item Item, _ string) error {
	return errors.New(errors.ErrCodeHeadless, "cannot install %s without an engineering environment", item.Library.Name)
}

func (Headless) Uninstall(_ context.Context, item Item) error {
	return errors.New(errors.ErrCodeHeadless, "cannot uninstall %s without an engineering environment", item.Library.Name)
}

func (Headless) ResolveEffectiveVersion(_ context.Context, _, _ string, lib protocol.PlcLibrary) (string, error) {
	return "", errors.New(errors.ErrCodeHeadless, "cannot resolve effective version of %s without an engineering environment", lib.Name)
}
