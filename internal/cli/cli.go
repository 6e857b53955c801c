// Package cli implements the plcpack command-line interface.
//
// Every subcommand maps onto one operation of [manager.Manager] or of the
// supporting packages: add, remove, update, restore, download, pull,
// set-version, search, list, push and config edit the manifest and fill
// the artifact cache; login, logout, cache, graph and serve cover sessions,
// local caches, dependency graphs and the catalog server.
//
// # Configuration
//
// User settings live in a TOML file (see [Settings]); the manifest is the
// plcpack.json next to the TwinCAT solution, selected with --manifest.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// travels through context.Context.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "plcpack"

	// defaultSearchLimit caps search results when --limit is not given.
	defaultSearchLimit = 50
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Flags shared by every command.
	configPath   string
	manifestPath string
	noCache      bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "plcpack manages TwinCAT PLC library packages",
		Long:         `plcpack resolves, downloads and pins the library packages of TwinCAT PLC projects against one or more package servers, and keeps a plcpack.json manifest in sync with the projects.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "settings file (default: "+filepath.Join("$XDG_CONFIG_HOME", appName, settingsFile)+")")
	flags.StringVarP(&c.manifestPath, "manifest", "m", "", "manifest file or directory (default: ./plcpack.json)")
	flags.BoolVar(&c.noCache, "no-cache", false, "bypass the HTTP response cache")

	// Manifest operations
	root.AddCommand(c.addCommand())
	root.AddCommand(c.removeCommand())
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.setVersionCommand())
	root.AddCommand(c.restoreCommand())
	root.AddCommand(c.downloadCommand())
	root.AddCommand(c.pullCommand())
	root.AddCommand(c.pushCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.configCommand())

	// Sources, caches and the catalog server
	root.AddCommand(c.loginCommand())
	root.AddCommand(c.logoutCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/plcpack/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the settings directory using XDG standard (~/.config/plcpack/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// libraryDir is the artifact cache below dir.
func libraryDir(dir string) string { return filepath.Join(dir, "libraries") }

// httpDir is the HTTP response cache below dir.
func httpDir(dir string) string { return filepath.Join(dir, "http") }
