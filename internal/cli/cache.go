package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/cache"
	"github.com/matzehuels/plcpack/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the library and HTTP response caches",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheRoot is the configured cache directory, or the XDG default.
func (c *CLI) cacheRoot() (string, error) {
	path, err := settingsPath(c.configPath)
	if err != nil {
		return "", err
	}
	s, err := loadSettings(path)
	if err != nil {
		return "", err
	}
	if s.Cache.Dir != "" {
		return s.Cache.Dir, nil
	}
	dir, err := cacheDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "locate cache directory")
	}
	return dir, nil
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	var libraries, http bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete downloaded libraries and cached responses",
		Long: `clear empties both caches unless one is selected. Responses cached in
Redis expire on their own and are not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := c.cacheRoot()
			if err != nil {
				return err
			}
			if !libraries && !http {
				libraries, http = true, true
			}

			if http {
				fc, err := cache.NewFileCache(httpDir(root))
				if err != nil {
					return errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", httpDir(root))
				}
				if err := fc.Clear(); err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "clear %s", fc.Dir())
				}
				printSuccess("Cleared cached responses")
				printDetail("%s", fc.Dir())
			}
			if libraries {
				dir := libraryDir(root)
				if err := os.RemoveAll(dir); err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "clear %s", dir)
				}
				printSuccess("Cleared downloaded libraries")
				printDetail("%s", dir)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&libraries, "libraries", false, "only delete downloaded libraries")
	cmd.Flags().BoolVar(&http, "http", false, "only delete cached responses")
	return cmd
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := c.cacheRoot()
			if err != nil {
				return err
			}
			fmt.Println(libraryDir(root))
			fmt.Println(httpDir(root))
			return nil
		},
	}
}
