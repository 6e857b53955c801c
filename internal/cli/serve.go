package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/registry"
)

// usersEnv holds comma separated name:password pairs for serve.
const usersEnv = "PLCPACK_USERS"

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		store    string
		users    []string
		tokenTTL time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a package catalog server",
		Long: `serve runs a catalog that plcpack sources of type "rest" can search,
resolve and download from, and that "plcpack push" publishes to. Versions
are stored in SQLite by default, or in MongoDB for a mongodb:// store.`,
		Example: `  plcpack serve --user jane:secret
  plcpack serve --addr :9000 --store mongodb://localhost:27017`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			if len(users) == 0 {
				if env := os.Getenv(usersEnv); env != "" {
					users = strings.Split(env, ",")
				}
			}
			hashes, err := registry.ParseUsers(users)
			if err != nil {
				return err
			}
			if len(hashes) == 0 {
				logger.Warn("no users configured, uploads are disabled")
			}

			st, err := registry.Open(ctx, store)
			if err != nil {
				return err
			}
			defer st.Close(context.WithoutCancel(ctx))

			srv := registry.New(st, registry.Options{Users: hashes, TokenTTL: tokenTTL, Logger: logger})
			printInfo("Serving catalog on %s", StyleHighlight.Render(addr))
			printDetail("store %s", redact(store))
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&store, "store", "sqlite://plcpack-registry.db", "sqlite:// file or mongodb:// URI")
	cmd.Flags().StringArrayVar(&users, "user", nil, "name:password allowed to upload (repeatable, default: $"+usersEnv+")")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 0, "lifetime of issued tokens (default: 7 days)")
	return cmd
}

// redact hides the password of a store URI.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, _ := strings.Cut(creds, ":")
	return scheme + "://" + user + ":***@" + host
}
