package cli

import (
	"bufio"
	"cmp"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/integrations/rest"
	"github.com/matzehuels/plcpack/pkg/session"
)

// passwordEnv supplies the password when neither flag is given.
const passwordEnv = "PLCPACK_PASSWORD"

// loginCommand creates the login command.
func (c *CLI) loginCommand() *cobra.Command {
	var (
		source        string
		username      string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a package source",
		Long: `Login authenticates with a source and stores the session, so later
commands reuse it. For GitHub sources the password is a personal access
token; for NuGet feeds it is the feed password or API key.`,
		Example: `  plcpack login --source public -u jane
  echo $TOKEN | plcpack login --source plc-libs --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := c.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			srv, err := e.server(source)
			if err != nil {
				return err
			}
			src, _ := e.settings.source(source)
			username = cmp.Or(username, src.Username)

			switch {
			case passwordStdin:
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return errors.Wrap(errors.ErrCodeInvalidInput, err, "read password from stdin")
				}
				password = strings.TrimRight(line, "\r\n")
			case password == "":
				password = os.Getenv(passwordEnv)
			}

			spinner := newSpinnerWithContext(ctx, "Logging in to "+srv.Name()+"...")
			spinner.Start()
			err = srv.Login(ctx, username, password)
			spinner.Stop()
			if err != nil {
				return err
			}

			// REST sources store the session they were issued themselves.
			if _, ok := srv.(*rest.Server); !ok && password != "" {
				sess := session.New(srv.Name(), username, password, 0)
				if err := e.sessions.Set(ctx, sess); err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "store session")
				}
			}

			who := cmp.Or(username, "anonymous")
			printSuccess("Logged in to %s as %s", StyleHighlight.Render(srv.Name()), who)
			printDetail("%s", srv.URL())
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", defaultSourceName, "source to log in to")
	cmd.Flags().StringVarP(&username, "username", "u", "", "user name (default: the source's configured username)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password or token (default: $"+passwordEnv+")")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

// logoutCommand creates the logout command.
func (c *CLI) logoutCommand() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session of a package source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := c.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			srv, err := e.server(source)
			if err != nil {
				return err
			}
			if err := srv.Logout(ctx); err != nil {
				return err
			}
			if err := e.sessions.Delete(ctx, srv.Name()); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "delete session")
			}
			printSuccess("Logged out of %s", StyleHighlight.Render(srv.Name()))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", defaultSourceName, "source to log out of")
	return cmd
}
