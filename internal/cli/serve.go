package cli

import (
	"context"
	"errors"
	"net"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"menusync/internal/http/handlers"
	applog "menusync/internal/log"
)

const (
	portFlag      = "port"
	templatesFlag = "templates"
)

func newServeFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		portFlag: &cobraflags.StringFlag{
			Name:  portFlag,
			Value: "",
			Usage: "Listen port (defaults to PORT)",
		},
		templatesFlag: &cobraflags.StringFlag{
			Name:  templatesFlag,
			Value: "./web/templates",
			Usage: "Dashboard template directory",
		},
	}
}

func newServeCommand() *cobra.Command {
	flags := newServeFlags()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin dashboard and JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveCommand(cmd, flags)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func serveCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		port := flags[portFlag].GetString()
		if port == "" {
			port = a.cfg.Port
		}
		if a.cfg.AdminTokenHash == "" {
			applog.L().Warn().Msg("ADMIN_TOKEN_HASH not set; cleanup endpoint disabled")
		}
		deps := handlers.NewDeps(a.cache, a.duplicates(), a.cfg)
		srv := handlers.NewApp(deps, handlers.AppOptions{
			TemplatesDir: flags[templatesFlag].GetString(),
			AccessLog:    true,
		})

		errc := make(chan error, 1)
		go func() {
			applog.Info(nil, "server.start", map[string]any{"port": port})
			errc <- srv.Listen(net.JoinHostPort("", port))
		}()
		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
			applog.Info(nil, "server.stop", nil)
			if err := srv.Shutdown(); err != nil {
				return err
			}
			if err := <-errc; err != nil && !errors.Is(err, net.ErrClosed) {
				return err
			}
			return nil
		}
	})
}
