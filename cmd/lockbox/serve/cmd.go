package serve

import (
	"os"

	"github.com/andrebq/lockbox/internal/app"
	"github.com/andrebq/lockbox/internal/cmdflags"
	"github.com/andrebq/lockbox/internal/config"
	"github.com/andrebq/lockbox/internal/httpserver"
	"github.com/andrebq/lockbox/internal/logutil"
	"github.com/andrebq/lockbox/session"
	"github.com/urfave/cli/v2"
)

func Cmd(cfg *config.Config) *cli.Command {
	var flagged config.Config
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the lockbox http server. The signing secret is read from $LOCKBOX_SECRET (see --secret-envvar-name)",
		Flags: cmdflags.Server(&flagged),
		Action: func(c *cli.Context) error {
			cmdflags.ApplyServer(c, cfg, flagged)
			secret, err := session.SecretFromEnv(cfg.Token.SecretEnv, os.Getenv, os.Setenv)
			if err != nil {
				return err
			}
			a, err := app.New(c.Context, *cfg, secret)
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := a.Handler(c.Context)
			if err != nil {
				return err
			}
			if cfg.Cookie.AllowHTTP {
				logger := logutil.GetOrDefault(c.Context)
				logger.Warn().Msg("Session cookie will be sent over plain http")
			}
			return httpserver.Serve(c.Context, cfg.Bind, handler)
		},
	}
}
