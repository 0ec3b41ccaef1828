package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/lockbox/cmd/lockbox/notes"
	"github.com/andrebq/lockbox/cmd/lockbox/serve"
	"github.com/andrebq/lockbox/cmd/lockbox/users"
	"github.com/andrebq/lockbox/internal/cmdflags"
	"github.com/andrebq/lockbox/internal/config"
	"github.com/andrebq/lockbox/internal/logutil"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var cfgPath string
	var flagged config.Config
	cfg := config.Default()
	app := &cli.App{
		Name:  "lockbox",
		Usage: "Share secrets anonymously, behind a login",
		Flags: append([]cli.Flag{cmdflags.ConfigFile(&cfgPath)}, cmdflags.Store(&flagged)...),
		Before: func(c *cli.Context) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = loaded
			cmdflags.ApplyStore(c, &cfg, flagged)
			logger, err := logutil.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
			if err != nil {
				return err
			}
			c.Context = logutil.WithLogger(c.Context, logger)
			return nil
		},
		Commands: []*cli.Command{
			serve.Cmd(&cfg),
			users.Cmd(&cfg),
			notes.Cmd(&cfg),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
