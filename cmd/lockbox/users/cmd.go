package users

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andrebq/lockbox/internal/app"
	"github.com/andrebq/lockbox/internal/cmdflags"
	"github.com/andrebq/lockbox/internal/config"
	"github.com/andrebq/lockbox/session"
	"github.com/urfave/cli/v2"
)

func Cmd(cfg *config.Config) *cli.Command {
	var flagged config.Config
	var a *app.App
	return &cli.Command{
		Name:  "users",
		Usage: "Manage user accounts directly in the store",
		Flags: cmdflags.Server(&flagged),
		Before: func(c *cli.Context) error {
			cmdflags.ApplyServer(c, cfg, flagged)
			secret, err := session.SecretFromEnv(cfg.Token.SecretEnv, os.Getenv, os.Setenv)
			if err != nil {
				return err
			}
			a, err = app.New(c.Context, *cfg, secret)
			return err
		},
		After: func(c *cli.Context) error {
			if a == nil {
				return nil
			}
			return a.Close()
		},
		Subcommands: []*cli.Command{
			registerCmd(&a),
			logoutAllCmd(&a),
		},
	}
}

func registerCmd(a **app.App) *cli.Command {
	var email string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new user (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Usage:       "Email of the user to register",
				Destination: &email,
				Required:    true,
			},
		},
		Action: func(c *cli.Context) error {
			password, err := readPassword(os.Stdin)
			if err != nil {
				return err
			}
			u, err := (*a).Accounts.CreateAccount(c.Context, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, u.ID)
			return nil
		},
	}
}

func logoutAllCmd(a **app.App) *cli.Command {
	var email string
	return &cli.Command{
		Name:  "logoutall",
		Usage: "Revoke every session of a user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Usage:       "Email of the user",
				Destination: &email,
				Required:    true,
			},
		},
		Action: func(c *cli.Context) error {
			u, err := (*a).Store.FindUserByEmail(c.Context, email)
			if err != nil {
				return err
			}
			return (*a).Accounts.LogoutAll(c.Context, u.ID)
		},
	}
}

func readPassword(in io.Reader) (string, error) {
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("missing password from stdin")
	}
	password := strings.TrimRight(sc.Text(), "\r\n")
	if len(password) == 0 {
		return "", errors.New("missing password from stdin")
	}
	return password, nil
}
