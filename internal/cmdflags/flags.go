package cmdflags

import (
	"github.com/andrebq/lockbox/internal/config"
	"github.com/urfave/cli/v2"
)

// ConfigFile points at the optional yaml file loaded before any flag.
func ConfigFile(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to a yaml configuration file",
		EnvVars:     []string{"LOCKBOX_CONFIG"},
		Destination: out,
		Value:       *out,
	}
}

// Store returns the flags that select and locate the storage backend.
// Their values land in out, but only the ones actually set should be
// applied, see ApplyStore.
func Store(out *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store-driver",
			Usage:       "Storage backend: sqlite, postgres, mongo or memory",
			EnvVars:     []string{"LOCKBOX_STORE_DRIVER"},
			Destination: &out.Store.Driver,
		},
		&cli.StringFlag{
			Name:        "store-dsn",
			Usage:       "Database file (sqlite), connection string (postgres) or URI (mongo)",
			EnvVars:     []string{"LOCKBOX_STORE_DSN"},
			Destination: &out.Store.DSN,
		},
		&cli.StringFlag{
			Name:        "store-database",
			Usage:       "Database name, used by mongo",
			EnvVars:     []string{"LOCKBOX_STORE_DATABASE"},
			Destination: &out.Store.Database,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Minimum log level",
			EnvVars:     []string{"LOCKBOX_LOG_LEVEL"},
			Destination: &out.Log.Level,
		},
		&cli.BoolFlag{
			Name:        "log-pretty",
			Usage:       "Human readable logs instead of JSON lines",
			EnvVars:     []string{"LOCKBOX_LOG_PRETTY"},
			Destination: &out.Log.Pretty,
		},
	}
}

// Server returns the flags used by commands that sign tokens or serve http.
func Server(out *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bind",
			Aliases:     []string{"b"},
			Usage:       "Address to listen on",
			EnvVars:     []string{"LOCKBOX_BIND"},
			Destination: &out.Bind,
		},
		&cli.DurationFlag{
			Name:        "token-ttl",
			Usage:       "Lifetime of session tokens and cookies",
			EnvVars:     []string{"LOCKBOX_TOKEN_TTL"},
			Destination: &out.Token.TTL,
		},
		&cli.StringFlag{
			Name:        "secret-envvar-name",
			Usage:       "Name of the environment variable that holds the signing secret. The secret itself should not be passed as an argument",
			Destination: &out.Token.SecretEnv,
		},
		&cli.StringFlag{
			Name:        "password-algorithm",
			Usage:       "Algorithm for new password hashes: bcrypt or argon2id",
			EnvVars:     []string{"LOCKBOX_PASSWORD_ALGORITHM"},
			Destination: &out.Password.Algorithm,
		},
		&cli.IntFlag{
			Name:        "password-cost",
			Usage:       "bcrypt cost or argon2id passes",
			EnvVars:     []string{"LOCKBOX_PASSWORD_COST"},
			Destination: &out.Password.Cost,
		},
		&cli.BoolFlag{
			Name:        "allow-http-cookie",
			Usage:       "Send the session cookie without the Secure flag, for local development",
			EnvVars:     []string{"LOCKBOX_ALLOW_HTTP_COOKIE"},
			Destination: &out.Cookie.AllowHTTP,
		},
	}
}

// ApplyStore copies into cfg every value from flagged whose Store flag was
// set on the command line or through its environment variable.
func ApplyStore(c *cli.Context, cfg *config.Config, flagged config.Config) {
	setString(c, "store-driver", &cfg.Store.Driver, flagged.Store.Driver)
	setString(c, "store-dsn", &cfg.Store.DSN, flagged.Store.DSN)
	setString(c, "store-database", &cfg.Store.Database, flagged.Store.Database)
	setString(c, "log-level", &cfg.Log.Level, flagged.Log.Level)
	if c.IsSet("log-pretty") {
		cfg.Log.Pretty = flagged.Log.Pretty
	}
}

// ApplyServer is ApplyStore for the Server flags.
func ApplyServer(c *cli.Context, cfg *config.Config, flagged config.Config) {
	setString(c, "bind", &cfg.Bind, flagged.Bind)
	setString(c, "secret-envvar-name", &cfg.Token.SecretEnv, flagged.Token.SecretEnv)
	setString(c, "password-algorithm", &cfg.Password.Algorithm, flagged.Password.Algorithm)
	if c.IsSet("token-ttl") {
		cfg.Token.TTL = flagged.Token.TTL
	}
	if c.IsSet("password-cost") {
		cfg.Password.Cost = flagged.Password.Cost
	}
	if c.IsSet("allow-http-cookie") {
		cfg.Cookie.AllowHTTP = flagged.Cookie.AllowHTTP
	}
}

func setString(c *cli.Context, name string, dst *string, v string) {
	if c.IsSet(name) {
		*dst = v
	}
}
