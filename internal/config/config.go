// Package config holds the settings of a lockbox process.
//
// Values are layered: built-in defaults, then an optional yaml file, then
// environment variables and command line flags (applied by cmdflags).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type (
	Config struct {
		Bind     string   `yaml:"bind"`
		Log      Log      `yaml:"log"`
		Store    Store    `yaml:"store"`
		Token    Token    `yaml:"token"`
		Password Password `yaml:"password"`
		Cookie   Cookie   `yaml:"cookie"`
	}

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	}

	Store struct {
		Driver string `yaml:"driver"`
		// DSN is a file path for sqlite, a connection string for postgres
		// and a URI for mongo.
		DSN      string `yaml:"dsn"`
		Database string `yaml:"database"`
	}

	Token struct {
		TTL time.Duration `yaml:"ttl"`
		// SecretEnv names the variable that holds the signing secret. The
		// secret itself never goes in a file or flag.
		SecretEnv string `yaml:"secret_env"`
	}

	Password struct {
		Algorithm string `yaml:"algorithm"`
		Cost      int    `yaml:"cost"`
	}

	Cookie struct {
		AllowHTTP bool `yaml:"allow_http"`
	}
)

func Default() Config {
	return Config{
		Bind: "127.0.0.1:3000",
		Log:  Log{Level: "info"},
		Store: Store{
			Driver:   DriverSQLite,
			DSN:      "lockbox.db",
			Database: "lockbox",
		},
		Token: Token{
			TTL:       24 * time.Hour,
			SecretEnv: "LOCKBOX_SECRET",
		},
		Password: Password{Algorithm: "bcrypt", Cost: 10},
	}
}

// Load returns the defaults overlaid with the yaml file at path. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config file %v, cause %w", path, err)
	}
	if err := Parse(buf, &cfg); err != nil {
		return Config{}, fmt.Errorf("unable to parse config file %v, cause %w", path, err)
	}
	return cfg, nil
}

// Parse overlays the yaml document in buf on top of cfg. Unknown keys are
// rejected.
func Parse(buf []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres, DriverMongo:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for driver %v", c.Store.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverMongo && c.Store.Database == "" {
		return errors.New("config: store.database is required for driver mongo")
	}
	if c.Token.TTL <= 0 {
		return errors.New("config: token.ttl must be positive")
	}
	if c.Token.SecretEnv == "" {
		return errors.New("config: token.secret_env must name an environment variable")
	}
	if c.Bind == "" {
		return errors.New("config: bind is required")
	}
	return nil
}
