// Package app assembles the lockbox services from a config.Config.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andrebq/lockbox/accounts"
	"github.com/andrebq/lockbox/internal/config"
	"github.com/andrebq/lockbox/internal/logutil"
	"github.com/andrebq/lockbox/internal/metrics"
	"github.com/andrebq/lockbox/password"
	"github.com/andrebq/lockbox/session"
	"github.com/andrebq/lockbox/vault"
	"github.com/andrebq/lockbox/vault/memvault"
	"github.com/andrebq/lockbox/vault/mongovault"
	"github.com/andrebq/lockbox/vault/sqlvault"
	"github.com/andrebq/lockbox/web"
)

type (
	App struct {
		Config   config.Config
		Store    vault.Store
		Hasher   *password.Hasher
		Issuer   *session.Issuer
		Accounts *accounts.Service
		Metrics  *metrics.Metrics
	}
)

// OpenStore connects to the backend selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.Store) (vault.Store, error) {
	var (
		store vault.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err = asStore(sqlvault.OpenSQLite(ctx, cfg.DSN))
	case config.DriverPostgres:
		store, err = asStore(sqlvault.OpenPostgres(ctx, cfg.DSN))
	case config.DriverMongo:
		store, err = asStore(mongovault.Open(ctx, cfg.DSN, cfg.Database))
	case config.DriverMemory:
		store, err = asStore(memvault.New(ctx))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// asStore keeps a failed open from turning into a non-nil interface holding
// a nil pointer.
func asStore[S vault.Store](s S, err error) (vault.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// New opens the store and builds every service on top of it. The signing
// secret is only needed by commands that issue or verify tokens; pass nil
// otherwise and Issuer stays nil.
func New(ctx context.Context, cfg config.Config, secret session.Secret) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hasher, err := password.New(password.Options{Algorithm: cfg.Password.Algorithm, Cost: cfg.Password.Cost})
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		Store:   store,
		Hasher:  hasher,
		Metrics: metrics.New(),
	}
	if secret != nil {
		a.Issuer, err = session.NewIssuer(secret, store, session.Options{TTL: cfg.Token.TTL})
		if err != nil {
			store.Close()
			return nil, err
		}
		a.Accounts = accounts.New(store, store, hasher, a.Issuer, a.Metrics)
	}
	logger := logutil.GetOrDefault(ctx)
	logger.Info().
		Str("store.driver", cfg.Store.Driver).
		Str("password.algorithm", hasher.Algorithm()).
		Msg("Lockbox services ready")
	return a, nil
}

// Handler returns the http surface. It requires an App built with a secret.
func (a *App) Handler(ctx context.Context) (http.Handler, error) {
	if a.Issuer == nil {
		return nil, fmt.Errorf("app: handler requires a signing secret")
	}
	log := logutil.GetOrDefault(ctx)
	return web.NewHandler(a.Accounts, a.Issuer, web.Options{
		AllowHTTPCookie: a.Config.Cookie.AllowHTTP,
		TokenTTL:        a.Issuer.TTL(),
		Metrics:         a.Metrics,
		Logger:          &log,
	})
}

func (a *App) Close() error {
	return a.Store.Close()
}
