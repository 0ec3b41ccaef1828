package testutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/andrebq/lockbox/accounts"
	"github.com/andrebq/lockbox/internal/metrics"
	"github.com/andrebq/lockbox/password"
	"github.com/andrebq/lockbox/session"
	"github.com/andrebq/lockbox/vault"
	"github.com/andrebq/lockbox/vault/memvault"
	"github.com/andrebq/lockbox/vault/sqlvault"
	"golang.org/x/crypto/bcrypt"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}

	// App wires every service on top of a single store, the same way the
	// serve command does.
	App struct {
		Store    vault.Store
		Hasher   *password.Hasher
		Issuer   *session.Issuer
		Accounts *accounts.Service
		Metrics  *metrics.Metrics
	}
)

const (
	Secret = "lockbox-test-secret"
)

func AcquireSQLiteVault(ctx context.Context, t TestLog, name string) (*sqlvault.Control, func()) {
	dir, err := os.MkdirTemp("", "lockbox-tests")
	if err != nil {
		t.Fatal(err)
	}
	ctl, err := sqlvault.OpenSQLite(ctx, filepath.Join(dir, name))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return ctl, func() {
		err := ctl.Close()
		if err != nil {
			t.Log("unable to close vault", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}

func AcquireMemoryVault(ctx context.Context, t TestLog) (*memvault.Store, func()) {
	s, err := memvault.New(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return s, func() {
		if err := s.Close(); err != nil {
			t.Log("unable to close vault", err)
		}
	}
}

// AcquireApp builds an App over a memory vault. Passwords use the cheapest
// bcrypt cost to keep tests fast.
func AcquireApp(ctx context.Context, t TestLog) (*App, func()) {
	store, cleanup := AcquireMemoryVault(ctx, t)
	app, err := NewApp(store)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	return app, cleanup
}

func NewApp(store vault.Store) (*App, error) {
	hasher, err := password.New(password.Options{Algorithm: password.Bcrypt, Cost: bcrypt.MinCost})
	if err != nil {
		return nil, err
	}
	issuer, err := session.NewIssuer(session.Secret(Secret), store, session.Options{})
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	return &App{
		Store:    store,
		Hasher:   hasher,
		Issuer:   issuer,
		Metrics:  m,
		Accounts: accounts.New(store, store, hasher, issuer, m),
	}, nil
}
