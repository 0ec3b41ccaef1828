package accounts_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/andrebq/lockbox/accounts"
	"github.com/andrebq/lockbox/internal/metrics"
	"github.com/andrebq/lockbox/internal/testutil"
	"github.com/andrebq/lockbox/password"
	"github.com/andrebq/lockbox/session"
	"github.com/andrebq/lockbox/session/api"
	"github.com/andrebq/lockbox/vault"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	app, cleanup := testutil.AcquireApp(ctx, t)
	defer cleanup()

	reg, err := app.Accounts.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	require.NotEmpty(t, reg.Token)
	require.NotEqual(t, "pw1", reg.User.PasswordHash)

	login, err := app.Accounts.Login(ctx, "A@X.com", "pw1")
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, login.User.ID)

	u, err := app.Issuer.Verify(ctx, login.Token)
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, u.ID)
	require.Equal(t, vault.Sessions{reg.Token, login.Token}, u.Sessions)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	app, cleanup := testutil.AcquireApp(ctx, t)
	defer cleanup()

	first, err := app.Accounts.Register(ctx, "dup@x.com", "pw1")
	require.NoError(t, err)
	_, err = app.Accounts.Register(ctx, "dup@x.com", "other")
	require.True(t, errors.Is(err, vault.DuplicateEmail{}), "got %v", err)

	u, err := app.Store.FindUserByEmail(ctx, "dup@x.com")
	require.NoError(t, err)
	require.Equal(t, first.User.ID, u.ID)
	ok, err := app.Hasher.Verify("pw1", u.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWrongPasswordNeverIssues(t *testing.T) {
	ctx := context.Background()
	app, cleanup := testutil.AcquireApp(ctx, t)
	defer cleanup()

	reg, err := app.Accounts.Register(ctx, "b@x.com", "pw1")
	require.NoError(t, err)
	require.NoError(t, app.Accounts.LogoutAll(ctx, reg.User.ID))

	g, err := app.Accounts.Login(ctx, "b@x.com", "wrongpw")
	require.Nil(t, g)
	require.True(t, errors.Is(err, accounts.Unauthenticated{}), "got %v", err)

	u, err := app.Store.FindUserByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	require.Empty(t, u.Sessions)

	_, err = app.Accounts.Login(ctx, "nobody@x.com", "pw1")
	require.True(t, errors.Is(err, accounts.Unauthenticated{}), "got %v", err)
	require.Equal(t, 2.0, counterValue(t, app.Metrics, "lockbox_auth_events_total", "login", metrics.Rejected))
}

func TestLogoutRevokesOnlyPresentedToken(t *testing.T) {
	ctx := context.Background()
	app, cleanup := testutil.AcquireApp(ctx, t)
	defer cleanup()

	reg, err := app.Accounts.Register(ctx, "c@x.com", "pw1")
	require.NoError(t, err)
	second, err := app.Accounts.Login(ctx, "c@x.com", "pw1")
	require.NoError(t, err)

	require.NoError(t, app.Accounts.Logout(ctx, &api.Identity{User: reg.User, Token: reg.Token}))

	_, err = app.Issuer.Verify(ctx, reg.Token)
	require.True(t, errors.Is(err, session.Revoked{}), "got %v", err)
	_, err = app.Issuer.Verify(ctx, second.Token)
	require.NoError(t, err)
}

func TestLogoutAllRevokesEverything(t *testing.T) {
	ctx := context.Background()
	app, cleanup := testutil.AcquireApp(ctx, t)
	defer cleanup()

	reg, err := app.Accounts.Register(ctx, "d@x.com", "pw1")
	require.NoError(t, err)
	second, err := app.Accounts.Login(ctx, "d@x.com", "pw1")
	require.NoError(t, err)

	require.NoError(t, app.Accounts.LogoutAll(ctx, reg.User.ID))
	for _, tk := range []string{reg.Token, second.Token} {
		_, err := app.Issuer.Verify(ctx, tk)
		require.True(t, errors.Is(err, session.Revoked{}), "got %v", err)
	}
}

func TestSubmitRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	app, cleanup := testutil.AcquireApp(ctx, t)
	defer cleanup()

	_, err := app.Accounts.Submit(ctx, nil, "hello")
	require.True(t, errors.Is(err, accounts.Unauthenticated{}), "got %v", err)
	_, err = app.Accounts.Submit(ctx, &api.Identity{Token: "orphan"}, "hello")
	require.True(t, errors.Is(err, accounts.Unauthenticated{}), "got %v", err)

	notes, err := app.Store.ListNotes(ctx)
	require.NoError(t, err)
	require.Empty(t, notes)
}

func TestSubmitScenario(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireSQLiteVault(ctx, t, "scenario.db")
	defer cleanup()
	app, err := testutil.NewApp(store)
	require.NoError(t, err)

	_, err = app.Accounts.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	g, err := app.Accounts.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = app.Accounts.Submit(ctx, &api.Identity{User: g.User, Token: g.Token}, "   ")
	require.True(t, errors.Is(err, accounts.ValidationError{}), "got %v", err)

	n, err := app.Accounts.Submit(ctx, &api.Identity{User: g.User, Token: g.Token}, "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", n.Content)

	notes, err := app.Store.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "hello", notes[0].Content)
	require.Equal(t, 1.0, counterValue(t, app.Metrics, "lockbox_notes_stored_total"))
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	app, cleanup := testutil.AcquireApp(ctx, t)
	defer cleanup()

	for _, tc := range []struct {
		email, password, field string
	}{
		{"", "pw", "username"},
		{"a@x.com", "", "password"},
		{"not-an-email", "pw", "username"},
		{"Bob <bob@x.com>", "pw", "username"},
		{"a@x.com", strings.Repeat("p", password.MaxLength+1), "password"},
	} {
		_, err := app.Accounts.Register(ctx, tc.email, tc.password)
		var verr accounts.ValidationError
		require.True(t, errors.As(err, &verr), "%q/%q got %v", tc.email, tc.password, err)
		require.Equal(t, tc.field, verr.Field)
	}
	_, err := app.Accounts.Login(ctx, "", "pw")
	require.True(t, errors.Is(err, accounts.ValidationError{}), "got %v", err)
}

// counterValue reads a counter from the registry; labels are matched by
// value in declaration order.
func counterValue(t *testing.T, m *metrics.Metrics, name string, labels ...string) float64 {
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, metric := range f.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for i, l := range pairs {
				if l.GetValue() != labels[i] {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
