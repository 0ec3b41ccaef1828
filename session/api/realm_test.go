package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/andrebq/lockbox/session"
	"github.com/andrebq/lockbox/vault"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]error

func (f fakeVerifier) Verify(_ context.Context, token string) (*vault.User, error) {
	err, ok := f[token]
	if !ok {
		return nil, session.Revoked{}
	}
	if err != nil {
		return nil, err
	}
	return &vault.User{ID: "user-" + token, Sessions: vault.Sessions{token}}, nil
}

func TestProtect(t *testing.T) {
	verifier := fakeVerifier{
		"good":    nil,
		"expired": session.Expired{},
		"broken":  vault.Fail("find user", errors.New("db down")),
	}
	sr := NewRealm(verifier, Options{})
	var count uint32
	protected := sr.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint32(&count, 1)
		id := IdentityFrom(r.Context())
		fmt.Fprintf(w, "%v %v", id.User.ID, id.Token)
	}))

	apitest.Handler(protected).Get("/").Expect(t).Status(http.StatusUnauthorized).End()
	apitest.Handler(protected).Get("/").Header("Authorization", "Bearer unknown").Expect(t).Status(http.StatusUnauthorized).End()
	apitest.Handler(protected).Get("/").Header("Authorization", "Bearer expired").Expect(t).Status(http.StatusUnauthorized).End()
	apitest.Handler(protected).Get("/").Header("Authorization", "Basic good").Expect(t).Status(http.StatusUnauthorized).End()
	apitest.Handler(protected).Get("/").Header("Authorization", "Bearer broken").Expect(t).Status(http.StatusInternalServerError).End()

	apitest.Handler(protected).Get("/").Header("Authorization", "Bearer good").
		Expect(t).Status(http.StatusOK).Body("user-good good").End()
	apitest.Handler(protected).Get("/").Cookie(CookieName, "good").
		Expect(t).Status(http.StatusOK).Body("user-good good").End()

	require.Equal(t, uint32(2), atomic.LoadUint32(&count))
}

func TestCookieWinsOverHeader(t *testing.T) {
	sr := NewRealm(fakeVerifier{"cookie": nil, "header": nil}, Options{})
	protected := sr.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(IdentityFrom(r.Context()).Token))
	}))
	apitest.Handler(protected).Get("/").
		Cookie(CookieName, "cookie").
		Header("Authorization", "Bearer header").
		Expect(t).Status(http.StatusOK).Body("cookie").End()
}

func TestCustomDeny(t *testing.T) {
	var got error
	sr := NewRealm(fakeVerifier{}, Options{Deny: func(w http.ResponseWriter, r *http.Request, status int, err error) {
		got = err
		w.WriteHeader(status)
	}})
	h := sr.Protect(http.NotFoundHandler())
	apitest.Handler(h).Get("/").Cookie(CookieName, "nope").Expect(t).Status(http.StatusUnauthorized).End()
	require.True(t, errors.Is(got, session.Revoked{}))
}

func TestIdentityFromEmptyContext(t *testing.T) {
	require.Nil(t, IdentityFrom(context.Background()))
	ctx := WithIdentity(context.Background(), &Identity{Token: "t"})
	require.Nil(t, IdentityFrom(ctx))
}
