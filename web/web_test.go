package web_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/andrebq/lockbox/internal/testutil"
	"github.com/andrebq/lockbox/session/api"
	"github.com/andrebq/lockbox/web"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, allowHTTP bool) (http.Handler, *testutil.App) {
	ctx := context.Background()
	app, cleanup := testutil.AcquireApp(ctx, t)
	t.Cleanup(cleanup)
	h, err := web.NewHandler(app.Accounts, app.Issuer, web.Options{
		AllowHTTPCookie: allowHTTP,
		Metrics:         app.Metrics,
	})
	require.NoError(t, err)
	return h, app
}

func sessionCookie(t *testing.T, res *http.Response) string {
	for _, c := range res.Cookies() {
		if c.Name == api.CookieName {
			return c.Value
		}
	}
	t.Fatal("response did not set the session cookie")
	return ""
}

func register(t *testing.T, h http.Handler, email, pw string) string {
	res := apitest.New().
		Handler(h).
		Post("/register").
		FormData("username", email).
		FormData("password", pw).
		Expect(t).
		Status(http.StatusCreated).
		Cookies(apitest.NewCookie(api.CookieName).HttpOnly(true).Path("/")).
		End()
	return sessionCookie(t, res.Response)
}

func TestPublicPages(t *testing.T) {
	h, _ := newHandler(t, true)
	for _, path := range []string{"/", "/login", "/register"} {
		apitest.New().
			Handler(h).
			Get(path).
			Expect(t).
			Status(http.StatusOK).
			Header("Content-Type", "text/html; charset=utf-8").
			End()
	}
	apitest.New().
		Handler(h).
		Get("/no/such/page").
		Expect(t).
		Status(http.StatusNotFound).
		End()
	apitest.New().
		Handler(h).
		Delete("/login").
		Expect(t).
		Status(http.StatusMethodNotAllowed).
		End()
}

func TestSubmitPageRequiresSession(t *testing.T) {
	h, _ := newHandler(t, true)
	apitest.New().Handler(h).Get("/submit").Expect(t).Status(http.StatusUnauthorized).End()

	token := register(t, h, "a@x.com", "pw1")
	apitest.New().Handler(h).Get("/submit").Cookie(api.CookieName, token).Expect(t).Status(http.StatusOK).End()
	apitest.New().Handler(h).Get("/submit").Header("Authorization", "Bearer "+token).Expect(t).Status(http.StatusOK).End()
}

func TestRegisterLoginSubmitScenario(t *testing.T) {
	h, app := newHandler(t, true)
	register(t, h, "a@x.com", "pw1")

	res := apitest.New().
		Handler(h).
		Post("/login").
		FormData("username", "a@x.com").
		FormData("password", "pw1").
		Expect(t).
		Status(http.StatusCreated).
		CookiePresent(api.CookieName).
		End()
	token := sessionCookie(t, res.Response)

	apitest.New().
		Handler(h).
		Post("/submit").
		Cookie(api.CookieName, token).
		FormData("secret", "hello").
		Expect(t).
		Status(http.StatusCreated).
		End()

	notes, err := app.Store.ListNotes(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "hello", notes[0].Content)
}

func TestWrongPasswordScenario(t *testing.T) {
	h, app := newHandler(t, true)
	token := register(t, h, "b@x.com", "pw1")
	apitest.New().Handler(h).Get("/logoutall").Cookie(api.CookieName, token).Expect(t).Status(http.StatusOK).End()

	apitest.New().
		Handler(h).
		Post("/login").
		FormData("username", "b@x.com").
		FormData("password", "wrongpw").
		Expect(t).
		Status(http.StatusUnauthorized).
		CookieNotPresent(api.CookieName).
		End()

	u, err := app.Store.FindUserByEmail(context.Background(), "b@x.com")
	require.NoError(t, err)
	require.Empty(t, u.Sessions)
}

func TestRegisterFailures(t *testing.T) {
	h, _ := newHandler(t, true)
	register(t, h, "dup@x.com", "pw1")

	apitest.New().
		Handler(h).
		Post("/register").
		Header("Accept", "application/json").
		FormData("username", "dup@x.com").
		FormData("password", "pw2").
		Expect(t).
		Status(http.StatusConflict).
		CookieNotPresent(api.CookieName).
		Assert(jsonpath.Present("$.error")).
		End()

	apitest.New().
		Handler(h).
		Post("/register").
		Header("Accept", "application/json").
		FormData("username", "").
		FormData("password", "pw").
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.error", "username is required")).
		End()

	apitest.New().
		Handler(h).
		Post("/register").
		FormData("username", "long@x.com").
		FormData("password", strings.Repeat("p", 73)).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestSubmitWithoutSessionStoresNothing(t *testing.T) {
	h, app := newHandler(t, true)
	apitest.New().
		Handler(h).
		Post("/submit").
		FormData("secret", "sneaky").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	apitest.New().
		Handler(h).
		Post("/submit").
		Cookie(api.CookieName, "forged.token.value").
		FormData("secret", "sneaky").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	notes, err := app.Store.ListNotes(context.Background())
	require.NoError(t, err)
	require.Empty(t, notes)
}

func TestEmptySecretIsRejected(t *testing.T) {
	h, _ := newHandler(t, true)
	token := register(t, h, "e@x.com", "pw1")
	apitest.New().
		Handler(h).
		Post("/submit").
		Cookie(api.CookieName, token).
		FormData("secret", "").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestLogoutRevokesOnlyThatSession(t *testing.T) {
	h, _ := newHandler(t, true)
	first := register(t, h, "c@x.com", "pw1")
	res := apitest.New().
		Handler(h).
		Post("/login").
		FormData("username", "c@x.com").
		FormData("password", "pw1").
		Expect(t).
		Status(http.StatusCreated).
		End()
	second := sessionCookie(t, res.Response)

	apitest.New().
		Handler(h).
		Get("/logout").
		Cookie(api.CookieName, first).
		Header("Accept", "application/json").
		Expect(t).
		Status(http.StatusOK).
		Cookies(apitest.NewCookie(api.CookieName).Value("").MaxAge(-1)).
		Assert(jsonpath.Equal("$.status", "signed-out")).
		End()

	apitest.New().Handler(h).Get("/submit").Cookie(api.CookieName, first).Expect(t).Status(http.StatusUnauthorized).End()
	apitest.New().Handler(h).Get("/submit").Cookie(api.CookieName, second).Expect(t).Status(http.StatusOK).End()
	apitest.New().Handler(h).Get("/logout").Cookie(api.CookieName, first).Expect(t).Status(http.StatusUnauthorized).End()
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	h, _ := newHandler(t, true)
	first := register(t, h, "d@x.com", "pw1")
	res := apitest.New().
		Handler(h).
		Post("/login").
		FormData("username", "d@x.com").
		FormData("password", "pw1").
		Expect(t).
		Status(http.StatusCreated).
		End()
	second := sessionCookie(t, res.Response)

	apitest.New().Handler(h).Get("/logoutall").Cookie(api.CookieName, second).Expect(t).Status(http.StatusOK).End()
	for _, tk := range []string{first, second} {
		apitest.New().Handler(h).Get("/submit").Cookie(api.CookieName, tk).Expect(t).Status(http.StatusUnauthorized).End()
	}
}

func TestJSONClients(t *testing.T) {
	h, _ := newHandler(t, true)
	res := apitest.New().
		Handler(h).
		Post("/register").
		Header("Accept", "application/json").
		FormData("username", "json@x.com").
		FormData("password", "pw1").
		Expect(t).
		Status(http.StatusCreated).
		Body(`{"status":"stored"}`).
		End()
	token := sessionCookie(t, res.Response)

	apitest.New().
		Handler(h).
		Post("/submit").
		Header("Accept", "application/json").
		Header("Authorization", "Bearer "+token).
		FormData("secret", "scripted").
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.status", "stored")).
		End()
}

func TestSecureCookieByDefault(t *testing.T) {
	h, _ := newHandler(t, false)
	apitest.New().
		Handler(h).
		Post("/register").
		FormData("username", "s@x.com").
		FormData("password", "pw1").
		Expect(t).
		Status(http.StatusCreated).
		Cookies(apitest.NewCookie(api.CookieName).Secure(true).HttpOnly(true)).
		End()
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newHandler(t, true)
	register(t, h, "m@x.com", "pw1")
	apitest.New().
		Handler(h).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(res *http.Response, _ *http.Request) error {
			body, err := io.ReadAll(res.Body)
			if err != nil {
				return err
			}
			for _, line := range []string{
				`lockbox_http_requests_total{code="201",method="POST",route="/register"} 1`,
				`lockbox_auth_events_total{action="register",outcome="success"} 1`,
			} {
				if !strings.Contains(string(body), line) {
					return fmt.Errorf("metrics output is missing %v", line)
				}
			}
			return nil
		}).
		End()
}
