// Package web maps the lockbox actions to http routes.
package web

import (
	"net/http"
	"time"

	"github.com/andrebq/lockbox/accounts"
	"github.com/andrebq/lockbox/internal/logutil"
	"github.com/andrebq/lockbox/internal/metrics"
	"github.com/andrebq/lockbox/session"
	"github.com/andrebq/lockbox/session/api"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

type (
	Options struct {
		// AllowHTTPCookie drops the Secure flag from the session cookie,
		// for local development over plain http.
		AllowHTTPCookie bool
		TokenTTL        time.Duration
		Metrics         *metrics.Metrics
		// Logger defaults to a no-op logger.
		Logger *zerolog.Logger
		// Now defaults to time.Now.
		Now func() time.Time
	}

	handler struct {
		accounts *accounts.Service
		realm    *api.Realm
		views    views
		opts     Options
	}

	statusBody struct {
		Status string `json:"status"`
	}
)

// NewHandler returns the full lockbox http surface.
func NewHandler(svc *accounts.Service, verifier api.Verifier, opts Options) (http.Handler, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = session.DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	h := &handler{accounts: svc, views: v, opts: opts}
	h.realm = api.NewRealm(verifier, api.Options{Deny: h.deny})

	router := httprouter.New()
	route := func(method, path string, fn http.HandlerFunc, gated bool) {
		var next http.Handler = fn
		if gated {
			next = h.realm.Protect(next)
		}
		router.Handler(method, path, opts.Metrics.Instrument(path, next))
	}
	route(http.MethodGet, "/", h.page(viewHome), false)
	route(http.MethodGet, "/login", h.page(viewLogin), false)
	route(http.MethodGet, "/register", h.page(viewRegister), false)
	route(http.MethodGet, "/submit", h.page(viewSubmit), true)
	route(http.MethodPost, "/register", h.register, false)
	route(http.MethodPost, "/login", h.login, false)
	route(http.MethodPost, "/submit", h.submit, true)
	route(http.MethodGet, "/logout", h.logout, true)
	route(http.MethodGet, "/logoutall", h.logoutAll, true)
	router.Handler(http.MethodGet, "/metrics", opts.Metrics.Handler())
	router.NotFound = opts.Metrics.Instrument("notfound", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.renderError(w, r, http.StatusNotFound, "page not found")
	}))

	return logutil.Middleware(*opts.Logger, router), nil
}

func (h *handler) page(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, view, nil, map[string]string{"view": view})
	}
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, accounts.ValidationError{Field: "body", Reason: "must be a valid form"})
		return
	}
	g, err := h.accounts.Register(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setSessionCookie(w, r, g.Token)
	h.render(w, r, http.StatusCreated, viewSecrets, nil, statusBody{Status: "stored"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, accounts.ValidationError{Field: "body", Reason: "must be a valid form"})
		return
	}
	g, err := h.accounts.Login(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setSessionCookie(w, r, g.Token)
	h.render(w, r, http.StatusCreated, viewSecrets, nil, statusBody{Status: "stored"})
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	id := api.IdentityFrom(r.Context())
	if id == nil {
		h.fail(w, r, accounts.Unauthenticated{Reason: "no session"})
		return
	}
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, accounts.ValidationError{Field: "body", Reason: "must be a valid form"})
		return
	}
	if _, err := h.accounts.Submit(r.Context(), id, r.PostForm.Get("secret")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusCreated, viewSecrets, nil, statusBody{Status: "stored"})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), api.IdentityFrom(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	h.clearSessionCookie(w, r)
	h.render(w, r, http.StatusOK, viewHome, nil, statusBody{Status: "signed-out"})
}

func (h *handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	id := api.IdentityFrom(r.Context())
	if id == nil {
		h.fail(w, r, accounts.Unauthenticated{Reason: "no session"})
		return
	}
	if err := h.accounts.LogoutAll(r.Context(), id.User.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.clearSessionCookie(w, r)
	h.render(w, r, http.StatusOK, viewHome, nil, statusBody{Status: "signed-out"})
}

func (h *handler) deny(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code == http.StatusUnauthorized {
		h.renderError(w, r, code, "invalid credentials")
		return
	}
	h.renderError(w, r, code, "internal error")
}

func (h *handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  h.opts.Now().Add(h.opts.TokenTTL),
		MaxAge:   int(h.opts.TokenTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !h.opts.AllowHTTPCookie,
	})
}

func (h *handler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !h.opts.AllowHTTPCookie,
	})
}
