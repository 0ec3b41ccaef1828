// Package api guards http handlers behind a verified session token.
package api

import (
	"context"
	"net/http"
	"regexp"

	"github.com/andrebq/lockbox/internal/logutil"
	"github.com/andrebq/lockbox/session"
	"github.com/andrebq/lockbox/vault"
)

const (
	CookieName = "jwt"
)

type (
	Verifier interface {
		Verify(ctx context.Context, token string) (*vault.User, error)
	}

	// DenyFunc writes the response for a request the realm refused. status
	// is 401 for rejected tokens and 500 when verification itself failed.
	DenyFunc func(w http.ResponseWriter, r *http.Request, status int, err error)

	Options struct {
		Deny DenyFunc
	}

	Realm struct {
		verifier Verifier
		deny     DenyFunc
	}

	// Identity is the user a request acts as, plus the token that proved it.
	Identity struct {
		User  *vault.User
		Token string
	}

	identityKey struct{}

	missingToken struct{}
)

var (
	bearerTokenRE = regexp.MustCompile(`^Bearer ([^\s]+)$`)
)

func (missingToken) Error() string { return "no session token in request" }

func NewRealm(verifier Verifier, opts Options) *Realm {
	if opts.Deny == nil {
		opts.Deny = plainDeny
	}
	return &Realm{verifier: verifier, deny: opts.Deny}
}

// Protect only calls sensitive when the request carries a valid token. The
// resolved Identity is available to it through IdentityFrom.
func (s *Realm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, status, err := s.resolve(r)
		if err != nil {
			s.deny(w, r, status, err)
			return
		}
		sensitive.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (s *Realm) resolve(r *http.Request) (*Identity, int, error) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	token := TokenFrom(r)
	if token == "" {
		return nil, http.StatusUnauthorized, missingToken{}
	}
	u, err := s.verifier.Verify(ctx, token)
	if session.IsVerificationError(err) {
		log.Debug().Err(err).Msg("Session token rejected")
		return nil, http.StatusUnauthorized, err
	} else if err != nil {
		log.Error().Err(err).Msg("Unexpected error while verifying session token")
		return nil, http.StatusInternalServerError, err
	}
	return &Identity{User: u, Token: token}, http.StatusOK, nil
}

// TokenFrom extracts the session token from the jwt cookie or, failing
// that, from a bearer Authorization header.
func TokenFrom(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	groups := bearerTokenRE.FindStringSubmatch(r.Header.Get("Authorization"))
	if len(groups) == 0 {
		return ""
	}
	return groups[1]
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity attached by Protect, or nil.
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	if id == nil || id.User == nil {
		return nil
	}
	return id
}

func plainDeny(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status == http.StatusUnauthorized {
		http.Error(w, "Invalid credentials", status)
		return
	}
	http.Error(w, http.StatusText(status), status)
}
