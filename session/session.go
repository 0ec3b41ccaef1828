// Package session issues and verifies signed session tokens.
//
// A token is only valid while it is both correctly signed and present in
// the owner's vault.Sessions list. Removing it from the list revokes it
// regardless of its expiry.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/andrebq/lockbox/vault"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTTL = 24 * time.Hour
)

type (
	Options struct {
		TTL time.Duration
		// Now defaults to time.Now.
		Now func() time.Time
	}

	Issuer struct {
		secret Secret
		users  vault.Credentials
		ttl    time.Duration
		now    func() time.Time
		locks  keyedMutex
	}
)

// NewIssuer returns an Issuer that signs with secret and keeps allow-lists in
// users.
func NewIssuer(secret Secret, users vault.Credentials, opts Options) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: signing secret is empty")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Issuer{
		secret: append(Secret(nil), secret...),
		users:  users,
		ttl:    opts.TTL,
		now:    opts.Now,
	}, nil
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a new token for userID and appends it to the user's sessions.
func (i *Issuer) Issue(ctx context.Context, userID string) (string, error) {
	unlock := i.locks.Lock(userID)
	defer unlock()

	u, err := i.loadSubject(ctx, userID)
	if err != nil {
		return "", err
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.secret))
	if err != nil {
		return "", err
	}
	u.Sessions.Add(token)
	if err := i.users.SaveUser(ctx, u); err != nil {
		return "", err
	}
	return token, nil
}

// Verify checks the signature and expiry of token, then makes sure it is
// still on its subject's allow-list.
func (i *Issuer) Verify(ctx context.Context, token string) (*vault.User, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(i.secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, Expired{}
	} else if err != nil {
		return nil, InvalidSignature{cause: err}
	}
	if claims.Subject == "" {
		return nil, InvalidSignature{cause: errors.New("token has no subject")}
	}
	u, err := i.loadSubject(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !u.Sessions.Contains(token) {
		return nil, Revoked{}
	}
	return u, nil
}

// Revoke removes token from the sessions of userID. Revoking a token that
// is not on the list is not an error.
func (i *Issuer) Revoke(ctx context.Context, userID, token string) error {
	return i.mutate(ctx, userID, func(s *vault.Sessions) { s.Remove(token) })
}

// RevokeAll empties the sessions of userID.
func (i *Issuer) RevokeAll(ctx context.Context, userID string) error {
	return i.mutate(ctx, userID, func(s *vault.Sessions) { s.Clear() })
}

func (i *Issuer) mutate(ctx context.Context, userID string, fn func(*vault.Sessions)) error {
	unlock := i.locks.Lock(userID)
	defer unlock()

	u, err := i.loadSubject(ctx, userID)
	if err != nil {
		return err
	}
	fn(&u.Sessions)
	return i.users.SaveUser(ctx, u)
}

func (i *Issuer) loadSubject(ctx context.Context, userID string) (*vault.User, error) {
	u, err := i.users.FindUserByID(ctx, userID)
	if errors.Is(err, vault.NotFound{}) {
		return nil, UnknownSubject{Subject: userID}
	}
	return u, err
}
