// Package accounts implements the user facing actions: register, login,
// logout, logout-all and submitting a secret.
//
// Every action returns an explicit result or a typed error so callers can
// pick the right response without guessing.
package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/andrebq/lockbox/internal/logutil"
	"github.com/andrebq/lockbox/internal/metrics"
	"github.com/andrebq/lockbox/password"
	"github.com/andrebq/lockbox/session"
	"github.com/andrebq/lockbox/session/api"
	"github.com/andrebq/lockbox/vault"
)

type (
	// Grant is what a successful register or login hands back.
	Grant struct {
		User  *vault.User
		Token string
	}

	Hasher interface {
		Hash(plain string) (string, error)
		Verify(plain, hash string) (bool, error)
	}

	Sessions interface {
		Issue(ctx context.Context, userID string) (string, error)
		Revoke(ctx context.Context, userID, token string) error
		RevokeAll(ctx context.Context, userID string) error
	}

	Service struct {
		users    vault.Credentials
		notes    vault.Notes
		hasher   Hasher
		sessions Sessions
		metrics  *metrics.Metrics
	}
)

var (
	_ Hasher   = (*password.Hasher)(nil)
	_ Sessions = (*session.Issuer)(nil)
)

// New builds a Service. m may be nil.
func New(users vault.Credentials, notes vault.Notes, hasher Hasher, sessions Sessions, m *metrics.Metrics) *Service {
	return &Service{
		users:    users,
		notes:    notes,
		hasher:   hasher,
		sessions: sessions,
		metrics:  m,
	}
}

// Register creates a user and signs them in.
func (s *Service) Register(ctx context.Context, email, plain string) (g *Grant, err error) {
	defer s.record("register", &err)
	u, err := s.CreateAccount(ctx, email, plain)
	if err != nil {
		return nil, err
	}
	token, err := s.sessions.Issue(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Sessions.Add(token)
	logger := logutil.GetOrDefault(ctx)
	logger.Info().Str("user.id", u.ID).Msg("User registered")
	return &Grant{User: u, Token: token}, nil
}

// CreateAccount validates and stores a new user without signing them in.
func (s *Service) CreateAccount(ctx context.Context, email, plain string) (*vault.User, error) {
	email = vault.NormalizeEmail(email)
	if err := validateCredentials(email, plain, true); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return nil, err
	}
	return s.users.CreateUser(ctx, email, hash)
}

// Login checks the password first and only issues a token when it matches.
func (s *Service) Login(ctx context.Context, email, plain string) (g *Grant, err error) {
	defer s.record("login", &err)
	email = vault.NormalizeEmail(email)
	if err := validateCredentials(email, plain, false); err != nil {
		return nil, err
	}
	u, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, vault.NotFound{}) {
		return nil, Unauthenticated{Reason: "invalid email or password"}
	} else if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Verify(plain, u.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Unauthenticated{Reason: "invalid email or password"}
	}
	token, err := s.sessions.Issue(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Sessions.Add(token)
	return &Grant{User: u, Token: token}, nil
}

// Logout revokes only the token presented with the request.
func (s *Service) Logout(ctx context.Context, id *api.Identity) (err error) {
	defer s.record("logout", &err)
	if id == nil || id.User == nil {
		return Unauthenticated{Reason: "no session"}
	}
	return s.sessions.Revoke(ctx, id.User.ID, id.Token)
}

// LogoutAll revokes every token of userID.
func (s *Service) LogoutAll(ctx context.Context, userID string) (err error) {
	defer s.record("logoutall", &err)
	if userID == "" {
		return Unauthenticated{Reason: "no session"}
	}
	return s.sessions.RevokeAll(ctx, userID)
}

// Submit stores content as an anonymous note. The identity is only used to
// gate the action and is not linked to the note.
func (s *Service) Submit(ctx context.Context, id *api.Identity, content string) (*vault.Note, error) {
	if id == nil || id.User == nil {
		return nil, Unauthenticated{Reason: "no session"}
	}
	if strings.TrimSpace(content) == "" {
		return nil, ValidationError{Field: "secret", Reason: "must not be empty"}
	}
	n, err := s.notes.CreateNote(ctx, content)
	if err != nil {
		return nil, err
	}
	s.metrics.NoteStored()
	return n, nil
}

func (s *Service) record(action string, err *error) {
	switch {
	case *err == nil:
		s.metrics.AuthEvent(action, metrics.Success)
	case isRejection(*err):
		s.metrics.AuthEvent(action, metrics.Rejected)
	default:
		s.metrics.AuthEvent(action, metrics.Failed)
	}
}

func isRejection(err error) bool {
	return errors.Is(err, ValidationError{}) ||
		errors.Is(err, Unauthenticated{}) ||
		errors.Is(err, vault.DuplicateEmail{}) ||
		session.IsVerificationError(err)
}

func validateCredentials(email, plain string, checkSyntax bool) error {
	if email == "" {
		return ValidationError{Field: "username", Reason: "is required"}
	}
	if plain == "" {
		return ValidationError{Field: "password", Reason: "is required"}
	}
	if len(plain) > password.MaxLength {
		return ValidationError{Field: "password", Reason: "must be at most 72 bytes"}
	}
	if checkSyntax {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			return ValidationError{Field: "username", Reason: "must be a valid email address"}
		}
	}
	return nil
}
