// Package memvault keeps users and notes in process memory.
//
// Records are stored as JSON documents in a bigcache instance configured to
// never evict, so nothing survives a restart but nothing disappears while
// the process is alive either.
package memvault

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/andrebq/lockbox/vault"
	"github.com/google/uuid"
)

type (
	Store struct {
		// writes serializes every mutation so email uniqueness can be checked
		// and claimed atomically.
		writes sync.Mutex
		cache  *bigcache.BigCache
		now    func() time.Time
	}

	userDoc struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"password_hash"`
		Sessions     []string  `json:"sessions"`
		CreatedAt    time.Time `json:"created_at"`
	}

	noteDoc struct {
		ID        string    `json:"id"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}
)

const (
	userPrefix  = "user/"
	emailPrefix = "email/"
	notePrefix  = "note/"
)

var _ vault.Store = (*Store)(nil)

func New(ctx context.Context) (*Store, error) {
	cfg := bigcache.DefaultConfig(100 * 365 * 24 * time.Hour)
	cfg.CleanWindow = 0
	cfg.Verbose = false
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, vault.Fail("create memory store", err)
	}
	return &Store{cache: cache, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.cache.Close()
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*vault.User, error) {
	email = vault.NormalizeEmail(email)
	s.writes.Lock()
	defer s.writes.Unlock()

	_, err := s.cache.Get(emailPrefix + email)
	if err == nil {
		return nil, vault.DuplicateEmail{Email: email}
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, vault.Fail("create user", err)
	}
	u := &vault.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Sessions:     vault.Sessions{},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.putUser(u); err != nil {
		return nil, vault.Fail("create user", err)
	}
	if err := s.cache.Set(emailPrefix+email, []byte(u.ID)); err != nil {
		return nil, vault.Fail("create user", err)
	}
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*vault.User, error) {
	email = vault.NormalizeEmail(email)
	id, err := s.cache.Get(emailPrefix + email)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, vault.NotFound{Kind: "user", Key: email}
	} else if err != nil {
		return nil, vault.Fail("find user", err)
	}
	return s.FindUserByID(ctx, string(id))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*vault.User, error) {
	buf, err := s.cache.Get(userPrefix + id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, vault.NotFound{Kind: "user", Key: id}
	} else if err != nil {
		return nil, vault.Fail("find user", err)
	}
	var doc userDoc
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, vault.Fail("decode user", err)
	}
	return &vault.User{
		ID:           doc.ID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Sessions:     append(vault.Sessions{}, doc.Sessions...),
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *Store) SaveUser(ctx context.Context, u *vault.User) error {
	s.writes.Lock()
	defer s.writes.Unlock()

	current, err := s.FindUserByID(ctx, u.ID)
	if err != nil {
		return err
	}
	email := vault.NormalizeEmail(u.Email)
	if email != current.Email {
		if _, err := s.cache.Get(emailPrefix + email); err == nil {
			return vault.DuplicateEmail{Email: email}
		}
		if err := s.cache.Delete(emailPrefix + current.Email); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return vault.Fail("save user", err)
		}
		if err := s.cache.Set(emailPrefix+email, []byte(u.ID)); err != nil {
			return vault.Fail("save user", err)
		}
	}
	next := u.Clone()
	next.Email = email
	next.CreatedAt = current.CreatedAt
	if err := s.putUser(next); err != nil {
		return vault.Fail("save user", err)
	}
	return nil
}

func (s *Store) putUser(u *vault.User) error {
	buf, err := json.Marshal(userDoc{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Sessions:     u.Sessions,
		CreatedAt:    u.CreatedAt,
	})
	if err != nil {
		return err
	}
	return s.cache.Set(userPrefix+u.ID, buf)
}

func (s *Store) CreateNote(ctx context.Context, content string) (*vault.Note, error) {
	n := &vault.Note{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	buf, err := json.Marshal(noteDoc{ID: n.ID, Content: n.Content, CreatedAt: n.CreatedAt})
	if err != nil {
		return nil, vault.Fail("create note", err)
	}
	if err := s.cache.Set(notePrefix+n.ID, buf); err != nil {
		return nil, vault.Fail("create note", err)
	}
	return n, nil
}

// ListNotes walks the whole cache, so it is only meant for exports.
func (s *Store) ListNotes(ctx context.Context) ([]vault.Note, error) {
	var out []vault.Note
	it := s.cache.Iterator()
	for it.SetNext() {
		e, err := it.Value()
		if err != nil {
			return nil, vault.Fail("list notes", err)
		}
		if !strings.HasPrefix(e.Key(), notePrefix) {
			continue
		}
		var doc noteDoc
		if err := json.Unmarshal(e.Value(), &doc); err != nil {
			return nil, vault.Fail("decode note", err)
		}
		out = append(out, vault.Note{ID: doc.ID, Content: doc.Content, CreatedAt: doc.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
