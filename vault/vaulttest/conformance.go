// Package vaulttest holds the behavior every vault.Store backend must share.
package vaulttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/andrebq/lockbox/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns an empty store. Cleanup should be registered with t.Cleanup.
type Opener func(t *testing.T) vault.Store

func RunConformance(t *testing.T, open Opener) {
	t.Run("create and find", func(t *testing.T) { createAndFind(t, open(t)) })
	t.Run("duplicate email", func(t *testing.T) { duplicateEmail(t, open(t)) })
	t.Run("concurrent registration", func(t *testing.T) { concurrentRegistration(t, open(t)) })
	t.Run("not found", func(t *testing.T) { notFound(t, open(t)) })
	t.Run("save sessions", func(t *testing.T) { saveSessions(t, open(t)) })
	t.Run("save unknown user", func(t *testing.T) { saveUnknown(t, open(t)) })
	t.Run("notes", func(t *testing.T) { notes(t, open(t)) })
}

func createAndFind(t *testing.T, s vault.Store) {
	ctx := context.Background()
	u, err := s.CreateUser(ctx, " Bob@Example.com", "hash-1")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.Equal(t, "bob@example.com", u.Email)
	require.Empty(t, u.Sessions)

	byEmail, err := s.FindUserByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, "hash-1", byEmail.PasswordHash)

	byID, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)
	require.WithinDuration(t, u.CreatedAt, byID.CreatedAt, 0)
}

func duplicateEmail(t *testing.T, s vault.Store) {
	ctx := context.Background()
	_, err := s.CreateUser(ctx, "a@example.com", "h1")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "A@example.com", "h2")
	require.True(t, errors.Is(err, vault.DuplicateEmail{}), "got %v", err)

	u, err := s.FindUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "h1", u.PasswordHash)
}

func concurrentRegistration(t *testing.T, s vault.Store) {
	ctx := context.Background()
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateUser(ctx, "race@example.com", fmt.Sprintf("h%v", i))
		}(i)
	}
	wg.Wait()
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, vault.DuplicateEmail{}), "unexpected error %v", err)
	}
	require.Equal(t, 1, ok)
}

func notFound(t *testing.T, s vault.Store) {
	ctx := context.Background()
	_, err := s.FindUserByEmail(ctx, "ghost@example.com")
	require.True(t, errors.Is(err, vault.NotFound{}), "got %v", err)
	_, err = s.FindUserByID(ctx, "no-such-id")
	require.True(t, errors.Is(err, vault.NotFound{}), "got %v", err)
}

func saveSessions(t *testing.T, s vault.Store) {
	ctx := context.Background()
	u, err := s.CreateUser(ctx, "s@example.com", "h")
	require.NoError(t, err)

	u.Sessions.Add("t1")
	u.Sessions.Add("t2")
	u.Sessions.Add("t3")
	require.NoError(t, s.SaveUser(ctx, u))

	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, vault.Sessions{"t1", "t2", "t3"}, got.Sessions)

	got.Sessions.Remove("t2")
	got.PasswordHash = "h2"
	require.NoError(t, s.SaveUser(ctx, got))
	got, err = s.FindUserByEmail(ctx, "s@example.com")
	require.NoError(t, err)
	require.Equal(t, vault.Sessions{"t1", "t3"}, got.Sessions)
	require.Equal(t, "h2", got.PasswordHash)

	got.Sessions.Clear()
	require.NoError(t, s.SaveUser(ctx, got))
	got, err = s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, got.Sessions)
}

func saveUnknown(t *testing.T, s vault.Store) {
	err := s.SaveUser(context.Background(), &vault.User{ID: "missing", Email: "m@example.com"})
	require.True(t, errors.Is(err, vault.NotFound{}), "got %v", err)
}

func notes(t *testing.T, s vault.Store) {
	ctx := context.Background()
	list, err := s.ListNotes(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	a, err := s.CreateNote(ctx, "first secret")
	require.NoError(t, err)
	b, err := s.CreateNote(ctx, "first secret")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	list, err = s.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, n := range list {
		require.Equal(t, "first secret", n.Content)
	}
}
