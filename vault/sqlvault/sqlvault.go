// Package sqlvault stores users, sessions and notes in a relational
// database. SQLite is the default, Postgres is available through pgx.
package sqlvault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andrebq/lockbox/vault"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

type (
	Control struct {
		db      *sql.DB
		dialect Dialect
		now     func() time.Time
	}
)

var _ vault.Store = (*Control)(nil)

// migrate is replaced in tests that cannot run goose against a mock.
var migrate = func(ctx context.Context, d Dialect, db *sql.DB) error {
	fsys, err := d.migrationFS()
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(d.goose, db, fsys)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}

// OpenSQLite opens (creating if needed) the database file at path and
// applies pending migrations.
func OpenSQLite(ctx context.Context, path string) (*Control, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("unable to create directory %v to store the vault, cause %w", dir, err)
		}
	}
	connstr := fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&_foreign_keys=on&mode=rwc", path)
	return open(ctx, SQLite, connstr, 1)
}

// OpenPostgres connects to dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Control, error) {
	return open(ctx, Postgres, dsn, 0)
}

func open(ctx context.Context, d Dialect, connstr string, maxConns int) (*Control, error) {
	db, err := sql.Open(d.driver, connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v database, cause %w", d.Name, err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping %v database, cause %w", d.Name, err)
	}
	c := New(db, d)
	if err := c.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an already open database. Migrations are not applied.
func New(db *sql.DB, d Dialect) *Control {
	return &Control{db: db, dialect: d, now: time.Now}
}

func (c *Control) Migrate(ctx context.Context) error {
	if err := migrate(ctx, c.dialect, c.db); err != nil {
		return fmt.Errorf("unable to migrate %v database, cause %w", c.dialect.Name, err)
	}
	return nil
}

func (c *Control) Close() error {
	return c.db.Close()
}

func (c *Control) CreateUser(ctx context.Context, email, passwordHash string) (*vault.User, error) {
	email = vault.NormalizeEmail(email)
	u := &vault.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Sessions:     vault.Sessions{},
		CreatedAt:    c.now().UTC().Truncate(time.Microsecond),
	}
	_, err := c.db.ExecContext(ctx, c.dialect.q.insertUser, u.ID, u.Email, emailHash(email), u.PasswordHash, u.CreatedAt)
	if c.dialect.isUnique(err) {
		return nil, vault.DuplicateEmail{Email: email}
	} else if err != nil {
		return nil, vault.Fail("create user", err)
	}
	return u, nil
}

func (c *Control) FindUserByEmail(ctx context.Context, email string) (*vault.User, error) {
	email = vault.NormalizeEmail(email)
	row := c.db.QueryRowContext(ctx, c.dialect.q.userByEmail, emailHash(email), email)
	return c.loadUser(ctx, row, email)
}

func (c *Control) FindUserByID(ctx context.Context, id string) (*vault.User, error) {
	row := c.db.QueryRowContext(ctx, c.dialect.q.userByID, id)
	return c.loadUser(ctx, row, id)
}

func (c *Control) loadUser(ctx context.Context, row *sql.Row, key string) (*vault.User, error) {
	var u vault.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.NotFound{Kind: "user", Key: key}
	} else if err != nil {
		return nil, vault.Fail("load user", err)
	}
	rows, err := c.db.QueryContext(ctx, c.dialect.q.sessionsOf, u.ID)
	if err != nil {
		return nil, vault.Fail("load sessions", err)
	}
	defer rows.Close()
	u.Sessions = vault.Sessions{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, vault.Fail("load sessions", err)
		}
		u.Sessions.Add(token)
	}
	if err := rows.Err(); err != nil {
		return nil, vault.Fail("load sessions", err)
	}
	return &u, nil
}

// SaveUser rewrites the user row and its whole session list in a single
// transaction.
func (c *Control) SaveUser(ctx context.Context, u *vault.User) error {
	email := vault.NormalizeEmail(u.Email)
	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, c.dialect.q.updateUser, email, emailHash(email), u.PasswordHash, u.ID)
		if c.dialect.isUnique(err) {
			return vault.DuplicateEmail{Email: email}
		} else if err != nil {
			return vault.Fail("save user", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return vault.Fail("save user", err)
		}
		if n == 0 {
			return vault.NotFound{Kind: "user", Key: u.ID}
		}
		if _, err := tx.ExecContext(ctx, c.dialect.q.deleteSessions, u.ID); err != nil {
			return vault.Fail("save sessions", err)
		}
		for i, token := range u.Sessions {
			if _, err := tx.ExecContext(ctx, c.dialect.q.insertSession, u.ID, i, token); err != nil {
				return vault.Fail("save sessions", err)
			}
		}
		return nil
	})
}

func (c *Control) CreateNote(ctx context.Context, content string) (*vault.Note, error) {
	n := &vault.Note{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: c.now().UTC().Truncate(time.Microsecond),
	}
	_, err := c.db.ExecContext(ctx, c.dialect.q.insertNote, n.ID, n.Content, n.CreatedAt)
	if err != nil {
		return nil, vault.Fail("create note", err)
	}
	return n, nil
}

func (c *Control) ListNotes(ctx context.Context) ([]vault.Note, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.q.listNotes)
	if err != nil {
		return nil, vault.Fail("list notes", err)
	}
	defer rows.Close()
	var out []vault.Note
	for rows.Next() {
		var n vault.Note
		if err := rows.Scan(&n.ID, &n.Content, &n.CreatedAt); err != nil {
			return nil, vault.Fail("list notes", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, vault.Fail("list notes", err)
	}
	return out, nil
}

func emailHash(email string) int64 {
	return int64(xxhash.Sum64String(email))
}
