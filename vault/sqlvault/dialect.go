package sqlvault

import (
	"embed"
	"errors"
	"io/fs"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

type (
	// Dialect bundles everything that differs between the supported
	// databases: driver name, migrations and query text.
	Dialect struct {
		Name       string
		driver     string
		goose      goose.Dialect
		migrations string
		q          queries
		isUnique   func(error) bool
	}

	queries struct {
		insertUser     string
		userByEmail    string
		userByID       string
		sessionsOf     string
		updateUser     string
		deleteSessions string
		insertSession  string
		insertNote     string
		listNotes      string
	}
)

//go:embed migrations
var migrations embed.FS

var (
	SQLite = Dialect{
		Name:       "sqlite",
		driver:     "sqlite3",
		goose:      goose.DialectSQLite3,
		migrations: "migrations/sqlite",
		isUnique: func(err error) bool {
			var se sqlite3.Error
			return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
		},
		q: queries{
			insertUser:     `insert into users(user_id, email, email_hash64, password_hash, created_at) values (?, ?, ?, ?, ?)`,
			userByEmail:    `select user_id, email, password_hash, created_at from users where email_hash64 = ? and email = ?`,
			userByID:       `select user_id, email, password_hash, created_at from users where user_id = ?`,
			sessionsOf:     `select token from sessions where user_id = ? order by position asc`,
			updateUser:     `update users set email = ?, email_hash64 = ?, password_hash = ? where user_id = ?`,
			deleteSessions: `delete from sessions where user_id = ?`,
			insertSession:  `insert into sessions(user_id, position, token) values (?, ?, ?)`,
			insertNote:     `insert into notes(note_id, content, created_at) values (?, ?, ?)`,
			listNotes:      `select note_id, content, created_at from notes order by created_at asc, note_id asc`,
		},
	}

	Postgres = Dialect{
		Name:       "postgres",
		driver:     "pgx",
		goose:      goose.DialectPostgres,
		migrations: "migrations/postgres",
		isUnique: func(err error) bool {
			var pgErr *pgconn.PgError
			return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uidx_users_email"
		},
		q: queries{
			insertUser:     `insert into users(user_id, email, email_hash64, password_hash, created_at) values ($1, $2, $3, $4, $5)`,
			userByEmail:    `select user_id, email, password_hash, created_at from users where email_hash64 = $1 and email = $2`,
			userByID:       `select user_id, email, password_hash, created_at from users where user_id = $1`,
			sessionsOf:     `select token from sessions where user_id = $1 order by position asc`,
			updateUser:     `update users set email = $1, email_hash64 = $2, password_hash = $3 where user_id = $4`,
			deleteSessions: `delete from sessions where user_id = $1`,
			insertSession:  `insert into sessions(user_id, position, token) values ($1, $2, $3)`,
			insertNote:     `insert into notes(note_id, content, created_at) values ($1, $2, $3)`,
			listNotes:      `select note_id, content, created_at from notes order by created_at asc, note_id asc`,
		},
	}
)

func (d Dialect) migrationFS() (fs.FS, error) {
	return fs.Sub(migrations, d.migrations)
}
