package sqlvault

import (
	"context"
	"database/sql"

	"github.com/andrebq/lockbox/vault"
)

// withTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return vault.Fail("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return vault.Fail("commit transaction", err)
	}
	return nil
}
