package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/realmauth/internal/authc/store"
)

type txStore struct {
	tx  *sql.Tx
	now func() time.Time
}

func newTx(tx *sql.Tx, now func() time.Time) *txStore {
	return &txStore{tx: tx, now: now}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // nothing to close; caller will commit/rollback and outer DB stays open

// Ping is a no-op for transactions, the connection is already established.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Accounts() store.Accounts             { return &accountsRepo{db: t.tx, now: t.now} }
func (t *txStore) Credentials() store.Credentials       { return &credentialsRepo{db: t.tx, now: t.now} }
func (t *txStore) FailedAttempts() store.FailedAttempts { return &failedAttemptsRepo{db: t.tx} }
func (t *txStore) Roles() store.Roles                   { return &rolesRepo{db: t.tx, now: t.now} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations are applied before starting a tx
