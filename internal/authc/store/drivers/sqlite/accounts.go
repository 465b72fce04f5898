package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
)

type accountsRepo struct {
	db  dbtx
	now func() time.Time
}

const accountColumns = `id, username, locked_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var (
		a                    domain.Account
		lockedAt             sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&a.ID, &a.Username, &lockedAt, &createdAt, &updatedAt); err != nil {
		return domain.Account{}, err
	}
	a.LockedAt = mapNullTimePtr(lockedAt)
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) GetAccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	now := toNanos(r.now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, locked_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Username, mapOptionalTime(a.LockedAt), now, now,
	)
	return mapConstraint(err)
}

func (r *accountsRepo) SetLockedAt(ctx context.Context, accountID string, lockedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET locked_at = ?, updated_at = ? WHERE id = ?`,
		mapOptionalTime(lockedAt), toNanos(r.now()), accountID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *accountsRepo) DeleteAccount(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *accountsRepo) ListLockedAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE locked_at IS NOT NULL ORDER BY locked_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *accountsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
