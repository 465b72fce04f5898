package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
)

type credentialsRepo struct {
	db  dbtx
	now func() time.Time
}

func (r *credentialsRepo) SetCredential(ctx context.Context, c domain.Credential) error {
	now := toNanos(r.now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (account_id, token_type, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account_id, token_type)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		c.AccountID, c.TokenType, c.Value, now, now,
	)
	return mapConstraint(err)
}

func (r *credentialsRepo) ListCredentials(ctx context.Context, accountID string) ([]domain.Credential, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, token_type, value, created_at, updated_at
		FROM credentials WHERE account_id = ? ORDER BY token_type`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []domain.Credential
	for rows.Next() {
		var (
			c                    domain.Credential
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&c.AccountID, &c.TokenType, &c.Value, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = fromNanos(createdAt)
		c.UpdatedAt = fromNanos(updatedAt)
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (r *credentialsRepo) DeleteCredential(ctx context.Context, accountID, tokenType string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE account_id = ? AND token_type = ?`, accountID, tokenType)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
