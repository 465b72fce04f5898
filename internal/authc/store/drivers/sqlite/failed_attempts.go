package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
)

type failedAttemptsRepo struct {
	db dbtx
}

func (r *failedAttemptsRepo) RecordFailedAttempt(ctx context.Context, f domain.FailedAttempt) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO failed_attempts (account_id, token_type, attempted_at) VALUES (?, ?, ?)`,
		f.AccountID, f.TokenType, toNanos(f.AttemptedAt),
	)
	return mapConstraint(err)
}

func (r *failedAttemptsRepo) ListFailedAttempts(ctx context.Context, accountID string) ([]domain.FailedAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, token_type, attempted_at
		FROM failed_attempts WHERE account_id = ? ORDER BY attempted_at, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.FailedAttempt
	for rows.Next() {
		var (
			f  domain.FailedAttempt
			at int64
		)
		if err := rows.Scan(&f.AccountID, &f.TokenType, &at); err != nil {
			return nil, err
		}
		f.AttemptedAt = fromNanos(at)
		attempts = append(attempts, f)
	}
	return attempts, rows.Err()
}

func (r *failedAttemptsRepo) ResetFailedAttempts(ctx context.Context, accountID, tokenType string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM failed_attempts WHERE account_id = ? AND token_type = ?`, accountID, tokenType)
	return err
}

func (r *failedAttemptsRepo) DeleteUnlockedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM failed_attempts
		WHERE attempted_at < ?
		  AND account_id IN (SELECT id FROM accounts WHERE locked_at IS NULL)`,
		toNanos(cutoff),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
