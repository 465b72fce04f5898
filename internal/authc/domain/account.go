package domain

import "time"

type Account struct {
	ID        string
	Username  string
	LockedAt  *time.Time // set while the account is locked (nullable)
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credential is the stored secret for one token type, e.g. an argon2id hash
// for "password" or a base32 secret for "totp".
type Credential struct {
	AccountID string
	TokenType string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type FailedAttempt struct {
	AccountID   string
	TokenType   string
	AttemptedAt time.Time
}
