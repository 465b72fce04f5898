package realm

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/authz"
)

// ErrAccountNotFound is returned by an AccountStore when an identity is absent.
var ErrAccountNotFound = errors.New("realm: account not found")

// AccountStore is the backing identity source of an AccountStoreRealm.
type AccountStore interface {
	// GetAccount returns the account the token claims, or ErrAccountNotFound.
	GetAccount(ctx context.Context, token authc.Token) (*authc.Account, error)

	// GetAuthzInfo returns the roles and permissions of identifier, or
	// ErrAccountNotFound.
	GetAuthzInfo(ctx context.Context, identifier string) (*authz.Info, error)
}

// FailureRecorder is implemented by stores that persist failed-attempt
// history. Recording must be an append so concurrent failures are never lost.
type FailureRecorder interface {
	RecordFailedAttempt(ctx context.Context, identifier string, tokenType authc.TokenType, at time.Time) error
	ResetFailedAttempts(ctx context.Context, identifier string, tokenType authc.TokenType) error
}

// AccountLocker is implemented by stores that persist the locked state.
type AccountLocker interface {
	LockAccount(ctx context.Context, identifier string, at time.Time) error
	UnlockAccount(ctx context.Context, identifier string) error
}

// CredentialVerifier decides whether a token's credentials match the stored
// credential of an account.
type CredentialVerifier interface {
	CredentialsMatch(ctx context.Context, token authc.Token, account *authc.Account) (bool, error)
}
