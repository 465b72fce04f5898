package authc

import "context"

// Realm owns one identity source and authenticates tokens against it.
type Realm interface {
	Name() string

	// SupportedTokenTypes lists the token types the realm evaluates. It is
	// consulted once, when the Authenticator is built.
	SupportedTokenTypes() []TokenType
	Supports(token Token) bool

	// Authenticate returns the account when the token's credentials match.
	// Mismatches are reported as *IncorrectCredentialsError, absent accounts
	// as ErrUnknownAccount.
	Authenticate(ctx context.Context, token Token) (*Account, error)

	ClearCachedCredentials(ctx context.Context, identifier string) error
}

// LockingRealm is the capability of persisting an account-locked state.
// Exactly one realm acts as lock authority for an Authenticator.
type LockingRealm interface {
	LockAccount(ctx context.Context, account *Account) error
	UnlockAccount(ctx context.Context, identifier string) error
}

// MFAChallenger dispatches an out-of-band challenge (e.g. an SMS code) when a
// higher tier is required.
type MFAChallenger interface {
	SendChallenge(ctx context.Context, accountID IdentifierCollection) error
}
