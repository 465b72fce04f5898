package authc

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken reports a malformed claim. Caller-fixable, never retried.
	ErrInvalidToken = errors.New("authc: invalid token")

	// ErrInvalidAuthenticationSequence reports a continuation token submitted
	// without the identifiers established by an earlier tier.
	ErrInvalidAuthenticationSequence = errors.New("authc: invalid authentication sequence")

	ErrUnknownAccount       = errors.New("authc: unknown account")
	ErrIncorrectCredentials = errors.New("authc: incorrect credentials")
	ErrLockedAccount        = errors.New("authc: account locked")

	// ErrRealmMisconfigured is a deployment defect: a realm is missing a
	// required collaborator.
	ErrRealmMisconfigured = errors.New("authc: realm misconfigured")

	// ErrUnsupportedToken is returned when no realm registered support for a
	// token type. This is a configuration defect rather than a request error.
	ErrUnsupportedToken = errors.New("authc: no realm supports token")

	ErrInvalidTierConfiguration = errors.New("authc: invalid tier configuration")

	// ErrAuthenticationEvent reports a security notification that could not be
	// delivered. It is propagated, never dropped.
	ErrAuthenticationEvent = errors.New("authc: authentication event")
)

// IncorrectCredentialsError carries the account whose stored credentials did
// not match, so the caller can inspect its failure history.
type IncorrectCredentialsError struct {
	Account *Account
}

func (e *IncorrectCredentialsError) Error() string {
	if e.Account == nil {
		return ErrIncorrectCredentials.Error()
	}
	return fmt.Sprintf("%s for %q", ErrIncorrectCredentials, e.Account.ID.Primary())
}

func (e *IncorrectCredentialsError) Unwrap() error { return ErrIncorrectCredentials }

// LockedAccountError is terminal for the account until it is administratively
// unlocked.
type LockedAccountError struct {
	Identifier string
}

func (e *LockedAccountError) Error() string {
	return fmt.Sprintf("%s: %q", ErrLockedAccount, e.Identifier)
}

func (e *LockedAccountError) Unwrap() error { return ErrLockedAccount }
