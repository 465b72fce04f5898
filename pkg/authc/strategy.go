package authc

import (
	"context"
	"errors"
	"fmt"
)

// Attempt is one authentication submission against the realms that support
// its token.
type Attempt struct {
	Token  Token
	Realms []Realm
}

// Strategy combines the outcomes of several realms into one account.
// Implementations requiring a single success must stop consulting realms as
// soon as it is obtained.
type Strategy interface {
	Execute(ctx context.Context, attempt Attempt) (*Account, error)
}

// FirstRealmSuccessful tries realms in order and returns the first account
// that authenticates. If every realm fails, the most specific failure is
// returned.
type FirstRealmSuccessful struct{}

func (FirstRealmSuccessful) Execute(ctx context.Context, attempt Attempt) (*Account, error) {
	return AtLeastN{N: 1}.Execute(ctx, attempt)
}

// AtLeastN requires N realms to authenticate the token. Realms are consulted
// in order until N have succeeded; the first account is returned with the
// identifiers of every successful realm merged into it.
type AtLeastN struct {
	N int
}

func (s AtLeastN) Execute(ctx context.Context, attempt Attempt) (*Account, error) {
	need := max(s.N, 1)
	if len(attempt.Realms) < need {
		return nil, fmt.Errorf("%w: %d realms cannot satisfy %d required successes", ErrUnsupportedToken, len(attempt.Realms), need)
	}

	var (
		account   *Account
		successes int
		failure   error
	)
	for _, realm := range attempt.Realms {
		acct, err := realm.Authenticate(ctx, attempt.Token)
		if err == nil && acct == nil {
			err = ErrUnknownAccount
		}
		if err != nil {
			failure = moreSpecific(failure, err)
			continue
		}
		if account == nil {
			account = acct
		} else {
			account.ID.Merge(acct.ID)
		}
		successes++
		if successes >= need {
			return account, nil
		}
	}

	if failure == nil {
		failure = ErrUnknownAccount
	}
	return nil, failure
}

// AllSuccessful requires every realm to authenticate the token and stops at
// the first failure.
type AllSuccessful struct{}

func (AllSuccessful) Execute(ctx context.Context, attempt Attempt) (*Account, error) {
	if len(attempt.Realms) == 0 {
		return nil, ErrUnsupportedToken
	}

	var account *Account
	for _, realm := range attempt.Realms {
		acct, err := realm.Authenticate(ctx, attempt.Token)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			return nil, fmt.Errorf("%w: realm %s returned no account", ErrUnknownAccount, realm.Name())
		}
		if account == nil {
			account = acct
		} else {
			account.ID.Merge(acct.ID)
		}
	}
	return account, nil
}

// specificity ranks failures so an aggregate surfaces the one that tells the
// caller the most. Infrastructure errors outrank an unknown account so an
// outage in one realm is not reported as a missing identity.
func specificity(err error) int {
	switch {
	case errors.Is(err, ErrLockedAccount):
		return 5
	case errors.Is(err, ErrIncorrectCredentials):
		return 4
	case errors.Is(err, ErrInvalidToken):
		return 3
	case errors.Is(err, ErrUnknownAccount):
		return 1
	default:
		return 2
	}
}

func moreSpecific(current, candidate error) error {
	if current == nil || specificity(candidate) > specificity(current) {
		return candidate
	}
	return current
}
