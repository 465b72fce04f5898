package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/authz"
	"github.com/aussiebroadwan/realmauth/pkg/realm"
)

// Identifier sources contributed by the adapter alongside the realm's own.
const (
	SourceUsername  = "username"
	SourceAccountID = "account_id"
)

// AccountStoreAdapter adapts Store to the realm.AccountStore contract and its
// optional FailureRecorder and AccountLocker capabilities. Identities are
// resolved by username.
type AccountStoreAdapter struct {
	store Store
}

var (
	_ realm.AccountStore    = (*AccountStoreAdapter)(nil)
	_ realm.FailureRecorder = (*AccountStoreAdapter)(nil)
	_ realm.AccountLocker   = (*AccountStoreAdapter)(nil)
)

func NewAccountStoreAdapter(store Store) *AccountStoreAdapter {
	return &AccountStoreAdapter{store: store}
}

// GetAccount assembles the account, its credentials and its failed-attempt
// history from one transaction so the snapshot is consistent.
func (a *AccountStoreAdapter) GetAccount(ctx context.Context, token authc.Token) (*authc.Account, error) {
	var out *authc.Account
	err := a.store.WithTx(ctx, func(tx Tx) error {
		acct, err := tx.Accounts().GetAccountByUsername(ctx, token.Identifier())
		if err != nil {
			return err
		}
		creds, err := tx.Credentials().ListCredentials(ctx, acct.ID)
		if err != nil {
			return err
		}
		attempts, err := tx.FailedAttempts().ListFailedAttempts(ctx, acct.ID)
		if err != nil {
			return err
		}
		out = toAuthcAccount(acct, creds, attempts)
		return nil
	})
	if err != nil {
		return nil, mapAccountNotFound(err)
	}
	return out, nil
}

// GetAuthzInfo returns role names and the union of role and direct
// permissions for identifier.
func (a *AccountStoreAdapter) GetAuthzInfo(ctx context.Context, identifier string) (*authz.Info, error) {
	var info *authz.Info
	err := a.store.WithTx(ctx, func(tx Tx) error {
		acct, err := tx.Accounts().GetAccountByUsername(ctx, identifier)
		if err != nil {
			return err
		}
		roles, err := tx.Roles().ListAccountRoles(ctx, acct.ID)
		if err != nil {
			return err
		}
		direct, err := tx.Roles().ListAccountPermissions(ctx, acct.ID)
		if err != nil {
			return err
		}

		info = &authz.Info{}
		perms := slices.Clone(direct)
		for _, role := range roles {
			info.Roles = append(info.Roles, role.Name)
			perms = append(perms, role.Permissions...)
		}
		slices.Sort(perms)
		info.Permissions = slices.Compact(perms)
		return nil
	})
	if err != nil {
		return nil, mapAccountNotFound(err)
	}
	return info, nil
}

func (a *AccountStoreAdapter) RecordFailedAttempt(ctx context.Context, identifier string, tokenType authc.TokenType, at time.Time) error {
	acct, err := a.store.Accounts().GetAccountByUsername(ctx, identifier)
	if err != nil {
		return mapAccountNotFound(err)
	}
	return a.store.FailedAttempts().RecordFailedAttempt(ctx, domain.FailedAttempt{
		AccountID:   acct.ID,
		TokenType:   tokenType.Name,
		AttemptedAt: at,
	})
}

func (a *AccountStoreAdapter) ResetFailedAttempts(ctx context.Context, identifier string, tokenType authc.TokenType) error {
	acct, err := a.store.Accounts().GetAccountByUsername(ctx, identifier)
	if err != nil {
		return mapAccountNotFound(err)
	}
	return a.store.FailedAttempts().ResetFailedAttempts(ctx, acct.ID, tokenType.Name)
}

func (a *AccountStoreAdapter) LockAccount(ctx context.Context, identifier string, at time.Time) error {
	return a.setLockedAt(ctx, identifier, &at)
}

func (a *AccountStoreAdapter) UnlockAccount(ctx context.Context, identifier string) error {
	return a.setLockedAt(ctx, identifier, nil)
}

func (a *AccountStoreAdapter) setLockedAt(ctx context.Context, identifier string, at *time.Time) error {
	acct, err := a.store.Accounts().GetAccountByUsername(ctx, identifier)
	if err != nil {
		return mapAccountNotFound(err)
	}
	return mapAccountNotFound(a.store.Accounts().SetLockedAt(ctx, acct.ID, at))
}

func toAuthcAccount(acct domain.Account, creds []domain.Credential, attempts []domain.FailedAttempt) *authc.Account {
	ids := authc.NewIdentifierCollection(SourceUsername, acct.Username)
	ids.Add(SourceAccountID, acct.ID)

	out := &authc.Account{
		ID:        ids,
		AuthcInfo: make(map[string]authc.AuthcRecord, len(creds)),
		LockedAt:  acct.LockedAt,
	}
	for _, c := range creds {
		out.AuthcInfo[c.TokenType] = authc.AuthcRecord{Credential: c.Value}
	}
	for _, f := range attempts {
		rec, ok := out.AuthcInfo[f.TokenType]
		if !ok {
			// history for a credential that has since been removed
			continue
		}
		rec.FailedAttempts = append(rec.FailedAttempts, f.AttemptedAt)
		out.AuthcInfo[f.TokenType] = rec
	}
	return out
}

func mapAccountNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return errors.Join(realm.ErrAccountNotFound, err)
	}
	return err
}
