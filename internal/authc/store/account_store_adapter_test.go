package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
	"github.com/aussiebroadwan/realmauth/internal/authc/store"
	"github.com/aussiebroadwan/realmauth/internal/authc/store/drivers/sqlite"
	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/idx"
	"github.com/aussiebroadwan/realmauth/pkg/realm"
)

func seed(t *testing.T) (*sqlite.Store, domain.Account) {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	thor := domain.Account{ID: idx.New().String(), Username: "thor"}
	role := domain.Role{ID: idx.New().String(), Name: "reader", Permissions: []string{"ticket:read:*", "wiki:read"}}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().CreateAccount(ctx, thor); err != nil {
			return err
		}
		if err := tx.Credentials().SetCredential(ctx, domain.Credential{AccountID: thor.ID, TokenType: "password", Value: "hash"}); err != nil {
			return err
		}
		if err := tx.Credentials().SetCredential(ctx, domain.Credential{AccountID: thor.ID, TokenType: "totp", Value: "SECRET"}); err != nil {
			return err
		}
		if err := tx.Roles().CreateRole(ctx, role); err != nil {
			return err
		}
		if err := tx.Roles().AssignRole(ctx, thor.ID, role.ID); err != nil {
			return err
		}
		return tx.Roles().GrantPermission(ctx, thor.ID, "wiki:read")
	}))
	return s, thor
}

func passwordToken(t *testing.T, username string) authc.Token {
	t.Helper()
	token, err := authc.NewPasswordToken(username, []byte("secret"))
	require.NoError(t, err)
	return token
}

func TestAccountStoreAdapter_GetAccount(t *testing.T) {
	ctx := context.Background()
	s, thor := seed(t)
	a := store.NewAccountStoreAdapter(s)

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, a.RecordFailedAttempt(ctx, "thor", authc.PasswordTokenType, now))
	require.NoError(t, a.RecordFailedAttempt(ctx, "thor", authc.PasswordTokenType, now.Add(time.Second)))

	account, err := a.GetAccount(ctx, passwordToken(t, "thor"))
	require.NoError(t, err)
	require.Equal(t, "thor", account.ID.Primary())
	id, ok := account.ID.FromSource(store.SourceAccountID)
	require.True(t, ok)
	require.Equal(t, thor.ID, id)

	require.Equal(t, 2, account.RequiredTiers())
	require.Equal(t, "hash", account.AuthcInfo["password"].Credential)
	require.Len(t, account.FailedAttempts(authc.PasswordTokenType), 2)
	require.Empty(t, account.FailedAttempts(authc.TOTPTokenType))
	require.False(t, account.IsLocked())

	require.NoError(t, a.ResetFailedAttempts(ctx, "thor", authc.PasswordTokenType))
	account, err = a.GetAccount(ctx, passwordToken(t, "thor"))
	require.NoError(t, err)
	require.Empty(t, account.FailedAttempts(authc.PasswordTokenType))
}

func TestAccountStoreAdapter_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	s, _ := seed(t)
	a := store.NewAccountStoreAdapter(s)

	_, err := a.GetAccount(ctx, passwordToken(t, "loki"))
	require.ErrorIs(t, err, realm.ErrAccountNotFound)

	_, err = a.GetAuthzInfo(ctx, "loki")
	require.ErrorIs(t, err, realm.ErrAccountNotFound)

	require.ErrorIs(t, a.LockAccount(ctx, "loki", time.Now()), realm.ErrAccountNotFound)
	require.ErrorIs(t, a.RecordFailedAttempt(ctx, "loki", authc.PasswordTokenType, time.Now()), realm.ErrAccountNotFound)
}

func TestAccountStoreAdapter_LockUnlock(t *testing.T) {
	ctx := context.Background()
	s, _ := seed(t)
	a := store.NewAccountStoreAdapter(s)

	require.NoError(t, a.LockAccount(ctx, "thor", time.Now()))
	account, err := a.GetAccount(ctx, passwordToken(t, "thor"))
	require.NoError(t, err)
	require.True(t, account.IsLocked())

	require.NoError(t, a.UnlockAccount(ctx, "thor"))
	account, err = a.GetAccount(ctx, passwordToken(t, "thor"))
	require.NoError(t, err)
	require.False(t, account.IsLocked())
}

func TestAccountStoreAdapter_GetAuthzInfo(t *testing.T) {
	s, _ := seed(t)
	a := store.NewAccountStoreAdapter(s)

	info, err := a.GetAuthzInfo(context.Background(), "thor")
	require.NoError(t, err)
	require.Equal(t, []string{"reader"}, info.Roles)
	// direct and role permissions are merged without duplicates
	require.Equal(t, []string{"ticket:read:*", "wiki:read"}, info.Permissions)
}
