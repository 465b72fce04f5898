package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
	"github.com/aussiebroadwan/realmauth/internal/authc/store"
	"github.com/aussiebroadwan/realmauth/internal/authc/store/drivers/sqlite"
	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/authz"
	"github.com/aussiebroadwan/realmauth/pkg/cryptox"
	"github.com/aussiebroadwan/realmauth/pkg/realm"
	"github.com/aussiebroadwan/realmauth/pkg/slogx"
	"github.com/aussiebroadwan/realmauth/pkg/verifier"
)

var fastParams = cryptox.Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

type recordingInvalidator struct {
	credentials []string
	authz       []string
}

func (r *recordingInvalidator) ClearCachedCredentials(_ context.Context, id string) error {
	r.credentials = append(r.credentials, id)
	return nil
}

func (r *recordingInvalidator) ClearCachedAuthorizationInfo(_ context.Context, id string) error {
	r.authz = append(r.authz, id)
	return nil
}

func newAccountService(t *testing.T) (*AccountService, *sqlite.Store, *recordingInvalidator) {
	t.Helper()
	s := newTestStore(t)
	inv := &recordingInvalidator{}
	return &AccountService{
		Store:       s,
		Hasher:      cryptox.NewHasher([]byte("pepper"), fastParams),
		Issuer:      "realmauth",
		Invalidator: inv,
	}, s, inv
}

func TestAccountService_CreateAccount(t *testing.T) {
	ctx := context.Background()
	svc, s, _ := newAccountService(t)

	account, err := svc.CreateAccount(ctx, "thor", []byte("letslolz"))
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)

	creds, err := s.Credentials().ListCredentials(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	ok, err := svc.Hasher.Verify([]byte("letslolz"), creds[0].Value)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.CreateAccount(ctx, "thor", []byte("again"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = svc.CreateAccount(ctx, "", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.CreateAccount(ctx, "loki", nil)
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestAccountService_EnrollTOTPAndSetPassword(t *testing.T) {
	ctx := context.Background()
	svc, s, inv := newAccountService(t)

	account, err := svc.CreateAccount(ctx, "thor", []byte("letslolz"))
	require.NoError(t, err)

	url, err := svc.EnrollTOTP(ctx, "thor")
	require.NoError(t, err)
	require.Contains(t, url, "issuer=realmauth")

	require.NoError(t, svc.SetPassword(ctx, "thor", []byte("new-password")))
	require.Equal(t, []string{"thor", "thor"}, inv.credentials)

	creds, err := s.Credentials().ListCredentials(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, creds, 2)

	_, err = svc.EnrollTOTP(ctx, "loki")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccountService_Grants(t *testing.T) {
	ctx := context.Background()
	svc, s, inv := newAccountService(t)

	account, err := svc.CreateAccount(ctx, "thor", []byte("letslolz"))
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, "reader", []string{"ticket:read:*"})
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "broken", []string{"a:b:c:d"})
	require.ErrorIs(t, err, authz.ErrInvalidPermission)

	require.NoError(t, svc.AssignRole(ctx, "thor", "reader"))
	require.NoError(t, svc.GrantPermission(ctx, "thor", "ledger:write"))
	require.ErrorIs(t, svc.GrantPermission(ctx, "thor", ""), authz.ErrInvalidPermission)
	require.ErrorIs(t, svc.AssignRole(ctx, "thor", "missing"), store.ErrNotFound)
	require.Equal(t, []string{"thor", "thor"}, inv.authz)

	roles, err := s.Roles().ListAccountRoles(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
}

func TestBootstrapService(t *testing.T) {
	ctx := context.Background()
	svc, s, _ := newAccountService(t)
	boot := &BootstrapService{Store: s, Accounts: svc}

	created, err := boot.Bootstrap(ctx, "admin", []byte("changeme"))
	require.NoError(t, err)
	require.True(t, created)

	admin, err := s.Accounts().GetAccountByUsername(ctx, "admin")
	require.NoError(t, err)
	roles, err := s.Roles().ListAccountRoles(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, AdminRole, roles[0].Name)
	require.Equal(t, []string{"*"}, roles[0].Permissions)

	created, err = boot.Bootstrap(ctx, "admin2", []byte("changeme"))
	require.NoError(t, err)
	require.False(t, created, "a populated store is left alone")
}

func TestAccountService_RevokeAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, s, inv := newAccountService(t)

	thor, err := svc.CreateAccount(ctx, "thor", []byte("letslolz"))
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, "loki", []byte("mischief"))
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "reader", []string{"wiki:read"})
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "writer", []string{"wiki:write"})
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(ctx, "thor", "reader"))
	require.NoError(t, svc.AssignRole(ctx, "thor", "writer"))
	require.NoError(t, svc.AssignRole(ctx, "loki", "writer"))
	inv.authz = nil

	require.NoError(t, svc.RevokeRole(ctx, "thor", "reader"))
	require.Equal(t, []string{"thor"}, inv.authz)
	require.ErrorIs(t, svc.RevokeRole(ctx, "thor", "missing"), store.ErrNotFound)

	inv.authz = nil
	require.NoError(t, svc.DeleteRole(ctx, "writer"))
	require.Equal(t, []string{"loki", "thor"}, inv.authz, "every holder is evicted")
	roles, err := s.Roles().ListAccountRoles(ctx, thor.ID)
	require.NoError(t, err)
	require.Empty(t, roles)
	require.ErrorIs(t, svc.DeleteRole(ctx, "writer"), store.ErrNotFound)

	_, err = svc.EnrollTOTP(ctx, "thor")
	require.NoError(t, err)
	inv.credentials = nil
	require.NoError(t, svc.DisableTOTP(ctx, "thor"))
	require.Equal(t, []string{"thor"}, inv.credentials)
	creds, err := s.Credentials().ListCredentials(ctx, thor.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	require.ErrorIs(t, svc.DisableTOTP(ctx, "thor"), store.ErrNotFound)

	inv.credentials, inv.authz = nil, nil
	require.NoError(t, svc.DeleteAccount(ctx, "thor"))
	require.Equal(t, []string{"thor"}, inv.credentials)
	require.Equal(t, []string{"thor"}, inv.authz)
	_, err = s.Accounts().GetAccountByUsername(ctx, "thor")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, svc.DeleteAccount(ctx, "thor"), store.ErrNotFound)
}

func TestHousekeepingService_Cleanup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	account := domain.Account{ID: "01J00000000000000000000000", Username: "thor"}
	require.NoError(t, s.Accounts().CreateAccount(ctx, account))
	for _, at := range []time.Time{now.Add(-48 * time.Hour), now.Add(-time.Hour)} {
		require.NoError(t, s.FailedAttempts().RecordFailedAttempt(ctx, domain.FailedAttempt{
			AccountID: account.ID, TokenType: "password", AttemptedAt: at,
		}))
	}

	hk := NewHousekeepingService(s, slogx.Discard(), time.Hour, 24*time.Hour)
	hk.Now = func() time.Time { return now }
	hk.cleanup()

	remaining, err := s.FailedAttempts().ListFailedAttempts(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.True(t, remaining[0].AttemptedAt.Equal(now.Add(-time.Hour)))
}

func TestHousekeepingService_ZeroRetentionKeepsFailureHistory(t *testing.T) {
	ctx := context.Background()
	svc, s, _ := newAccountService(t)

	account, err := svc.CreateAccount(ctx, "thor", []byte("letslolz"))
	require.NoError(t, err)
	monthAgo := time.Now().Add(-30 * 24 * time.Hour)
	for i := range 3 {
		require.NoError(t, s.FailedAttempts().RecordFailedAttempt(ctx, domain.FailedAttempt{
			AccountID: account.ID, TokenType: "password", AttemptedAt: monthAgo.Add(time.Duration(i) * time.Minute),
		}))
	}

	hk := NewHousekeepingService(s, slogx.Discard(), time.Hour, 0)
	hk.cleanup()

	remaining, err := s.FailedAttempts().ListFailedAttempts(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 3)

	r, err := realm.New(realm.Config{
		Name:      "sql",
		Store:     store.NewAccountStoreAdapter(s),
		Verifiers: map[authc.TokenType]realm.CredentialVerifier{authc.PasswordTokenType: verifier.NewPasswordVerifier(svc.Hasher)},
		Logger:    slogx.Discard(),
	})
	require.NoError(t, err)
	a, err := authc.New(authc.Config{Realms: []authc.Realm{r}, LockThreshold: 3, Logger: slogx.Discard()})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	token, err := authc.NewPasswordToken("thor", []byte("wrong"))
	require.NoError(t, err)
	_, err = a.Authenticate(ctx, authc.IdentifierCollection{}, token)
	require.ErrorIs(t, err, authc.ErrLockedAccount, "failures a month apart still count as consecutive")
}

func TestHousekeepingService_StartStop(t *testing.T) {
	hk := NewHousekeepingService(newTestStore(t), slogx.Discard(), 0, -time.Minute)
	require.Equal(t, time.Hour, hk.Interval)
	require.Zero(t, hk.Retention)

	hk.Start()
	hk.Stop()
}
