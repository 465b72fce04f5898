package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
	"github.com/aussiebroadwan/realmauth/internal/authc/store"
	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/authz"
	"github.com/aussiebroadwan/realmauth/pkg/cryptox"
	"github.com/aussiebroadwan/realmauth/pkg/idx"
	"github.com/aussiebroadwan/realmauth/pkg/slogx"
	"github.com/aussiebroadwan/realmauth/pkg/verifier"
)

var (
	ErrInvalidUsername = errors.New("username must not be empty")
	ErrInvalidPassword = errors.New("password must not be empty")
)

// CacheInvalidator evicts realm caches after administrative changes.
// *realm.AccountStoreRealm satisfies it.
type CacheInvalidator interface {
	ClearCachedCredentials(ctx context.Context, identifier string) error
	ClearCachedAuthorizationInfo(ctx context.Context, identifier string) error
}

// AccountService administers accounts, credentials and grants in the store.
type AccountService struct {
	Store  store.Store
	Hasher *cryptox.Hasher

	// Issuer labels TOTP enrollments in authenticator apps.
	Issuer string

	Invalidator CacheInvalidator // optional
}

// CreateAccount creates username with a password credential.
func (s *AccountService) CreateAccount(ctx context.Context, username string, password []byte) (domain.Account, error) {
	if username == "" {
		return domain.Account{}, ErrInvalidUsername
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return domain.Account{}, err
	}

	account := domain.Account{ID: idx.New().String(), Username: username}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().CreateAccount(ctx, account); err != nil {
			return err
		}
		return tx.Credentials().SetCredential(ctx, domain.Credential{
			AccountID: account.ID,
			TokenType: authc.PasswordTokenType.Name,
			Value:     hash,
		})
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("create account %q: %w", username, err)
	}

	slogx.FromContext(ctx).Info("account created",
		slog.String("account_id", account.ID),
		slog.String("username", username),
	)
	return account, nil
}

// SetPassword replaces the password credential of username.
func (s *AccountService) SetPassword(ctx context.Context, username string, password []byte) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	account, err := s.Store.Accounts().GetAccountByUsername(ctx, username)
	if err != nil {
		return err
	}
	err = s.Store.Credentials().SetCredential(ctx, domain.Credential{
		AccountID: account.ID,
		TokenType: authc.PasswordTokenType.Name,
		Value:     hash,
	})
	if err != nil {
		return err
	}
	return s.invalidateCredentials(ctx, username)
}

// EnrollTOTP generates a TOTP secret for username, making the second tier
// mandatory for it. The returned otpauth:// URL is shown to the subject once.
func (s *AccountService) EnrollTOTP(ctx context.Context, username string) (string, error) {
	account, err := s.Store.Accounts().GetAccountByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	secret, url, err := verifier.GenerateTOTPSecret(s.Issuer, username)
	if err != nil {
		return "", err
	}
	err = s.Store.Credentials().SetCredential(ctx, domain.Credential{
		AccountID: account.ID,
		TokenType: authc.TOTPTokenType.Name,
		Value:     secret,
	})
	if err != nil {
		return "", err
	}
	if err := s.invalidateCredentials(ctx, username); err != nil {
		return "", err
	}
	return url, nil
}

// DisableTOTP removes the TOTP credential, so username authenticates with a
// password alone.
func (s *AccountService) DisableTOTP(ctx context.Context, username string) error {
	account, err := s.Store.Accounts().GetAccountByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.Store.Credentials().DeleteCredential(ctx, account.ID, authc.TOTPTokenType.Name); err != nil {
		return fmt.Errorf("disable totp for %q: %w", username, err)
	}
	return s.invalidateCredentials(ctx, username)
}

// DeleteAccount removes username together with its credentials, failure
// history and grants.
func (s *AccountService) DeleteAccount(ctx context.Context, username string) error {
	account, err := s.Store.Accounts().GetAccountByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.Store.Accounts().DeleteAccount(ctx, account.ID); err != nil {
		return fmt.Errorf("delete account %q: %w", username, err)
	}
	slogx.FromContext(ctx).Info("account deleted", slog.String("username", username))
	return errors.Join(s.invalidateCredentials(ctx, username), s.invalidateAuthz(ctx, username))
}

// CreateRole creates a role holding permissions. Every permission must parse
// as a wildcard permission.
func (s *AccountService) CreateRole(ctx context.Context, name string, permissions []string) (domain.Role, error) {
	for _, p := range permissions {
		if _, err := authz.ParsePermission(p); err != nil {
			return domain.Role{}, err
		}
	}
	role := domain.Role{ID: idx.New().String(), Name: name, Permissions: permissions}
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Roles().CreateRole(ctx, role)
	})
	if err != nil {
		return domain.Role{}, fmt.Errorf("create role %q: %w", name, err)
	}
	return role, nil
}

// AssignRole grants roleName to username.
func (s *AccountService) AssignRole(ctx context.Context, username, roleName string) error {
	account, err := s.Store.Accounts().GetAccountByUsername(ctx, username)
	if err != nil {
		return err
	}
	role, err := s.Store.Roles().GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.Store.Roles().AssignRole(ctx, account.ID, role.ID); err != nil {
		return err
	}
	return s.invalidateAuthz(ctx, username)
}

// RevokeRole removes roleName from username.
func (s *AccountService) RevokeRole(ctx context.Context, username, roleName string) error {
	account, err := s.Store.Accounts().GetAccountByUsername(ctx, username)
	if err != nil {
		return err
	}
	role, err := s.Store.Roles().GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.Store.Roles().RevokeRole(ctx, account.ID, role.ID); err != nil {
		return err
	}
	return s.invalidateAuthz(ctx, username)
}

// DeleteRole deletes roleName and evicts the cached authorization info of
// every account that held it.
func (s *AccountService) DeleteRole(ctx context.Context, roleName string) error {
	role, err := s.Store.Roles().GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	var members []string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if members, err = tx.Roles().ListRoleMembers(ctx, role.ID); err != nil {
			return err
		}
		return tx.Roles().DeleteRole(ctx, role.ID)
	})
	if err != nil {
		return fmt.Errorf("delete role %q: %w", roleName, err)
	}

	var errs []error
	for _, username := range members {
		errs = append(errs, s.invalidateAuthz(ctx, username))
	}
	return errors.Join(errs...)
}

// GrantPermission attaches permission directly to username.
func (s *AccountService) GrantPermission(ctx context.Context, username, permission string) error {
	if _, err := authz.ParsePermission(permission); err != nil {
		return err
	}
	account, err := s.Store.Accounts().GetAccountByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.Store.Roles().GrantPermission(ctx, account.ID, permission); err != nil {
		return err
	}
	return s.invalidateAuthz(ctx, username)
}

func (s *AccountService) hashPassword(password []byte) (string, error) {
	if len(password) == 0 {
		return "", ErrInvalidPassword
	}
	return s.Hasher.Hash(password)
}

func (s *AccountService) invalidateCredentials(ctx context.Context, username string) error {
	if s.Invalidator == nil {
		return nil
	}
	return s.Invalidator.ClearCachedCredentials(ctx, username)
}

func (s *AccountService) invalidateAuthz(ctx context.Context, username string) error {
	if s.Invalidator == nil {
		return nil
	}
	return s.Invalidator.ClearCachedAuthorizationInfo(ctx, username)
}
