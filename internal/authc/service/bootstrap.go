package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
	"github.com/aussiebroadwan/realmauth/internal/authc/store"
	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/idx"
	"github.com/aussiebroadwan/realmauth/pkg/slogx"
)

// AdminRole is granted every permission on bootstrap.
const AdminRole = "admin"

var ErrBootstrapFailedToCreateAdmin = errors.New("failed to create admin account")

type BootstrapService struct {
	Store    store.Store
	Accounts *AccountService
}

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	empty, err := s.Store.Accounts().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// Bootstrap seeds an admin account holding the "*" permission into an empty
// store. It reports whether anything was created.
func (s *BootstrapService) Bootstrap(ctx context.Context, username string, password []byte) (bool, error) {
	l := slogx.FromContext(ctx)

	bootstrapped, err := s.IsBootstrapped(ctx)
	if err != nil {
		return false, err
	}
	if bootstrapped {
		l.Debug("store already holds accounts, skipping bootstrap")
		return false, nil
	}
	if username == "" {
		return false, ErrInvalidUsername
	}

	hash, err := s.Accounts.hashPassword(password)
	if err != nil {
		return false, err
	}

	admin := domain.Account{ID: idx.New().String(), Username: username}
	role := domain.Role{ID: idx.New().String(), Name: AdminRole, Permissions: []string{"*"}}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Roles().CreateRole(ctx, role); err != nil {
			l.Error("failed to create role", slog.String("role_name", role.Name), slog.Any("error", err))
			return err
		}
		if err := tx.Accounts().CreateAccount(ctx, admin); err != nil {
			l.Error("failed to create admin account", slog.String("account_id", admin.ID), slog.Any("error", err))
			return ErrBootstrapFailedToCreateAdmin
		}
		if err := tx.Credentials().SetCredential(ctx, domain.Credential{
			AccountID: admin.ID,
			TokenType: authc.PasswordTokenType.Name,
			Value:     hash,
		}); err != nil {
			return err
		}
		return tx.Roles().AssignRole(ctx, admin.ID, role.ID)
	})
	if err != nil {
		return false, err
	}

	l.Info("successfully bootstrapped account store", slog.String("admin_account_id", admin.ID))
	return true, nil
}
