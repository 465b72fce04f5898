package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so nobody accidentally starts a transaction within a
// transaction.
type Store interface {
	Accounts() Accounts
	Credentials() Credentials
	FailedAttempts() FailedAttempts
	Roles() Roles

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByUsername is used during authentication lookups.
	GetAccountByUsername(ctx context.Context, username string) (domain.Account, error)

	// CreateAccount inserts a new account (id is provided by the caller via ULID).
	// A duplicate username yields ErrAlreadyExists.
	CreateAccount(ctx context.Context, a domain.Account) error

	// SetLockedAt locks the account at the given time, or unlocks it when
	// lockedAt is nil. Bumps updated_at.
	SetLockedAt(ctx context.Context, accountID string, lockedAt *time.Time) error

	// DeleteAccount cascades to credentials, failed attempts and grants.
	DeleteAccount(ctx context.Context, accountID string) error

	ListLockedAccounts(ctx context.Context) ([]domain.Account, error)

	// IsEmpty returns true if there are no accounts.
	IsEmpty(ctx context.Context) (bool, error)
}

type Credentials interface {
	// SetCredential inserts or replaces the credential for a token type.
	SetCredential(ctx context.Context, c domain.Credential) error
	ListCredentials(ctx context.Context, accountID string) ([]domain.Credential, error)
	DeleteCredential(ctx context.Context, accountID, tokenType string) error
}

type FailedAttempts interface {
	// RecordFailedAttempt appends a failure marker. It never overwrites, so
	// concurrent failures are all kept.
	RecordFailedAttempt(ctx context.Context, f domain.FailedAttempt) error
	ListFailedAttempts(ctx context.Context, accountID string) ([]domain.FailedAttempt, error)
	ResetFailedAttempts(ctx context.Context, accountID, tokenType string) error

	// DeleteUnlockedBefore prunes attempts older than cutoff that belong to
	// unlocked accounts. Locked accounts keep their history as evidence.
	DeleteUnlockedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Roles interface {
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)
	CreateRole(ctx context.Context, role domain.Role) error
	DeleteRole(ctx context.Context, roleID string) error
	// ListRoleMembers returns the usernames holding the role.
	ListRoleMembers(ctx context.Context, roleID string) ([]string, error)

	AssignRole(ctx context.Context, accountID, roleID string) error
	RevokeRole(ctx context.Context, accountID, roleID string) error
	ListAccountRoles(ctx context.Context, accountID string) ([]domain.Role, error)

	// GrantPermission attaches a permission directly to an account,
	// independent of its roles.
	GrantPermission(ctx context.Context, accountID, permission string) error
	ListAccountPermissions(ctx context.Context, accountID string) ([]string, error)
}
