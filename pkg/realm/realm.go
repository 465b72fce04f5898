// Package realm provides AccountStoreRealm, a realm backed by an account
// store with optional credentials and authorization caches, and the cache
// handlers that mediate between a realm and a cache store.
package realm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/authz"
	"github.com/aussiebroadwan/realmauth/pkg/slogx"
)

type Config struct {
	Name string

	// Store may be nil at construction; using the realm without one fails
	// with authc.ErrRealmMisconfigured.
	Store AccountStore

	// Verifiers maps each supported token type to the verifier that matches
	// its credentials. The keys are the realm's supported token types.
	Verifiers map[authc.TokenType]CredentialVerifier

	CredentialsCache *CredentialsCacheHandler   // optional
	AuthzCache       *AuthorizationCacheHandler // optional

	PermissionVerifier authz.PermissionVerifier // defaults to WildcardPermissionVerifier
	RoleVerifier       authz.RoleVerifier       // defaults to SimpleRoleVerifier

	Logger *slog.Logger
	Now    func() time.Time
}

// AccountStoreRealm authenticates and authorizes against an AccountStore.
// It is safe for concurrent use; all shared state lives in the store and the
// caches.
type AccountStoreRealm struct {
	name      string
	store     AccountStore
	verifiers map[authc.TokenType]CredentialVerifier
	types     []authc.TokenType

	credentialsCache *CredentialsCacheHandler
	authzCache       *AuthorizationCacheHandler

	permissions authz.PermissionVerifier
	roles       authz.RoleVerifier

	logger *slog.Logger
	now    func() time.Time
}

var (
	_ authc.Realm        = (*AccountStoreRealm)(nil)
	_ authc.LockingRealm = (*AccountStoreRealm)(nil)
)

func New(cfg Config) (*AccountStoreRealm, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: realm name is required", authc.ErrRealmMisconfigured)
	}
	if len(cfg.Verifiers) == 0 {
		return nil, fmt.Errorf("%w: realm %s has no credential verifiers", authc.ErrRealmMisconfigured, cfg.Name)
	}

	r := &AccountStoreRealm{
		name:             cfg.Name,
		store:            cfg.Store,
		verifiers:        maps.Clone(cfg.Verifiers),
		credentialsCache: cfg.CredentialsCache,
		authzCache:       cfg.AuthzCache,
		permissions:      cfg.PermissionVerifier,
		roles:            cfg.RoleVerifier,
		logger:           cfg.Logger,
		now:              cfg.Now,
	}
	for tt, v := range r.verifiers {
		if v == nil {
			return nil, fmt.Errorf("%w: realm %s has a nil verifier for %s", authc.ErrRealmMisconfigured, cfg.Name, tt)
		}
		r.types = append(r.types, tt)
	}
	slices.SortFunc(r.types, func(a, b authc.TokenType) int { return int(a.Tier) - int(b.Tier) })

	if r.permissions == nil {
		r.permissions = authz.WildcardPermissionVerifier{}
	}
	if r.roles == nil {
		r.roles = authz.SimpleRoleVerifier{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

func (r *AccountStoreRealm) Name() string { return r.name }

func (r *AccountStoreRealm) SupportedTokenTypes() []authc.TokenType { return slices.Clone(r.types) }

func (r *AccountStoreRealm) Supports(token authc.Token) bool {
	if token == nil {
		return false
	}
	_, ok := r.verifiers[token.Type()]
	return ok
}

// Authenticate fetches the account (cache first, then store), rejects locked
// accounts, and verifies the token's credentials.
//
// On a mismatch the failure is appended to the account's history, persisted
// through the store when it is a FailureRecorder, and the refreshed account is
// returned inside *authc.IncorrectCredentialsError. A match against a cached
// account is only accepted once the store confirms the account is unlocked.
// On success the cached credentials for the identity are evicted.
func (r *AccountStoreRealm) Authenticate(ctx context.Context, token authc.Token) (*authc.Account, error) {
	if !r.Supports(token) {
		return nil, fmt.Errorf("%w: realm %s does not support %v", authc.ErrUnsupportedToken, r.name, tokenType(token))
	}

	account, cached, err := r.credentials(ctx, token)
	if err != nil {
		return nil, err
	}

	if account.IsLocked() {
		return nil, &authc.LockedAccountError{Identifier: account.ID.Primary()}
	}

	if _, ok := account.AuthcInfo[token.Type().Name]; !ok {
		// nothing stored to match against; recording a failure would invent a tier
		return nil, &authc.IncorrectCredentialsError{Account: account}
	}

	match, err := r.verifiers[token.Type()].CredentialsMatch(ctx, token, account)
	if err != nil {
		return nil, fmt.Errorf("realm %s: verify credentials: %w", r.name, err)
	}
	if !match {
		return nil, r.recordFailure(ctx, token, account)
	}

	if cached {
		if account, err = r.confirmUnlocked(ctx, token); err != nil {
			return nil, err
		}
	}

	r.succeed(ctx, token, account)
	return account, nil
}

// credentials reports whether the account was served from the cache.
func (r *AccountStoreRealm) credentials(ctx context.Context, token authc.Token) (*authc.Account, bool, error) {
	l := r.log(ctx)

	if r.credentialsCache != nil {
		account, err := r.credentialsCache.Get(ctx, token)
		if err != nil {
			l.Warn("credentials cache lookup failed, falling back to store", slog.Any("error", err))
		}
		if account != nil {
			l.Debug("using cached account for credentials matching", slog.String("identifier", token.Identifier()))
			return account, true, nil
		}
	}

	account, err := r.load(ctx, token)
	if err != nil {
		return nil, false, err
	}
	l.Debug("acquired account from account store", slog.String("identifier", account.ID.Primary()))

	if r.credentialsCache != nil {
		if err := r.credentialsCache.Put(ctx, token, account); err != nil {
			l.Warn("failed to cache credentials", slog.Any("error", err))
		}
	}
	return account, false, nil
}

func (r *AccountStoreRealm) load(ctx context.Context, token authc.Token) (*authc.Account, error) {
	if r.store == nil {
		return nil, fmt.Errorf("%w: realm %s has no account store", authc.ErrRealmMisconfigured, r.name)
	}

	account, err := r.store.GetAccount(ctx, token)
	if errors.Is(err, ErrAccountNotFound) || (err == nil && account == nil) {
		r.log(ctx).Debug("no account found for token", slog.String("identifier", token.Identifier()))
		return nil, fmt.Errorf("%w: %q", authc.ErrUnknownAccount, token.Identifier())
	}
	if err != nil {
		return nil, fmt.Errorf("realm %s: get account: %w", r.name, err)
	}
	return r.attribute(account), nil
}

// confirmUnlocked checks the store before a cached account is allowed to
// authenticate. A concurrent failure can write back a copy read before the
// lock was persisted, so the cached LockedAt is not authoritative.
func (r *AccountStoreRealm) confirmUnlocked(ctx context.Context, token authc.Token) (*authc.Account, error) {
	current, err := r.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if !current.IsLocked() {
		return current, nil
	}
	if err := r.ClearCachedCredentials(ctx, token.Identifier()); err != nil {
		r.log(ctx).Error("failed to clear cached credentials", slog.String("identifier", token.Identifier()), slog.Any("error", err))
	}
	return nil, &authc.LockedAccountError{Identifier: current.ID.Primary()}
}

// attribute makes the realm the source of the account's primary identifier
// while keeping any aliases the store supplied.
func (r *AccountStoreRealm) attribute(account *authc.Account) *authc.Account {
	ids := authc.NewIdentifierCollection(r.name, account.ID.Primary())
	ids.Merge(account.ID)
	account.ID = ids
	return account
}

func (r *AccountStoreRealm) recordFailure(ctx context.Context, token authc.Token, account *authc.Account) error {
	l := r.log(ctx)
	now := r.now()
	account.RecordFailure(token.Type(), now)

	incorrect := &authc.IncorrectCredentialsError{Account: account}

	if fr, ok := r.store.(FailureRecorder); ok {
		if err := fr.RecordFailedAttempt(ctx, token.Identifier(), token.Type(), now); err != nil {
			l.Error("failed to persist failed attempt", slog.String("identifier", token.Identifier()), slog.Any("error", err))
			return errors.Join(incorrect, fmt.Errorf("realm %s: record failed attempt: %w", r.name, err))
		}
	}

	if r.credentialsCache != nil {
		if err := r.credentialsCache.Put(ctx, token, account); err != nil {
			l.Warn("failed to refresh cached credentials", slog.Any("error", err))
		}
	}
	return incorrect
}

func (r *AccountStoreRealm) succeed(ctx context.Context, token authc.Token, account *authc.Account) {
	l := r.log(ctx)
	hadFailures := len(account.FailedAttempts(token.Type())) > 0
	account.MarkSatisfied(token.Type())

	if fr, ok := r.store.(FailureRecorder); ok && hadFailures {
		if err := fr.ResetFailedAttempts(ctx, token.Identifier(), token.Type()); err != nil {
			l.Error("failed to reset failed attempts", slog.String("identifier", token.Identifier()), slog.Any("error", err))
		}
	}

	// authentication concluded, the pre-authentication cache entry must go
	if err := r.ClearCachedCredentials(ctx, token.Identifier()); err != nil {
		l.Error("failed to clear cached credentials", slog.String("identifier", token.Identifier()), slog.Any("error", err))
	}
}

// GetAuthorizationInfo returns the authorization snapshot for identifiers,
// from cache or store. An identity unknown to both yields nil, not an error.
func (r *AccountStoreRealm) GetAuthorizationInfo(ctx context.Context, identifiers authc.IdentifierCollection) (*authz.Info, error) {
	l := r.log(ctx)
	identifier := r.identifierFor(identifiers)
	if identifier == "" {
		return nil, nil
	}

	if r.authzCache != nil {
		info, err := r.authzCache.Get(ctx, identifier)
		if err != nil {
			l.Warn("authorization cache lookup failed, falling back to store", slog.Any("error", err))
		}
		if info != nil {
			return info, nil
		}
	}

	if r.store == nil {
		return nil, fmt.Errorf("%w: realm %s has no account store", authc.ErrRealmMisconfigured, r.name)
	}

	info, err := r.store.GetAuthzInfo(ctx, identifier)
	if errors.Is(err, ErrAccountNotFound) || (err == nil && info == nil) {
		l.Debug("could not obtain authorization info from store", slog.String("identifier", identifier))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("realm %s: get authorization info: %w", r.name, err)
	}

	if r.authzCache != nil {
		if err := r.authzCache.Put(ctx, identifier, info); err != nil {
			l.Warn("failed to cache authorization info", slog.Any("error", err))
		}
	}
	return info, nil
}

// IsPermitted evaluates permissions lazily against one authorization snapshot
// fetched up front. The sequence can be iterated repeatedly with consistent
// results.
func (r *AccountStoreRealm) IsPermitted(ctx context.Context, identifiers authc.IdentifierCollection, permissions []string) (iter.Seq2[string, bool], error) {
	info, err := r.GetAuthorizationInfo(ctx, identifiers)
	if err != nil {
		return nil, err
	}
	return r.permissions.IsPermitted(info, slices.Clone(permissions)), nil
}

// HasRole evaluates role membership lazily against one snapshot.
func (r *AccountStoreRealm) HasRole(ctx context.Context, identifiers authc.IdentifierCollection, roles []string) (iter.Seq2[string, bool], error) {
	info, err := r.GetAuthorizationInfo(ctx, identifiers)
	if err != nil {
		return nil, err
	}
	return r.roles.HasRole(info, slices.Clone(roles)), nil
}

// ClearCachedCredentials evicts the credentials cache entry for identifier.
// Without a credentials cache this is a no-op.
func (r *AccountStoreRealm) ClearCachedCredentials(ctx context.Context, identifier string) error {
	if r.credentialsCache == nil {
		return nil
	}
	return r.credentialsCache.Clear(ctx, identifier)
}

// ClearCachedAuthorizationInfo must be called when roles or permissions of an
// identity change so the next query sees fresh data.
func (r *AccountStoreRealm) ClearCachedAuthorizationInfo(ctx context.Context, identifier string) error {
	if r.authzCache == nil {
		return nil
	}
	return r.authzCache.Clear(ctx, identifier)
}

// ClearCache evicts both cached credentials and authorization info.
func (r *AccountStoreRealm) ClearCache(ctx context.Context, identifiers authc.IdentifierCollection) error {
	identifier := r.identifierFor(identifiers)
	r.log(ctx).Info("clearing cache", slog.String("identifier", identifier))
	return errors.Join(
		r.ClearCachedCredentials(ctx, identifier),
		r.ClearCachedAuthorizationInfo(ctx, identifier),
	)
}

// LockAccount persists the locked state and evicts the cached account so a
// stale unlocked copy cannot be matched.
func (r *AccountStoreRealm) LockAccount(ctx context.Context, account *authc.Account) error {
	locker, ok := r.store.(AccountLocker)
	if !ok {
		return fmt.Errorf("%w: realm %s store cannot lock accounts", authc.ErrRealmMisconfigured, r.name)
	}
	identifier := r.identifierFor(account.ID)
	if err := locker.LockAccount(ctx, identifier, r.now()); err != nil {
		return fmt.Errorf("realm %s: lock account: %w", r.name, err)
	}
	return r.ClearCachedCredentials(ctx, identifier)
}

// UnlockAccount clears the locked state and the failure history that led to
// it, so the next failure does not immediately relock the account.
func (r *AccountStoreRealm) UnlockAccount(ctx context.Context, identifier string) error {
	locker, ok := r.store.(AccountLocker)
	if !ok {
		return fmt.Errorf("%w: realm %s store cannot unlock accounts", authc.ErrRealmMisconfigured, r.name)
	}
	if err := locker.UnlockAccount(ctx, identifier); err != nil {
		return fmt.Errorf("realm %s: unlock account: %w", r.name, err)
	}
	if fr, ok := r.store.(FailureRecorder); ok {
		for _, tt := range r.types {
			if err := fr.ResetFailedAttempts(ctx, identifier, tt); err != nil {
				return fmt.Errorf("realm %s: reset failed attempts: %w", r.name, err)
			}
		}
	}
	return r.ClearCachedCredentials(ctx, identifier)
}

func (r *AccountStoreRealm) identifierFor(ids authc.IdentifierCollection) string {
	if id, ok := ids.FromSource(r.name); ok {
		return id
	}
	return ids.Primary()
}

func (r *AccountStoreRealm) log(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, r.logger).With("realm", r.name)
}

func tokenType(token authc.Token) any {
	if token == nil {
		return nil
	}
	return token.Type()
}
