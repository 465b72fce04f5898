package realm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/authz"
	"github.com/aussiebroadwan/realmauth/pkg/cache"
)

var (
	ErrGetCachedCredentials   = errors.New("realm: get cached credentials")
	ErrCacheCredentials       = errors.New("realm: cache credentials")
	ErrClearCachedCredentials = errors.New("realm: clear cached credentials")

	ErrGetCachedAuthzInfo   = errors.New("realm: get cached authorization info")
	ErrCacheAuthzInfo       = errors.New("realm: cache authorization info")
	ErrClearCachedAuthzInfo = errors.New("realm: clear cached authorization info")
)

// CredentialsCacheHandler mediates between a realm and a short-TTL cache of
// pre-authentication accounts.
type CredentialsCacheHandler struct {
	cache    cache.Cache
	resolver KeyResolver
}

// NewCredentialsCacheHandler uses IdentifierKeyResolver when resolver is nil.
func NewCredentialsCacheHandler(c cache.Cache, resolver KeyResolver) *CredentialsCacheHandler {
	if resolver == nil {
		resolver = IdentifierKeyResolver{Prefix: "authc:credentials:"}
	}
	return &CredentialsCacheHandler{cache: c, resolver: resolver}
}

// Get returns the cached account for token, or nil on a miss.
func (h *CredentialsCacheHandler) Get(ctx context.Context, token authc.Token) (*authc.Account, error) {
	if h.cache == nil {
		return nil, fmt.Errorf("%w: no cache configured", ErrGetCachedCredentials)
	}
	key, ok := h.resolver.KeyForToken(token, nil)
	if !ok {
		return nil, nil
	}

	raw, err := h.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGetCachedCredentials, err)
	}

	var account authc.Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrGetCachedCredentials, err)
	}
	return &account, nil
}

// Put caches account. A key is required to cache, so an unresolvable key is
// an error.
func (h *CredentialsCacheHandler) Put(ctx context.Context, token authc.Token, account *authc.Account) error {
	if h.cache == nil {
		return fmt.Errorf("%w: no cache configured", ErrCacheCredentials)
	}
	key, ok := h.resolver.KeyForToken(token, account)
	if !ok {
		return fmt.Errorf("%w: no cache key for token", ErrCacheCredentials)
	}

	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrCacheCredentials, err)
	}
	if err := h.cache.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheCredentials, err)
	}
	return nil
}

// Clear evicts the entry for identifier. A missing entry is not an error.
func (h *CredentialsCacheHandler) Clear(ctx context.Context, identifier string) error {
	if h.cache == nil {
		return fmt.Errorf("%w: no cache configured", ErrClearCachedCredentials)
	}
	key, ok := h.resolver.KeyForIdentifier(identifier)
	if !ok {
		return nil
	}
	if _, err := h.cache.Remove(ctx, key); err != nil && !errors.Is(err, cache.ErrMiss) {
		return fmt.Errorf("%w: %w", ErrClearCachedCredentials, err)
	}
	return nil
}

// AuthorizationCacheHandler caches authorization info separately from
// credentials because it changes independently and is safe to keep longer.
type AuthorizationCacheHandler struct {
	cache    cache.Cache
	resolver AuthzKeyResolver
}

func NewAuthorizationCacheHandler(c cache.Cache, resolver AuthzKeyResolver) *AuthorizationCacheHandler {
	if resolver == nil {
		resolver = IdentifierKeyResolver{Prefix: "authz:info:"}
	}
	return &AuthorizationCacheHandler{cache: c, resolver: resolver}
}

// Get returns the cached info for identifier, or nil on a miss.
func (h *AuthorizationCacheHandler) Get(ctx context.Context, identifier string) (*authz.Info, error) {
	if h.cache == nil {
		return nil, fmt.Errorf("%w: no cache configured", ErrGetCachedAuthzInfo)
	}
	key, ok := h.resolver.KeyForIdentifier(identifier)
	if !ok {
		return nil, nil
	}

	raw, err := h.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGetCachedAuthzInfo, err)
	}

	var info authz.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrGetCachedAuthzInfo, err)
	}
	return &info, nil
}

func (h *AuthorizationCacheHandler) Put(ctx context.Context, identifier string, info *authz.Info) error {
	if h.cache == nil {
		return fmt.Errorf("%w: no cache configured", ErrCacheAuthzInfo)
	}
	key, ok := h.resolver.KeyForIdentifier(identifier)
	if !ok {
		return fmt.Errorf("%w: no cache key for identifier", ErrCacheAuthzInfo)
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrCacheAuthzInfo, err)
	}
	if err := h.cache.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheAuthzInfo, err)
	}
	return nil
}

func (h *AuthorizationCacheHandler) Clear(ctx context.Context, identifier string) error {
	if h.cache == nil {
		return fmt.Errorf("%w: no cache configured", ErrClearCachedAuthzInfo)
	}
	key, ok := h.resolver.KeyForIdentifier(identifier)
	if !ok {
		return nil
	}
	if _, err := h.cache.Remove(ctx, key); err != nil && !errors.Is(err, cache.ErrMiss) {
		return fmt.Errorf("%w: %w", ErrClearCachedAuthzInfo, err)
	}
	return nil
}
