package realm

import (
	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/cryptox"
)

// KeyResolver derives credentials cache keys. Lookups and writes resolve from
// the token (and the fetched account on write); evictions resolve from a bare
// identifier, so both forms must agree.
type KeyResolver interface {
	KeyForToken(token authc.Token, account *authc.Account) (string, bool)
	KeyForIdentifier(identifier string) (string, bool)
}

// AuthzKeyResolver derives authorization cache keys.
type AuthzKeyResolver interface {
	KeyForIdentifier(identifier string) (string, bool)
}

// IdentifierKeyResolver keys entries on the identifier. With Fingerprint set
// the identifier is replaced by its SHA-256 fingerprint so raw usernames never
// reach a shared cache.
type IdentifierKeyResolver struct {
	Prefix      string
	Fingerprint bool
}

var (
	_ KeyResolver      = IdentifierKeyResolver{}
	_ AuthzKeyResolver = IdentifierKeyResolver{}
)

func (r IdentifierKeyResolver) KeyForToken(token authc.Token, _ *authc.Account) (string, bool) {
	if token == nil {
		return "", false
	}
	return r.KeyForIdentifier(token.Identifier())
}

func (r IdentifierKeyResolver) KeyForIdentifier(identifier string) (string, bool) {
	if identifier == "" {
		return "", false
	}
	if r.Fingerprint {
		identifier = cryptox.FingerprintToken(identifier)
	}
	return r.Prefix + identifier, true
}
