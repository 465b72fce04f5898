package authc

import (
	"maps"
	"slices"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/authz"
)

// AuthcRecord is the per-token-type authentication state of an account.
type AuthcRecord struct {
	// Credential is the stored secret the verifier matches against, e.g. an
	// argon2id PHC string or a base32 TOTP secret.
	Credential     string      `json:"credential"`
	FailedAttempts []time.Time `json:"failed_attempts"`
	TierSatisfied  bool        `json:"tier_satisfied"`
}

// Account is the authoritative record a realm returns for an identity.
type Account struct {
	ID IdentifierCollection `json:"account_id"`
	// AuthcInfo holds one entry per token type the account must satisfy,
	// keyed by TokenType.Name.
	AuthcInfo map[string]AuthcRecord `json:"authc_info"`
	Authz     *authz.Info            `json:"authz_info,omitempty"`
	LockedAt  *time.Time             `json:"locked_at,omitempty"`
}

// RequiredTiers is the number of tiers the account must satisfy to be fully
// authenticated.
func (a *Account) RequiredTiers() int { return len(a.AuthcInfo) }

// FailedAttempts returns the failure history recorded for token type tt.
func (a *Account) FailedAttempts(tt TokenType) []time.Time {
	return a.AuthcInfo[tt.Name].FailedAttempts
}

// RecordFailure appends a failure marker for tt.
func (a *Account) RecordFailure(tt TokenType, at time.Time) {
	if a.AuthcInfo == nil {
		a.AuthcInfo = make(map[string]AuthcRecord)
	}
	rec := a.AuthcInfo[tt.Name]
	rec.FailedAttempts = append(rec.FailedAttempts, at)
	a.AuthcInfo[tt.Name] = rec
}

// MarkSatisfied flags tt as satisfied and drops its failure history.
func (a *Account) MarkSatisfied(tt TokenType) {
	rec, ok := a.AuthcInfo[tt.Name]
	if !ok {
		return
	}
	rec.TierSatisfied = true
	rec.FailedAttempts = nil
	a.AuthcInfo[tt.Name] = rec
}

func (a *Account) IsLocked() bool { return a.LockedAt != nil }

// Clone returns a deep copy so cached or shared accounts are never mutated
// in place.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := &Account{ID: IdentifierCollection{}, Authz: a.Authz.Clone()}
	out.ID.Merge(a.ID)
	if a.AuthcInfo != nil {
		out.AuthcInfo = make(map[string]AuthcRecord, len(a.AuthcInfo))
		for name, rec := range maps.All(a.AuthcInfo) {
			rec.FailedAttempts = slices.Clone(rec.FailedAttempts)
			out.AuthcInfo[name] = rec
		}
	}
	if a.LockedAt != nil {
		locked := *a.LockedAt
		out.LockedAt = &locked
	}
	return out
}
