package authc

import (
	"fmt"
	"slices"
)

// Tier is an ordinal stage in a multi-factor authentication sequence. A token
// of tier N may only complete authentication once tiers 1..N-1 are satisfied.
type Tier uint8

const (
	TierPrimary   Tier = 1 // something you know (password)
	TierSecondary Tier = 2 // something you have (one-time code)
	TierTertiary  Tier = 3
)

// Valid reports whether t is one of the declared tiers.
func (t Tier) Valid() bool { return t >= TierPrimary && t <= TierTertiary }

// Next returns the tier following t.
func (t Tier) Next() Tier { return t + 1 }

func (t Tier) String() string { return fmt.Sprintf("tier-%d", uint8(t)) }

// TokenType identifies a token variant. Realms declare support by type, never
// by token value, and the tier of a type is fixed.
type TokenType struct {
	Name string
	Tier Tier
}

func (tt TokenType) String() string { return tt.Name }

var (
	PasswordTokenType = TokenType{Name: "password", Tier: TierPrimary}
	TOTPTokenType     = TokenType{Name: "totp", Tier: TierSecondary}
)

// validateTiers checks that the given token types cover a contiguous run of
// tiers starting at TierPrimary with exactly one token type per tier.
func validateTiers(types []TokenType) error {
	byTier := make(map[Tier]string, len(types))
	for _, tt := range types {
		if !tt.Tier.Valid() {
			return fmt.Errorf("%w: token type %q has invalid tier %d", ErrInvalidTierConfiguration, tt.Name, tt.Tier)
		}
		if other, ok := byTier[tt.Tier]; ok && other != tt.Name {
			return fmt.Errorf("%w: token types %q and %q share %s", ErrInvalidTierConfiguration, other, tt.Name, tt.Tier)
		}
		byTier[tt.Tier] = tt.Name
	}

	tiers := make([]Tier, 0, len(byTier))
	for t := range byTier {
		tiers = append(tiers, t)
	}
	slices.Sort(tiers)
	for i, t := range tiers {
		if t != Tier(i+1) {
			return fmt.Errorf("%w: tiers are not contiguous from %s (missing %s)", ErrInvalidTierConfiguration, TierPrimary, Tier(i+1))
		}
	}
	return nil
}
