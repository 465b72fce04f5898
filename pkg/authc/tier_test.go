package authc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateTiers(t *testing.T) {
	t.Parallel()

	hardware := TokenType{Name: "u2f", Tier: TierTertiary}
	sms := TokenType{Name: "sms", Tier: TierSecondary}

	tests := []struct {
		name    string
		types   []TokenType
		wantErr bool
	}{
		{"password only", []TokenType{PasswordTokenType}, false},
		{"password and totp", []TokenType{TOTPTokenType, PasswordTokenType}, false},
		{"three tiers", []TokenType{PasswordTokenType, TOTPTokenType, hardware}, false},
		{"same type twice", []TokenType{PasswordTokenType, PasswordTokenType}, false},
		{"gap", []TokenType{PasswordTokenType, hardware}, true},
		{"no tier one", []TokenType{TOTPTokenType}, true},
		{"shared tier", []TokenType{PasswordTokenType, TOTPTokenType, sms}, true},
		{"invalid tier", []TokenType{{Name: "weird", Tier: 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTiers(tt.types)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTierConfiguration)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTier(t *testing.T) {
	t.Parallel()

	require.Equal(t, TierSecondary, TierPrimary.Next())
	require.True(t, TierTertiary.Valid())
	require.False(t, Tier(4).Valid())
	require.Equal(t, "tier-2", TierSecondary.String())
}

func TestAccount(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := accountFor("realm", "thor", 2, PasswordTokenType, TOTPTokenType)
	require.Equal(t, 2, a.RequiredTiers())
	require.Len(t, a.FailedAttempts(PasswordTokenType), 2)

	clone := a.Clone()
	clone.RecordFailure(PasswordTokenType, at)
	require.Len(t, a.FailedAttempts(PasswordTokenType), 2, "clone must not share failure history")
	require.Len(t, clone.FailedAttempts(PasswordTokenType), 3)

	a.MarkSatisfied(PasswordTokenType)
	require.Empty(t, a.FailedAttempts(PasswordTokenType))
	require.True(t, a.AuthcInfo[PasswordTokenType.Name].TierSatisfied)

	a.MarkSatisfied(TokenType{Name: "unknown", Tier: TierTertiary})
	require.Equal(t, 2, a.RequiredTiers(), "satisfying an absent type adds no tier")

	require.False(t, a.IsLocked())
	a.LockedAt = &at
	require.True(t, a.Clone().IsLocked())
}
