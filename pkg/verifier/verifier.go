// Package verifier holds the credential verifiers an AccountStoreRealm uses
// to match a token against the credential stored on an account.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/cryptox"
	"github.com/aussiebroadwan/realmauth/pkg/realm"
)

// ErrWrongTokenType is returned when a verifier is handed a token it does
// not evaluate. It indicates a wiring mistake in the realm configuration.
var ErrWrongTokenType = errors.New("verifier: wrong token type")

// PasswordVerifier matches a password token against an argon2id hash.
type PasswordVerifier struct {
	Hasher *cryptox.Hasher
}

var _ realm.CredentialVerifier = (*PasswordVerifier)(nil)

func NewPasswordVerifier(hasher *cryptox.Hasher) *PasswordVerifier {
	return &PasswordVerifier{Hasher: hasher}
}

func (v *PasswordVerifier) CredentialsMatch(_ context.Context, token authc.Token, account *authc.Account) (bool, error) {
	if token.Type() != authc.PasswordTokenType {
		return false, fmt.Errorf("%w: %s", ErrWrongTokenType, token.Type())
	}
	rec, ok := account.AuthcInfo[authc.PasswordTokenType.Name]
	if !ok || rec.Credential == "" {
		return false, nil
	}
	return v.Hasher.Verify(token.Credentials(), rec.Credential)
}

// TOTPVerifier matches a six digit TOTP code against the account's base32
// secret using 30 second periods.
type TOTPVerifier struct {
	// Skew is the number of periods either side of now that are accepted.
	Skew uint
	Now  func() time.Time
}

var _ realm.CredentialVerifier = (*TOTPVerifier)(nil)

func NewTOTPVerifier(skew uint) *TOTPVerifier {
	return &TOTPVerifier{Skew: skew, Now: time.Now}
}

func (v *TOTPVerifier) CredentialsMatch(_ context.Context, token authc.Token, account *authc.Account) (bool, error) {
	if token.Type() != authc.TOTPTokenType {
		return false, fmt.Errorf("%w: %s", ErrWrongTokenType, token.Type())
	}
	rec, ok := account.AuthcInfo[authc.TOTPTokenType.Name]
	if !ok || rec.Credential == "" {
		return false, nil
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	valid, err := totp.ValidateCustom(string(token.Credentials()), rec.Credential, now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      v.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if errors.Is(err, otp.ErrValidateInputInvalidLength) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verifier: validate totp: %w", err)
	}
	return valid, nil
}

// GenerateTOTPSecret enrolls accountName for TOTP and returns the base32
// secret to store as its credential, together with the provisioning URL.
func GenerateTOTPSecret(issuer, accountName string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("verifier: generate totp secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}
