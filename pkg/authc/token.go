package authc

import (
	"fmt"
	"strconv"
)

// Token is an identity claim of a given tier.
type Token interface {
	Type() TokenType
	Tier() Tier
	// Identifier is empty for continuation tokens that have not been bound yet,
	// and after Clear.
	Identifier() string
	Credentials() []byte
	// Clear zeroes the credentials buffer and invalidates the identifier. The
	// caller must invoke it once the token's purpose is fulfilled.
	Clear() error
}

// IdentifierBinder is implemented by tokens that may be submitted without an
// identifier and bound to one established by a lower tier.
type IdentifierBinder interface {
	BindIdentifier(identifier string) error
}

// PasswordToken is the tier-1 username/password claim.
type PasswordToken struct {
	username   string
	password   []byte
	host       string
	rememberMe bool
}

type PasswordTokenOption func(*PasswordToken)

// WithHost records the host or IP the attempt originates from.
func WithHost(host string) PasswordTokenOption {
	return func(t *PasswordToken) { t.host = host }
}

// WithRememberMe records that the subject wants their identity remembered
// across sessions.
func WithRememberMe(remember bool) PasswordTokenOption {
	return func(t *PasswordToken) { t.rememberMe = remember }
}

// NewPasswordToken builds a password claim. The token takes ownership of the
// password buffer and zeroes it on Clear.
func NewPasswordToken(username string, password []byte, opts ...PasswordTokenOption) (*PasswordToken, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username must be defined", ErrInvalidToken)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: password must be defined", ErrInvalidToken)
	}

	t := &PasswordToken{username: username, password: password}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *PasswordToken) Type() TokenType     { return PasswordTokenType }
func (t *PasswordToken) Tier() Tier          { return PasswordTokenType.Tier }
func (t *PasswordToken) Identifier() string  { return t.username }
func (t *PasswordToken) Credentials() []byte { return t.password }
func (t *PasswordToken) Host() string        { return t.host }
func (t *PasswordToken) RememberMe() bool    { return t.rememberMe }

func (t *PasswordToken) Clear() error {
	t.username = ""
	t.host = ""
	clear(t.password)
	return nil
}

func (t *PasswordToken) String() string {
	s := fmt.Sprintf("PasswordToken - %s, remember_me=%t", t.username, t.rememberMe)
	if t.host != "" {
		s += fmt.Sprintf(", (%s)", t.host)
	}
	return s
}

const (
	minTOTPCode = 100000
	maxTOTPCode = 999999
)

// TOTPToken is the tier-2 six digit one-time code claim. It carries no
// identifier of its own; the Authenticator binds the one established at tier 1.
type TOTPToken struct {
	identifier string
	code       []byte
}

// NewTOTPToken validates that code is a six digit value.
func NewTOTPToken(code int) (*TOTPToken, error) {
	if code < minTOTPCode || code > maxTOTPCode {
		return nil, fmt.Errorf("%w: TOTP code must be a 6-digit integer", ErrInvalidToken)
	}
	return &TOTPToken{code: strconv.AppendInt(make([]byte, 0, 6), int64(code), 10)}, nil
}

func (t *TOTPToken) Type() TokenType     { return TOTPTokenType }
func (t *TOTPToken) Tier() Tier          { return TOTPTokenType.Tier }
func (t *TOTPToken) Identifier() string  { return t.identifier }
func (t *TOTPToken) Credentials() []byte { return t.code }

func (t *TOTPToken) BindIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("%w: identifier must be defined", ErrInvalidToken)
	}
	t.identifier = identifier
	return nil
}

func (t *TOTPToken) Clear() error {
	t.identifier = ""
	clear(t.code)
	return nil
}

func (t *TOTPToken) String() string { return "TOTPToken - " + t.identifier }
