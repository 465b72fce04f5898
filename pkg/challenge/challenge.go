// Package challenge provides MFA challengers: the out-of-band step an
// Authenticator triggers when an account needs a higher tier.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/slogx"
)

var (
	ErrUnknownChallenger  = errors.New("challenge: unknown challenger")
	ErrChallengeThrottled = errors.New("challenge: too many challenges")
)

// LogChallenger records the challenge in the log instead of delivering it.
// It stands in for an SMS or email dispatcher in development.
type LogChallenger struct {
	Logger *slog.Logger
}

var _ authc.MFAChallenger = (*LogChallenger)(nil)

func (c *LogChallenger) SendChallenge(ctx context.Context, accountID authc.IdentifierCollection) error {
	if accountID.IsEmpty() {
		return errors.New("challenge: no identifier to challenge")
	}
	slogx.FromContextOr(ctx, c.Logger).Info("mfa challenge dispatched",
		slog.String("identifier", accountID.Primary()),
		slog.String("channel", "log"),
	)
	return nil
}

// New builds the challenger named by kind ("none" or "log"). A "none"
// challenger is nil, which the Authenticator treats as no challenge step.
// A positive throttle wraps the challenger in a per-account rate limit.
func New(kind string, logger *slog.Logger, throttle ThrottleConfig) (authc.MFAChallenger, error) {
	var c authc.MFAChallenger
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "none":
		return nil, nil
	case "log":
		c = &LogChallenger{Logger: logger}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChallenger, kind)
	}

	if throttle.ChallengesPerWindow > 0 {
		c = NewThrottled(c, throttle)
	}
	return c, nil
}
