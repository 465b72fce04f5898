package challenge

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/realmauth/pkg/authc"
)

type countingChallenger struct {
	calls map[string]int
	err   error
}

func (c *countingChallenger) SendChallenge(_ context.Context, ids authc.IdentifierCollection) error {
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[ids.Primary()]++
	return c.err
}

func TestLogChallenger(t *testing.T) {
	var buf bytes.Buffer
	c := &LogChallenger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, c.SendChallenge(context.Background(), authc.NewIdentifierCollection("realm", "thor")))
	require.Contains(t, buf.String(), "mfa challenge dispatched")
	require.Contains(t, buf.String(), "identifier=thor")

	require.Error(t, c.SendChallenge(context.Background(), authc.IdentifierCollection{}))
}

func TestThrottled(t *testing.T) {
	next := &countingChallenger{}
	th := NewThrottled(next, ThrottleConfig{ChallengesPerWindow: 2, Window: time.Hour})
	ctx := context.Background()
	thor := authc.NewIdentifierCollection("realm", "thor")
	loki := authc.NewIdentifierCollection("realm", "loki")

	require.NoError(t, th.SendChallenge(ctx, thor))
	require.NoError(t, th.SendChallenge(ctx, thor))

	err := th.SendChallenge(ctx, thor)
	require.ErrorIs(t, err, ErrChallengeThrottled)
	require.Equal(t, 2, next.calls["thor"], "throttled challenge must not reach the dispatcher")

	require.NoError(t, th.SendChallenge(ctx, loki), "limits are per account")
	require.Equal(t, 1, next.calls["loki"])
}

func TestThrottled_PropagatesDispatchError(t *testing.T) {
	boom := errors.New("sms gateway down")
	th := NewThrottled(&countingChallenger{err: boom}, ThrottleConfig{ChallengesPerWindow: 5})

	err := th.SendChallenge(context.Background(), authc.NewIdentifierCollection("realm", "thor"))
	require.ErrorIs(t, err, boom)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		throttle ThrottleConfig
		check    func(t *testing.T, c authc.MFAChallenger, err error)
	}{
		{"none", "none", ThrottleConfig{}, func(t *testing.T, c authc.MFAChallenger, err error) {
			require.NoError(t, err)
			require.Nil(t, c)
		}},
		{"empty", "", ThrottleConfig{}, func(t *testing.T, c authc.MFAChallenger, err error) {
			require.NoError(t, err)
			require.Nil(t, c)
		}},
		{"log", "log", ThrottleConfig{}, func(t *testing.T, c authc.MFAChallenger, err error) {
			require.NoError(t, err)
			require.IsType(t, &LogChallenger{}, c)
		}},
		{"throttled log", "LOG", ThrottleConfig{ChallengesPerWindow: 3}, func(t *testing.T, c authc.MFAChallenger, err error) {
			require.NoError(t, err)
			require.IsType(t, &Throttled{}, c)
		}},
		{"unknown", "carrier-pigeon", ThrottleConfig{}, func(t *testing.T, c authc.MFAChallenger, err error) {
			require.ErrorIs(t, err, ErrUnknownChallenger)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.kind, slog.Default(), tt.throttle)
			tt.check(t, c, err)
		})
	}
}
