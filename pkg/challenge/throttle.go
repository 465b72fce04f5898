package challenge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/realmauth/pkg/authc"
)

// ThrottleConfig limits how many challenges a single account may trigger.
type ThrottleConfig struct {
	ChallengesPerWindow int
	Window              time.Duration
	// Burst allows for temporary bursts above the rate
	Burst int
}

// Throttled rate limits the challenges sent per account so a caller cannot
// flood a subject with codes by repeating tier-1 logins.
type Throttled struct {
	next authc.MFAChallenger

	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

var _ authc.MFAChallenger = (*Throttled)(nil)

func NewThrottled(next authc.MFAChallenger, cfg ThrottleConfig) *Throttled {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.ChallengesPerWindow
	}
	return &Throttled{
		next:        next,
		rate:        rate.Limit(float64(cfg.ChallengesPerWindow) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}
}

func (t *Throttled) SendChallenge(ctx context.Context, accountID authc.IdentifierCollection) error {
	key := accountID.Primary()
	if key != "" && !t.limiter(key).Allow() {
		return fmt.Errorf("%w: %s", ErrChallengeThrottled, key)
	}
	return t.next.SendChallenge(ctx, accountID)
}

func (t *Throttled) limiter(key string) *rate.Limiter {
	if l, ok := t.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}

	actual, _ := t.limiters.LoadOrStore(key, rate.NewLimiter(t.rate, t.burst))
	t.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose buckets have refilled, i.e. accounts that
// have not been challenged recently.
func (t *Throttled) maybeCleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Since(t.lastCleanup) < 5*time.Minute {
		return
	}
	t.lastCleanup = time.Now()

	t.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(t.burst) {
			t.limiters.Delete(key)
		}
		return true
	})
}
