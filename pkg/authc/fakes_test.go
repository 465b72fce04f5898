package authc

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/eventbus"
)

// fakeRealm authenticates with a scripted function and records calls.
type fakeRealm struct {
	name  string
	types []TokenType
	auth  func(ctx context.Context, token Token) (*Account, error)

	mu       sync.Mutex
	calls    int
	cleared  []string
	clearErr error
}

func newFakeRealm(name string, auth func(context.Context, Token) (*Account, error), types ...TokenType) *fakeRealm {
	if len(types) == 0 {
		types = []TokenType{PasswordTokenType}
	}
	return &fakeRealm{name: name, types: types, auth: auth}
}

func (r *fakeRealm) Name() string                     { return r.name }
func (r *fakeRealm) SupportedTokenTypes() []TokenType { return r.types }

func (r *fakeRealm) Supports(token Token) bool {
	for _, tt := range r.types {
		if tt == token.Type() {
			return true
		}
	}
	return false
}

func (r *fakeRealm) Authenticate(ctx context.Context, token Token) (*Account, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.auth(ctx, token)
}

func (r *fakeRealm) ClearCachedCredentials(_ context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, identifier)
	return r.clearErr
}

func (r *fakeRealm) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// fakeLockingRealm adds the account-locking capability.
type fakeLockingRealm struct {
	*fakeRealm

	locked   []string
	unlocked []string
	lockErr  error
}

func (r *fakeLockingRealm) LockAccount(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = append(r.locked, account.ID.Primary())
	return r.lockErr
}

func (r *fakeLockingRealm) UnlockAccount(_ context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlocked = append(r.unlocked, identifier)
	return nil
}

type challengeRecorder struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (c *challengeRecorder) SendChallenge(_ context.Context, ids IdentifierCollection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, ids.Primary())
	return c.err
}

// eventRecorder subscribes to every authentication topic of a real bus.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func recordEvents(bus *eventbus.Bus) *eventRecorder {
	rec := &eventRecorder{}
	for _, topic := range []string{
		eventbus.TopicAuthenticationProgress,
		eventbus.TopicAuthenticationSucceeded,
		eventbus.TopicAuthenticationFailed,
		eventbus.TopicAuthenticationAccountLocked,
	} {
		bus.Register(topic, func(_ context.Context, ev eventbus.Event) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.events = append(rec.events, ev.Topic+":"+ev.Identifier)
			return nil
		})
	}
	return rec
}

func (r *eventRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// accountFor builds an account requiring the given token types, with n
// failed attempts recorded against the first one.
func accountFor(source, id string, failures int, types ...TokenType) *Account {
	if len(types) == 0 {
		types = []TokenType{PasswordTokenType}
	}
	a := &Account{
		ID:        NewIdentifierCollection(source, id),
		AuthcInfo: make(map[string]AuthcRecord, len(types)),
	}
	for _, tt := range types {
		a.AuthcInfo[tt.Name] = AuthcRecord{Credential: "stored"}
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range failures {
		a.RecordFailure(types[0], base.Add(time.Duration(i)*time.Second))
	}
	return a
}

func succeedWith(a *Account) func(context.Context, Token) (*Account, error) {
	return func(context.Context, Token) (*Account, error) { return a, nil }
}

func failWith(err error) func(context.Context, Token) (*Account, error) {
	return func(context.Context, Token) (*Account, error) { return nil, err }
}
