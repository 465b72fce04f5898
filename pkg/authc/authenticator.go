// Package authc is the authentication orchestration engine: it resolves the
// realms that support a token, drives single or multi-realm authentication,
// enforces tier escalation and account locking, and publishes lifecycle
// events.
package authc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aussiebroadwan/realmauth/pkg/eventbus"
	"github.com/aussiebroadwan/realmauth/pkg/idx"
	"github.com/aussiebroadwan/realmauth/pkg/slogx"
)

// EventBus is the subset of eventbus.Bus the Authenticator needs.
type EventBus interface {
	Publish(ctx context.Context, ev eventbus.Event) error
	Register(topic string, h eventbus.Handler) func()
}

type Config struct {
	Realms []Realm

	// Strategy combines realms when more than one supports a token.
	// Defaults to FirstRealmSuccessful.
	Strategy Strategy

	// Events is optional unless RequireEvents is set.
	Events        EventBus
	RequireEvents bool

	Challenger MFAChallenger // optional

	// LockThreshold enables account locking once a token type's failed
	// attempts exceed it. Zero disables locking.
	LockThreshold int

	Logger *slog.Logger
}

// Authenticator is immutable after New and safe for concurrent use.
type Authenticator struct {
	realms        []Realm
	resolver      map[TokenType][]Realm
	strategy      Strategy
	events        EventBus
	challenger    MFAChallenger
	lockingRealm  LockingRealm
	lockThreshold int
	logger        *slog.Logger
	unregister    []func()
}

// New validates the realm configuration and registers the session listeners
// that evict cached credentials.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Realms) == 0 {
		return nil, fmt.Errorf("%w: no realms configured", ErrRealmMisconfigured)
	}
	if cfg.RequireEvents && cfg.Events == nil {
		return nil, fmt.Errorf("%w: event bus required but not configured", ErrAuthenticationEvent)
	}
	if cfg.LockThreshold < 0 {
		return nil, fmt.Errorf("%w: negative lock threshold %d", ErrRealmMisconfigured, cfg.LockThreshold)
	}

	a := &Authenticator{
		realms:        slices.Clone(cfg.Realms),
		resolver:      make(map[TokenType][]Realm),
		strategy:      cfg.Strategy,
		events:        cfg.Events,
		challenger:    cfg.Challenger,
		lockThreshold: cfg.LockThreshold,
		logger:        cfg.Logger,
	}
	if a.strategy == nil {
		a.strategy = FirstRealmSuccessful{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	var types []TokenType
	for _, realm := range a.realms {
		for _, tt := range realm.SupportedTokenTypes() {
			if len(a.resolver[tt]) == 0 {
				types = append(types, tt)
			}
			a.resolver[tt] = append(a.resolver[tt], realm)
		}
		if lr, ok := realm.(LockingRealm); ok && a.lockingRealm == nil {
			a.lockingRealm = lr
		}
	}
	if err := validateTiers(types); err != nil {
		return nil, err
	}
	if a.lockThreshold > 0 && a.lockingRealm == nil {
		return nil, fmt.Errorf("%w: lock threshold set but no realm can lock accounts", ErrRealmMisconfigured)
	}

	if a.events != nil {
		a.unregister = append(a.unregister,
			a.events.Register(eventbus.TopicSessionExpire, a.onSessionEnd),
			a.events.Register(eventbus.TopicSessionStop, a.onSessionEnd),
		)
	}

	return a, nil
}

// Close removes the session listeners registered by New.
func (a *Authenticator) Close() {
	for _, fn := range a.unregister {
		fn()
	}
	a.unregister = nil
}

// Authenticate evaluates token. identifiers carries the collection returned
// by a previous tier and may be empty for a tier-1 token.
//
// A nil error means the token authenticated; the Result says whether the
// subject is fully authenticated or must continue with a higher tier. When
// only the event publish fails, the filled Result is returned together with
// an error wrapping ErrAuthenticationEvent.
func (a *Authenticator) Authenticate(ctx context.Context, identifiers IdentifierCollection, token Token) (Result, error) {
	if token == nil {
		return Result{}, fmt.Errorf("%w: nil token", ErrInvalidToken)
	}
	ctx = slogx.WithAttempt(ctx, a.logger, idx.New().String())
	l := a.log(ctx)

	if token.Identifier() == "" {
		if identifiers.IsEmpty() {
			return Result{}, fmt.Errorf("%w: %s submitted without prior identifiers", ErrInvalidAuthenticationSequence, token.Type())
		}
		binder, ok := token.(IdentifierBinder)
		if !ok {
			return Result{}, fmt.Errorf("%w: %s cannot be bound to an identifier", ErrInvalidAuthenticationSequence, token.Type())
		}
		if err := binder.BindIdentifier(identifiers.Primary()); err != nil {
			return Result{}, err
		}
	}
	identifier := token.Identifier()

	l.Debug("authentication submission received",
		slog.String("identifier", identifier),
		slog.String("token_type", token.Type().Name),
	)

	account, err := a.dispatch(ctx, token)
	if err != nil {
		return Result{}, a.handleFailure(ctx, token, err)
	}
	if account == nil {
		return Result{}, fmt.Errorf("%w: no account returned for %q", ErrUnknownAccount, identifier)
	}

	if account.RequiredTiers() > int(token.Tier()) {
		res := Result{
			Status:      StatusContinuationRequired,
			Identifiers: account.ID,
			NextTier:    token.Tier().Next(),
		}
		notifyErr := a.notify(ctx, eventbus.TopicAuthenticationProgress, identifier)
		if a.challenger != nil {
			if err := a.challenger.SendChallenge(ctx, account.ID); err != nil {
				l.Warn("failed to send MFA challenge",
					slog.String("identifier", identifier),
					slog.Any("error", err),
				)
			}
		}
		l.Info("additional authentication required",
			slog.String("identifier", identifier),
			slog.String("next_tier", token.Tier().Next().String()),
		)
		return res, notifyErr
	}

	l.Info("authentication succeeded", slog.String("identifier", account.ID.Primary()))
	res := Result{Status: StatusAuthenticated, Identifiers: account.ID}
	return res, a.notify(ctx, eventbus.TopicAuthenticationSucceeded, account.ID.Primary())
}

func (a *Authenticator) dispatch(ctx context.Context, token Token) (*Account, error) {
	realms := a.resolver[token.Type()]
	switch len(realms) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, token.Type())
	case 1:
		return realms[0].Authenticate(ctx, token)
	default:
		return a.strategy.Execute(ctx, Attempt{Token: token, Realms: realms})
	}
}

// handleFailure publishes the failure and evaluates the lock policy before
// the originating error is returned, so observers always see the events.
func (a *Authenticator) handleFailure(ctx context.Context, token Token, err error) error {
	l := a.log(ctx)
	identifier := token.Identifier()

	var incorrect *IncorrectCredentialsError
	switch {
	case errors.As(err, &incorrect):
		l.Info("incorrect credentials",
			slog.String("identifier", identifier),
			slog.String("token_type", token.Type().Name),
		)
		notifyErr := a.notify(ctx, eventbus.TopicAuthenticationFailed, identifier)
		if lockErr := a.validateLocked(ctx, token, incorrect.Account); lockErr != nil {
			return errors.Join(lockErr, notifyErr)
		}
		return errors.Join(err, notifyErr)

	case errors.Is(err, ErrLockedAccount):
		l.Warn("authentication attempted on locked account", slog.String("identifier", identifier))
		return errors.Join(err, a.notify(ctx, eventbus.TopicAuthenticationFailed, identifier))

	default:
		return err
	}
}

func (a *Authenticator) validateLocked(ctx context.Context, token Token, account *Account) error {
	if a.lockThreshold <= 0 || account == nil {
		return nil
	}
	attempts := len(account.FailedAttempts(token.Type()))
	if attempts <= a.lockThreshold {
		return nil
	}

	l := a.log(ctx)
	identifier := account.ID.Primary()
	locked := &LockedAccountError{Identifier: identifier}

	var persistErr error
	if err := a.lockingRealm.LockAccount(ctx, account); err != nil {
		l.Error("failed to persist account lock", slog.String("identifier", identifier), slog.Any("error", err))
		persistErr = fmt.Errorf("persist account lock: %w", err)
	}
	l.Warn("authentication attempts breached threshold, account locked",
		slog.String("identifier", identifier),
		slog.Int("failed_attempts", attempts),
		slog.Int("threshold", a.lockThreshold),
	)

	return errors.Join(locked, persistErr, a.notify(ctx, eventbus.TopicAuthenticationAccountLocked, identifier))
}

// UnlockAccount administratively clears the lock on identifier.
func (a *Authenticator) UnlockAccount(ctx context.Context, identifier string) error {
	if a.lockingRealm == nil {
		return fmt.Errorf("%w: no realm can unlock accounts", ErrRealmMisconfigured)
	}
	return a.lockingRealm.UnlockAccount(ctx, identifier)
}

// ClearCache evicts cached credentials for identifiers from every realm,
// using the identifier each realm contributed when one is recorded.
func (a *Authenticator) ClearCache(ctx context.Context, identifiers IdentifierCollection) error {
	var errs []error
	for _, realm := range a.realms {
		id, ok := identifiers.FromSource(realm.Name())
		if !ok {
			id = identifiers.Primary()
		}
		if id == "" {
			continue
		}
		if err := realm.ClearCachedCredentials(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("realm %s: %w", realm.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (a *Authenticator) onSessionEnd(ctx context.Context, ev eventbus.Event) error {
	ids, ok := ev.Payload.(IdentifierCollection)
	if !ok {
		if ev.Identifier == "" {
			a.log(ctx).Warn("could not clear cached credentials after session event", slog.String("topic", ev.Topic))
			return nil
		}
		ids = NewIdentifierCollection("", ev.Identifier)
	}
	return a.ClearCache(ctx, ids)
}

func (a *Authenticator) notify(ctx context.Context, topic, identifier string) error {
	if a.events == nil {
		return nil
	}
	if err := a.events.Publish(ctx, eventbus.NewEvent(topic, identifier)); err != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrAuthenticationEvent, topic, err)
	}
	return nil
}

func (a *Authenticator) log(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, a.logger)
}
