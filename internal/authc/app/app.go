package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/realmauth/internal/authc/http"
	"github.com/aussiebroadwan/realmauth/internal/authc/service"
	"github.com/aussiebroadwan/realmauth/internal/authc/store"
	"github.com/aussiebroadwan/realmauth/internal/authc/store/drivers/sqlite"
	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/cache"
	"github.com/aussiebroadwan/realmauth/pkg/cache/drivers/memory"
	rediscache "github.com/aussiebroadwan/realmauth/pkg/cache/drivers/redis"
	"github.com/aussiebroadwan/realmauth/pkg/challenge"
	"github.com/aussiebroadwan/realmauth/pkg/cryptox"
	"github.com/aussiebroadwan/realmauth/pkg/eventbus"
	"github.com/aussiebroadwan/realmauth/pkg/realm"
	"github.com/aussiebroadwan/realmauth/pkg/slogx"
	"github.com/aussiebroadwan/realmauth/pkg/verifier"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application wires the account store, caches, realm and Authenticator and
// runs the housekeeping worker and health server around them.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     *sqlite.Store
	redis  goredis.UniversalClient
	hasher *cryptox.Hasher

	credentialsCache cache.Cache
	authzCache       cache.Cache

	bus           *eventbus.Bus
	realm         *realm.AccountStoreRealm
	authenticator *authc.Authenticator
	unsubscribe   []func()

	accountService      *service.AccountService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService
	housekeepingStarted bool

	server *http.Server
	router *httpapi.Router
}

// New builds every dependency and seeds the bootstrap admin when configured.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authcd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  cfg.LogOutput,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	steps := []func() error{
		app.initCrypto,
		app.initCaches,
		app.initAuthentication,
		app.initServices,
		app.bootstrap,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			app.closeResources()
			return nil, err
		}
	}
	app.initHTTP()

	return app, nil
}

// Authenticator is the entry point for authentication submissions.
func (app *Application) Authenticator() *authc.Authenticator { return app.authenticator }

// Realm answers authorization queries and cache maintenance.
func (app *Application) Realm() *realm.AccountStoreRealm { return app.realm }

// Accounts administers accounts, credentials and grants.
func (app *Application) Accounts() *service.AccountService { return app.accountService }

// Events is the bus authentication and session events are published on.
func (app *Application) Events() *eventbus.Bus { return app.bus }

// Handler serves the health endpoints.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()
	app.housekeepingStarted = true

	app.logger.Info("authcd starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops the health server and the housekeeping worker, then
// releases the store and cache connections.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authcd...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingStarted {
		app.housekeepingService.Stop()
		app.housekeepingStarted = false
	}

	if err := app.closeResources(); err != nil {
		app.logger.Error("error releasing resources", "error", err)
		return err
	}

	app.logger.Info("authcd stopped")
	return nil
}

func (app *Application) closeResources() error {
	for _, fn := range app.unsubscribe {
		fn()
	}
	app.unsubscribe = nil
	if app.authenticator != nil {
		app.authenticator.Close()
	}

	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}

func (app *Application) initDatabase() error {
	dsn := app.cfg.DatabaseFile
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	}
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initCrypto() error {
	pepper, err := cryptox.LoadOrGeneratePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper, app.cfg.PasswordParams)
	return nil
}

func (app *Application) initCaches() error {
	switch app.cfg.CacheBackend {
	case CacheBackendNone:
		app.logger.Info("realm caching disabled")
		return nil

	case CacheBackendRedis:
		app.redis = goredis.NewClient(&goredis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
		}
		app.credentialsCache = rediscache.New(app.redis, "realmauth:", app.cfg.CredentialsCacheTTL)
		app.authzCache = rediscache.New(app.redis, "realmauth:", app.cfg.AuthzCacheTTL)

	default:
		app.credentialsCache = memory.New(app.cfg.CacheSize, app.cfg.CredentialsCacheTTL)
		app.authzCache = memory.New(app.cfg.CacheSize, app.cfg.AuthzCacheTTL)
	}

	app.logger.Info("realm caches initialized",
		"backend", app.cfg.CacheBackend,
		"credentials_ttl", app.cfg.CredentialsCacheTTL,
		"authz_ttl", app.cfg.AuthzCacheTTL,
	)
	return nil
}

func (app *Application) initAuthentication() error {
	rcfg := realm.Config{
		Name:  app.cfg.RealmName,
		Store: store.NewAccountStoreAdapter(app.db),
		Verifiers: map[authc.TokenType]realm.CredentialVerifier{
			authc.PasswordTokenType: verifier.NewPasswordVerifier(app.hasher),
			authc.TOTPTokenType:     verifier.NewTOTPVerifier(app.cfg.TOTPSkew),
		},
		Logger: app.logger,
	}
	if app.credentialsCache != nil {
		// usernames are fingerprinted before they reach a shared cache
		fingerprint := app.cfg.CacheBackend == CacheBackendRedis
		rcfg.CredentialsCache = realm.NewCredentialsCacheHandler(app.credentialsCache,
			realm.IdentifierKeyResolver{Prefix: "authc:credentials:", Fingerprint: fingerprint})
		rcfg.AuthzCache = realm.NewAuthorizationCacheHandler(app.authzCache,
			realm.IdentifierKeyResolver{Prefix: "authz:info:", Fingerprint: fingerprint})
	}
	r, err := realm.New(rcfg)
	if err != nil {
		return fmt.Errorf("failed to build realm: %w", err)
	}
	app.realm = r

	challenger, err := challenge.New(app.cfg.MFAChallenger, app.logger, challenge.ThrottleConfig{
		ChallengesPerWindow: app.cfg.ChallengeRate,
		Window:              app.cfg.ChallengeWindow,
		Burst:               app.cfg.ChallengeBurst,
	})
	if err != nil {
		return fmt.Errorf("failed to build mfa challenger: %w", err)
	}

	app.bus = eventbus.New(app.logger)
	app.subscribeAudit()

	a, err := authc.New(authc.Config{
		Realms:        []authc.Realm{r},
		Events:        app.bus,
		RequireEvents: true,
		Challenger:    challenger,
		LockThreshold: app.cfg.LockThreshold,
		Logger:        app.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build authenticator: %w", err)
	}
	app.authenticator = a
	return nil
}

// subscribeAudit logs every authentication outcome as an audit record.
func (app *Application) subscribeAudit() {
	audit := app.logger.With("component", "audit")
	for _, topic := range []string{
		eventbus.TopicAuthenticationProgress,
		eventbus.TopicAuthenticationSucceeded,
		eventbus.TopicAuthenticationFailed,
		eventbus.TopicAuthenticationAccountLocked,
	} {
		app.unsubscribe = append(app.unsubscribe, app.bus.Register(topic, func(ctx context.Context, ev eventbus.Event) error {
			level := slog.LevelInfo
			if ev.Topic == eventbus.TopicAuthenticationAccountLocked {
				level = slog.LevelWarn
			}
			audit.Log(ctx, level, "authentication event",
				slog.String("event_id", ev.ID.String()),
				slog.String("topic", ev.Topic),
				slog.String("identifier", ev.Identifier),
			)
			return nil
		}))
	}
}

func (app *Application) initServices() error {
	app.accountService = &service.AccountService{
		Store:       app.db,
		Hasher:      app.hasher,
		Issuer:      app.cfg.Issuer,
		Invalidator: app.realm,
	}
	app.bootstrapService = &service.BootstrapService{
		Store:    app.db,
		Accounts: app.accountService,
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.FailedAttemptRetention,
	)
	return nil
}

func (app *Application) bootstrap() error {
	if app.cfg.BootstrapUsername == "" {
		return nil
	}
	ctx := slogx.WithContext(context.Background(), app.logger)
	created, err := app.bootstrapService.Bootstrap(ctx, app.cfg.BootstrapUsername, []byte(app.cfg.BootstrapPassword))
	if err != nil {
		return fmt.Errorf("failed to bootstrap account store: %w", err)
	}
	if created {
		app.logger.Info("bootstrap admin created", "username", app.cfg.BootstrapUsername)
	}
	return nil
}

func (app *Application) initHTTP() {
	checks := map[string]httpapi.Pinger{"database": app.db}
	if p, ok := app.credentialsCache.(cache.Pinger); ok {
		checks["cache"] = p
	}
	app.router = httpapi.NewRouter(BuildVersion, checks, app.logger)

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
