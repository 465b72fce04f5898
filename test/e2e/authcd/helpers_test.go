package authcd_test

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/realmauth/internal/authc/app"
	"github.com/aussiebroadwan/realmauth/pkg/authc"
	"github.com/aussiebroadwan/realmauth/pkg/cryptox"
)

/*
 * End-to-end tests run the daemon in-process against a real Redis started
 * with testcontainers. They need a Docker daemon and are skipped in -short.
 */

const (
	redisImage    = "redis:7-alpine"
	adminUsername = "admin"
	adminPassword = "Admin123!"
	lockThreshold = 3
)

// setupRedisContainer starts Redis and returns its address and the container.
func setupRedisContainer(t *testing.T) (string, testcontainers.Container) {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e tests need docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mappedPort.Port()), container
}

// setupApp builds the daemon against the Redis at redisAddr with a
// bootstrapped admin account.
func setupApp(t *testing.T, redisAddr string) *app.Application {
	t.Helper()
	dir := t.TempDir()

	application, err := app.New(app.Config{
		RealmName:            "sql",
		DatabaseFile:         filepath.Join(dir, "authc.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		Issuer:               "realmauth-e2e",
		LockThreshold:        lockThreshold,
		TOTPSkew:             1,
		MFAChallenger:        "log",
		ChallengeRate:        5,
		CacheBackend:         app.CacheBackendRedis,
		RedisAddr:            redisAddr,
		CredentialsCacheTTL:  time.Minute,
		AuthzCacheTTL:        time.Hour,
		BootstrapUsername:    adminUsername,
		BootstrapPassword:    adminPassword,
		PasswordParams:       cryptox.Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16},
		Env:                  "test",
		LogOutput:            io.Discard,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Shutdown() })
	return application
}

func login(t *testing.T, application *app.Application, username, password string) (authc.Result, error) {
	t.Helper()
	token, err := authc.NewPasswordToken(username, []byte(password))
	require.NoError(t, err)
	return application.Authenticator().Authenticate(t.Context(), authc.IdentifierCollection{}, token)
}
