package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// cheap parameters keep the suite fast
var testParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

func TestHasher_Hash(t *testing.T) {
	h := NewHasher([]byte("pepper"), testParams)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash([]byte(tt.password))
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=1024,t=1,p=1", parts[3])
			require.NotEmpty(t, parts[4], "salt should not be empty")
			require.NotEmpty(t, parts[5], "hash should not be empty")

			ok, err := h.Verify([]byte(tt.password), hash)
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestHasher_DefaultParams(t *testing.T) {
	h := NewHasher(nil, Params{})
	hash, err := h.Hash([]byte("test-password"))
	require.NoError(t, err)
	require.Contains(t, hash, "m=19456,t=2,p=1")
}

func TestHasher_UniqueSalts(t *testing.T) {
	h := NewHasher([]byte("pepper"), testParams)

	hash1, err := h.Hash([]byte("samepassword"))
	require.NoError(t, err)
	hash2, err := h.Hash([]byte("samepassword"))
	require.NoError(t, err)
	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
}

func TestHasher_WrongPassword(t *testing.T) {
	h := NewHasher([]byte("pepper"), testParams)
	hash, err := h.Hash([]byte("correct-password"))
	require.NoError(t, err)

	for _, wrong := range []string{"wrong-password", "Correct-Password", "correct-password ", "", strings.Repeat("x", 10000)} {
		ok, err := h.Verify([]byte(wrong), hash)
		require.NoError(t, err)
		require.False(t, ok, "%q should not verify", wrong)
	}
}

func TestHasher_PepperIsApplied(t *testing.T) {
	hash, err := NewHasher([]byte("pepper-a"), testParams).Hash([]byte("secret"))
	require.NoError(t, err)

	ok, err := NewHasher([]byte("pepper-b"), testParams).Verify([]byte("secret"), hash)
	require.NoError(t, err)
	require.False(t, ok, "a different pepper must not verify")
}

func TestHasher_MalformedHash(t *testing.T) {
	h := NewHasher(nil, testParams)

	tests := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify([]byte("test-password"), tt.hash)
			require.ErrorIs(t, err, ErrMalformedHash)
			require.False(t, ok)
		})
	}
}

func TestLoadOrGeneratePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second, "existing pepper should be reused")

	_, err = LoadOrGeneratePepper("")
	require.Error(t, err)
}
