package password

import (
	"strings"
	"testing"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(algorithm string) config.PasswordConfig {
	return config.PasswordConfig{
		Algorithm:     algorithm,
		Argon2Memory:  8 * 1024,
		Argon2Time:    1,
		Argon2Threads: 1,
		Argon2SaltLen: 16,
		Argon2KeyLen:  32,
		BcryptCost:    bcrypt.MinCost,
	}
}

func TestArgon2_HashAndVerify(t *testing.T) {
	h, err := New(testConfig("argon2id"))
	require.NoError(t, err)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"), hash)

	ok, err := h.Verify("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt is random")
}

func TestBcrypt_HashAndVerify(t *testing.T) {
	h, err := New(testConfig("bcrypt"))
	require.NoError(t, err)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.True(t, isBcryptHash(hash))

	ok, err := h.Verify("secret1", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("secret2", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMulti_VerifiesEitherAlgorithm(t *testing.T) {
	argonHasher, err := New(testConfig("argon2id"))
	require.NoError(t, err)
	bcryptHasher, err := New(testConfig("bcrypt"))
	require.NoError(t, err)

	legacy, err := bcryptHasher.Hash("legacy-pass")
	require.NoError(t, err)

	ok, err := argonHasher.Verify("legacy-pass", legacy)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = argonHasher.Verify("x", "plaintext")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestHash_TooShort(t *testing.T) {
	for _, algorithm := range []string{"argon2id", "bcrypt"} {
		h, err := New(testConfig(algorithm))
		require.NoError(t, err)
		_, err = h.Hash("12345")
		assert.ErrorIs(t, err, ErrTooShort, algorithm)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := map[string]func(*config.PasswordConfig){
		"unknown algorithm": func(c *config.PasswordConfig) { c.Algorithm = "md5" },
		"low memory":        func(c *config.PasswordConfig) { c.Argon2Memory = 1024 },
		"short salt":        func(c *config.PasswordConfig) { c.Argon2SaltLen = 4 },
		"bcrypt cost":       func(c *config.PasswordConfig) { c.BcryptCost = 99 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig("argon2id")
			mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestArgon2_RejectsMalformedHash(t *testing.T) {
	a, err := NewArgon2(Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	require.NoError(t, err)

	for _, encoded := range []string{
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$aGFzaA",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
	} {
		_, err := a.Verify("password", encoded)
		assert.Error(t, err, encoded)
	}
}
