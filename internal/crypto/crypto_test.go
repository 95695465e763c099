package crypto_test

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidpendyala/marketmaker/internal/crypto"
)

func newCodec(t *testing.T, secret string) *crypto.Codec {
	t.Helper()
	c, err := crypto.New(secret)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("empty secret", func(t *testing.T) {
		t.Parallel()
		_, err := crypto.New("   ")
		assert.ErrorIs(t, err, crypto.ErrKeyMissing)
	})

	t.Run("passphrase secret", func(t *testing.T) {
		t.Parallel()
		c, err := crypto.New("correct horse battery staple")
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("base64 key secret", func(t *testing.T) {
		t.Parallel()
		raw := make([]byte, 32)
		_, err := rand.Read(raw)
		require.NoError(t, err)

		c, err := crypto.New(base64.StdEncoding.EncodeToString(raw))
		require.NoError(t, err)
		assert.NotNil(t, c)
	})
}

func TestEncryptDecrypt(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "test-secret")

	tests := []struct {
		name  string
		query string
	}{
		{"simple", "iphone 15 pro"},
		{"empty", ""},
		{"unicode", "caméra 4k ültra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encrypted, err := c.Encrypt(tt.query)
			require.NoError(t, err)
			assert.NotEqual(t, tt.query, encrypted)

			decrypted, err := c.Decrypt(encrypted)
			require.NoError(t, err)
			assert.Equal(t, tt.query, decrypted)
		})
	}
}

func TestEncryptNonDeterministic(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "test-secret")

	first, err := c.Encrypt("iphone 15 pro")
	require.NoError(t, err)
	second, err := c.Encrypt("iphone 15 pro")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "fresh nonce per encryption")
}

func TestDecryptFailures(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "test-secret")

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("tiny"))},
		{"garbage ciphertext", base64.StdEncoding.EncodeToString(make([]byte, 64))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := c.Decrypt(tt.input)
			assert.ErrorIs(t, err, crypto.ErrDecrypt)
		})
	}

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()

		encrypted, err := c.Encrypt("secret query")
		require.NoError(t, err)

		other := newCodec(t, "different-secret")
		_, err = other.Decrypt(encrypted)
		assert.ErrorIs(t, err, crypto.ErrDecrypt)
	})
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "test-secret")

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, c.Fingerprint("iphone 15 pro"), c.Fingerprint("iphone 15 pro"))
	})

	t.Run("normalized", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, c.Fingerprint("iphone 15 pro"), c.Fingerprint("  iPhone 15 PRO "))
	})

	t.Run("distinct queries differ", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, c.Fingerprint("iphone 15 pro"), c.Fingerprint("iphone 15"))
	})

	t.Run("key dependent", func(t *testing.T) {
		t.Parallel()
		other := newCodec(t, "different-secret")
		assert.NotEqual(t, c.Fingerprint("iphone 15 pro"), other.Fingerprint("iphone 15 pro"))
	})

	t.Run("hex sha256 length", func(t *testing.T) {
		t.Parallel()
		assert.Len(t, c.Fingerprint("iphone 15 pro"), 64)
	})
}

func TestFingerprintPrefix(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "test-secret")
	fp := c.Fingerprint("iphone 15 pro")

	prefix := crypto.FingerprintPrefix(fp)
	assert.Len(t, prefix, crypto.FingerprintPrefixLen)
	assert.Equal(t, fp[:crypto.FingerprintPrefixLen], prefix)

	assert.Equal(t, "short", crypto.FingerprintPrefix("short"))
}
