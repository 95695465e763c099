// Package crypto encrypts tracked-search queries at rest and derives
// the deterministic fingerprints used to look them up without
// decryption. The plaintext query never reaches logs or the database:
// persistence sees only AES-256-GCM ciphertext and an HMAC-SHA256
// fingerprint, and logs see at most a short fingerprint prefix.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Sentinel errors.
var (
	ErrKeyMissing = errors.New("crypto: encryption key not configured")
	ErrDecrypt    = errors.New("crypto: decryption failed")
)

const (
	// keySize is the AES-256 key length.
	keySize = 32

	// encodedKeyLen is the length of a base64-encoded 32-byte key. A
	// secret of exactly this shape is used as the key directly; anything
	// else is stretched through PBKDF2.
	encodedKeyLen = 44

	pbkdf2Iterations = 100_000
	pbkdf2Salt       = "marketmaker_search_salt_v1"

	// FingerprintPrefixLen is how much of a fingerprint is safe to put
	// in logs and API responses.
	FingerprintPrefixLen = 12
)

// Codec encrypts and fingerprints search queries with keys derived from
// a single configured secret.
type Codec struct {
	aead    cipher.AEAD
	hmacKey []byte
}

// New builds a Codec from the configured secret. A 44-character base64
// string decoding to 32 bytes is used as the AES key as-is; any other
// non-empty secret is run through PBKDF2-SHA256 with a fixed salt.
func New(secret string) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrKeyMissing
	}

	key := deriveKey(secret)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	// Separate HMAC key so fingerprints reveal nothing about the
	// encryption key.
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte("fingerprint"))

	return &Codec{aead: aead, hmacKey: mac.Sum(nil)}, nil
}

func deriveKey(secret string) []byte {
	if len(secret) == encodedKeyLen {
		if key, err := base64.StdEncoding.DecodeString(secret); err == nil && len(key) == keySize {
			return key
		}
	}
	return pbkdf2.Key([]byte(secret), []byte(pbkdf2Salt), pbkdf2Iterations, keySize, sha256.New)
}

// Encrypt seals plaintext with a fresh random nonce and returns
// base64(nonce || ciphertext).
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any malformed or tampered input yields
// ErrDecrypt; callers get no detail about which step failed.
func (c *Codec) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// Fingerprint returns a deterministic hex HMAC of the query, normalized
// so trivial whitespace and casing differences map to the same tracked
// search.
func (c *Codec) Fingerprint(query string) string {
	mac := hmac.New(sha256.New, c.hmacKey)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(mac.Sum(nil))
}

// FingerprintPrefix shortens a fingerprint for log lines and list
// responses.
func FingerprintPrefix(fingerprint string) string {
	if len(fingerprint) <= FingerprintPrefixLen {
		return fingerprint
	}
	return fingerprint[:FingerprintPrefixLen]
}
