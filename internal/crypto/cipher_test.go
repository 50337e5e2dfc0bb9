package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKey is a fixed 32-byte key for deterministic tests.
var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(testKey, nil)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Run("explicit key", func(t *testing.T) {
		c, err := New(testKey, nil)
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("wrong explicit key size", func(t *testing.T) {
		_, err := New([]byte("short"), nil)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("environment key", func(t *testing.T) {
		t.Setenv(EnvKey, hex.EncodeToString(testKey))
		c, err := New(nil, nil)
		require.NoError(t, err)

		envelope, err := c.Encrypt("payload")
		require.NoError(t, err)

		// A cipher built from the explicit equivalent must interoperate.
		c2, err := New(testKey, nil)
		require.NoError(t, err)
		plaintext, err := c2.Decrypt(envelope)
		require.NoError(t, err)
		assert.Equal(t, "payload", plaintext)
	})

	t.Run("invalid environment key", func(t *testing.T) {
		t.Setenv(EnvKey, "not-hex")
		_, err := New(nil, nil)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("no key and no keyring", func(t *testing.T) {
		t.Setenv(EnvKey, "")
		_, err := New(nil, nil)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("keyring fallback is process-consistent", func(t *testing.T) {
		t.Setenv(EnvKey, "")
		ring := &Keyring{}
		c1, err := New(nil, ring)
		require.NoError(t, err)
		c2, err := New(nil, ring)
		require.NoError(t, err)

		envelope, err := c1.Encrypt("shared")
		require.NoError(t, err)
		plaintext, err := c2.Decrypt(envelope)
		require.NoError(t, err)
		assert.Equal(t, "shared", plaintext)
	})
}

func TestRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range []string{
		"",
		"short",
		`{"description":"restart the transport","steps":["a","b"]}`,
		strings.Repeat("long payload ", 1000),
	} {
		envelope, err := c.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := c.Decrypt(envelope)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEnvelopeFormat(t *testing.T) {
	c := newTestCipher(t)

	envelope, err := c.Encrypt("hello")
	require.NoError(t, err)

	parts := strings.Split(envelope, ":")
	require.Len(t, parts, 3)

	nonce, err := hex.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, nonce, nonceSize)

	tag, err := hex.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Len(t, tag, tagSize)

	ciphertext, err := hex.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Len(t, ciphertext, len("hello"))
}

func TestFreshNoncePerEncrypt(t *testing.T) {
	c := newTestCipher(t)

	e1, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	e2, err := c.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, e1, e2)
}

func TestTamperDetection(t *testing.T) {
	c := newTestCipher(t)

	envelope, err := c.Encrypt("sensitive solution data")
	require.NoError(t, err)
	parts := strings.Split(envelope, ":")

	ciphertext, err := hex.DecodeString(parts[2])
	require.NoError(t, err)

	for i := range ciphertext {
		flipped := make([]byte, len(ciphertext))
		copy(flipped, ciphertext)
		flipped[i] ^= 0x01

		tampered := parts[0] + ":" + parts[1] + ":" + hex.EncodeToString(flipped)
		_, err := c.Decrypt(tampered)
		assert.ErrorIs(t, err, ErrAuthentication, "flipping byte %d must fail authentication", i)
	}
}

func TestDecryptMalformed(t *testing.T) {
	c := newTestCipher(t)

	tests := []struct {
		name     string
		envelope string
	}{
		{"no segments", "plain text payload"},
		{"two segments", "aabb:ccdd"},
		{"four segments", "aa:bb:cc:dd"},
		{"non-hex nonce", "zz:" + strings.Repeat("ab", tagSize) + ":abcd"},
		{"short nonce", "abcd:" + strings.Repeat("ab", tagSize) + ":abcd"},
		{"short tag", strings.Repeat("ab", nonceSize) + ":abcd:abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.envelope)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestDecode(t *testing.T) {
	c := newTestCipher(t)

	t.Run("valid envelope decrypts", func(t *testing.T) {
		envelope, err := c.Encrypt(`{"description":"fix"}`)
		require.NoError(t, err)

		res := c.Decode(envelope)
		assert.Equal(t, OutcomeDecrypted, res.Outcome)
		assert.Equal(t, `{"description":"fix"}`, res.Plaintext)
		assert.NoError(t, res.Err)
	})

	t.Run("non-envelope payload is legacy plaintext", func(t *testing.T) {
		res := c.Decode(`{"description":"stored before encryption"}`)
		assert.Equal(t, OutcomeLegacyPlaintext, res.Outcome)
		assert.Equal(t, `{"description":"stored before encryption"}`, res.Plaintext)
	})

	t.Run("tampered envelope is unrecoverable", func(t *testing.T) {
		envelope, err := c.Encrypt("data")
		require.NoError(t, err)
		parts := strings.Split(envelope, ":")
		res := c.Decode(parts[0] + ":" + parts[1] + ":" + strings.Repeat("00", 4))

		assert.Equal(t, OutcomeUnrecoverable, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrAuthentication)
	})

	t.Run("wrong key is unrecoverable not legacy", func(t *testing.T) {
		other, err := New([]byte("ffffffffffffffffffffffffffffffff"), nil)
		require.NoError(t, err)

		envelope, err := c.Encrypt("data")
		require.NoError(t, err)

		res := other.Decode(envelope)
		assert.Equal(t, OutcomeUnrecoverable, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrAuthentication)
	})
}
