package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrInvalidKey indicates a missing or wrongly sized encryption key.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrMalformedEnvelope indicates a payload that is not a three-segment
	// hex envelope. Callers may treat such payloads as legacy plaintext.
	ErrMalformedEnvelope = errors.New("malformed ciphertext envelope")

	// ErrAuthentication indicates a well-formed envelope whose ciphertext
	// failed GCM authentication: tampered, corrupted, or wrong key.
	ErrAuthentication = errors.New("ciphertext authentication failed")
)

// Cipher seals and opens solution payloads with a single long-lived key.
type Cipher struct {
	aead cipher.AEAD
}

// New constructs a Cipher. The key is resolved at construction time from,
// in priority order: the explicit key, the CORTEXDX_ENCRYPTION_KEY
// environment variable, or the keyring's process-lifetime generated key.
func New(explicit []byte, ring *Keyring) (*Cipher, error) {
	key, err := resolveKey(explicit, ring)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the
// envelope hex(nonce):hex(tag):hex(ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope produced by Encrypt. It returns
// ErrMalformedEnvelope when the payload does not split into three hex
// segments and ErrAuthentication when the authentication tag does not
// verify, so callers can tell corruption from a wrong key apart from
// legacy data.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	nonce, tag, ciphertext, err := splitEnvelope(envelope)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return string(plaintext), nil
}

// Outcome tags a Decode result.
type Outcome int

const (
	// OutcomeDecrypted means the payload was a valid envelope and opened
	// cleanly; Plaintext holds the decrypted content.
	OutcomeDecrypted Outcome = iota

	// OutcomeLegacyPlaintext means the payload is not an envelope at all;
	// Plaintext holds the raw payload for a legacy parse attempt.
	OutcomeLegacyPlaintext

	// OutcomeUnrecoverable means the payload looked like an envelope but
	// failed authentication; Err holds the cause.
	OutcomeUnrecoverable
)

// DecodeResult is the explicit three-way result of decoding a stored
// payload.
type DecodeResult struct {
	Outcome   Outcome
	Plaintext string
	Err       error
}

// Decode classifies a stored payload. A payload that does not parse as a
// three-segment hex envelope is surfaced as legacy plaintext rather than an
// error so rows written before encryption was introduced keep loading.
func (c *Cipher) Decode(payload string) DecodeResult {
	if _, _, _, err := splitEnvelope(payload); err != nil {
		return DecodeResult{Outcome: OutcomeLegacyPlaintext, Plaintext: payload}
	}

	plaintext, err := c.Decrypt(payload)
	if err != nil {
		return DecodeResult{Outcome: OutcomeUnrecoverable, Err: err}
	}
	return DecodeResult{Outcome: OutcomeDecrypted, Plaintext: plaintext}
}

// splitEnvelope parses the nonce, tag, and ciphertext segments.
func splitEnvelope(envelope string) (nonce, tag, ciphertext []byte, err error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return nil, nil, nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedEnvelope, len(parts))
	}

	if nonce, err = hex.DecodeString(parts[0]); err != nil || len(nonce) != nonceSize {
		return nil, nil, nil, fmt.Errorf("%w: bad nonce segment", ErrMalformedEnvelope)
	}
	if tag, err = hex.DecodeString(parts[1]); err != nil || len(tag) != tagSize {
		return nil, nil, nil, fmt.Errorf("%w: bad tag segment", ErrMalformedEnvelope)
	}
	if ciphertext, err = hex.DecodeString(parts[2]); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: bad ciphertext segment", ErrMalformedEnvelope)
	}
	return nonce, tag, ciphertext, nil
}
