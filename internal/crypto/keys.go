package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// EnvKey names the environment variable holding a hex-encoded key.
	EnvKey = "CORTEXDX_ENCRYPTION_KEY"
)

// Keyring lazily generates and caches a random key for the lifetime of the
// process. It backs the last-resort key path when neither an explicit key
// nor the environment provides one: every cipher constructed against the
// same Keyring uses the same generated key, so encrypt and decrypt stay
// self-consistent within a process. Data written with a generated key is
// unreadable after restart; callers needing durability must configure a key.
type Keyring struct {
	once sync.Once
	key  []byte
	err  error
}

// Key returns the cached generated key, creating it on first use.
func (r *Keyring) Key() ([]byte, error) {
	r.once.Do(func() {
		key := make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			r.err = fmt.Errorf("generate fallback key: %w", err)
			return
		}
		r.key = key
	})
	return r.key, r.err
}

// resolveKey picks the cipher key in priority order: explicit key, then the
// environment, then the keyring's generated key.
func resolveKey(explicit []byte, ring *Keyring) ([]byte, error) {
	if len(explicit) > 0 {
		if len(explicit) != KeySize {
			return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(explicit))
		}
		return explicit, nil
	}

	if encoded := os.Getenv(EnvKey); encoded != "" {
		key, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not valid hex", ErrInvalidKey, EnvKey)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: %s decodes to %d bytes", ErrInvalidKey, EnvKey, len(key))
		}
		return key, nil
	}

	if ring == nil {
		return nil, fmt.Errorf("%w: no key configured and no keyring provided", ErrInvalidKey)
	}
	return ring.Key()
}
