// Package crypto provides authenticated encryption for solution payloads
// at rest.
//
// Payloads are sealed with AES-256-GCM and serialized as a three-segment
// envelope, hex(nonce):hex(tag):hex(ciphertext), so decryption can split the
// parts unambiguously. Decode distinguishes valid ciphertext, legacy
// unencrypted payloads, and irrecoverable data as an explicit tagged result
// so callers handle all three outcomes.
package crypto
