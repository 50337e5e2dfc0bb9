package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
)

// Redacted is the sentinel stored in place of credential-named values.
const Redacted = "[REDACTED]"

// Text applies the full redaction chain to a string and returns the
// sanitized copy. Applying Text to its own output yields the same result.
func Text(s string) string {
	for _, r := range textRules {
		s = r.Pattern.ReplaceAllString(s, r.Replacement)
	}
	return s
}

// Structure sanitizes an arbitrarily nested JSON-shaped value and returns a
// value of the same shape. Strings pass through Text, arrays are mapped
// element-wise, and objects are walked key by key. A key that names a
// credential (password, secret, token, key, credential) has its value
// replaced with Redacted without recursing into it. Non-string scalars are
// returned unchanged.
func Structure(v any) any {
	switch val := v.(type) {
	case string:
		return Text(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Structure(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if credentialKey.MatchString(k) {
				out[k] = Redacted
				continue
			}
			out[k] = Structure(item)
		}
		return out
	default:
		return v
	}
}

// HashIdentifier returns the SHA-256 hex digest of an identifier.
//
// It is a one-way primitive for user identifiers in feedback records and is
// deliberately not part of the text redaction chain.
func HashIdentifier(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
