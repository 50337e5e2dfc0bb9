package anonymize

import "regexp"

// rule is a single redaction step. Rules are applied to text in declaration
// order: URL redaction must run before bare-domain redaction or the sentinel
// URL would be re-redacted.
type rule struct {
	// ID identifies the rule in tests and logs.
	ID string

	// Pattern matches the sensitive substring.
	Pattern *regexp.Regexp

	// Replacement is the fixed sentinel. It is chosen so that re-applying
	// the rule to its own output is a no-op.
	Replacement string
}

// textRules is the ordered redaction chain applied to every text node.
var textRules = []rule{
	{
		ID:          "url",
		Pattern:     regexp.MustCompile(`https?://[^\s]+`),
		Replacement: "https://example.com/mcp",
	},
	{
		ID:          "bearer-token",
		Pattern:     regexp.MustCompile(`(?i)\bbearer\s+\S+`),
		Replacement: "bearer [TOKEN_REMOVED]",
	},
	{
		ID:          "api-key",
		Pattern:     regexp.MustCompile(`\b(?:sk|pk|api)_[A-Za-z]+_[A-Za-z0-9]{20,}\b`),
		Replacement: "[API_KEY_REMOVED]",
	},
	{
		ID:          "email",
		Pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		Replacement: "[EMAIL_REMOVED]",
	},
	{
		ID:          "ipv4",
		Pattern:     regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		Replacement: "[IP_REMOVED]",
	},
	{
		ID:          "domain",
		Pattern:     regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?\.)+(?:com|net|org|io|co|dev|app|ai|cloud)\b`),
		Replacement: "example.com",
	},
	{
		ID:          "credential-pair",
		Pattern:     regexp.MustCompile(`(?i)\b([A-Za-z0-9_\-]*(?:password|passwd|secret|token|credential|api[_\-]?key|key)[A-Za-z0-9_\-]*)\s*=\s*\S+`),
		Replacement: "${1}=[REDACTED]",
	},
}

// credentialKey matches object keys whose values must be redacted outright
// instead of recursed into.
var credentialKey = regexp.MustCompile(`(?i)password|passwd|secret|token|credential|api[_\-]?key|key`)
