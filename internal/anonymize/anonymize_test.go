package anonymize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "url replaced with sentinel",
			input: "failed to reach http://internal.corp:8080/api/v1/tools",
			want:  "failed to reach https://example.com/mcp",
		},
		{
			name:  "https url replaced",
			input: "POST https://api.acme.io/v2/sessions returned 502",
			want:  "POST https://example.com/mcp returned 502",
		},
		{
			name:  "bearer token removed",
			input: "header Authorization: Bearer abc123def456 rejected",
			want:  "header Authorization: bearer [TOKEN_REMOVED] rejected",
		},
		{
			name:  "api key shaped token removed",
			input: "request with sk_live_abcdefghij0123456789xyz failed",
			want:  "request with [API_KEY_REMOVED] failed",
		},
		{
			name:  "email removed",
			input: "notify ops@acme.example about the outage",
			want:  "notify [EMAIL_REMOVED] about the outage",
		},
		{
			name:  "ipv4 removed",
			input: "connect to 10.1.2.3 timed out",
			want:  "connect to [IP_REMOVED] timed out",
		},
		{
			name:  "bare domain replaced",
			input: "DNS lookup for tools.acme-corp.io failed",
			want:  "DNS lookup for example.com failed",
		},
		{
			name:  "credential pair redacted",
			input: "config api_key=supersecret123 rejected",
			want:  "config api_key=[REDACTED] rejected",
		},
		{
			name:  "password pair redacted",
			input: "db_password=hunter22 is invalid",
			want:  "db_password=[REDACTED] is invalid",
		},
		{
			name:  "clean text untouched",
			input: "connection timeout during initialize handshake",
			want:  "connection timeout during initialize handshake",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.input))
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"failed to reach http://internal.corp:8080/api",
		"Authorization: Bearer abc123def456",
		"key sk_live_abcdefghij0123456789xyz leaked",
		"mail ops@acme.example and 10.0.0.1 and tools.acme.io",
		"secret=veryhidden token=abc",
		"already clean diagnostic text",
	}

	for _, input := range inputs {
		once := Text(input)
		twice := Text(once)
		assert.Equal(t, once, twice, "second pass must be a no-op for %q", input)
	}
}

func TestTextRuleOrder(t *testing.T) {
	// URL redaction runs before bare-domain redaction, so the sentinel URL
	// survives intact instead of being double-redacted.
	got := Text("see https://status.acme.com/incidents")
	assert.Equal(t, "see https://example.com/mcp", got)
}

func TestStructure(t *testing.T) {
	t.Run("credential keys redacted without recursion", func(t *testing.T) {
		in := map[string]any{
			"api_key":  "sk_live_abcdefghij0123456789xyz",
			"password": map[string]any{"nested": "value"},
			"endpoint": "http://internal.corp/mcp",
		}

		out, ok := Structure(in).(map[string]any)
		require.True(t, ok)
		assert.Equal(t, Redacted, out["api_key"])
		assert.Equal(t, Redacted, out["password"])
		assert.Equal(t, "https://example.com/mcp", out["endpoint"])
	})

	t.Run("arrays mapped element-wise", func(t *testing.T) {
		in := []any{"contact ops@acme.example", "retry the probe", 3}

		out, ok := Structure(in).([]any)
		require.True(t, ok)
		assert.Equal(t, "contact [EMAIL_REMOVED]", out[0])
		assert.Equal(t, "retry the probe", out[1])
		assert.Equal(t, 3, out[2])
	})

	t.Run("non-string scalars pass through", func(t *testing.T) {
		assert.Equal(t, 42.0, Structure(42.0))
		assert.Equal(t, true, Structure(true))
		assert.Nil(t, Structure(nil))
	})

	t.Run("deep nesting", func(t *testing.T) {
		in := map[string]any{
			"steps": []any{
				map[string]any{
					"run":   "curl http://10.1.2.3:8080/health",
					"token": "abc",
				},
			},
		}

		out := Structure(in).(map[string]any)
		step := out["steps"].([]any)[0].(map[string]any)
		assert.Equal(t, "curl https://example.com/mcp", step["run"])
		assert.Equal(t, Redacted, step["token"])
	})
}

func TestHashIdentifier(t *testing.T) {
	h := HashIdentifier("user-42")

	assert.Len(t, h, 64)
	assert.Equal(t, h, HashIdentifier("user-42"))
	assert.NotEqual(t, h, HashIdentifier("user-43"))
	assert.NotContains(t, h, "user")
}
