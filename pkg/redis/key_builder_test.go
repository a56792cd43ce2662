package redis

import (
	"testing"
)

func TestKeyBuilder_Environment_Prefixes(t *testing.T) {
	tests := []struct {
		name           string
		environment    string
		expectedPrefix string
	}{
		{
			name:           "Production environment should use prod prefix",
			environment:    "production",
			expectedPrefix: "citypee:prod",
		},
		{
			name:           "Development environment should use staging prefix",
			environment:    "development",
			expectedPrefix: "citypee:staging",
		},
		{
			name:           "Staging environment should use staging prefix",
			environment:    "staging",
			expectedPrefix: "citypee:staging",
		},
		{
			name:           "Test environment should use test prefix",
			environment:    "test",
			expectedPrefix: "citypee:test",
		},
		{
			name:           "Unknown environment should default to prod prefix",
			environment:    "unknown",
			expectedPrefix: "citypee:prod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := NewKeyBuilder(tt.environment)
			if kb.GetPrefix() != tt.expectedPrefix {
				t.Errorf("NewKeyBuilder(%s).GetPrefix() = %s, want %s",
					tt.environment, kb.GetPrefix(), tt.expectedPrefix)
			}
		})
	}
}

func TestKeyBuilder_KeyGeneration(t *testing.T) {
	kb := NewKeyBuilder("production")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "RateLimit key",
			got:      kb.KeyRateLimit("abc123"),
			expected: "citypee:prod:ratelimit:suggest:abc123",
		},
		{
			name:     "Summary key",
			got:      kb.KeySummary("24h"),
			expected: "citypee:prod:summary:24h",
		},
		{
			name:     "Summary index key",
			got:      kb.KeySummaryIndex(),
			expected: "citypee:prod:summary:index",
		},
		{
			name:     "Arbitrary key",
			got:      kb.BuildKey("anything"),
			expected: "citypee:prod:anything",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestKeyBuilder_EnvironmentSeparation(t *testing.T) {
	prod := NewKeyBuilder("production")
	staging := NewKeyBuilder("staging")

	if prod.KeySummary("1h") == staging.KeySummary("1h") {
		t.Errorf("production and staging summary keys should differ, both were %s", prod.KeySummary("1h"))
	}
	if prod.KeyRateLimit("ip") == staging.KeyRateLimit("ip") {
		t.Errorf("production and staging rate limit keys should differ")
	}
}
