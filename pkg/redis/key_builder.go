package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // citypee:{environment}
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	env := "prod"
	switch environment {
	case "development", "staging":
		env = "staging"
	case "test":
		env = "test"
	}

	return &KeyBuilder{
		prefix: "citypee:" + env,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyRateLimit is the sorted set of submission times for one hashed IP
func (kb *KeyBuilder) KeyRateLimit(ipHash string) string {
	return kb.BuildKey(fmt.Sprintf(KeyRateLimit, ipHash))
}

// KeySummary holds the cached summary for a window
func (kb *KeyBuilder) KeySummary(window string) string {
	return kb.BuildKey(fmt.Sprintf(KeySummary, window))
}

// KeySummaryIndex tracks which summary keys exist so they can be cleared
func (kb *KeyBuilder) KeySummaryIndex() string {
	return kb.BuildKey(KeySummaryIndex)
}
