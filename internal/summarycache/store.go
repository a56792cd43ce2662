// Package summarycache caches serialized validation summaries together with
// a content-derived ETag.
package summarycache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTTL is how long a cached summary is served.
const DefaultTTL = 60 * time.Second

// Entry is a cached body and its validator.
type Entry struct {
	Body []byte
	ETag string
}

// Store is implemented by the in-memory and Redis caches. Get returns a nil
// entry on a miss, including for entries past their TTL.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) (string, error)
	HasMatchingETag(ctx context.Context, key, etag string) (bool, error)
	Clear(ctx context.Context) error
}

// Encode serializes value for caching. Map keys are emitted in sorted order
// so equal values produce equal bytes.
func Encode(value interface{}) ([]byte, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache value: %w", err)
	}
	return body, nil
}

// ETag returns a strong validator for body.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf(`"%x"`, sum[:16])
}

// MatchesETag reports whether an If-None-Match header value matches etag.
// Lists and weak validators are accepted.
func MatchesETag(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func hasMatchingETag(ctx context.Context, s Store, key, etag string) (bool, error) {
	entry, err := s.Get(ctx, key)
	if err != nil || entry == nil {
		return false, err
	}
	return MatchesETag(etag, entry.ETag), nil
}
