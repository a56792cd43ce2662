package summarycache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"citypee/pkg/redis"
)

type summary struct {
	Window string         `json:"window"`
	Total  int            `json:"total"`
	ByTier map[string]int `json:"byTier"`
}

var sample = summary{Window: "24h", Total: 3, ByTier: map[string]int{"core": 2, "optional": 1, "specialized": 0}}

type storeCase struct {
	name    string
	store   Store
	advance func(time.Duration)
}

func storeCases(t *testing.T) []storeCase {
	t.Helper()

	mem := NewMemoryStore()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return clock }

	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return []storeCase{
		{name: "memory", store: mem, advance: func(d time.Duration) { clock = clock.Add(d) }},
		{name: "redis", store: NewRedisStore(client), advance: mr.FastForward},
	}
}

func TestStore_GetAfterSet(t *testing.T) {
	for _, tc := range storeCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			miss, err := tc.store.Get(ctx, "24h")
			require.NoError(t, err)
			assert.Nil(t, miss)

			etag, err := tc.store.Set(ctx, "24h", sample, time.Minute)
			require.NoError(t, err)
			assert.NotEmpty(t, etag)

			entry, err := tc.store.Get(ctx, "24h")
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, etag, entry.ETag)
			assert.JSONEq(t, `{"window":"24h","total":3,"byTier":{"core":2,"optional":1,"specialized":0}}`, string(entry.Body))

			again, err := tc.store.Set(ctx, "24h", sample, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, etag, again, "identical values share an ETag")

			changed := sample
			changed.Total = 4
			other, err := tc.store.Set(ctx, "24h", changed, time.Minute)
			require.NoError(t, err)
			assert.NotEqual(t, etag, other)
		})
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	for _, tc := range storeCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			_, err := tc.store.Set(ctx, "1h", sample, 30*time.Second)
			require.NoError(t, err)

			tc.advance(29 * time.Second)
			entry, err := tc.store.Get(ctx, "1h")
			require.NoError(t, err)
			assert.NotNil(t, entry)

			tc.advance(2 * time.Second)
			entry, err = tc.store.Get(ctx, "1h")
			require.NoError(t, err)
			assert.Nil(t, entry)
		})
	}
}

func TestStore_HasMatchingETag(t *testing.T) {
	for _, tc := range storeCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := tc.store.HasMatchingETag(ctx, "7d", `"anything"`)
			require.NoError(t, err)
			assert.False(t, ok, "miss never matches")

			etag, err := tc.store.Set(ctx, "7d", sample, time.Minute)
			require.NoError(t, err)

			ok, err = tc.store.HasMatchingETag(ctx, "7d", etag)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = tc.store.HasMatchingETag(ctx, "7d", `"stale"`)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for _, tc := range storeCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"1h", "24h", "all"} {
				_, err := tc.store.Set(ctx, key, sample, time.Minute)
				require.NoError(t, err)
			}

			require.NoError(t, tc.store.Clear(ctx))

			for _, key := range []string{"1h", "24h", "all"} {
				entry, err := tc.store.Get(ctx, key)
				require.NoError(t, err)
				assert.Nil(t, entry, key)
			}
			assert.NoError(t, tc.store.Clear(ctx), "clearing an empty cache is fine")
		})
	}
}

func TestRedisStore_KeysArePrefixed(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "production", zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedisStore(client).Set(context.Background(), "all", sample, time.Minute)
	require.NoError(t, err)

	assert.True(t, mr.Exists("citypee:prod:summary:all"))
	members, err := mr.Members("citypee:prod:summary:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"citypee:prod:summary:all"}, members)
}

func TestMemoryStore_SetEvictsExpired(t *testing.T) {
	s := NewMemoryStore()
	clock := time.Now()
	s.now = func() time.Time { return clock }

	_, _ = s.Set(context.Background(), "a", sample, time.Second)
	clock = clock.Add(2 * time.Second)
	_, _ = s.Set(context.Background(), "b", sample, time.Second)

	assert.Equal(t, 1, s.Len())
}

func TestMatchesETag(t *testing.T) {
	etag := ETag([]byte(`{"a":1}`))

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{name: "exact", header: etag, want: true},
		{name: "weak", header: "W/" + etag, want: true},
		{name: "list", header: `"other", ` + etag, want: true},
		{name: "wildcard", header: "*", want: true},
		{name: "different", header: `"other"`, want: false},
		{name: "empty", header: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesETag(tt.header, etag))
		})
	}

	assert.Equal(t, etag, ETag([]byte(`{"a":1}`)))
	assert.Len(t, etag, 34)
}

func TestEncode_SortsMapKeys(t *testing.T) {
	a, err := Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(a))
}
