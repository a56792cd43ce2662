package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citypee/internal/domain"
	"citypee/internal/metrics"
	"citypee/internal/summarycache"
	"citypee/pkg/logger"
)

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) (*summarycache.Entry, error) {
	return nil, errors.New("cache down")
}

func (brokenStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) (string, error) {
	return "", errors.New("cache down")
}

func (brokenStore) HasMatchingETag(ctx context.Context, key, etag string) (bool, error) {
	return false, errors.New("cache down")
}

func (brokenStore) Clear(ctx context.Context) error {
	return errors.New("cache down")
}

// resetOnSetStore runs a reset just before the first Set lands, the way a
// reset request can overtake a summary that is still being computed.
type resetOnSetStore struct {
	summarycache.Store
	reset func()
	once  sync.Once
}

func (s *resetOnSetStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) (string, error) {
	s.once.Do(s.reset)
	return s.Store.Set(ctx, key, value, ttl)
}

func newSummaryService(t *testing.T, cache summarycache.Store) (*SummaryService, *metrics.Recorder) {
	t.Helper()
	log := logger.NewNop()
	recorder := metrics.NewRecorder(metrics.DefaultConfig(), log)
	return NewSummaryService(recorder, cache, metrics.NewLocalCollector(recorder), time.Minute, log), recorder
}

func TestSummaryService_CachesUntilReset(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newSummaryService(t, summarycache.NewMemoryStore())

	recorder.Record(metrics.Observation{Version: domain.APIVersionV1, Outcome: metrics.OutcomeAccepted})

	first, err := svc.Summary(ctx, metrics.Window24h)
	require.NoError(t, err)

	var decoded domain.ValidationSummary
	require.NoError(t, json.Unmarshal(first.Body, &decoded))
	assert.Equal(t, 1, decoded.TotalRequests)
	assert.Equal(t, "24h", decoded.Window)

	recorder.Record(metrics.Observation{Version: domain.APIVersionV1, Outcome: metrics.OutcomeInvalid})

	second, err := svc.Summary(ctx, metrics.Window24h)
	require.NoError(t, err)
	assert.Equal(t, first.ETag, second.ETag, "served from cache within TTL")
	assert.True(t, svc.NotModified(ctx, metrics.Window24h, first.ETag))
	assert.False(t, svc.NotModified(ctx, metrics.Window24h, ""))
	assert.False(t, svc.NotModified(ctx, metrics.Window1h, first.ETag))

	require.NoError(t, svc.Reset(ctx))
	assert.False(t, svc.NotModified(ctx, metrics.Window24h, first.ETag))

	third, err := svc.Summary(ctx, metrics.Window24h)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(third.Body, &decoded))
	assert.Equal(t, 0, decoded.TotalRequests)
}

func TestSummaryService_SameContentSameETag(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSummaryService(t, summarycache.NewMemoryStore())

	a, err := svc.Summary(ctx, metrics.Window7d)
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx))
	b, err := svc.Summary(ctx, metrics.Window7d)
	require.NoError(t, err)

	assert.Equal(t, a.ETag, b.ETag)
	assert.Equal(t, summarycache.ETag(a.Body), a.ETag)
}

func TestSummaryService_BrokenCacheStillServes(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newSummaryService(t, brokenStore{})
	recorder.Record(metrics.Observation{Version: domain.APIVersionV2, Outcome: metrics.OutcomeDuplicate})

	entry, err := svc.Summary(ctx, metrics.WindowAll)
	require.NoError(t, err)
	assert.Equal(t, summarycache.ETag(entry.Body), entry.ETag)
	assert.Contains(t, string(entry.Body), `"duplicates":1`)

	assert.False(t, svc.NotModified(ctx, metrics.WindowAll, entry.ETag))
	assert.Error(t, svc.Reset(ctx))
}

func TestSummaryService_Collect(t *testing.T) {
	svc, recorder := newSummaryService(t, summarycache.NewMemoryStore())
	recorder.Record(metrics.Observation{Version: domain.APIVersionV1, Outcome: metrics.OutcomeAccepted})

	res := svc.Collect(context.Background(), []string{metrics.KeyTotalRequests})

	assert.True(t, res.Success)
	assert.Equal(t, metrics.SourceLocal, res.Source)
	assert.Equal(t, map[string]float64{metrics.KeyTotalRequests: 1}, res.Data)
	assert.Equal(t, "standard", svc.Level())
}

func TestSummaryService_InFlightSummaryDoesNotOutliveReset(t *testing.T) {
	ctx := context.Background()
	store := &resetOnSetStore{Store: summarycache.NewMemoryStore()}
	svc, recorder := newSummaryService(t, store)
	store.reset = func() { require.NoError(t, svc.Reset(ctx)) }

	recorder.Record(metrics.Observation{Version: domain.APIVersionV1, Outcome: metrics.OutcomeAccepted})

	// computed before the reset, written after it
	stale, err := svc.Summary(ctx, metrics.WindowAll)
	require.NoError(t, err)
	assert.Contains(t, string(stale.Body), `"totalRequests":1`)
	assert.False(t, svc.NotModified(ctx, metrics.WindowAll, stale.ETag))

	fresh, err := svc.Summary(ctx, metrics.WindowAll)
	require.NoError(t, err)
	assert.Contains(t, string(fresh.Body), `"totalRequests":0`)
	assert.NotEqual(t, stale.ETag, fresh.ETag)
}
