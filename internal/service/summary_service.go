package service

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"citypee/internal/metrics"
	"citypee/internal/summarycache"
	"citypee/pkg/logger"
)

// SummaryService serves windowed validation summaries through the summary
// cache and exposes the configured metrics collector.
type SummaryService struct {
	recorder  *metrics.Recorder
	cache     summarycache.Store
	collector metrics.Collector
	ttl       time.Duration
	logger    *logger.Logger
}

// NewSummaryService creates a summary service. A non-positive ttl uses
// summarycache.DefaultTTL.
func NewSummaryService(recorder *metrics.Recorder, cache summarycache.Store, collector metrics.Collector, ttl time.Duration, log *logger.Logger) *SummaryService {
	if ttl <= 0 {
		ttl = summarycache.DefaultTTL
	}
	return &SummaryService{
		recorder:  recorder,
		cache:     cache,
		collector: collector,
		ttl:       ttl,
		logger:    log.Component("summary"),
	}
}

// cacheKey scopes window to the recorder generation, so a summary computed
// before a reset can never be read after it.
func (s *SummaryService) cacheKey(window metrics.Window) string {
	return fmt.Sprintf("%s:g%d", window, s.recorder.Generation())
}

// Summary returns the serialized summary for window and its ETag. Cache
// failures are logged and the summary is computed directly.
func (s *SummaryService) Summary(ctx context.Context, window metrics.Window) (*summarycache.Entry, error) {
	key := s.cacheKey(window)

	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("Summary cache read failed")
	}
	if entry != nil {
		return entry, nil
	}

	body, err := summarycache.Encode(s.recorder.Snapshot(window))
	if err != nil {
		return nil, err
	}
	entry = &summarycache.Entry{Body: body, ETag: summarycache.ETag(body)}

	if etag, err := s.cache.Set(ctx, key, json.RawMessage(body), s.ttl); err != nil {
		s.logger.WithError(err).Warn("Summary cache write failed")
	} else {
		entry.ETag = etag
	}
	return entry, nil
}

// NotModified reports whether ifNoneMatch still matches the cached summary
// for window.
func (s *SummaryService) NotModified(ctx context.Context, window metrics.Window, ifNoneMatch string) bool {
	if ifNoneMatch == "" {
		return false
	}
	ok, err := s.cache.HasMatchingETag(ctx, s.cacheKey(window), ifNoneMatch)
	if err != nil {
		s.logger.WithError(err).Warn("Summary cache ETag check failed")
		return false
	}
	return ok
}

// Collect queries the configured collector.
func (s *SummaryService) Collect(ctx context.Context, requested []string) metrics.CollectionResult {
	return s.collector.CollectMetrics(ctx, requested)
}

// Reset clears recorded metrics and every cached summary.
func (s *SummaryService) Reset(ctx context.Context) error {
	s.recorder.Reset()
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to clear summary cache after reset")
		return err
	}
	s.logger.Info("Metrics and summary cache reset")
	return nil
}

// Level is the active metrics level, or "disabled".
func (s *SummaryService) Level() string {
	return s.recorder.Level()
}
