package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"citypee/internal/domain"
	"citypee/pkg/logger"
)

// Metric keys understood by every collector.
const (
	KeyErrorRate       = "errorRate"
	KeyP50Latency      = "p50Latency"
	KeyP95Latency      = "p95Latency"
	KeyP99Latency      = "p99Latency"
	KeyTotalRequests   = "totalRequests"
	KeyValidRequests   = "validRequests"
	KeyInvalidRequests = "invalidRequests"
	KeyDuplicates      = "duplicates"
	KeyRateLimited     = "rateLimited"
)

// Collector sources.
const (
	SourceLocal      = "local"
	SourceJSON       = "json"
	SourcePrometheus = "prometheus"
)

const maxResponseBytes = 4 << 20

// CollectionResult is what a pull collector returns. Failures are reported
// through Success and Error, never as a Go error.
type CollectionResult struct {
	Success bool               `json:"success"`
	Data    map[string]float64 `json:"data"`
	Error   string             `json:"error,omitempty"`
	Source  string             `json:"source"`
}

// Collector pulls aggregate metrics from one backend.
type Collector interface {
	CollectMetrics(ctx context.Context, requested []string) CollectionResult
	Source() string
}

// CollectorConfig selects and configures a collector backend.
type CollectorConfig struct {
	Source  string
	URL     string
	Timeout time.Duration
}

// NewCollector builds the collector named by cfg.Source.
func NewCollector(cfg CollectorConfig, recorder *Recorder, log *logger.Logger) (Collector, error) {
	switch cfg.Source {
	case "", SourceLocal:
		return NewLocalCollector(recorder), nil
	case SourceJSON:
		if cfg.URL == "" {
			return nil, fmt.Errorf("json metrics collector requires a source URL")
		}
		return NewJSONCollector(cfg.URL, cfg.Timeout, log), nil
	case SourcePrometheus:
		if cfg.URL == "" {
			return nil, fmt.Errorf("prometheus metrics collector requires a source URL")
		}
		return NewPrometheusCollector(cfg.URL, cfg.Timeout, log), nil
	}
	return nil, fmt.Errorf("unknown metrics source %q", cfg.Source)
}

// summaryValues flattens a summary into collector keys.
func summaryValues(s domain.ValidationSummary) map[string]float64 {
	return map[string]float64{
		KeyErrorRate:       s.ErrorRate,
		KeyP50Latency:      s.Latency.P50,
		KeyP95Latency:      s.Latency.P95,
		KeyP99Latency:      s.Latency.P99,
		KeyTotalRequests:   float64(s.TotalRequests),
		KeyValidRequests:   float64(s.ValidRequests),
		KeyInvalidRequests: float64(s.InvalidRequests),
		KeyDuplicates:      float64(s.Duplicates),
		KeyRateLimited:     float64(s.RateLimited),
	}
}

// selectMetrics keeps the requested keys, or everything when none are
// requested. Unknown keys are ignored.
func selectMetrics(all map[string]float64, requested []string) map[string]float64 {
	if len(requested) == 0 {
		return all
	}
	out := make(map[string]float64, len(requested))
	for _, key := range requested {
		key = strings.TrimSpace(key)
		if v, ok := all[key]; ok {
			out[key] = v
		}
	}
	return out
}

// LocalCollector reads this instance's recorder.
type LocalCollector struct {
	recorder *Recorder
}

// NewLocalCollector wraps recorder.
func NewLocalCollector(recorder *Recorder) *LocalCollector {
	return &LocalCollector{recorder: recorder}
}

// Source implements Collector.
func (c *LocalCollector) Source() string { return SourceLocal }

// CollectMetrics implements Collector using the all-time summary.
func (c *LocalCollector) CollectMetrics(ctx context.Context, requested []string) CollectionResult {
	if c.recorder == nil || !c.recorder.Enabled() {
		return CollectionResult{
			Data:   map[string]float64{},
			Error:  "metrics collection is disabled",
			Source: SourceLocal,
		}
	}
	return CollectionResult{
		Success: true,
		Data:    selectMetrics(summaryValues(c.recorder.Snapshot(WindowAll)), requested),
		Source:  SourceLocal,
	}
}

// httpSource fetches a remote document through a circuit breaker with a
// per-call timeout.
type httpSource struct {
	url     string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *logger.Logger
}

func newHTTPSource(name, url string, timeout time.Duration, log *logger.Logger) *httpSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	log = log.Component("collector").WithField("source", name)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "metrics-" + name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Metrics source circuit breaker changed state")
		},
	})

	return &httpSource{
		url:     url,
		timeout: timeout,
		client:  &http.Client{},
		breaker: breaker,
		logger:  log,
	}
}

func (s *httpSource) fetch(ctx context.Context, accept string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", accept)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", s.timeout, err)
		}
		s.logger.WithError(err).Warn("Failed to collect metrics")
		return nil, err
	}
	return body, nil
}

func failed(source string, err error) CollectionResult {
	return CollectionResult{
		Data:   map[string]float64{},
		Error:  err.Error(),
		Source: source,
	}
}
