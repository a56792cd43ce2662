// Package metrics records suggestion pipeline outcomes into a per-instance
// Prometheus registry and an in-memory event log used for summaries, and
// exposes pull-based collectors over local or remote sources.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"citypee/internal/domain"
	"citypee/pkg/logger"
)

// Outcome classifies how a suggestion request ended.
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeMalformed   Outcome = "malformed"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeError       Outcome = "error"
)

// Exported metric names.
const (
	MetricRequests       = "citypee_suggestion_requests_total"
	MetricTierProperties = "citypee_validation_tier_properties_total"
	MetricIssues         = "citypee_validation_issues_total"
	MetricDuration       = "citypee_validation_duration_seconds"
	MetricFieldErrors    = "citypee_validation_field_errors_total"
)

// summaryFieldsKey is the guard key for per-field error tallies kept for
// summaries.
const summaryFieldsKey = "summary_error_fields"

const topErrorFieldLimit = 10

// Observation is one finished suggestion request. Validation is nil when
// the request never reached validation.
type Observation struct {
	Version    domain.APIVersion
	Outcome    Outcome
	Duration   time.Duration
	Validation *domain.ValidationResult
}

type tierCounts [4]int

func tierIndex(t domain.Tier) int {
	switch t {
	case domain.TierCore:
		return 0
	case domain.TierHighFrequency:
		return 1
	case domain.TierOptional:
		return 2
	default:
		return 3
	}
}

// event is the retained form of an Observation.
type event struct {
	at          time.Time
	version     domain.APIVersion
	outcome     Outcome
	durationMs  float64
	provided    tierCounts
	errors      tierCounts
	warnings    tierCounts
	errorFields []string
}

// promSet is the Prometheus side of the recorder; nil collectors are not
// exported at the configured level.
type promSet struct {
	registry       *prometheus.Registry
	handler        http.Handler
	requests       *prometheus.CounterVec
	tierProperties *prometheus.CounterVec
	issues         *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	fieldErrors    *prometheus.CounterVec
}

// Recorder is the push-side metrics sink for the suggestion pipeline.
// A disabled recorder allocates nothing and every method is a no-op.
type Recorder struct {
	cfg     Config
	logger  *logger.Logger
	sampler *Sampler
	now     func() time.Time

	mu      sync.RWMutex
	prom    *promSet
	guard   *CardinalityGuard
	events  *ring[event]
	latency *ring[float64]
	totals  *aggregate

	// generation counts rebuilds; summaries computed under an older
	// generation are stale
	generation uint64
}

// NewRecorder creates a recorder. With cfg.Enabled false no metric objects
// are constructed.
func NewRecorder(cfg Config, log *logger.Logger) *Recorder {
	if !cfg.Enabled {
		return &Recorder{cfg: cfg, logger: log}
	}
	cfg = cfg.withDefaults()
	r := &Recorder{
		cfg:     cfg,
		logger:  log.Component("metrics"),
		sampler: NewSampler(cfg.SamplingRate),
		now:     time.Now,
	}
	r.rebuild()
	return r
}

// Enabled reports whether the recorder collects anything.
func (r *Recorder) Enabled() bool {
	return r.cfg.Enabled
}

// Level returns the configured export level, or "disabled".
func (r *Recorder) Level() string {
	if !r.cfg.Enabled {
		return "disabled"
	}
	return string(r.cfg.Level)
}

// Reset discards every counter, sample and event by rebuilding the registry.
func (r *Recorder) Reset() {
	if !r.cfg.Enabled {
		return
	}
	r.rebuild()
	r.logger.Info("Metrics registry reset")
}

func (r *Recorder) rebuild() {
	prom := newPromSet(r.cfg)
	guard := NewCardinalityGuard(r.cfg.MaxLabelValues, r.logger)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.prom = prom
	r.guard = guard
	r.events = newRing[event](r.cfg.EventLogSize)
	r.latency = newRing[float64](r.cfg.LatencyBuffer)
	r.totals = newAggregate()
	r.generation++
}

// Generation identifies the current registry. It changes on every Reset,
// in the same step that discards the old state.
func (r *Recorder) Generation() uint64 {
	if !r.cfg.Enabled {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

func newPromSet(cfg Config) *promSet {
	reg := prometheus.NewRegistry()
	p := &promSet{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequests,
			Help: "Suggestion requests by API version and outcome.",
		}, []string{"version", "outcome"}),
		tierProperties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTierProperties,
			Help: "Submitted properties by tier (sampled).",
		}, []string{"tier"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricIssues,
			Help: "Validation errors and warnings by tier.",
		}, []string{"tier", "severity"}),
	}
	reg.MustRegister(p.requests, p.tierProperties, p.issues)

	if cfg.Level.atLeast(LevelStandard) {
		p.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricDuration,
			Help:    "Suggestion pipeline latency.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"version"})
		reg.MustRegister(p.duration)
	}
	if cfg.Level.atLeast(LevelDetailed) {
		p.fieldErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFieldErrors,
			Help: "Validation errors by field and code.",
		}, []string{"field", "code"})
		reg.MustRegister(p.fieldErrors)
	}

	p.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return p
}

// Record stores one observation.
func (r *Recorder) Record(obs Observation) {
	if !r.cfg.Enabled {
		return
	}

	ev := event{
		at:         r.now(),
		version:    obs.Version,
		outcome:    obs.Outcome,
		durationMs: float64(obs.Duration) / float64(time.Millisecond),
	}
	var errorCodes []string
	if v := obs.Validation; v != nil {
		for tier, stats := range v.TierSummary {
			ev.provided[tierIndex(tier)] += stats.Provided
		}
		for _, issue := range v.Errors {
			ev.errors[tierIndex(issue.Tier)]++
			ev.errorFields = append(ev.errorFields, issue.Field)
			errorCodes = append(errorCodes, issue.Code)
		}
		for _, issue := range v.Warnings {
			ev.warnings[tierIndex(issue.Tier)]++
		}
	}

	r.mu.Lock()
	prom, guard := r.prom, r.guard
	keepLatency := r.latency.len() == 0 || r.sampler.Keep()
	if keepLatency {
		r.latency.push(ev.durationMs)
	}
	r.events.push(ev)
	r.totals.add(ev, func(field string) bool { return guard.Allow(summaryFieldsKey, field) })
	r.mu.Unlock()

	prom.requests.WithLabelValues(string(ev.version), string(ev.outcome)).Inc()
	for _, tier := range domain.AllTiers {
		i := tierIndex(tier)
		if n := r.sampler.Count(ev.provided[i]); n > 0 {
			prom.tierProperties.WithLabelValues(string(tier)).Add(float64(n))
		}
		if ev.errors[i] > 0 {
			prom.issues.WithLabelValues(string(tier), "error").Add(float64(ev.errors[i]))
		}
		if ev.warnings[i] > 0 {
			prom.issues.WithLabelValues(string(tier), "warning").Add(float64(ev.warnings[i]))
		}
	}
	if prom.duration != nil && keepLatency {
		prom.duration.WithLabelValues(string(ev.version)).Observe(obs.Duration.Seconds())
	}
	if prom.fieldErrors != nil {
		for i, field := range ev.errorFields {
			if guard.Allow(MetricFieldErrors, field+"|"+errorCodes[i]) {
				prom.fieldErrors.WithLabelValues(field, errorCodes[i]).Inc()
			}
		}
	}
}

// ServeHTTP writes the Prometheus text exposition. A disabled recorder
// answers with a single comment line.
func (r *Recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("X-Metrics-Level", r.Level())
	if !r.cfg.Enabled {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics collection is disabled\n"))
		return
	}

	r.mu.RLock()
	h := r.prom.handler
	r.mu.RUnlock()
	h.ServeHTTP(w, req)
}

// Gatherer exposes the current registry, or nil when disabled.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if !r.cfg.Enabled {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prom.registry
}

// LabelValues reports how many distinct label values metric tracks.
func (r *Recorder) LabelValues(metric string) int {
	if !r.cfg.Enabled {
		return 0
	}
	r.mu.RLock()
	guard := r.guard
	r.mu.RUnlock()
	return guard.Size(metric)
}

// Window is a summary time range.
type Window string

const (
	Window1h  Window = "1h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	WindowAll Window = "all"
)

var windowDurations = map[Window]time.Duration{
	Window1h:  time.Hour,
	Window24h: 24 * time.Hour,
	Window7d:  7 * 24 * time.Hour,
	WindowAll: 0,
}

// ParseWindow validates a window query value. Empty means 24h.
func ParseWindow(s string) (Window, error) {
	if s == "" {
		return Window24h, nil
	}
	w := Window(strings.ToLower(s))
	if _, ok := windowDurations[w]; !ok {
		return "", fmt.Errorf("window must be one of 1h, 24h, 7d, all")
	}
	return w, nil
}

// Snapshot aggregates the recorded outcomes for window. WindowAll uses the
// running totals since the last reset; shorter windows scan the bounded
// event log.
func (r *Recorder) Snapshot(window Window) domain.ValidationSummary {
	if !r.cfg.Enabled {
		return newAggregate().summary(window, nil)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if window == WindowAll {
		samples := make([]float64, 0, r.latency.len())
		r.latency.each(func(v float64) { samples = append(samples, v) })
		return r.totals.summary(window, samples)
	}

	cutoff := r.now().Add(-windowDurations[window])
	agg := newAggregate()
	var samples []float64
	r.events.each(func(ev event) {
		if ev.at.After(cutoff) {
			agg.add(ev, func(string) bool { return true })
			samples = append(samples, ev.durationMs)
		}
	})
	return agg.summary(window, samples)
}

// aggregate accumulates events into summary counts.
type aggregate struct {
	total       int
	valid       int
	invalid     int
	duplicates  int
	rateLimited int
	failed      int

	requestsByTier tierCounts
	errorsByTier   tierCounts
	warningsByTier tierCounts

	fieldErrors map[string]int
	byVersion   map[domain.APIVersion]*domain.VersionCounts
}

func newAggregate() *aggregate {
	return &aggregate{
		fieldErrors: make(map[string]int),
		byVersion:   make(map[domain.APIVersion]*domain.VersionCounts),
	}
}

func (a *aggregate) add(ev event, allowField func(string) bool) {
	a.total++
	vc, ok := a.byVersion[ev.version]
	if !ok {
		vc = &domain.VersionCounts{}
		a.byVersion[ev.version] = vc
	}
	vc.Total++

	switch ev.outcome {
	case OutcomeAccepted:
		a.valid++
		vc.Valid++
	case OutcomeInvalid, OutcomeMalformed:
		a.invalid++
		vc.Invalid++
	case OutcomeDuplicate:
		a.duplicates++
	case OutcomeRateLimited:
		a.rateLimited++
	case OutcomeError:
		a.failed++
	}

	for i := range ev.provided {
		if ev.provided[i] > 0 {
			a.requestsByTier[i]++
		}
		a.errorsByTier[i] += ev.errors[i]
		a.warningsByTier[i] += ev.warnings[i]
	}
	for _, field := range ev.errorFields {
		if allowField(field) {
			a.fieldErrors[field]++
		}
	}
}

func (a *aggregate) summary(window Window, latencyMs []float64) domain.ValidationSummary {
	s := domain.ValidationSummary{
		Window:          string(window),
		TotalRequests:   a.total,
		ValidRequests:   a.valid,
		InvalidRequests: a.invalid,
		Duplicates:      a.duplicates,
		RateLimited:     a.rateLimited,
		RequestsByTier:  make(map[domain.Tier]int, len(domain.AllTiers)),
		ErrorsByTier:    make(map[domain.Tier]int, len(domain.AllTiers)),
		WarningsByTier:  make(map[domain.Tier]int, len(domain.AllTiers)),
		TopErrorFields:  []domain.FieldErrorCount{},
		ByVersion: map[domain.APIVersion]domain.VersionCounts{
			domain.APIVersionV1: {},
			domain.APIVersionV2: {},
		},
	}
	if a.total > 0 {
		s.ErrorRate = round(float64(a.invalid+a.failed)/float64(a.total), 4)
	}
	for _, tier := range domain.AllTiers {
		i := tierIndex(tier)
		s.RequestsByTier[tier] = a.requestsByTier[i]
		s.ErrorsByTier[tier] = a.errorsByTier[i]
		s.WarningsByTier[tier] = a.warningsByTier[i]
	}
	for v, counts := range a.byVersion {
		s.ByVersion[v] = *counts
	}

	for field, count := range a.fieldErrors {
		s.TopErrorFields = append(s.TopErrorFields, domain.FieldErrorCount{Field: field, Count: count})
	}
	sort.Slice(s.TopErrorFields, func(i, j int) bool {
		if s.TopErrorFields[i].Count != s.TopErrorFields[j].Count {
			return s.TopErrorFields[i].Count > s.TopErrorFields[j].Count
		}
		return s.TopErrorFields[i].Field < s.TopErrorFields[j].Field
	})
	if len(s.TopErrorFields) > topErrorFieldLimit {
		s.TopErrorFields = s.TopErrorFields[:topErrorFieldLimit]
	}

	if len(latencyMs) > 0 {
		ps := Percentiles(latencyMs, 0.50, 0.95, 0.99)
		s.Latency = domain.LatencySummary{
			P50:     round(ps[0], 3),
			P95:     round(ps[1], 3),
			P99:     round(ps[2], 3),
			Samples: len(latencyMs),
		}
	}
	return s
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
