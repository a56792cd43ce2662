package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citypee/internal/domain"
	"citypee/pkg/logger"
)

func newTestRecorder(t *testing.T, mutate func(*Config)) (*Recorder, *time.Time) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Level = LevelDetailed
	if mutate != nil {
		mutate(&cfg)
	}
	r := NewRecorder(cfg, logger.NewNop())
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return r, &clock
}

func invalidResult(fields ...string) *domain.ValidationResult {
	res := domain.NewValidationResult(domain.APIVersionV2)
	res.TierSummary[domain.TierCore] = domain.TierStats{Provided: 2}
	for _, f := range fields {
		res.AddError(domain.ValidationIssue{Field: f, Code: domain.IssueRequired, Tier: domain.TierCore})
	}
	return res
}

func acceptedResult() *domain.ValidationResult {
	res := domain.NewValidationResult(domain.APIVersionV1)
	res.TierSummary[domain.TierCore] = domain.TierStats{Provided: 8, Valid: 8}
	res.TierSummary[domain.TierOptional] = domain.TierStats{Provided: 2, Valid: 1}
	res.AddWarning(domain.ValidationIssue{Field: "capacity", Code: domain.IssueTypeCoercion, Tier: domain.TierOptional})
	return res
}

func TestRecorder_CountsOutcomesAndTiers(t *testing.T) {
	r, _ := newTestRecorder(t, nil)

	r.Record(Observation{Version: domain.APIVersionV1, Outcome: OutcomeAccepted, Duration: 4 * time.Millisecond, Validation: acceptedResult()})
	r.Record(Observation{Version: domain.APIVersionV1, Outcome: OutcomeAccepted, Duration: 6 * time.Millisecond, Validation: acceptedResult()})
	r.Record(Observation{Version: domain.APIVersionV2, Outcome: OutcomeInvalid, Duration: 2 * time.Millisecond, Validation: invalidResult("lat", "lng")})
	r.Record(Observation{Version: domain.APIVersionV1, Outcome: OutcomeRateLimited})

	p := r.prom
	assert.Equal(t, 2.0, testutil.ToFloat64(p.requests.WithLabelValues("v1", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.requests.WithLabelValues("v2", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.requests.WithLabelValues("v1", "rate_limited")))
	assert.Equal(t, 18.0, testutil.ToFloat64(p.tierProperties.WithLabelValues("core")))
	assert.Equal(t, 4.0, testutil.ToFloat64(p.tierProperties.WithLabelValues("optional")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.issues.WithLabelValues("core", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.issues.WithLabelValues("optional", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.fieldErrors.WithLabelValues("lat", "required")))
	assert.Equal(t, 2, testutil.CollectAndCount(p.duration))

	s := r.Snapshot(WindowAll)
	assert.Equal(t, 4, s.TotalRequests)
	assert.Equal(t, 2, s.ValidRequests)
	assert.Equal(t, 1, s.InvalidRequests)
	assert.Equal(t, 1, s.RateLimited)
	assert.Equal(t, 0.25, s.ErrorRate)
	assert.Equal(t, 3, s.RequestsByTier[domain.TierCore])
	assert.Equal(t, 2, s.RequestsByTier[domain.TierOptional])
	assert.Equal(t, 0, s.RequestsByTier[domain.TierSpecialized])
	assert.Equal(t, 2, s.ErrorsByTier[domain.TierCore])
	assert.Equal(t, 2, s.WarningsByTier[domain.TierOptional])
	assert.Equal(t, domain.VersionCounts{Total: 3, Valid: 2}, s.ByVersion[domain.APIVersionV1])
	assert.Equal(t, domain.VersionCounts{Total: 1, Invalid: 1}, s.ByVersion[domain.APIVersionV2])
	assert.Equal(t, []domain.FieldErrorCount{{Field: "lat", Count: 1}, {Field: "lng", Count: 1}}, s.TopErrorFields)
	assert.Equal(t, 4, s.Latency.Samples)
	assert.Equal(t, 6.0, s.Latency.P95)
}

func TestRecorder_BasicLevelSkipsHistogram(t *testing.T) {
	r, _ := newTestRecorder(t, func(c *Config) { c.Level = LevelBasic })

	r.Record(Observation{Version: domain.APIVersionV1, Outcome: OutcomeAccepted, Duration: time.Millisecond})

	assert.Nil(t, r.prom.duration)
	assert.Nil(t, r.prom.fieldErrors)
	assert.Equal(t, "basic", r.Level())
}

func TestRecorder_DisabledIsInert(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	r := NewRecorder(cfg, logger.NewNop())

	assert.False(t, r.Enabled())
	assert.Nil(t, r.prom)
	assert.Nil(t, r.Gatherer())
	assert.Equal(t, "disabled", r.Level())

	obs := Observation{Version: domain.APIVersionV1, Outcome: OutcomeInvalid, Validation: invalidResult("lat")}
	allocs := testing.AllocsPerRun(100, func() {
		r.Record(obs)
	})
	assert.Zero(t, allocs)

	s := r.Snapshot(Window24h)
	assert.Zero(t, s.TotalRequests)
	assert.Equal(t, 0, r.LabelValues(MetricFieldErrors))
	r.Reset()
}

func TestRecorder_ServeHTTP(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		r, _ := newTestRecorder(t, func(c *Config) { c.Level = LevelStandard })
		r.Record(Observation{Version: domain.APIVersionV2, Outcome: OutcomeAccepted, Duration: time.Millisecond})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "standard", rec.Header().Get("X-Metrics-Level"))
		assert.Contains(t, rec.Body.String(), `citypee_suggestion_requests_total{outcome="accepted",version="v2"} 1`)
		assert.Contains(t, rec.Body.String(), MetricDuration+"_bucket")
	})

	t.Run("disabled", func(t *testing.T) {
		r := NewRecorder(Config{}, logger.NewNop())

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "disabled", rec.Header().Get("X-Metrics-Level"))
		assert.Equal(t, 1, strings.Count(rec.Body.String(), "\n"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "#"))
	})
}

func TestRecorder_Windows(t *testing.T) {
	r, clock := newTestRecorder(t, nil)
	start := *clock

	*clock = start.Add(-3 * 24 * time.Hour)
	r.Record(Observation{Version: domain.APIVersionV1, Outcome: OutcomeAccepted})
	*clock = start.Add(-5 * time.Hour)
	r.Record(Observation{Version: domain.APIVersionV1, Outcome: OutcomeDuplicate})
	*clock = start.Add(-10 * time.Minute)
	r.Record(Observation{Version: domain.APIVersionV2, Outcome: OutcomeInvalid, Validation: invalidResult("fee")})
	*clock = start

	tests := []struct {
		window     Window
		total      int
		duplicates int
	}{
		{window: Window1h, total: 1, duplicates: 0},
		{window: Window24h, total: 2, duplicates: 1},
		{window: Window7d, total: 3, duplicates: 1},
		{window: WindowAll, total: 3, duplicates: 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.window), func(t *testing.T) {
			s := r.Snapshot(tt.window)
			assert.Equal(t, string(tt.window), s.Window)
			assert.Equal(t, tt.total, s.TotalRequests)
			assert.Equal(t, tt.duplicates, s.Duplicates)
		})
	}
}

func TestRecorder_CardinalityLimitsErrorFields(t *testing.T) {
	r, _ := newTestRecorder(t, func(c *Config) { c.MaxLabelValues = 2 })

	r.Record(Observation{Version: domain.APIVersionV2, Outcome: OutcomeInvalid, Validation: invalidResult("a", "b", "c")})
	r.Record(Observation{Version: domain.APIVersionV2, Outcome: OutcomeInvalid, Validation: invalidResult("d")})

	assert.Equal(t, 2, r.LabelValues(summaryFieldsKey))
	assert.Equal(t, 2, r.LabelValues(MetricFieldErrors))
	assert.Len(t, r.Snapshot(WindowAll).TopErrorFields, 2)
	assert.Equal(t, 2, testutil.CollectAndCount(r.prom.fieldErrors))
}

func TestRecorder_TopErrorFieldsCapped(t *testing.T) {
	r, _ := newTestRecorder(t, nil)

	fields := []string{"f01", "f02", "f03", "f04", "f05", "f06", "f07", "f08", "f09", "f10", "f11", "f12"}
	r.Record(Observation{Version: domain.APIVersionV2, Outcome: OutcomeInvalid, Validation: invalidResult(fields...)})
	r.Record(Observation{Version: domain.APIVersionV2, Outcome: OutcomeInvalid, Validation: invalidResult("f12")})

	top := r.Snapshot(WindowAll).TopErrorFields
	require.Len(t, top, topErrorFieldLimit)
	assert.Equal(t, domain.FieldErrorCount{Field: "f12", Count: 2}, top[0])
	assert.Equal(t, "f01", top[1].Field)
}

func TestRecorder_Reset(t *testing.T) {
	r, _ := newTestRecorder(t, nil)
	r.Record(Observation{Version: domain.APIVersionV1, Outcome: OutcomeAccepted, Duration: time.Millisecond})
	require.Equal(t, 1, r.Snapshot(WindowAll).TotalRequests)

	r.Reset()

	s := r.Snapshot(WindowAll)
	assert.Zero(t, s.TotalRequests)
	assert.Zero(t, s.Latency.Samples)
	assert.Equal(t, 0, testutil.CollectAndCount(r.prom.requests))
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("")
	require.NoError(t, err)
	assert.Equal(t, Window24h, w)

	w, err = ParseWindow("7D")
	require.NoError(t, err)
	assert.Equal(t, Window7d, w)

	_, err = ParseWindow("30d")
	assert.Error(t, err)
}

func TestRecorder_GenerationChangesOnReset(t *testing.T) {
	r, _ := newTestRecorder(t, nil)
	before := r.Generation()

	r.Reset()
	assert.Equal(t, before+1, r.Generation())

	disabled := NewRecorder(Config{}, logger.NewNop())
	disabled.Reset()
	assert.Zero(t, disabled.Generation())
}
