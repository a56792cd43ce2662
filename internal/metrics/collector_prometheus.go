package metrics

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"citypee/pkg/logger"
)

// PrometheusCollector scrapes a Prometheus text exposition and derives the
// same keys as the other collectors. Latency percentiles are approximated
// from histogram buckets.
type PrometheusCollector struct {
	src *httpSource
}

// NewPrometheusCollector creates a collector scraping url.
func NewPrometheusCollector(url string, timeout time.Duration, log *logger.Logger) *PrometheusCollector {
	return &PrometheusCollector{src: newHTTPSource(SourcePrometheus, url, timeout, log)}
}

// Source implements Collector.
func (c *PrometheusCollector) Source() string { return SourcePrometheus }

// CollectMetrics implements Collector.
func (c *PrometheusCollector) CollectMetrics(ctx context.Context, requested []string) CollectionResult {
	body, err := c.src.fetch(ctx, "text/plain")
	if err != nil {
		return failed(SourcePrometheus, err)
	}

	values, err := ParseExposition(body)
	if err != nil {
		return failed(SourcePrometheus, err)
	}
	return CollectionResult{
		Success: true,
		Data:    selectMetrics(values, requested),
		Source:  SourcePrometheus,
	}
}

// ParseExposition reads the suggestion metrics out of Prometheus text.
func ParseExposition(body []byte) (map[string]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invalid prometheus exposition: %w", err)
	}

	values := make(map[string]float64)

	if fam, ok := families[MetricRequests]; ok {
		byOutcome := make(map[string]float64)
		var total float64
		for _, m := range fam.GetMetric() {
			v := sampleValue(m)
			total += v
			byOutcome[labelValue(m, "outcome")] += v
		}
		failedCount := byOutcome[string(OutcomeInvalid)] + byOutcome[string(OutcomeMalformed)] + byOutcome[string(OutcomeError)]

		values[KeyTotalRequests] = total
		values[KeyValidRequests] = byOutcome[string(OutcomeAccepted)]
		values[KeyInvalidRequests] = byOutcome[string(OutcomeInvalid)] + byOutcome[string(OutcomeMalformed)]
		values[KeyDuplicates] = byOutcome[string(OutcomeDuplicate)]
		values[KeyRateLimited] = byOutcome[string(OutcomeRateLimited)]
		values[KeyErrorRate] = 0
		if total > 0 {
			values[KeyErrorRate] = round(failedCount/total, 4)
		}
	}

	if buckets := histogramBuckets(families, MetricDuration); len(buckets) > 0 {
		values[KeyP50Latency] = bucketQuantile(buckets, 0.50) * 1000
		values[KeyP95Latency] = bucketQuantile(buckets, 0.95) * 1000
		values[KeyP99Latency] = bucketQuantile(buckets, 0.99) * 1000
	}

	return values, nil
}

// bucket is a cumulative histogram bucket.
type bucket struct {
	upperBound float64
	count      float64
}

// histogramBuckets merges the cumulative buckets of every series of name.
// Typed histograms and untyped name_bucket{le="..."} series are both read.
func histogramBuckets(families map[string]*dto.MetricFamily, name string) []bucket {
	merged := make(map[float64]float64)

	if fam, ok := families[name]; ok && fam.GetType() == dto.MetricType_HISTOGRAM {
		for _, m := range fam.GetMetric() {
			h := m.GetHistogram()
			series := make(map[float64]float64, len(h.GetBucket())+1)
			for _, b := range h.GetBucket() {
				series[b.GetUpperBound()] = float64(b.GetCumulativeCount())
			}
			series[math.Inf(1)] = float64(h.GetSampleCount())
			for le, count := range series {
				merged[le] += count
			}
		}
	} else if fam, ok := families[name+"_bucket"]; ok {
		for _, m := range fam.GetMetric() {
			le, err := strconv.ParseFloat(labelValue(m, "le"), 64)
			if err != nil {
				continue
			}
			merged[le] += sampleValue(m)
		}
	}

	buckets := make([]bucket, 0, len(merged))
	for le, count := range merged {
		buckets = append(buckets, bucket{upperBound: le, count: count})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].upperBound < buckets[j].upperBound })
	return buckets
}

// bucketQuantile returns the upper bound of the smallest bucket whose
// cumulative count reaches q of the total. An answer in the +Inf bucket is
// reported as the largest finite bound.
func bucketQuantile(buckets []bucket, q float64) float64 {
	total := buckets[len(buckets)-1].count
	if total == 0 {
		return 0
	}
	target := q * total
	lastFinite := 0.0
	for _, b := range buckets {
		if !math.IsInf(b.upperBound, 1) {
			lastFinite = b.upperBound
		}
		if b.count >= target {
			if math.IsInf(b.upperBound, 1) {
				return lastFinite
			}
			return b.upperBound
		}
	}
	return lastFinite
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
