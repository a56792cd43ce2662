package metrics

import (
	"sync"

	"citypee/pkg/logger"
)

// CardinalityGuard bounds the distinct label values tracked per metric.
// Once a metric is full, new values are refused and a warning is logged
// the first time that happens.
type CardinalityGuard struct {
	max    int
	logger *logger.Logger

	mu      sync.Mutex
	seen    map[string]map[string]struct{}
	dropped map[string]int
}

// NewCardinalityGuard creates a guard allowing max values per metric.
func NewCardinalityGuard(max int, log *logger.Logger) *CardinalityGuard {
	return &CardinalityGuard{
		max:     max,
		logger:  log,
		seen:    make(map[string]map[string]struct{}),
		dropped: make(map[string]int),
	}
}

// Allow reports whether value may be used as a label value of metric.
// Values already seen are always allowed.
func (g *CardinalityGuard) Allow(metric, value string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	values, ok := g.seen[metric]
	if !ok {
		values = make(map[string]struct{})
		g.seen[metric] = values
	}
	if _, ok := values[value]; ok {
		return true
	}
	if len(values) >= g.max {
		if g.dropped[metric] == 0 {
			g.logger.WithFields(map[string]interface{}{
				"metric": metric,
				"limit":  g.max,
			}).Warn("Metric label cardinality limit reached, dropping new values")
		}
		g.dropped[metric]++
		return false
	}
	values[value] = struct{}{}
	return true
}

// Size returns how many distinct values metric holds.
func (g *CardinalityGuard) Size(metric string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen[metric])
}

// Dropped returns how many values were refused for metric.
func (g *CardinalityGuard) Dropped(metric string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped[metric]
}
