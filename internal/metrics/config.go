package metrics

import (
	"fmt"
	"strings"
)

// Level selects how much the recorder exports.
type Level string

const (
	// LevelBasic exports request and tier counters.
	LevelBasic Level = "basic"
	// LevelStandard adds the latency histogram.
	LevelStandard Level = "standard"
	// LevelDetailed adds per-field error counters.
	LevelDetailed Level = "detailed"
)

var levelRank = map[Level]int{
	LevelBasic:    0,
	LevelStandard: 1,
	LevelDetailed: 2,
}

// ParseLevel accepts basic, standard or detailed in any case.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelRank[l]; !ok {
		return "", fmt.Errorf("unknown metrics level %q", s)
	}
	return l, nil
}

func (l Level) atLeast(other Level) bool {
	return levelRank[l] >= levelRank[other]
}

// Config controls the push recorder.
type Config struct {
	Enabled        bool
	Level          Level
	MaxLabelValues int
	SamplingRate   float64
	LatencyBuffer  int
	EventLogSize   int
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Level:          LevelStandard,
		MaxLabelValues: 100,
		SamplingRate:   1.0,
		LatencyBuffer:  1000,
		EventLogSize:   10000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if _, ok := levelRank[c.Level]; !ok {
		c.Level = d.Level
	}
	if c.MaxLabelValues <= 0 {
		c.MaxLabelValues = d.MaxLabelValues
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		c.SamplingRate = d.SamplingRate
	}
	if c.LatencyBuffer <= 0 {
		c.LatencyBuffer = d.LatencyBuffer
	}
	if c.EventLogSize <= 0 {
		c.EventLogSize = d.EventLogSize
	}
	return c
}
