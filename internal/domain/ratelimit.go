package domain

import (
	"time"
)

// RateLimitInfo represents the outcome of a per-IP quota check
type RateLimitInfo struct {
	IPAddress  string        `json:"ipAddress"`
	Allowed    bool          `json:"allowed"`
	Count      int           `json:"count"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	Window     time.Duration `json:"-"`
	RetryAfter time.Duration `json:"-"`
	ResetAt    time.Time     `json:"resetAt"`
}
