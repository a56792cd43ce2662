// Package ratelimit throttles suggestion submissions per client IP with a
// sliding window. Checking never consumes quota. Reserve takes a unit
// atomically; the caller keeps it once the submission is stored and
// cancels it otherwise.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"time"

	"citypee/internal/domain"
)

// Defaults for the suggestion quota.
const (
	DefaultLimit  = 5
	DefaultWindow = time.Hour
)

// Limiter is a per-IP sliding-window quota.
type Limiter interface {
	// Check reports whether ip may submit now without changing any state.
	Check(ctx context.Context, ip string) (*domain.RateLimitInfo, error)

	// Reserve checks the quota and, when allowed, holds one unit for ip in
	// the same atomic step. A denied call returns a nil reservation.
	Reserve(ctx context.Context, ip string) (*domain.RateLimitInfo, *Reservation, error)
}

// Reservation is one unit of quota held for an in-flight submission.
type Reservation struct {
	ip     string
	token  string
	cancel func(ctx context.Context, ip, token string) error
}

// Cancel returns the unit to ip's quota. It is safe on a nil reservation
// and only the first call has an effect.
func (r *Reservation) Cancel(ctx context.Context) error {
	if r == nil || r.cancel == nil {
		return nil
	}
	cancel := r.cancel
	r.cancel = nil
	return cancel(ctx, r.ip, r.token)
}

// Config sets the quota shared by every limiter implementation.
type Config struct {
	Limit  int
	Window time.Duration
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// buildInfo assembles the decision for count hits whose oldest is oldest.
func buildInfo(ip string, cfg Config, count int, oldest, now time.Time) *domain.RateLimitInfo {
	info := &domain.RateLimitInfo{
		IPAddress: ip,
		Allowed:   count < cfg.Limit,
		Count:     count,
		Limit:     cfg.Limit,
		Remaining: cfg.Limit - count,
		Window:    cfg.Window,
		ResetAt:   now.Add(cfg.Window),
	}
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	if count > 0 && !oldest.IsZero() {
		info.ResetAt = oldest.Add(cfg.Window)
	}
	if !info.Allowed {
		info.RetryAfter = info.ResetAt.Sub(now)
		if info.RetryAfter < time.Second {
			info.RetryAfter = time.Second
		}
	}
	return info
}

// ipHeaders are consulted in order after X-Forwarded-For.
var ipHeaders = []string{
	"CF-Connecting-IP", // Cloudflare
	"X-Real-IP",        // Nginx proxy
	"X-Client-IP",      // Apache proxy
}

// ExtractIP returns the client address: the first entry of X-Forwarded-For
// when present, then single-address proxy headers, then RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := getFirstIP(xff); first != "" {
			return first
		}
	}

	for _, header := range ipHeaders {
		if ip := strings.TrimSpace(r.Header.Get(header)); ip != "" {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// getFirstIP extracts the first IP from a comma-separated list
func getFirstIP(ips string) string {
	first, _, _ := strings.Cut(ips, ",")
	return strings.TrimSpace(first)
}

// HashIP returns a stable, non-reversible identifier for ip, used wherever
// an address would otherwise be stored.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:16])
}
