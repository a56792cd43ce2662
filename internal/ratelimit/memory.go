package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"citypee/internal/domain"
)

type hit struct {
	at    time.Time
	token uint64
}

// MemoryLimiter keeps submission timestamps per IP in process memory.
type MemoryLimiter struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	hits      map[string][]hit
	seq       uint64
	lastSweep time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:  cfg.withDefaults(),
		now:  time.Now,
		hits: make(map[string][]hit),
	}
}

// Check implements Limiter.
func (l *MemoryLimiter) Check(ctx context.Context, ip string) (*domain.RateLimitInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return l.info(ip, l.prune(ip, now), now), nil
}

// Reserve implements Limiter.
func (l *MemoryLimiter) Reserve(ctx context.Context, ip string) (*domain.RateLimitInfo, *Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hits := l.prune(ip, now)
	info := l.info(ip, hits, now)
	if !info.Allowed {
		return info, nil, nil
	}

	l.seq++
	l.hits[ip] = append(hits, hit{at: now, token: l.seq})
	return info, &Reservation{ip: ip, token: strconv.FormatUint(l.seq, 10), cancel: l.cancel}, nil
}

func (l *MemoryLimiter) cancel(ctx context.Context, ip, token string) error {
	id, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hits[ip]
	for i, h := range hits {
		if h.token != id {
			continue
		}
		hits = append(hits[:i], hits[i+1:]...)
		if len(hits) == 0 {
			delete(l.hits, ip)
		} else {
			l.hits[ip] = hits
		}
		break
	}
	return nil
}

// Tracked returns how many IPs currently hold state.
func (l *MemoryLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func (l *MemoryLimiter) info(ip string, hits []hit, now time.Time) *domain.RateLimitInfo {
	var oldest time.Time
	if len(hits) > 0 {
		oldest = hits[0].at
	}
	return buildInfo(ip, l.cfg, len(hits), oldest, now)
}

// prune drops timestamps outside the window for ip and, at most once per
// window, for every other IP. Callers hold l.mu.
func (l *MemoryLimiter) prune(ip string, now time.Time) []hit {
	cutoff := now.Add(-l.cfg.Window)

	if now.Sub(l.lastSweep) >= l.cfg.Window {
		for other, hits := range l.hits {
			if kept := dropExpired(hits, cutoff); len(kept) == 0 {
				delete(l.hits, other)
			} else {
				l.hits[other] = kept
			}
		}
		l.lastSweep = now
	}

	hits := dropExpired(l.hits[ip], cutoff)
	if len(hits) == 0 {
		delete(l.hits, ip)
		return nil
	}
	l.hits[ip] = hits
	return hits
}

// dropExpired returns the suffix of the ordered hits newer than cutoff.
func dropExpired(hits []hit, cutoff time.Time) []hit {
	i := 0
	for i < len(hits) && !hits[i].at.After(cutoff) {
		i++
	}
	return hits[i:]
}
