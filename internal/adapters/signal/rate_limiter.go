package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Parley/internal/domain"
)

// EventRateLimiter bounds inbound events per user with a sliding
// window, so one noisy device cannot monopolize the hub.
type EventRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	swept    time.Time
	limit    int
	interval time.Duration
}

func NewEventRateLimiter(limit int, interval time.Duration) *EventRateLimiter {
	return &EventRateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *EventRateLimiter) Allow(uid domain.UserID) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	// Sweep users whose whole window expired, at most once per
	// interval, so the history map stays bounded by recently active
	// users instead of growing for the server's lifetime.
	if now.Sub(rl.swept) > rl.interval {
		for u, ts := range rl.history {
			if len(ts) == 0 || !ts[len(ts)-1].After(windowStart) {
				delete(rl.history, u)
			}
		}
		rl.swept = now
	}

	attempts := rl.history[uid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[uid] = fresh
	return true
}
