package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token bucket per (device_id, message_type) in
// process memory, acceptable per spec.md §4.E since the goal is
// operator protection, not billing.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewMemory constructs an empty MemoryLimiter. Buckets are created
// lazily on first use, sized from Defaults/LimitFor.
func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*rate.Limiter)}
}

func (m *MemoryLimiter) bucket(deviceID, messageType string) *rate.Limiter {
	key := deviceID + "|" + messageType
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buckets[key]; ok {
		return b
	}
	perMinute := LimitFor(messageType)
	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	m.buckets[key] = limiter
	return limiter
}

func (m *MemoryLimiter) Allow(deviceID, messageType string) (Decision, error) {
	limiter := m.bucket(deviceID, messageType)
	now := time.Now()
	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{Allowed: false, Limit: LimitFor(messageType)}, nil
	}

	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return Decision{
			Allowed:    false,
			Limit:      LimitFor(messageType),
			Remaining:  0,
			ResetAt:    now.Add(delay),
			RetryAfter: delay,
		}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     LimitFor(messageType),
		Remaining: int(limiter.Tokens()),
		ResetAt:   now.Add(time.Minute),
	}, nil
}
