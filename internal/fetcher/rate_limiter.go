package fetcher

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds in-flight requests per host and spreads requests so no
// host receives more than rpm per minute.
type RateLimiter struct {
	maxConcurrent int
	interval      time.Duration
	hosts         map[string]*hostLimiter
	mu            sync.Mutex
}

type hostLimiter struct {
	sem  chan struct{} // Semaphore for concurrency
	next time.Time     // earliest start of the next request
	mu   sync.Mutex
}

func NewRateLimiter(maxConcurrent, rpm int) *RateLimiter {
	return &RateLimiter{
		maxConcurrent: maxConcurrent,
		interval:      time.Minute / time.Duration(rpm),
		hosts:         make(map[string]*hostLimiter),
	}
}

// Acquire blocks until a request to host may start. The returned release
// must be called once the request has finished.
func (rl *RateLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	rl.mu.Lock()
	limiter, exists := rl.hosts[host]
	if !exists {
		limiter = &hostLimiter{
			sem: make(chan struct{}, rl.maxConcurrent),
		}
		rl.hosts[host] = limiter
	}
	rl.mu.Unlock()

	select {
	case limiter.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { <-limiter.sem }

	limiter.mu.Lock()
	now := time.Now()
	start := limiter.next
	if start.Before(now) {
		start = now
	}
	limiter.next = start.Add(rl.interval)
	limiter.mu.Unlock()

	if wait := time.Until(start); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	return release, nil
}
