package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/club-overlay/pkg/response"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket; clients poll list and count
// endpoints every few tens of seconds, so the default budget is generous.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	r        rate.Limit
	burst    int
}

func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*clientLimiter), r: r, burst: burst}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	if v, ok := rl.limiters[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.limiters[key] = &clientLimiter{limiter: l, lastSeen: now}
	return l
}

// Sweep drops limiters idle for longer than idle.
func (rl *RateLimiter) Sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for k, v := range rl.limiters {
		if time.Since(v.lastSeen) > idle {
			delete(rl.limiters, k)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until stop is closed.
func (rl *RateLimiter) Run(stop <-chan struct{}, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rl.Sweep(idle)
		}
	}
}

// Limit keys on the authenticated user when present, else the client IP.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if uid, ok := CurrentUser(c); ok {
			key = "user:" + uid
		}
		if !rl.get(key).Allow() {
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
