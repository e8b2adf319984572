package utils

import (
	"sync"
	"time"
)

// RateLimiter 令牌桶限流，用于控制 websocket 建连速率
type RateLimiter struct {
	rate       float64
	capacity   float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewRateLimiter 创建一个新的限流器
// rate: 每秒允许的请求数
// burst: 突发倍数，桶的容量 = burst * rate
func NewRateLimiter(rate int, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return newRateLimiter(rate, burst, time.Now)
}

func newRateLimiter(rate, burst int, now func() time.Time) *RateLimiter {
	capacity := float64(burst * rate)
	return &RateLimiter{
		rate:       float64(rate),
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: now(),
		now:        now,
	}
}

// Allow 判断当前请求是否允许通过
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens = min(rl.capacity, rl.tokens+elapsed*rl.rate)
	rl.lastRefill = now

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}
