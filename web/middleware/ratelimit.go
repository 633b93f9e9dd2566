package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/smartvendoplus/smartvendo/web/utils"
)

// RateLimiter implements a simple in-memory sliding-window rate limiter.
type RateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	window   time.Duration
	limit    int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		limit:    limit,
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a request should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	var valid []time.Time
	for _, req := range rl.requests[key] {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mutex.Lock()
		cutoff := time.Now().Add(-rl.window * 2)
		for key, requests := range rl.requests {
			var valid []time.Time
			for _, req := range requests {
				if req.After(cutoff) {
					valid = append(valid, req)
				}
			}
			if len(valid) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = valid
			}
		}
		rl.mutex.Unlock()
	}
}

// RateLimit middleware limits requests per IP address
func RateLimit(limit int, window time.Duration) fiber.Handler {
	limiter := NewRateLimiter(limit, window)

	return func(c *fiber.Ctx) error {
		ip := utils.GetIPAddress(c)

		if !limiter.Allow(ip) {
			slog.Warn("Rate limit exceeded",
				slog.String("type", "http"),
				slog.String("ip", ip),
				slog.String("path", c.Path()),
				slog.Int("limit", limit),
				slog.Duration("window", window))

			return utils.SendError(c, fiber.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Too many requests. Please try again later.", nil)
		}

		return c.Next()
	}
}

// AuthRateLimit limits admin login attempts.
func AuthRateLimit() fiber.Handler {
	return RateLimit(5, time.Minute)
}

// APIRateLimit limits general API requests.
func APIRateLimit() fiber.Handler {
	return RateLimit(300, time.Minute)
}
