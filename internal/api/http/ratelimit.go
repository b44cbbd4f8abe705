package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/siberialabel/telegram-support-bot/pkg/util"
)

// FloodLimiter throttles gateway clients by IP. This is transport-level
// flood control, separate from the engine's durable submission cooldown.
type FloodLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	every    time.Duration
	burst    int
}

// NewFloodLimiter creates and starts a limiter allowing burst requests per
// client and then one per interval.
func NewFloodLimiter(every time.Duration, burst int) *FloodLimiter {
	fl := &FloodLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		every:    every,
		burst:    burst,
	}
	go fl.cleanup()
	return fl
}

func (fl *FloodLimiter) limiterFor(ip string) *rate.Limiter {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	limiter, exists := fl.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(fl.every), fl.burst)
		fl.limiters[ip] = limiter
	}
	fl.lastSeen[ip] = time.Now()
	return limiter
}

// cleanup periodically removes entries for clients not seen in a day.
func (fl *FloodLimiter) cleanup() {
	for range time.Tick(1 * time.Hour) {
		fl.mu.Lock()
		cutoff := time.Now().Add(-24 * time.Hour)
		for ip, seen := range fl.lastSeen {
			if seen.Before(cutoff) {
				delete(fl.limiters, ip)
				delete(fl.lastSeen, ip)
			}
		}
		fl.mu.Unlock()
	}
}

// Middleware rejects clients that exceed their budget.
func (fl *FloodLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !fl.limiterFor(c.IP()).Allow() {
			return apperrors.NewRateLimited("too many requests", nil)
		}
		return c.Next()
	}
}
