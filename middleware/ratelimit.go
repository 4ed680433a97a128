package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	rateLimitCleanupInterval = 10 * time.Minute
	rateLimitIdleTimeout     = 30 * time.Minute
)

// clientLimiter stores the token bucket of one client
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP with a token bucket
type RateLimiter struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	now     func() time.Time
}

// NewRateLimiter creates a limiter refilling rps tokens per second up to burst.
// Idle clients are forgotten by a background sweep that stops when done closes.
func NewRateLimiter(rps float64, burst int, done <-chan struct{}) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
	if done != nil {
		go rl.cleanupClients(done)
	}
	return rl
}

func (rl *RateLimiter) getClientLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, exists := rl.clients[key]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = rl.now()
	return client.limiter
}

func (rl *RateLimiter) cleanupClients(done <-chan struct{}) {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if removed := rl.sweep(); removed > 0 {
				zap.L().Debug("rate limiter cleanup", zap.Int("removed", removed))
			}
		}
	}
}

// sweep drops clients idle for longer than rateLimitIdleTimeout
func (rl *RateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, client := range rl.clients {
		if rl.now().Sub(client.lastSeen) > rateLimitIdleTimeout {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// Limit creates the Gin middleware handler
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		if !rl.getClientLimiter(clientKey).Allow() {
			zap.L().Info("rate limit exceeded",
				zap.String("client_ip", clientKey),
				zap.String("route", c.FullPath()),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Too many requests, please slow down",
				},
			})
			return
		}
		c.Next()
	}
}
