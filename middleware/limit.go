package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vijaygopal97/convergent-server/model"
)

// per-IP limiter table
var (
	ipLimiters = struct {
		sync.RWMutex
		m map[string]*model.IpLimiter
	}{
		m: make(map[string]*model.IpLimiter),
	}
)

// drop limiters that have been idle for a while
func cleanupLimiters() {
	for {
		time.Sleep(1 * time.Hour)
		ipLimiters.Lock()
		now := time.Now()
		for ip, limiter := range ipLimiters.m {
			if now.Sub(limiter.LastActive) > 2*time.Hour {
				delete(ipLimiters.m, ip)
			}
		}
		ipLimiters.Unlock()
	}
}

// RateLimitMiddleware throttles per client IP.
func RateLimitMiddleware() gin.HandlerFunc {
	go cleanupLimiters()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		ipLimiters.Lock()
		limiter, exists := ipLimiters.m[ip]
		if !exists {
			limiter = &model.IpLimiter{
				Limiter:    rate.NewLimiter(rate.Limit(100), 200),
				LastActive: time.Now(),
			}
			ipLimiters.m[ip] = limiter
		}
		limiter.LastActive = time.Now()
		ipLimiters.Unlock()

		if !limiter.Limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests, slow down",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
