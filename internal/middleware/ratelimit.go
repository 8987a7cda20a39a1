package middleware

import (
	"net/http"
	"time"

	"disaster_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

var ErrRateLimited = apperrors.New(
	apperrors.CodeLimitExceeded,
	"request",
	"Too many requests",
	http.StatusTooManyRequests,
)

// RateLimiter - token bucket на IP. Лимитеры неактивных клиентов вытесняются go-cache.
type RateLimiter struct {
	limiters *cache.Cache
	rps      rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 5*time.Minute),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := rl.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.rps, rl.burst)
	// Add не перезаписывает лимитер, созданный параллельным запросом
	if err := rl.limiters.Add(key, l, cache.DefaultExpiration); err != nil {
		if v, ok := rl.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rps <= 0 {
			c.Next()
			return
		}
		key := c.ClientIP()
		l := rl.limiter(key)
		rl.limiters.SetDefault(key, l) // продлевает жизнь активного лимитера
		if !l.Allow() {
			apperrors.HandleError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
