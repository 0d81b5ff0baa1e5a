package middleware

import (
	"math"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/dealtracker/backend/internal/interfaces/http/dto"
)

// defaultMaxClients bounds how many client limiters are remembered. The
// least recently seen client is forgotten first and starts over with a
// full bucket.
const defaultMaxClients = 10000

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter allows perSecond requests per client with the given burst.
func NewRateLimiter(perSecond float64, burst, maxClients int) (*RateLimiter, error) {
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	if burst <= 0 {
		burst = 1
	}
	clients, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{limit: rate.Limit(perSecond), burst: burst, clients: clients}, nil
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.clients.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients.Add(key, l)
	return l
}

// Middleware rejects requests over the client's budget with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		l := rl.limiter(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.burst))

		if !l.Allow() {
			retry := math.Ceil(1 / float64(rl.limit))
			c.Header("Retry-After", strconv.Itoa(int(math.Max(retry, 1))))
			abortWithError(c, dto.ErrCodeRateLimited, "Too many requests")
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(l.Tokens())))
		c.Next()
	}
}
