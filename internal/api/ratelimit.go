package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter throttles the public analyze and report endpoints. Counters
// live in Redis; when Redis is unreachable the limiter fails open so a
// cache outage never blocks analyses.
type RateLimiter struct {
	redis  *redis.Client
	logger *zap.Logger
	config RateLimitConfig
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	Enabled           bool                  `yaml:"enabled"`
	IncludeHeaders    bool                  `yaml:"include_headers"`
	Tiers             map[string]TierLimits `yaml:"tiers"`
	EndpointOverrides map[string]int        `yaml:"endpoint_overrides"` // METHOD:path -> requests per minute
}

// TierLimits defines the per-tier request budget.
type TierLimits struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size"`
}

// DefaultTiers returns the default tier budgets.
func DefaultTiers() map[string]TierLimits {
	return map[string]TierLimits{
		"free":      {RequestsPerMinute: 30, BurstSize: 5},
		"basic":     {RequestsPerMinute: 120, BurstSize: 20},
		"partner":   {RequestsPerMinute: 600, BurstSize: 60},
		"unmetered": {RequestsPerMinute: 6000, BurstSize: 200},
	}
}

// DefaultEndpointOverrides caps the expensive endpoints below the tier
// budget.
func DefaultEndpointOverrides() map[string]int {
	return map[string]int{
		"POST:/api/v1/analyze/batch": 10,
		"POST:/api/v1/reports/url":   20,
	}
}

// RateLimitResult is the outcome of one check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	Limit      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// NewRateLimiter creates a rate limiter. client may be nil; the limiter
// then allows everything.
func NewRateLimiter(client *redis.Client, cfg RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if cfg.Tiers == nil {
		cfg.Tiers = DefaultTiers()
	}
	if cfg.EndpointOverrides == nil {
		cfg.EndpointOverrides = DefaultEndpointOverrides()
	}
	return &RateLimiter{redis: client, logger: logger, config: cfg}
}

var rateLimitScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return {current, ttl}
`)

// Check counts one request for the client against its minute window.
func (rl *RateLimiter) Check(ctx context.Context, tier, clientID, method, path string) *RateLimitResult {
	limit := rl.limitFor(tier, method, path)

	if rl.redis == nil {
		return &RateLimitResult{Allowed: true, Limit: limit, Remaining: limit}
	}

	key := fmt.Sprintf("scamshield:ratelimit:%s:%s:%s:minute", tier, clientID, path)
	raw, err := rateLimitScript.Run(ctx, rl.redis, []string{key}, 60000).Int64Slice()
	if err != nil || len(raw) != 2 {
		rl.logger.Warn("rate limit check failed, allowing request", zap.Error(err))
		return &RateLimitResult{Allowed: true, Limit: limit, Remaining: limit}
	}

	current, ttl := int(raw[0]), time.Duration(raw[1])*time.Millisecond
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}

	result := &RateLimitResult{
		Allowed:   current <= limit,
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   time.Now().Add(ttl),
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}
	return result
}

func (rl *RateLimiter) limitFor(tier, method, path string) int {
	limits, ok := rl.config.Tiers[tier]
	if !ok {
		limits = rl.config.Tiers["free"]
	}

	limit := limits.RequestsPerMinute
	if override, ok := rl.config.EndpointOverrides[method+":"+path]; ok && override < limit {
		limit = override
	}
	return limit
}

// Middleware enforces the limiter on every request it wraps.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			tier := r.Header.Get("X-API-Tier")
			if tier == "" {
				tier = "free"
			}
			clientID := r.Header.Get("X-API-Key")
			if clientID == "" {
				clientID = clientIP(r)
			}

			result := rl.Check(r.Context(), tier, clientID, r.Method, r.URL.Path)

			if rl.config.IncludeHeaders {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			}

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate_limit_exceeded","retry_after":%d}`,
					int(result.RetryAfter.Seconds()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
