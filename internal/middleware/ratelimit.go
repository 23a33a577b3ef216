// Package middleware provides HTTP middleware for havenserver: JWT
// authentication and Redis-backed rate limiting, adapted from the parent
// backend's enhanced rate limiter down to the tiers haven actually needs
// (global and per-endpoint — the relay has no notion of a "user" beyond
// an opaque public key, so per-user tiers are not meaningful here).
package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jaydenbeard/haven/internal/config"
	"github.com/jaydenbeard/haven/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces global and per-endpoint request budgets using
// Redis sorted sets as sliding windows, so limits hold across every
// havenserver replica rather than per-process.
type RateLimiter struct {
	redisClient *redis.Client
	ctx         context.Context
	config      *config.RateLimitConfig
	logger      *log.Logger
}

// NewRateLimiter builds a rate limiter backed by the given Redis client.
func NewRateLimiter(cfg *config.RateLimitConfig, redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		ctx:         context.Background(),
		config:      cfg,
		logger:      log.New(log.Writer(), "[RATE-LIMIT] ", log.Ldate|log.Ltime|log.LUTC),
	}
}

// Middleware enforces the configured limits, skipping the relay's
// WebSocket upgrade path (connection-count limiting for /ws happens in
// internal/relay, not here).
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") || strings.HasPrefix(r.URL.Path, "/ws") {
			next.ServeHTTP(w, r)
			return
		}

		endpoint := r.Method + " " + r.URL.Path

		if !rl.allow("ratelimit:global", rl.config.GlobalLimits, "") {
			metrics.RecordRateLimitRequest(endpoint, "global", "denied")
			rl.logger.Printf("denied: global limit reached, endpoint=%s", endpoint)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		if tiered, ok := rl.config.EndpointLimits[r.URL.Path]; ok {
			if !rl.allow("ratelimit:endpoint:"+r.URL.Path, tiered, r.URL.Path) {
				metrics.RecordRateLimitRequest(endpoint, "endpoint", "denied")
				rl.logger.Printf("denied: endpoint limit reached, endpoint=%s", endpoint)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		metrics.RecordRateLimitRequest(endpoint, "allowed", "allowed")
		next.ServeHTTP(w, r)
	})
}

// allow checks and records one request against a sliding-window limit
// stored at key, using the strict-mode override stored at key+":mode"
// when present.
func (rl *RateLimiter) allow(key string, tiered *config.TieredLimitConfig, modeSuffix string) bool {
	limit := tiered.Normal
	modeKey := key + ":mode"
	if mode, err := rl.redisClient.Get(rl.ctx, modeKey).Result(); err == nil && mode == "strict" && tiered.Strict != nil {
		limit = tiered.Strict
	}

	now := time.Now().Unix()
	windowStart := now - int64(limit.Window.Seconds())

	if err := rl.redisClient.ZRemRangeByScore(rl.ctx, key, "-inf", fmt.Sprintf("(%d", windowStart)).Err(); err != nil {
		rl.logger.Printf("warning: failed to trim window for %s: %v", key, err)
	}

	count, err := rl.redisClient.ZCard(rl.ctx, key).Result()
	if err != nil && err != redis.Nil {
		rl.logger.Printf("warning: failed to count requests for %s: %v", key, err)
		return true
	}
	metrics.UpdateRateLimitGauge(key, "normal", float64(count))

	if count >= int64(limit.MaxRequests) {
		return false
	}

	if err := rl.redisClient.ZAdd(rl.ctx, key, redis.Z{Score: float64(now), Member: now}).Err(); err != nil {
		rl.logger.Printf("warning: failed to record request for %s: %v", key, err)
	}
	if err := rl.redisClient.Expire(rl.ctx, key, limit.Window).Err(); err != nil {
		rl.logger.Printf("warning: failed to set expiry for %s: %v", key, err)
	}
	return true
}

// SetStrictMode toggles strict-tier enforcement for a key ("global" or
// an endpoint path).
func (rl *RateLimiter) SetStrictMode(key string, enable bool) {
	mode := "normal"
	if enable {
		mode = "strict"
	}
	redisKey := "ratelimit:" + key + ":mode"
	if err := rl.redisClient.Set(rl.ctx, redisKey, mode, 0).Err(); err != nil {
		rl.logger.Printf("warning: failed to set strict mode for %s: %v", key, err)
		return
	}
	rl.logger.Printf("strict mode %s for %s", strings.ToUpper(mode), key)
}
