// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communityweb

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/StorXNetwork/gatehouse/community"
)

// RateLimiterConfig configures the per-session limiter of the push functions.
type RateLimiterConfig struct {
	Duration  time.Duration `help:"the rate at which request are allowed" default:"5m"`
	Burst     int           `help:"number of events before the limit kicks in" default:"30" testDefault:"3"`
	NumLimits int           `help:"number of sessions to remember rate limits for" default:"1000" testDefault:"10"`
}

// RateLimiter limits requests per community member.
type RateLimiter struct {
	config RateLimiterConfig
	nowFn  func() time.Time

	mu       sync.Mutex
	limiters map[string]*userLimit
}

type userLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. A zero Duration disables limiting.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		config:   config,
		nowFn:    time.Now,
		limiters: map[string]*userLimit{},
	}
}

// TestSetNow sets the clock used by the limiter.
func (rl *RateLimiter) TestSetNow(nowFn func() time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.nowFn = nowFn
}

// Allow reports whether session may make another request now.
func (rl *RateLimiter) Allow(session community.Session) bool {
	if rl.config.Duration <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFn()
	key := session.CommunityID + "/" + session.UserID
	limit, ok := rl.limiters[key]
	if !ok {
		if rl.config.NumLimits > 0 && len(rl.limiters) >= rl.config.NumLimits {
			rl.evictOldest()
		}
		burst := rl.config.Burst
		if burst <= 0 {
			burst = 1
		}
		limit = &userLimit{limiter: rate.NewLimiter(rate.Every(rl.config.Duration), burst)}
		rl.limiters[key] = limit
	}
	limit.lastSeen = now
	return limit.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, limit := range rl.limiters {
		if oldestKey == "" || limit.lastSeen.Before(oldest) {
			oldestKey, oldest = key, limit.lastSeen
		}
	}
	delete(rl.limiters, oldestKey)
}

// Limit wraps next so that sessions over their limit get 429.
func (server *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		session, err := GetSession(ctx)
		if err != nil {
			serveError(ctx, server.log, w, err)
			return
		}
		if !server.limiter.Allow(session) {
			serveJSON(ctx, server.log, w, http.StatusTooManyRequests, errorBody{Error: errorDetail{
				Status:  "resource-exhausted",
				Message: "too many requests",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
