// Package ratelimit implements a Redis fixed-window request limiter.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/redis/go-redis/v9"
)

const fixedWindowLua = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter allows Limit hits per key per Window. A nil *Limiter allows all.
type Limiter struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	window time.Duration
	script *redis.Script
}

func New(rdb redis.Scripter, prefix string, limit int, window time.Duration) *Limiter {
	if prefix == "" {
		prefix = "berboapp:ratelimit"
	}
	return &Limiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  limit,
		window: window,
		script: redis.NewScript(fixedWindowLua),
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return Result{Allowed: true}, nil
	}

	res, err := l.script.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{Allowed: true}, fmt.Errorf("ratelimit eval: %w", err)
	}
	if len(res) < 2 {
		return Result{Allowed: true}, fmt.Errorf("ratelimit invalid result")
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}
	if count > l.limit {
		return Result{Allowed: false, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true, Remaining: l.limit - count}, nil
}

// KeyFunc derives the bucket key for a request.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over the limit through reject. Redis failures
// let the request through with a warning.
func Middleware(l *Limiter, key KeyFunc, log logging.Logger, reject func(w http.ResponseWriter, r *http.Request, res Result)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), key(r))
			if err != nil {
				log.Warn(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int((res.RetryAfter+time.Second-1)/time.Second)))
				reject(w, r, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
