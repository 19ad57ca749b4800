package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/hlog"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/prolynk/backend/internal/models"
)

// NewRateLimiter builds a limiter for rate (e.g. "300-M"). Counters live in
// Redis when redisURL is set, so every replica shares them, and in process
// memory otherwise.
func NewRateLimiter(rate, redisURL string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}

	if redisURL == "" {
		return limiter.New(memory.NewStore(), r), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	store, err := sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix: "prolynk_limiter",
	})
	if err != nil {
		return nil, fmt.Errorf("redis limiter store: %w", err)
	}
	return limiter.New(store, r), nil
}

// RateLimit throttles per client IP. A limiter outage lets traffic through.
func RateLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.GetIPKey(r)
			lctx, err := l.Get(r.Context(), key)
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Str("ip", key).Msg("[ratelimit] failed to get rate limit context")
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				hlog.FromRequest(r).Warn().Str("ip", key).Int64("limit", lctx.Limit).Msg("[ratelimit] rate limit exceeded")
				writeJSON(w, http.StatusTooManyRequests, models.NewErrorResponse("Too many requests. Please try again later."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
