package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/maxmove/maxmove-backend/api/responses"
	"github.com/maxmove/maxmove-backend/pkg/config"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

// RateLimiterStore counts requests per scope within a fixed window.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit throttles a traffic surface with a per-IP fixed window. A nil
// store or a zero limit disables the middleware.
func RateLimit(surface string, cfg config.AuthRateLimitConfig, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	surface = strings.ToLower(strings.TrimSpace(surface))
	if surface == "" {
		surface = "default"
	}

	return func(next http.Handler) http.Handler {
		if store == nil || cfg.Window <= 0 || cfg.IPLimit <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := clientIP(r)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := surface + ":ip:" + ip
			allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(cfg.IPLimit), cfg.Window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"surface":        surface,
						"ip":             ip,
						"attempts":       count,
						"limit":          cfg.IPLimit,
						"window_seconds": int(cfg.Window.Seconds()),
					})
					logg.Warn(logCtx, "rate limit exceeded")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
