package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/metrics"
	"golang.org/x/time/rate"
)

type actorKey struct{}

// Claims are the bearer token claims issued by the marketplace auth service. The subject
// is the user id.
type Claims struct {
	Email   string   `json:"email,omitempty"`
	Role    string   `json:"role,omitempty"`
	ShopIDs []string `json:"shop_ids,omitempty"`
	jwt.RegisteredClaims
}

func ActorFromContext(ctx context.Context) (d.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(d.Actor)
	return actor, ok
}

func WithActor(ctx context.Context, actor d.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// AuthMiddleware validates an HS256 bearer token and puts the caller on the context.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Fields(r.Header.Get("Authorization"))
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			var claims Claims
			token, err := jwt.ParseWithClaims(parts[1], &claims, keyFunc, jwt.WithExpirationRequired())
			if err != nil || !token.Valid || claims.Subject == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			role := d.Role(claims.Role)
			switch role {
			case d.RoleUser, d.RoleSeller, d.RoleAdmin:
			case "":
				role = d.RoleUser
			default:
				respondError(w, http.StatusUnauthorized, "unauthorized", "unknown role")
				return
			}

			actor := d.Actor{
				UserID:  claims.Subject,
				Email:   claims.Email,
				Role:    role,
				ShopIDs: claims.ShopIDs,
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

type userLimiter struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	last    time.Time
}

// RateLimiter keeps one token bucket per authenticated user.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters sync.Map // map[string]*userLimiter
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limit: rate.Limit(perSecond), burst: burst}
}

func (rl *RateLimiter) get(userID string) *userLimiter {
	if v, ok := rl.limiters.Load(userID); ok {
		return v.(*userLimiter)
	}
	v, _ := rl.limiters.LoadOrStore(userID, &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)})
	return v.(*userLimiter)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}

		ul := rl.get(actor.UserID)
		ul.mu.Lock()
		ul.last = time.Now()
		ul.mu.Unlock()

		if !ul.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many checkout requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup drops limiters of users idle for longer than idle until ctx is done.
func (rl *RateLimiter) Cleanup(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			rl.limiters.Range(func(key, val any) bool {
				ul := val.(*userLimiter)
				ul.mu.Lock()
				stale := now.Sub(ul.last) > idle
				ul.mu.Unlock()
				if stale {
					rl.limiters.Delete(key)
				}
				return true
			})
		}
	}
}

// MetricsMiddleware records request counts and latency labelled by route pattern, so
// ids in paths don't blow up label cardinality.
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			status := strconv.Itoa(ww.Status())
			m.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
