package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mtalha0777/arfurniture/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	JWTSecret      []byte
	RequestTimeout time.Duration
	MaxBodySize    int64
}

type Handlers struct {
	Products *ProductsHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
}

func NewRouter(cfg RouterConfig, h Handlers, limiter *RateLimiter, checks map[string]HealthCheck,
	m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware(m))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxBodySize))

	r.Get("/health", healthHandler(checks))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/products", h.Products.ListProducts)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Post("/items", h.Cart.AddItem)
			r.Post("/items/toggle", h.Cart.ToggleItem)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/", h.Checkout.Begin)
			r.Post("/{checkout_key}/complete", h.Checkout.Complete)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.ListOrders)
			r.Get("/{order_id}", h.Orders.GetOrder)
			r.Patch("/{order_id}/status", h.Orders.UpdateStatus)
		})

		r.Get("/shops/{shop_id}/orders", h.Orders.ListShopOrders)
		r.Get("/admin/orders", h.Orders.ListRecentOrders)
	})

	return otelhttp.NewHandler(r, "arfurniture-http")
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		respondJSON(w, status, result)
	}
}
