package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uptownstitch/storefront/internal/service"
	"github.com/uptownstitch/storefront/pkg/health"
	"github.com/uptownstitch/storefront/pkg/middleware"
)

// requestTimeout bounds every route except the event stream.
const requestTimeout = 30 * time.Second

// RouterConfig carries the HTTP-only settings of the router.
type RouterConfig struct {
	CORS       middleware.CORSConfig
	PprofCIDRs []string

	// StreamsDone ends open cart event streams when closed, letting a
	// graceful shutdown finish.
	StreamsDone <-chan struct{}
}

// NewRouter creates a chi router with all cart service routes registered.
func NewRouter(
	cartService *service.CartService,
	checkoutService *service.CheckoutService,
	contactService *service.ContactService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("cart"))
	r.Use(middleware.Tracing("cart"))

	cartHandler := NewCartHandler(cartService, logger)
	checkoutHandler := NewCheckoutHandler(cartService, checkoutService, logger)
	contactHandler := NewContactHandler(contactService, logger)
	eventsHandler := NewEventsHandler(cartService, logger, cfg.StreamsDone)

	// Infrastructure endpoints
	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(middleware.RequestLogger(logger))

		r.Get("/health/live", healthHandler.LivenessHandler())
		r.Get("/health/ready", healthHandler.ReadinessHandler())
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			promhttp.Handler().ServeHTTP(w, r)
		})

		// Pprof debug endpoints with IP allowlist.
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	})

	// Session-scoped API
	r.Group(func(r chi.Router) {
		r.Use(SessionID)
		r.Use(middleware.RequestLogger(logger))

		// The stream lives as long as the client stays connected, so it
		// skips compression and the request timeout.
		r.With(middleware.NoStore()).Get("/api/v1/cart/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(requestTimeout))
			r.Use(ContentTypeJSON)

			r.Group(func(r chi.Router) {
				r.Use(middleware.NoStore())

				r.Get("/api/v1/cart", cartHandler.GetCart)
				r.Delete("/api/v1/cart", cartHandler.ClearCart)
				r.Get("/api/v1/cart/count", cartHandler.GetCount)

				r.Post("/api/v1/cart/items", cartHandler.AddItem)
				r.Put("/api/v1/cart/items/{productId}", cartHandler.UpdateItemQuantity)
				r.Delete("/api/v1/cart/items/{productId}", cartHandler.RemoveItem)
			})

			r.Post("/api/v1/checkout", checkoutHandler.PlaceOrder)
			r.Post("/api/v1/contact", contactHandler.Submit)
		})
	})

	return r
}
