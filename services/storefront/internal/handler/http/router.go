package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/RentMarket/pkg/health"
	"github.com/utafrali/RentMarket/pkg/middleware"
	"github.com/utafrali/RentMarket/services/storefront/internal/identity"
	"github.com/utafrali/RentMarket/services/storefront/internal/service"
)

const serviceName = "storefront"

// RouterConfig carries the cross-cutting pieces the router mounts.
type RouterConfig struct {
	CORS        middleware.CORSConfig
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all storefront rating routes registered.
func NewRouter(
	ratingService *service.RatingService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Viewer(identity.ResolveUserID))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	ratingHandler := NewRatingHandler(ratingService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(contentTypeJSON)

		r.Get("/ratings", ratingHandler.QueryRatings)

		r.Route("/{kind}/{entityId}", func(r chi.Router) {
			r.Get("/ratings", ratingHandler.GetRatings)

			// Mutations need a viewer and are rate limited per viewer.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireViewer)
				if cfg.RateLimiter != nil {
					r.Use(cfg.RateLimiter.Handler)
				}

				r.Post("/review-form/open", ratingHandler.OpenForm)
				r.Post("/review-form/toggle", ratingHandler.ToggleForm)
				r.Post("/review-form/close", ratingHandler.CloseForm)
				r.Post("/review-form/submit", ratingHandler.SubmitReview)
				r.Delete("/reviews/{reviewId}", ratingHandler.DeleteReview)
			})
		})
	})

	return r
}

func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
