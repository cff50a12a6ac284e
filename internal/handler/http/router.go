package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vendora/promotion/internal/service"
	"github.com/vendora/promotion/pkg/health"
	"github.com/vendora/promotion/pkg/middleware"
)

// NewRouter creates a chi router with all promotion service routes registered.
func NewRouter(
	promotionService *service.PromotionService,
	evaluationService *service.EvaluationService,
	bulkService *service.BulkService,
	templateService *service.TemplateService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS)
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("promotion"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	promotionHandler := NewPromotionHandler(promotionService, logger)
	evaluationHandler := NewEvaluationHandler(evaluationService, logger)
	bulkHandler := NewBulkHandler(bulkService, logger)
	templateHandler := NewTemplateHandler(templateService, logger)

	r.Route("/api/v1/promotions", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", promotionHandler.CreatePromotion)
		r.Get("/", promotionHandler.ListPromotions)

		// Bulk endpoint must come before /{id} to avoid route conflict.
		r.Post("/bulk", bulkHandler.Execute)

		r.Get("/{id}", promotionHandler.GetPromotion)
		r.Put("/{id}", promotionHandler.UpdatePromotion)
		r.Delete("/{id}", promotionHandler.DeletePromotion)
		r.Post("/{id}/activate", promotionHandler.ActivatePromotion)
		r.Post("/{id}/deactivate", promotionHandler.DeactivatePromotion)
		r.Get("/{id}/stats", promotionHandler.GetPromotionStats)
	})

	r.Route("/api/v1/templates", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(UserIDFromHeader)

		r.Post("/", templateHandler.CreateTemplate)
		r.Get("/", templateHandler.ListTemplates)
		r.Get("/{id}", templateHandler.GetTemplate)
		r.Post("/{id}/instantiate", templateHandler.InstantiateTemplate)
	})

	r.Route("/api/v1/evaluate", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", evaluationHandler.Evaluate)
		r.Post("/commit", evaluationHandler.Commit)
	})

	return r
}
