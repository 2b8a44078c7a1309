package donationbot

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/donation-bot/internal/config"
	"github.com/magabrotheeeer/donation-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/donation-bot/internal/http/handlers/webhook"
	"github.com/magabrotheeeer/donation-bot/internal/http/middlewarectx"
	"github.com/magabrotheeeer/donation-bot/internal/metrics"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(
	r chi.Router,
	logger *slog.Logger,
	cfg config.Webhook,
	donations webhook.Service,
	checks map[string]health.Pinger,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst))
		r.Post("/webhook", webhook.New(logger, donations, cfg.Token, m).ServeHTTP)
	})

	r.Get("/health", health.New(logger, checks).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
}
