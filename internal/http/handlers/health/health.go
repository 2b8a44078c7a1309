// Package health реализует проверку живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/donation-bot/internal/http/response"
	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
)

// Pinger зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler отвечает на GET /health.
type Handler struct {
	log     *slog.Logger
	checks  map[string]Pinger
	timeout time.Duration
}

// New создает Handler. checks это именованные зависимости (postgres, redis).
func New(log *slog.Logger, checks map[string]Pinger) *Handler {
	return &Handler{
		log:     log,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	statuses := make(map[string]string, len(h.checks)+1)
	statuses["status"] = "ok"
	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			h.log.Warn("health check failed", slog.String("op", op), slog.String("check", name), sl.Err(err))
			statuses[name] = "down"
			statuses["status"] = "degraded"
			continue
		}
		statuses[name] = "ok"
	}

	if statuses["status"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{Status: response.StatusError, Data: statuses})
		return
	}
	render.JSON(w, r, response.OKWithData(statuses))
}
