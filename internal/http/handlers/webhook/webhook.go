// Package webhook реализует HTTP-обработчик уведомлений о донатах от Trakteer.
//
// Handler проверяет общий секрет в заголовке x-webhook-token, декодирует и
// валидирует тело доната и передает его сервису обработки донатов.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/donation-bot/internal/http/response"
	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/metrics"
	"github.com/magabrotheeeer/donation-bot/internal/models"
	"github.com/magabrotheeeer/donation-bot/internal/services/donation"
)

// TokenHeader заголовок с секретом вебхука.
const TokenHeader = "x-webhook-token"

// Service описывает интерфейс обработки доната.
type Service interface {
	Process(ctx context.Context, p models.DonationPayload) (donation.Result, error)
}

// Handler принимает уведомления о донатах.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис обработки донатов
	validate *validator.Validate // Валидатор тела доната
	token    string              // Общий секрет вебхука
	metrics  *metrics.Metrics
}

// New создает новый Handler. m может быть nil.
func New(log *slog.Logger, service Service, token string, m *metrics.Metrics) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
		token:    token,
		metrics:  m,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if !h.validToken(r.Header.Get(TokenHeader)) {
		log.Warn("invalid webhook token")
		h.metrics.Webhook(http.StatusForbidden)
		http.Error(w, "Invalid webhook token", http.StatusForbidden)
		return
	}

	var payload models.DonationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		h.metrics.Webhook(http.StatusBadRequest)
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(payload); err != nil {
		log.Error("validation failed", sl.Err(err))
		h.metrics.Webhook(http.StatusUnprocessableEntity)
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Process(r.Context(), payload)
	if err != nil {
		log.Error("failed to process donation", sl.Err(err))
		h.metrics.Webhook(http.StatusInternalServerError)
		http.Error(w, "Failed to process payment", http.StatusInternalServerError)
		return
	}

	log.Info("donation processed",
		slog.String("supporter", payload.SupporterName),
		slog.Int64("amount", payload.Price),
		slog.Bool("activated", res.Activated),
	)
	h.metrics.Webhook(http.StatusOK)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Payment processed successfully"))
}

func (h *Handler) validToken(got string) bool {
	if h.token == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
