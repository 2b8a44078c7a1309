// Package messenger отправляет сообщения и статус бота через шлюз WhatsApp.
// Шлюз слушает очередь RabbitMQ, поэтому ошибка публикации считается ошибкой отправки.
package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/donation-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/donation-bot/internal/models"
)

// Messenger публикует исходящие сообщения в exchange шлюза.
type Messenger struct {
	mu         sync.Mutex
	ch         rabbitmq.Publisher
	exchange   string
	routingKey string
	log        *slog.Logger
}

// New создает Messenger поверх канала RabbitMQ.
func New(ch rabbitmq.Publisher, exchange, routingKey string, log *slog.Logger) *Messenger {
	return &Messenger{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log,
	}
}

// SendMessage отправляет текст body в чат to.
func (m *Messenger) SendMessage(ctx context.Context, to, body string) error {
	const op = "messenger.SendMessage"
	if err := m.publish(ctx, models.OutboundMessage{Kind: models.OutboundKindMessage, To: to, Body: body}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.log.Debug("message published", slog.String("op", op), slog.String("to", to))
	return nil
}

// SetStatus меняет статус (about) аккаунта бота.
func (m *Messenger) SetStatus(ctx context.Context, status string) error {
	const op = "messenger.SetStatus"
	if err := m.publish(ctx, models.OutboundMessage{Kind: models.OutboundKindStatus, Body: status}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Messenger) publish(ctx context.Context, msg models.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return rabbitmq.PublishMessage(m.ch, m.exchange, m.routingKey, msg)
}
