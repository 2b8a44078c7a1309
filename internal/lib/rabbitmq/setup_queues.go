package rabbitmq

import "github.com/magabrotheeeer/donation-bot/internal/config"

// QueueConfig описывает очередь и ключ маршрутизации, с которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetGatewayQueues возвращает очереди обмена со шлюзом WhatsApp: входящие сообщения и исходящие команды.
func GetGatewayQueues(cfg config.RabbitMQ) []QueueConfig {
	return []QueueConfig{
		{QueueName: cfg.InboundQueue, RoutingKey: cfg.InboundRoutingKey},
		{QueueName: cfg.OutboundQueue, RoutingKey: cfg.OutboundRoutingKey},
	}
}
