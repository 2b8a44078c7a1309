// Package metrics содержит счётчики Prometheus бота. Все методы безопасны для nil,
// поэтому компоненты могут работать без метрик (например, в тестах).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор счётчиков бота.
type Metrics struct {
	broadcastSent   prometheus.Counter
	broadcastFailed prometheus.Counter
	donations       prometheus.Counter
	donationAmount  prometheus.Counter
	commands        *prometheus.CounterVec
	webhook         *prometheus.CounterVec
}

// New создает счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		broadcastSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "donation_bot",
			Name:      "broadcast_sent_total",
			Help:      "Messages delivered by broadcasts.",
		}),
		broadcastFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "donation_bot",
			Name:      "broadcast_failed_total",
			Help:      "Broadcast sends that failed and halted the broadcast.",
		}),
		donations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "donation_bot",
			Name:      "donations_total",
			Help:      "Processed donation notifications.",
		}),
		donationAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "donation_bot",
			Name:      "donation_amount_total",
			Help:      "Sum of processed donations.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donation_bot",
			Name:      "commands_total",
			Help:      "Handled chat commands.",
		}, []string{"command", "result"}),
		webhook: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donation_bot",
			Name:      "webhook_requests_total",
			Help:      "Webhook requests by response status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.broadcastSent, m.broadcastFailed, m.donations, m.donationAmount, m.commands, m.webhook)
	return m
}

// BroadcastSend учитывает одну попытку отправки при рассылке.
func (m *Metrics) BroadcastSend(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.broadcastSent.Inc()
		return
	}
	m.broadcastFailed.Inc()
}

// Donation учитывает обработанный донат.
func (m *Metrics) Donation(amount int64) {
	if m == nil {
		return
	}
	m.donations.Inc()
	if amount > 0 {
		m.donationAmount.Add(float64(amount))
	}
}

// Command учитывает выполненную команду.
func (m *Metrics) Command(name, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name, result).Inc()
}

// Webhook учитывает ответ webhook.
func (m *Metrics) Webhook(status int) {
	if m == nil {
		return
	}
	m.webhook.WithLabelValues(strconv.Itoa(status)).Inc()
}
