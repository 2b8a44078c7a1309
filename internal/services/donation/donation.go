// Package donation обрабатывает уведомления о донатах: находит номер донатера,
// подбирает пакет по сумме, активирует его и отправляет ключ.
package donation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/donation-bot/internal/lib/phone"
	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/metrics"
	"github.com/magabrotheeeer/donation-bot/internal/models"
)

// Catalog подбирает пакет по сумме.
type Catalog interface {
	SelectByAmount(ctx context.Context, amount int64) (*models.Package, bool, error)
}

// Lifecycle активирует пакет пользователю.
type Lifecycle interface {
	Activate(ctx context.Context, userID, packageType string) (time.Time, error)
}

// Messenger отправляет сообщения и статус бота.
type Messenger interface {
	SendMessage(ctx context.Context, to, body string) error
	SetStatus(ctx context.Context, status string) error
}

// Subscribers подписывает номер на рассылку.
type Subscribers interface {
	AddPhoneNumber(ctx context.Context, name, phoneNumber string) error
}

// TransactionSource возвращает последнюю транзакцию платёжной площадки.
type TransactionSource interface {
	LastTransaction(ctx context.Context) (*models.Transaction, error)
}

// Mailer отправляет ключ пакета на email.
type Mailer interface {
	SendLicenseKey(to, supporterName string, amount int64, pkg models.Package) error
}

// Result итог обработки доната.
type Result struct {
	Phone     string
	Email     string
	Package   *models.Package
	Expires   time.Time
	Activated bool
}

// Service обрабатывает донаты.
type Service struct {
	catalog      Catalog
	lifecycle    Lifecycle
	messenger    Messenger
	subscribers  Subscribers
	transactions TransactionSource
	mailer       Mailer
	metrics      *metrics.Metrics
	keyDelay     time.Duration
	log          *slog.Logger
}

// Option настраивает Service.
type Option func(*Service)

// WithTransactionSource включает запрос последней транзакции, если донатер не оставил сообщения.
func WithTransactionSource(src TransactionSource) Option {
	return func(s *Service) {
		s.transactions = src
	}
}

// WithMailer включает отправку ключа на email из сообщения донатера.
func WithMailer(m Mailer) Option {
	return func(s *Service) {
		s.mailer = m
	}
}

// WithMetrics включает учёт донатов.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithKeyDelay задаёт паузу между благодарностью и сообщением с ключом.
func WithKeyDelay(d time.Duration) Option {
	return func(s *Service) {
		s.keyDelay = d
	}
}

// New создает новый экземпляр Service.
func New(catalog Catalog, lifecycle Lifecycle, messenger Messenger, subscribers Subscribers, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		catalog:     catalog,
		lifecycle:   lifecycle,
		messenger:   messenger,
		subscribers: subscribers,
		keyDelay:    500 * time.Millisecond,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process обрабатывает донат. Ошибка возвращается, только если пакет не был активирован
// (поиск пакета, активация, подписка номера без пакета). После активации ошибки отправки
// и подписки только логируются, чтобы повтор вебхука не продлил пакет второй раз.
func (s *Service) Process(ctx context.Context, p models.DonationPayload) (Result, error) {
	const op = "services.donation.Process"
	log := s.log.With(
		slog.String("op", op),
		slog.String("supporter", p.SupporterName),
		slog.Int64("amount", p.Price),
	)
	log.Info("donation received", slog.String("message", p.SupporterMessage))

	var res Result
	text := s.supporterText(ctx, p, log)
	if number, ok := phone.Extract(text); ok {
		res.Phone = number
	}
	if email, ok := phone.ExtractEmail(text); ok {
		res.Email = email
	}

	if err := s.messenger.SetStatus(ctx, statusMessage(p)); err != nil {
		log.Warn("failed to update status", sl.Err(err))
	}

	pkg, found, err := s.catalog.SelectByAmount(ctx, p.Price)
	if err != nil {
		log.Error("failed to select package", sl.Err(err))
		return res, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		res.Package = pkg
		log = log.With(slog.String("package", pkg.Type))
	}

	if res.Phone != "" {
		if found {
			if err := s.activate(ctx, &res, *pkg); err != nil {
				log.Error("failed to activate package", slog.String("phone", res.Phone), sl.Err(err))
				return res, fmt.Errorf("%s: %w", op, err)
			}
			// Пакет уже активирован: повторный вебхук продлил бы его второй раз,
			// поэтому дальше ошибки только логируются.
			s.sendKey(ctx, res.Phone, p.Price, *pkg, log)
		}
		if err := s.subscribers.AddPhoneNumber(ctx, p.SupporterName, res.Phone); err != nil {
			log.Error("failed to subscribe supporter", sl.Err(err))
			if !res.Activated {
				return res, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	if found && res.Email != "" && s.mailer != nil {
		if err := s.mailer.SendLicenseKey(res.Email, p.SupporterName, p.Price, *pkg); err != nil {
			log.Warn("failed to email license key", slog.String("email", res.Email), sl.Err(err))
		}
	}

	s.metrics.Donation(p.Price)
	log.Info("donation processed", slog.String("phone", res.Phone), slog.Bool("activated", res.Activated))
	return res, nil
}

func (s *Service) activate(ctx context.Context, res *Result, pkg models.Package) error {
	expires, err := s.lifecycle.Activate(ctx, res.Phone, pkg.Type)
	if err != nil {
		return err
	}
	res.Activated = true
	res.Expires = expires
	return nil
}

// sendKey отправляет благодарность и затем ключ пакета.
func (s *Service) sendKey(ctx context.Context, to string, amount int64, pkg models.Package, log *slog.Logger) {
	if err := s.messenger.SendMessage(ctx, to, thankYouMessage(amount, pkg)); err != nil {
		log.Error("failed to send thank-you message", slog.String("phone", to), sl.Err(err))
	}
	if s.keyDelay > 0 {
		select {
		case <-ctx.Done():
			log.Warn("license key not sent", slog.String("phone", to), sl.Err(ctx.Err()))
			return
		case <-time.After(s.keyDelay):
		}
	}
	if err := s.messenger.SendMessage(ctx, to, pkg.LicenseKey); err != nil {
		log.Error("failed to send license key", slog.String("phone", to), sl.Err(err))
	}
}

// supporterText возвращает сообщение донатера, а если оно пустое, сообщение последней транзакции.
func (s *Service) supporterText(ctx context.Context, p models.DonationPayload, log *slog.Logger) string {
	if p.SupporterMessage != "" || s.transactions == nil {
		return p.SupporterMessage
	}
	tx, err := s.transactions.LastTransaction(ctx)
	if err != nil {
		log.Warn("failed to fetch last transaction", sl.Err(err))
		return ""
	}
	return tx.SupportMessage
}
