// Package commands разбирает входящие сообщения чата и выполняет команды бота.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/donation-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/metrics"
	"github.com/magabrotheeeer/donation-bot/internal/models"
	"github.com/magabrotheeeer/donation-bot/internal/services/broadcast"
)

const statusBroadcast = "status@broadcast"

// ErrUsage неверные аргументы команды. Пользователю отправляется строка использования.
var ErrUsage = errors.New("invalid command usage")

// Directory хранилище пользователей и подписчиков рассылки.
type Directory interface {
	AddUser(ctx context.Context, name, location string, phoneNumbers []string) error
	DeleteUser(ctx context.Context, name string) (bool, error)
	AddPhoneNumber(ctx context.Context, name, phoneNumber string) error
	RemovePhoneNumber(ctx context.Context, phoneNumber string) (bool, error)
	ListPhoneNumbers(ctx context.Context) ([]string, error)
	ListPhoneNumbersByLocation(ctx context.Context, location string) ([]string, error)
	ListPhoneNumbersByLocationPrefix(ctx context.Context, prefix string) ([]string, error)
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
}

// Catalog каталог пакетов.
type Catalog interface {
	Create(ctx context.Context, pkg models.Package) error
	Delete(ctx context.Context, packageType string) error
	ChangePrice(ctx context.Context, packageType string, price int64) error
	ChangeKey(ctx context.Context, packageType, licenseKey string) (int, error)
	List(ctx context.Context) ([]models.Package, error)
}

// Lifecycle проверка статуса пакета.
type Lifecycle interface {
	CheckStatus(ctx context.Context, userID string) (models.PackageStatus, error)
}

// Broadcaster сохраняемая рассылка всем подписчикам.
type Broadcaster interface {
	Broadcast(ctx context.Context, body string) (broadcast.Result, error)
}

// Messenger отправляет ответы.
type Messenger interface {
	SendMessage(ctx context.Context, to, body string) error
}

// Deps зависимости команд.
type Deps struct {
	Directory   Directory
	Catalog     Catalog
	Lifecycle   Lifecycle
	Broadcaster Broadcaster
	Messenger   Messenger
	Settings    *Settings
}

// Dispatcher разбирает сообщения и вызывает команды из реестра.
type Dispatcher struct {
	Deps
	registry  map[string]Command
	prefix    string
	delay     time.Duration
	startedAt time.Time
	validate  *validator.Validate
	metrics   *metrics.Metrics
	log       *slog.Logger
	wg        sync.WaitGroup
}

// Option настраивает Dispatcher.
type Option func(*Dispatcher)

// WithPrefix задаёт префикс команд.
func WithPrefix(prefix string) Option {
	return func(d *Dispatcher) {
		d.prefix = prefix
	}
}

// WithDelay задаёт паузу между отправками в командах cast.
func WithDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.delay = delay
	}
}

// WithStartTime задаёт момент запуска; более ранние сообщения игнорируются.
func WithStartTime(t time.Time) Option {
	return func(d *Dispatcher) {
		d.startedAt = t
	}
}

// WithMetrics включает учёт команд.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New создает Dispatcher с полным реестром команд.
func New(deps Deps, log *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		Deps:      deps,
		prefix:    "!",
		delay:     5 * time.Second,
		startedAt: time.Now(),
		validate:  validator.New(),
		log:       log,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.registry = d.buildRegistry()
	return d
}

// Request разобранная команда.
type Request struct {
	Msg  models.InboundMessage
	Name string
	// Raw всё, что идёт после имени команды, включая переводы строк.
	Raw string
	// Args слова первой строки после имени команды.
	Args []string
}

// Handle обрабатывает тело сообщения из очереди шлюза.
// Битый JSON отбрасывается, остальные ошибки превращаются в ответы пользователю.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) error {
	const op = "services.commands.Handle"

	var msg models.InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%s: %w: %s", op, rabbitmq.ErrDrop, err.Error())
	}
	d.HandleMessage(ctx, msg)
	return nil
}

// HandleMessage выполняет команду из сообщения, если оно не отфильтровано.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg models.InboundMessage) {
	const op = "services.commands.HandleMessage"
	log := d.log.With(slog.String("op", op), slog.String("from", msg.From), slog.String("msg_id", msg.ID))

	if reason, skip := d.ignore(msg); skip {
		log.Debug("message ignored", slog.String("reason", reason))
		return
	}

	req, ok := d.parse(msg)
	if !ok {
		return
	}
	log = log.With(slog.String("command", req.Name))

	cmd, ok := d.registry[req.Name]
	if !ok {
		log.Debug("unknown command")
		return
	}
	if cmd.Admin && !d.isAdmin(msg) {
		d.metrics.Command(req.Name, "denied")
		log.Warn("admin command from non-whitelisted sender")
		return
	}

	reply, err := cmd.Handle(ctx, req)
	switch {
	case err == nil:
		d.metrics.Command(req.Name, "ok")
	case errors.Is(err, ErrUsage):
		d.metrics.Command(req.Name, "usage")
		reply = "Format salah! Gunakan: " + d.prefix + req.Name + " " + cmd.Usage
	default:
		d.metrics.Command(req.Name, "error")
		log.Error("command failed", sl.Err(err))
		if reply == "" {
			reply = "Terjadi kesalahan saat menjalankan perintah, coba lagi nanti."
		}
	}

	if reply != "" {
		d.reply(ctx, msg, reply)
	}
}

// Wait ждёт завершения фоновых команд (рассылок и смены ключей).
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// ignore решает, нужно ли пропустить сообщение.
func (d *Dispatcher) ignore(msg models.InboundMessage) (string, bool) {
	switch {
	case msg.From == statusBroadcast:
		return "status broadcast", true
	case !msg.Timestamp.IsZero() && msg.Timestamp.Before(d.startedAt):
		return "sent before start", true
	case msg.IsGroup:
		return "group chat", true
	case msg.HasMedia:
		return "media message", true
	case msg.FromMe && msg.HasQuotedMsg:
		return "own reply", true
	case !msg.FromMe && d.Settings.IsBanned(msg.From):
		return "banned sender", true
	}
	return "", false
}

func (d *Dispatcher) parse(msg models.InboundMessage) (*Request, bool) {
	text := strings.TrimSpace(msg.Body)
	if !strings.HasPrefix(text, d.prefix) {
		return nil, false
	}
	text = text[len(d.prefix):]

	name, raw := splitFirst(text)
	if name == "" {
		return nil, false
	}
	firstLine, _, _ := strings.Cut(raw, "\n")
	return &Request{
		Msg:  msg,
		Name: strings.ToLower(name),
		Raw:  raw,
		Args: strings.Fields(firstLine),
	}, true
}

// isAdmin владелец пишет со своего аккаунта или отправитель в белом списке.
func (d *Dispatcher) isAdmin(msg models.InboundMessage) bool {
	return msg.FromMe || d.Settings.IsWhitelisted(msg.From)
}

// chatOf адрес чата, куда нужно ответить.
func chatOf(msg models.InboundMessage) string {
	if msg.FromMe && msg.To != "" {
		return msg.To
	}
	return msg.From
}

func (d *Dispatcher) reply(ctx context.Context, msg models.InboundMessage, text string) {
	if err := d.Messenger.SendMessage(ctx, chatOf(msg), text); err != nil {
		d.log.Error("failed to send reply", slog.String("to", chatOf(msg)), sl.Err(err))
	}
}

// background выполняет долгую команду вне очереди входящих сообщений.
func (d *Dispatcher) background(ctx context.Context, msg models.InboundMessage, fn func(ctx context.Context) string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if text := fn(ctx); text != "" {
			d.reply(ctx, msg, text)
		}
	}()
}

// splitFirst отделяет первое слово от остатка строки.
func splitFirst(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	idx := strings.IndexAny(s, " \t\n")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimLeft(s[idx:], " \t")
}
