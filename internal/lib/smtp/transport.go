package smtp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/donation-bot/internal/config"
	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
)

// ErrNoStartTLS сервер на порту без неявного TLS не предлагает STARTTLS.
var ErrNoStartTLS = errors.New("smtp server does not support STARTTLS")

// implicitTLSPort порт SMTPS, на котором TLS начинается сразу, без STARTTLS.
const implicitTLSPort = "465"

// Transport реализует Dialer поверх net/smtp.
type Transport struct {
	cfg     config.SMTP
	log     *slog.Logger
	timeout time.Duration
}

// smtpClientWrapper обертка для *smtp.Client, реализующая интерфейс Client.
type smtpClientWrapper struct {
	client *smtp.Client
}

func (w *smtpClientWrapper) Mail(from string) error {
	return w.client.Mail(from)
}

func (w *smtpClientWrapper) Rcpt(to string) error {
	return w.client.Rcpt(to)
}

func (w *smtpClientWrapper) Data() (io.WriteCloser, error) {
	return w.client.Data()
}

func (w *smtpClientWrapper) Quit() error {
	return w.client.Quit()
}

func (w *smtpClientWrapper) Close() error {
	return w.client.Close()
}

// NewTransport создает новый экземпляр Transport.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log, timeout: 10 * time.Second}
}

// Connect открывает соединение, включает TLS (сразу на порту 465, иначе через STARTTLS)
// и авторизуется.
func (t *Transport) Connect() (Client, error) {
	const op = "lib.smtp.Connect"
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)
	log := t.log.With(slog.String("op", op), slog.String("addr", addr))

	tlsConfig := &tls.Config{
		ServerName: t.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := net.DialTimeout("tcp", addr, t.timeout)
	if err != nil {
		log.Error("failed to dial SMTP server", sl.Err(err))
		return nil, fmt.Errorf("%s: dial: %w", op, err)
	}
	if t.implicitTLS() {
		conn = tls.Client(conn, tlsConfig)
	}
	if err := conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		log.Warn("failed to set deadline", sl.Err(err))
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		log.Error("failed to create SMTP client", sl.Err(err))
		if closeErr := conn.Close(); closeErr != nil {
			log.Error("failed to close connection", sl.Err(closeErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !t.implicitTLS() {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			log.Error("SMTP server does not support STARTTLS")
			t.closeClient(client)
			return nil, fmt.Errorf("%s: %w", op, ErrNoStartTLS)
		}
		if err = client.StartTLS(tlsConfig); err != nil {
			log.Error("failed to start TLS", sl.Err(err))
			t.closeClient(client)
			return nil, fmt.Errorf("%s: start tls: %w", op, err)
		}
	}

	auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)
	if err = client.Auth(auth); err != nil {
		log.Error("smtp auth failed", sl.Err(err))
		t.closeClient(client)
		return nil, fmt.Errorf("%s: auth: %w", op, err)
	}

	return &smtpClientWrapper{client: client}, nil
}

// Sender возвращает адрес отправителя писем бота.
func (t *Transport) Sender() mail.Address {
	from := t.cfg.SMTPFrom
	if from == "" {
		from = t.cfg.SMTPUser
	}
	return mail.Address{Name: t.cfg.SMTPFromName, Address: from}
}

func (t *Transport) implicitTLS() bool {
	return t.cfg.SMTPPort == implicitTLSPort
}

func (t *Transport) closeClient(c *smtp.Client) {
	if err := c.Close(); err != nil {
		t.log.Error("failed to close client", sl.Err(err))
	}
}
