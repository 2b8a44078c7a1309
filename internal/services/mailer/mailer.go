// Package mailer отправляет донорам письма с лицензионным ключом через SMTP.
package mailer

import (
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/lib/smtp"
	"github.com/magabrotheeeer/donation-bot/internal/models"
)

// Mailer отправляет письма через SMTP-транспорт.
type Mailer struct {
	transport smtp.Dialer
	log       *slog.Logger
}

// New создает новый экземпляр Mailer.
func New(log *slog.Logger, transport smtp.Dialer) *Mailer {
	return &Mailer{
		transport: transport,
		log:       log,
	}
}

// SendLicenseKey отправляет донору письмо с ключом выбранного пакета.
func (m *Mailer) SendLicenseKey(to, supporterName string, amount int64, pkg models.Package) error {
	subject := fmt.Sprintf("Kode paket %s", pkg.Type)
	body := fmt.Sprintf("Hai %s!\n\nTerima kasih telah berdonasi sebesar Rp. %d untuk paket %s.\n"+
		"Berikut kode paket kamu:\n\n%s\n\nMakasih banyak yah sekali lagi.",
		supporterName, amount, pkg.Type, pkg.LicenseKey)

	return m.sendEmail([]string{to}, subject, body)
}

func (m *Mailer) sendEmail(to []string, subject, bodyText string) error {
	const op = "services.mailer.sendEmail"
	log := m.log.With(slog.String("op", op))

	sender := m.transport.Sender()
	from := sender.Address
	msg := smtp.BuildMessage(sender.String(), to, subject, bodyText)

	client, err := m.transport.Connect()
	if err != nil {
		log.Error("failed to connect to SMTP server", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		log.Error("failed to get Data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = wc.Write(msg); err != nil {
		log.Error("failed to write email body", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = wc.Close(); err != nil {
		log.Error("failed to close Data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = client.Quit(); err != nil {
		log.Error("failed to quit SMTP client", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
