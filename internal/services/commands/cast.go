package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/services/broadcast"
)

func (d *Dispatcher) cast(ctx context.Context, req *Request) (string, error) {
	body := strings.TrimSpace(req.Raw)
	if body == "" {
		return "", ErrUsage
	}
	targets, err := d.Directory.ListPhoneNumbers(ctx)
	if err != nil {
		return "", err
	}
	return d.deliver(ctx, req, targets, body, "semua nomor yang terdaftar"), nil
}

func (d *Dispatcher) castLoc(ctx context.Context, req *Request) (string, error) {
	location, body := splitFirst(req.Raw)
	body = strings.TrimSpace(body)
	if location == "" || body == "" {
		return "", ErrUsage
	}
	targets, err := d.Directory.ListPhoneNumbersByLocation(ctx, location)
	if err != nil {
		return "", err
	}
	return d.deliver(ctx, req, targets, body, "semua nomor yang terdaftar di lokasi "+location), nil
}

func (d *Dispatcher) castLocPrefix(ctx context.Context, req *Request) (string, error) {
	prefix, body := splitFirst(req.Raw)
	body = strings.TrimSpace(body)
	if prefix == "" || body == "" {
		return "", ErrUsage
	}
	targets, err := d.Directory.ListPhoneNumbersByLocationPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return d.deliver(ctx, req, targets, body, "semua nomor yang terdaftar di lokasi "+prefix+"*"), nil
}

// deliver отправляет сообщение в фоне без сохранения прогресса и отвечает по завершении.
func (d *Dispatcher) deliver(ctx context.Context, req *Request, targets []string, body, audience string) string {
	if len(targets) == 0 {
		return "Tidak ada nomor yang terdaftar."
	}
	d.background(ctx, req.Msg, func(ctx context.Context) string {
		sent, err := broadcast.Deliver(ctx, d.Messenger, targets, body, d.delay)
		if err != nil {
			d.log.Error("cast halted", slog.String("command", req.Name), slog.Int("sent", sent), sl.Err(err))
			return fmt.Sprintf("Pengiriman berhenti setelah %d dari %d nomor karena gagal mengirim pesan.", sent, len(targets))
		}
		return "Pesan telah di kirim ke " + audience
	})
	return ""
}

func (d *Dispatcher) castJSON(ctx context.Context, req *Request) (string, error) {
	body := strings.TrimSpace(req.Raw)
	if body == "" {
		return "", ErrUsage
	}

	d.background(ctx, req.Msg, func(ctx context.Context) string {
		res, err := d.Broadcaster.Broadcast(ctx, body)
		switch {
		case errors.Is(err, broadcast.ErrBusy):
			return "Broadcast lain masih berjalan, coba lagi nanti."
		case err != nil:
			d.log.Error("broadcast halted", slog.String("job_id", res.JobID), sl.Err(err))
			return fmt.Sprintf("Broadcast %s berhenti setelah %d pesan. Jalankan %scastjson lagi untuk melanjutkan.",
				res.JobID, res.Sent, d.prefix)
		}
		note := ""
		if res.Resumed {
			note = " (melanjutkan broadcast sebelumnya)"
		}
		return fmt.Sprintf("Broadcast %s selesai%s: %d pesan terkirim.", res.JobID, note, res.Sent)
	})
	return "Broadcast dimulai.", nil
}
