package commands

import (
	"context"
	"fmt"
	"strings"
)

func (d *Dispatcher) status(ctx context.Context, req *Request) (string, error) {
	st, err := d.Lifecycle.CheckStatus(ctx, req.Msg.From)
	if err != nil {
		return "", err
	}
	if !st.Active {
		return "Kamu tidak memiliki paket aktif.", nil
	}
	return fmt.Sprintf("Paket aktif: %s\nBerlaku sampai: %s", *st.PackageName, st.Expiry.Format("02-01-2006 15:04")), nil
}

func (d *Dispatcher) chatID(_ context.Context, req *Request) (string, error) {
	msg := req.Msg
	lines := []string{"to: " + msg.To, "from: " + msg.From}
	if msg.Author != "" {
		lines = append(lines, "author: "+msg.Author)
		if msg.NotifyName != "" {
			lines = append(lines, "name: "+msg.NotifyName)
		}
		if msg.ChatName != "" {
			lines = append(lines, "chat: "+msg.ChatName)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(strings.TrimSpace(raw), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (d *Dispatcher) setWhitelist(_ context.Context, req *Request) (string, error) {
	numbers := splitList(req.Raw)
	if len(numbers) == 0 {
		return "", ErrUsage
	}
	set := d.Settings.SetWhitelist(numbers)
	return fmt.Sprintf("Nomor daftar putih telah di tambahkan dengan nomor %s", strings.Join(set, ",")), nil
}

func (d *Dispatcher) setBanlist(_ context.Context, req *Request) (string, error) {
	numbers := splitList(req.Raw)
	if len(numbers) == 0 {
		return "", ErrUsage
	}
	set := d.Settings.SetBanlist(numbers)
	return fmt.Sprintf("Nomor %s telah di banned dan tidak akan dilayani lagi", strings.Join(set, ",")), nil
}

// settings отвечает только в чате с самим собой, чтобы не раскрывать списки доступа.
func (d *Dispatcher) settings(_ context.Context, req *Request) (string, error) {
	msg := req.Msg
	if !msg.FromMe || msg.HasQuotedMsg || msg.From != msg.To {
		return "", nil
	}
	whitelist, banlist := d.Settings.Snapshot()
	return fmt.Sprintf("Runtime settings:\nwhitelist: %s\nbanlist: %s\n\nStatic settings:\nprefix: %s\ncommand delay: %s",
		strings.Join(whitelist, ","), strings.Join(banlist, ","), d.prefix, d.delay), nil
}
