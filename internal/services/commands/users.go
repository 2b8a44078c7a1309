package commands

import (
	"context"
	"fmt"
	"strings"
)

type userArgs struct {
	Name     string   `validate:"required"`
	Location string   `validate:"required"`
	Phones   []string `validate:"min=1,dive,required"`
}

// lines разбивает многострочную команду; повтор имени команды в начале строки допускается.
func (d *Dispatcher) lines(req *Request) [][]string {
	var out [][]string
	for _, line := range strings.Split(req.Raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.EqualFold(fields[0], d.prefix+req.Name) {
			fields = fields[1:]
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, fields)
	}
	return out
}

func (d *Dispatcher) userAdd(ctx context.Context, req *Request) (string, error) {
	lines := d.lines(req)
	if len(lines) == 0 {
		return "", ErrUsage
	}

	var (
		added   []string
		replies []string
		lastErr error
	)
	for _, fields := range lines {
		args := userArgs{}
		if len(fields) >= 3 {
			args.Name, args.Location = fields[0], fields[1]
			for _, p := range strings.Split(fields[2], ",") {
				if p = strings.TrimSpace(p); p != "" {
					args.Phones = append(args.Phones, address(p))
				}
			}
		}
		if err := d.validate.Struct(args); err != nil {
			replies = append(replies, "Format salah! Gunakan: "+d.prefix+"useradd "+d.registry["useradd"].Usage)
			continue
		}
		if err := d.Directory.AddUser(ctx, args.Name, args.Location, args.Phones); err != nil {
			lastErr = err
			replies = append(replies, fmt.Sprintf("Terjadi kesalahan saat menambahkan user %s.", args.Name))
			continue
		}
		added = append(added, args.Name)
	}

	if len(added) > 0 {
		replies = append(replies, fmt.Sprintf("User %s berhasil ditambahkan.", strings.Join(added, ", ")))
	}
	return strings.Join(replies, "\n"), lastErr
}

func (d *Dispatcher) userDel(ctx context.Context, req *Request) (string, error) {
	lines := d.lines(req)
	if len(lines) == 0 {
		return "", ErrUsage
	}

	var (
		deleted []string
		replies []string
		lastErr error
	)
	for _, fields := range lines {
		name := fields[0]
		ok, err := d.Directory.DeleteUser(ctx, name)
		if err != nil {
			lastErr = err
			replies = append(replies, fmt.Sprintf("Terjadi kesalahan saat menghapus user %s.", name))
			continue
		}
		if ok {
			deleted = append(deleted, name)
		}
	}

	if len(deleted) > 0 {
		replies = append(replies, fmt.Sprintf("User %s berhasil dihapus.", strings.Join(deleted, ", ")))
	} else if lastErr == nil {
		replies = append(replies, "User tidak ditemukan.")
	}
	return strings.Join(replies, "\n"), lastErr
}

func (d *Dispatcher) subscribe(ctx context.Context, req *Request) (string, error) {
	name := strings.Join(req.Args, " ")
	if name == "" {
		name = req.Msg.NotifyName
	}
	if name == "" {
		name = req.Msg.From
	}
	if err := d.Directory.AddPhoneNumber(ctx, name, req.Msg.From); err != nil {
		return "", err
	}
	return "Kamu berhasil berlangganan newsletter 🥳", nil
}

func (d *Dispatcher) unsubscribe(ctx context.Context, req *Request) (string, error) {
	removed, err := d.Directory.RemovePhoneNumber(ctx, req.Msg.From)
	if err != nil {
		return "", err
	}
	if !removed {
		return "Kamu belum berlangganan newsletter.", nil
	}
	return "Kamu telah berhenti berlangganan newsletter.", nil
}

func (d *Dispatcher) subList(ctx context.Context, _ *Request) (string, error) {
	subs, err := d.Directory.ListSubscribers(ctx)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		return "Belum ada pelanggan newsletter.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daftar pelanggan newsletter (%d):", len(subs))
	for i, s := range subs {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, s.Name, s.PhoneNumber)
	}
	return b.String(), nil
}

func (d *Dispatcher) newsletterAdd(ctx context.Context, req *Request) (string, error) {
	if len(req.Args) < 2 {
		return "", ErrUsage
	}
	name, number := req.Args[0], address(req.Args[1])
	if err := d.Directory.AddPhoneNumber(ctx, name, number); err != nil {
		return "", err
	}
	return fmt.Sprintf("Nomor %s berhasil ditambahkan ke newsletter atas nama %s.", number, name), nil
}
