package commands

import (
	"context"
	"sort"
	"strings"
)

// HandlerFunc выполняет команду и возвращает текст ответа.
type HandlerFunc func(ctx context.Context, req *Request) (string, error)

// Command запись реестра команд.
type Command struct {
	Admin  bool
	Usage  string
	Help   string
	Handle HandlerFunc
}

func (d *Dispatcher) buildRegistry() map[string]Command {
	return map[string]Command{
		"useradd": {
			Admin:  true,
			Usage:  "USER_NAME location phone_number,another_phone_number",
			Help:   "tambah user (satu per baris)",
			Handle: d.userAdd,
		},
		"userdel": {
			Admin:  true,
			Usage:  "USER_NAME",
			Help:   "hapus user (satu per baris)",
			Handle: d.userDel,
		},
		"cast": {
			Admin:  true,
			Usage:  "message",
			Help:   "kirim pesan ke semua nomor",
			Handle: d.cast,
		},
		"castloc": {
			Admin:  true,
			Usage:  "LOCATION message",
			Help:   "kirim pesan ke nomor di lokasi",
			Handle: d.castLoc,
		},
		"castlocprefix": {
			Admin:  true,
			Usage:  "LOCATION_PREFIX message",
			Help:   "kirim pesan ke nomor dengan awalan lokasi",
			Handle: d.castLocPrefix,
		},
		"castjson": {
			Admin:  true,
			Usage:  "message",
			Help:   "broadcast yang bisa dilanjutkan setelah restart",
			Handle: d.castJSON,
		},
		"sub": {
			Usage:  "[NAME]",
			Help:   "berlangganan newsletter",
			Handle: d.subscribe,
		},
		"unsub": {
			Help:   "berhenti berlangganan newsletter",
			Handle: d.unsubscribe,
		},
		"status": {
			Help:   "cek paket aktif",
			Handle: d.status,
		},
		"pkgcreate": {
			Admin:  true,
			Usage:  "PACKAGE_TYPE PRICE LICENSE_KEY",
			Help:   "buat paket",
			Handle: d.pkgCreate,
		},
		"pkgdel": {
			Admin:  true,
			Usage:  "PACKAGE_TYPE",
			Help:   "hapus paket",
			Handle: d.pkgDelete,
		},
		"pkgpricechange": {
			Admin:  true,
			Usage:  "PACKAGE_TYPE PRICE",
			Help:   "ubah harga paket",
			Handle: d.pkgPriceChange,
		},
		"pkgkeychange": {
			Admin:  true,
			Usage:  "PACKAGE_TYPE LICENSE_KEY",
			Help:   "ubah kode paket",
			Handle: d.pkgKeyChange,
		},
		"pkgprint": {
			Admin:  true,
			Help:   "daftar paket",
			Handle: d.pkgPrint,
		},
		"sublist": {
			Admin:  true,
			Help:   "daftar pelanggan newsletter",
			Handle: d.subList,
		},
		"newsletteradd": {
			Admin:  true,
			Usage:  "NAME PHONE_NUMBER",
			Help:   "tambah pelanggan newsletter",
			Handle: d.newsletterAdd,
		},
		"chatid": {
			Help:   "ID chat ini",
			Handle: d.chatID,
		},
		"whitelist": {
			Admin:  true,
			Usage:  "number,another_number",
			Help:   "set nomor pemilik",
			Handle: d.setWhitelist,
		},
		"banlist": {
			Admin:  true,
			Usage:  "number,another_number",
			Help:   "nomor yang diabaikan",
			Handle: d.setBanlist,
		},
		"settings": {
			Admin:  true,
			Help:   "pengaturan saat ini",
			Handle: d.settings,
		},
		"help": {
			Help:   "daftar perintah",
			Handle: d.help,
		},
	}
}

func (d *Dispatcher) help(_ context.Context, req *Request) (string, error) {
	admin := d.isAdmin(req.Msg)
	names := make([]string, 0, len(d.registry))
	for name, cmd := range d.registry {
		if cmd.Admin && !admin {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Perintah yang tersedia:")
	for _, name := range names {
		cmd := d.registry[name]
		b.WriteString("\n" + d.prefix + name)
		if cmd.Usage != "" {
			b.WriteString(" " + cmd.Usage)
		}
		b.WriteString(" - " + cmd.Help)
	}
	return b.String(), nil
}
