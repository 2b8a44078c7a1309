package donation

import (
	"fmt"
	"unicode/utf16"

	"github.com/magabrotheeeer/donation-bot/internal/models"
)

// maxStatusLength предел длины статуса в UTF-16 символах (так считает WhatsApp),
// после которого сообщение донатера не включается.
const maxStatusLength = 145

func statusMessage(p models.DonationPayload) string {
	full := fmt.Sprintf("Donasi terbaru : %d dari %s%s Makasih banyak %s atas donasi nya yah 🥰 Emuach~ 😘",
		p.Price, p.SupporterName, withMessage(p.SupporterMessage), p.SupporterName)
	if statusLength(full) <= maxStatusLength {
		return full
	}
	return fmt.Sprintf("Hi, donasi terbaru : %d dari %s Makasih banyak %s atas donasi nya yah 🥰 Emuach~ 😘",
		p.Price, p.SupporterName, p.SupporterName)
}

func statusLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func withMessage(msg string) string {
	if msg == "" {
		return ""
	}
	return " dengan pesan " + msg
}

func thankYouMessage(amount int64, pkg models.Package) string {
	return fmt.Sprintf("Yay 🥳 Terima kasih telah berdonasi sebesar Rp. %d untuk paket %s! 🔑 dibawah ini adalah kode paket %s untuk kamu. Makasih banyak yah sekali lagi 😉",
		amount, pkg.Type, pkg.Type)
}
