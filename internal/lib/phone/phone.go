// Package phone извлекает и нормализует индонезийские номера телефонов и email
// из произвольного текста (сообщения донатера).
package phone

import (
	"regexp"
	"strings"
)

// Suffix адресный суффикс личного чата WhatsApp.
const Suffix = "@c.us"

var (
	phoneRe = regexp.MustCompile(`(?:\+62|62|08)[0-9]{8,15}`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// Extract находит первый номер телефона в тексте и возвращает его в виде адреса чата.
// Второе значение false, если номера нет.
func Extract(text string) (string, bool) {
	match := phoneRe.FindString(text)
	if match == "" {
		return "", false
	}
	return Normalize(match), true
}

// Normalize приводит номер к виду 62XXXXXXXX@c.us.
func Normalize(number string) string {
	number = strings.TrimSuffix(strings.TrimSpace(number), Suffix)
	switch {
	case strings.HasPrefix(number, "08"):
		number = "628" + number[2:]
	case strings.HasPrefix(number, "+62"):
		number = "62" + number[3:]
	}
	return number + Suffix
}

// ExtractEmail находит первый email в тексте.
func ExtractEmail(text string) (string, bool) {
	match := emailRe.FindString(text)
	if match == "" {
		return "", false
	}
	return match, true
}
