package smtp

import (
	"mime"
	"strings"
)

// BuildMessage собирает текстовое письмо в формате RFC 5322 с заголовками в UTF-8.
func BuildMessage(from string, to []string, subject, body string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + mime.QEncoding.Encode("UTF-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		strings.ReplaceAll(body, "\n", "\r\n"),
	}, "\r\n"))
}
