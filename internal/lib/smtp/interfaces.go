// Package smtp отправляет письма бота: соединение с сервером, авторизация и сборка письма.
package smtp

import (
	"io"
	"net/mail"
)

// Client команды SMTP-сессии, которые нужны для отправки одного письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает авторизованную SMTP-сессию от имени бота.
type Dialer interface {
	Connect() (Client, error)
	// Sender адрес отправителя: Address идет в MAIL FROM, String() в заголовок From.
	Sender() mail.Address
}
