// Package models содержит доменные структуры бота: подписчиков рассылки,
// пакеты, параметры подписки, донаты и сообщения шлюза WhatsApp.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

// Subscriber представляет одну запись рассылки: имя владельца и его адрес.
type Subscriber struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}
