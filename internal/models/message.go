package models

import "time"

// Виды исходящих сообщений шлюза.
const (
	OutboundKindMessage = "message"
	OutboundKindStatus  = "status"
)

// InboundMessage входящее сообщение чата, полученное от шлюза WhatsApp.
type InboundMessage struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Author       string    `json:"author,omitempty"`
	Body         string    `json:"body"`
	FromMe       bool      `json:"from_me"`
	IsGroup      bool      `json:"is_group"`
	HasMedia     bool      `json:"has_media"`
	HasQuotedMsg bool      `json:"has_quoted_msg"`
	NotifyName   string    `json:"notify_name,omitempty"`
	ChatName     string    `json:"chat_name,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// OutboundMessage команда шлюзу: отправить сообщение или сменить статус бота.
type OutboundMessage struct {
	Kind string `json:"kind"`
	To   string `json:"to,omitempty"`
	Body string `json:"body"`
}
