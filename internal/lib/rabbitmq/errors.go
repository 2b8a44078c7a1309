package rabbitmq

import "errors"

// ErrDrop помечает сообщение, которое нет смысла доставлять повторно (например, битый JSON).
var ErrDrop = errors.New("drop message")

// IsDrop сообщает, что ошибка обёрнута вокруг ErrDrop.
func IsDrop(err error) bool {
	return errors.Is(err, ErrDrop)
}
